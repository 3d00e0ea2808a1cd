package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"ingest-worker/chunking"
	"ingest-worker/config"
	"ingest-worker/destinations"
	"ingest-worker/embedder"
	"ingest-worker/partition"
	"ingest-worker/pipeline"
	"ingest-worker/pkg/logger"
	"ingest-worker/pkg/metrics"
	"ingest-worker/pkg/security"
	"ingest-worker/queue"
	"ingest-worker/worker"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

type cli struct {
	config *config.Config
}

func main() {
	cfg := config.Load()

	if err := logger.Init(&logger.Config{
		Level:      cfg.Logging.Level,
		Format:     "console",
		Output:     "stderr",
		TimeFormat: cfg.Logging.TimeFormat,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	c := &cli{config: cfg}

	rootCmd := &cobra.Command{
		Use:   "ingest-worker",
		Short: "Ingest Worker CLI - Partition, chunk and ingest documents",
		Long: `Ingest Worker CLI provides command line access to the document ingestion pipeline.

Features:
- Partition text, markdown, HTML and JSON documents into elements
- Chunk elements with the basic or by_title strategy
- Run the full ingest pipeline locally (partition, chunk, embed, upload)
- Submit documents to the Redis queue for background processing`,
		Version: version,
	}

	rootCmd.AddCommand(c.partitionCommand())
	rootCmd.AddCommand(c.chunkCommand())
	rootCmd.AddCommand(c.ingestCommand())
	rootCmd.AddCommand(c.submitCommand())
	rootCmd.AddCommand(c.statsCommand())
	rootCmd.AddCommand(c.tokenCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) partitionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition [input]",
		Short: "Partition a document into elements",
		Long:  "Partition a text, markdown, HTML or JSON document into classified elements and print them as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elems, err := partition.New().PartitionFile(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, elems)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write JSON to file instead of stdout")
	return cmd
}

func (c *cli) chunkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk [input]",
		Short: "Partition and chunk a document",
		Long:  "Partition a document into elements, group them into chunks and print the chunks as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			elems, err := partition.New().PartitionFile(args[0])
			if err != nil {
				return err
			}

			opts := chunking.OptionsFromConfig(&c.config.Chunking)
			if s, _ := cmd.Flags().GetString("strategy"); s != "" {
				opts.Strategy = chunking.Strategy(s)
			}
			if v, _ := cmd.Flags().GetInt("max-characters"); cmd.Flags().Changed("max-characters") {
				opts.MaxCharacters = v
			}
			if v, _ := cmd.Flags().GetInt("new-after-n-chars"); cmd.Flags().Changed("new-after-n-chars") {
				opts.NewAfterNChars = v
			}
			if v, _ := cmd.Flags().GetInt("combine-under"); cmd.Flags().Changed("combine-under") {
				opts.CombineTextUnderNChars = v
			}

			chunks, err := chunking.Chunk(elems, opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd, chunks)
		},
	}
	cmd.Flags().String("strategy", "by_title", "Chunking strategy (basic, by_title)")
	cmd.Flags().Int("max-characters", 0, "Hard chunk size cap in characters")
	cmd.Flags().Int("new-after-n-chars", 0, "Soft chunk size cap in characters")
	cmd.Flags().Int("combine-under", 0, "Combine adjacent small chunks below this size")
	cmd.Flags().StringP("output", "o", "", "Write JSON to file instead of stdout")
	return cmd
}

func (c *cli) ingestCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest [input]",
		Short: "Run the full ingest pipeline locally",
		Long:  "Partition, chunk, optionally embed and upload a document to the configured destinations without the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			emb, err := embedder.New(&c.config.Embedding)
			if err != nil {
				return err
			}
			uploaders, err := destinations.Build(ctx, &c.config.Destinations)
			if err != nil {
				return err
			}
			defer destinations.CloseAll(uploaders)

			m := metrics.New(c.config.Metrics.Namespace, c.config.Metrics.Subsystem)
			// One-shot runs skip the dedup cache.
			pipe := pipeline.New(c.config, emb, uploaders, nil, m, logger.Get())

			documentID, _ := cmd.Flags().GetString("document-id")
			strategy, _ := cmd.Flags().GetString("strategy")

			result, err := pipe.IngestFile(ctx, args[0], documentID, strategy)
			if err != nil {
				return err
			}
			return writeJSON(cmd, result)
		},
	}
	cmd.Flags().String("document-id", "", "Document ID (defaults to a hash of the input path)")
	cmd.Flags().String("strategy", "", "Chunking strategy override (basic, by_title)")
	cmd.Flags().StringP("output", "o", "", "Write JSON to file instead of stdout")
	return cmd
}

func (c *cli) submitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit [input]",
		Short: "Submit a document to the ingest queue",
		Long:  "Enqueue a document for background processing by a running worker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queue.NewRedisQueue(&c.config.Redis, &c.config.Worker)
			if err != nil {
				return err
			}
			defer q.Close()

			documentID, _ := cmd.Flags().GetString("document-id")
			strategy, _ := cmd.Flags().GetString("strategy")

			job, err := worker.SubmitIngestJob(q, args[0], documentID, strategy)
			if err != nil {
				return err
			}

			fmt.Printf("Job %s submitted (document %s)\n", job.ID, job.Payload.DocumentID)
			return nil
		},
	}
	cmd.Flags().String("document-id", "", "Document ID (defaults to a hash of the input path)")
	cmd.Flags().String("strategy", "", "Chunking strategy override (basic, by_title)")
	return cmd
}

func (c *cli) statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := queue.NewRedisQueue(&c.config.Redis, &c.config.Worker)
			if err != nil {
				return err
			}
			defer q.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			stats, err := q.GetQueueStats(ctx)
			if err != nil {
				return err
			}
			return writeJSON(cmd, stats)
		},
	}
}

func (c *cli) tokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Generate an API access token",
		Long:  "Generate a signed JWT for calling the HTTP API when authentication is enabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			tm, err := security.NewTokenManager(&c.config.Security)
			if err != nil {
				return err
			}

			subject, _ := cmd.Flags().GetString("subject")
			rolesFlag, _ := cmd.Flags().GetString("roles")
			var roles []string
			if rolesFlag != "" {
				roles = strings.Split(rolesFlag, ",")
			}

			token, err := tm.GenerateToken(subject, roles)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().String("subject", "cli", "Token subject")
	cmd.Flags().String("roles", "", "Comma-separated roles to embed in the token")
	return cmd
}

// writeJSON prints v as indented JSON to stdout, or to the file named
// by the command's --output flag when set.
func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if cmd.Flags().Lookup("output") != nil {
		if out, _ := cmd.Flags().GetString("output"); out != "" {
			return os.WriteFile(out, append(data, '\n'), 0644)
		}
	}

	_, err = fmt.Println(string(data))
	return err
}
