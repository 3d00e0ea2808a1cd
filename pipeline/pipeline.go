// Package pipeline runs a document end to end: partition into
// elements, chunk, embed, and ship to the configured destinations. The
// queue worker and the CLI both drive this type, so behavior is
// identical regardless of how a document arrives.
package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ingest-worker/chunking"
	"ingest-worker/config"
	"ingest-worker/destinations"
	"ingest-worker/elements"
	"ingest-worker/embedder"
	"ingest-worker/partition"
	"ingest-worker/pkg/cache"
	"ingest-worker/pkg/errors"
	"ingest-worker/pkg/logger"
	"ingest-worker/pkg/metrics"
)

type Pipeline struct {
	cfg         *config.Config
	partitioner *partition.Partitioner
	embedder    embedder.Embedder
	uploaders   []destinations.Uploader
	cache       *cache.Cache
	metrics     *metrics.Metrics
	log         *logger.Logger
}

// Result summarizes one document's trip through the pipeline.
type Result struct {
	DocumentID   string   `json:"document_id"`
	ElementCount int      `json:"element_count"`
	ChunkCount   int      `json:"chunk_count"`
	Destinations []string `json:"destinations"`
}

// New assembles a pipeline. resultCache may be nil, which disables
// the content-hash dedup check.
func New(cfg *config.Config, emb embedder.Embedder, uploaders []destinations.Uploader, resultCache *cache.Cache, m *metrics.Metrics, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:         cfg,
		partitioner: partition.New(),
		embedder:    emb,
		uploaders:   uploaders,
		cache:       resultCache,
		metrics:     m,
		log:         log,
	}
}

// IngestFile runs the document at path through the full pipeline. An
// empty strategyOverride uses the configured chunking strategy.
func (p *Pipeline) IngestFile(ctx context.Context, path, documentID, strategyOverride string) (*Result, error) {
	if documentID == "" {
		documentID = elements.HashID(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		p.countError("read", path)
		return nil, errors.Wrap(err, errors.ValidationError, "FILE_READ_FAILED", "Failed to read input file")
	}
	p.log.LogDocumentStart(ctx, filepath.Base(path), filepath.Ext(path), int64(len(data)))

	cacheKey := p.cacheKey(documentID, data, strategyOverride)
	if cacheKey != "" {
		if cached, err := p.cache.Get(ctx, cacheKey); err == nil {
			var result Result
			if err := json.Unmarshal(cached, &result); err == nil {
				p.log.FromContext(ctx).Info().
					Str("document_id", documentID).
					Msg("Document unchanged, serving cached result")
				return &result, nil
			}
		}
	}

	start := time.Now()
	elems, err := p.partitioner.Partition(data, filepath.Base(path))
	if err != nil {
		p.countError("partition", path)
		return nil, err
	}
	fileType := ""
	if len(elems) > 0 {
		fileType = elems[0].Metadata.FileType
	}
	p.metrics.DocumentIngestDuration.WithLabelValues(fileType, "partition").Observe(time.Since(start).Seconds())
	for _, e := range elems {
		p.metrics.ElementsPartitionedTotal.WithLabelValues(string(e.Type)).Inc()
	}

	chunks, err := p.chunk(elems, strategyOverride)
	if err != nil {
		p.countError("chunk", path)
		return nil, err
	}

	records, err := p.embed(ctx, chunks)
	if err != nil {
		p.countError("embed", path)
		return nil, err
	}

	names, err := p.upload(ctx, documentID, records)
	if err != nil {
		p.countError("upload", path)
		return nil, err
	}

	p.metrics.DocumentsIngestedTotal.WithLabelValues(fileType, "success").Inc()
	p.log.LogDocumentComplete(ctx, filepath.Base(path), len(elems), len(chunks), time.Since(start))

	result := &Result{
		DocumentID:   documentID,
		ElementCount: len(elems),
		ChunkCount:   len(chunks),
		Destinations: names,
	}

	if cacheKey != "" {
		if encoded, err := json.Marshal(result); err == nil {
			if err := p.cache.Set(ctx, cacheKey, encoded); err != nil {
				p.log.FromContext(ctx).Warn().Err(err).Msg("Failed to cache ingest result")
			}
		}
	}

	return result, nil
}

// cacheKey fingerprints the document content together with the
// chunking settings that shaped its chunks. Returns "" when caching
// is disabled.
func (p *Pipeline) cacheKey(documentID string, data []byte, strategyOverride string) string {
	if p.cache == nil {
		return ""
	}

	strategy := p.cfg.Chunking.Strategy
	if strategyOverride != "" {
		strategy = strategyOverride
	}

	h := sha256.New()
	h.Write(data)
	fmt.Fprintf(h, "|%s|%d|%d|%d|%t",
		strategy,
		p.cfg.Chunking.MaxCharacters,
		p.cfg.Chunking.NewAfterNChars,
		p.cfg.Chunking.CombineTextUnderNChars,
		p.cfg.Chunking.MultipageSections,
	)
	return p.cache.Key("result", documentID, hex.EncodeToString(h.Sum(nil)))
}

func (p *Pipeline) chunk(elems []elements.Element, strategyOverride string) ([]elements.Element, error) {
	opts := chunking.OptionsFromConfig(&p.cfg.Chunking)
	if strategyOverride != "" {
		opts.Strategy = chunking.Strategy(strategyOverride)
	}

	start := time.Now()
	chunks, err := chunking.Chunk(elems, opts)
	if err != nil {
		return nil, err
	}

	types := make([]string, len(chunks))
	sizes := make([]int, len(chunks))
	for i, c := range chunks {
		types[i] = string(c.Type)
		sizes[i] = len(c.Text)
	}
	p.metrics.ObserveChunks(string(opts.Strategy), types, sizes, time.Since(start))
	return chunks, nil
}

func (p *Pipeline) embed(ctx context.Context, chunks []elements.Element) ([]destinations.Record, error) {
	records := make([]destinations.Record, len(chunks))
	for i, c := range chunks {
		records[i] = destinations.Record{Chunk: c}
	}
	if !p.cfg.Embedding.Enabled || len(chunks) == 0 {
		return records, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Embedding = vectors[i]
		if len(vectors[i]) > 0 {
			p.metrics.EmbeddingsCreatedTotal.WithLabelValues(p.embedder.Name()).Inc()
		}
	}
	return records, nil
}

func (p *Pipeline) upload(ctx context.Context, documentID string, records []destinations.Record) ([]string, error) {
	names := make([]string, 0, len(p.uploaders))
	for _, u := range p.uploaders {
		if err := u.Upload(ctx, documentID, records); err != nil {
			p.metrics.UploadErrors.WithLabelValues(u.Name()).Inc()
			return nil, errors.Wrapf(err, errors.ProcessingError, "UPLOAD_FAILED", "upload to %s failed", u.Name())
		}
		p.metrics.ChunksUploadedTotal.WithLabelValues(u.Name()).Add(float64(len(records)))
		names = append(names, u.Name())
	}
	return names, nil
}

func (p *Pipeline) countError(stage, path string) {
	p.metrics.DocumentIngestErrors.WithLabelValues(filepath.Ext(path), stage).Inc()
}
