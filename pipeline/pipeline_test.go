package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-worker/config"
	"ingest-worker/destinations"
	"ingest-worker/embedder"
	"ingest-worker/pkg/logger"
	"ingest-worker/pkg/metrics"
)

// Shared across tests: prometheus collectors register globally, so the
// package registers its metrics once.
var testMetrics = metrics.New("ingest_test", "pipeline")

func newTestPipeline(t *testing.T, outDir string) *Pipeline {
	t.Helper()

	cfg := config.Load()
	cfg.Chunking.Strategy = "by_title"
	cfg.Chunking.MaxCharacters = 200
	cfg.Chunking.NewAfterNChars = 200
	cfg.Chunking.CombineTextUnderNChars = 0
	cfg.Embedding.Enabled = false
	cfg.Destinations.Local.Directory = outDir

	log, err := logger.New(logger.DefaultConfig())
	require.NoError(t, err)

	local, err := destinations.NewLocal(outDir)
	require.NoError(t, err)

	return New(cfg, embedder.Noop{}, []destinations.Uploader{local}, nil, testMetrics, log)
}

func TestIngestFile(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, outDir)

	src := filepath.Join(t.TempDir(), "doc.md")
	content := "# Overview\n\nThe first section has a little text.\n\n# Details\n\nThe second section has some more text in it.\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	result, err := p.IngestFile(context.Background(), src, "doc-1", "")
	require.NoError(t, err)

	assert.Equal(t, "doc-1", result.DocumentID)
	assert.Equal(t, 4, result.ElementCount)
	assert.Equal(t, 2, result.ChunkCount, "each heading starts its own chunk")
	assert.Equal(t, []string{"local"}, result.Destinations)

	data, err := os.ReadFile(filepath.Join(outDir, "doc-1.json"))
	require.NoError(t, err)
	var records []destinations.Record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)
	assert.Contains(t, records[0].Chunk.Text, "Overview")
	assert.Contains(t, records[1].Chunk.Text, "Details")
}

func TestIngestFileStrategyOverride(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, outDir)

	src := filepath.Join(t.TempDir(), "doc.md")
	content := "# One\n\nshort\n\n# Two\n\nshort\n"
	require.NoError(t, os.WriteFile(src, []byte(content), 0o644))

	result, err := p.IngestFile(context.Background(), src, "doc-2", "basic")
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunkCount, "basic strategy accumulates across titles")
}

func TestIngestFileDefaultDocumentID(t *testing.T) {
	outDir := t.TempDir()
	p := newTestPipeline(t, outDir)

	src := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(src, []byte("Just one narrative sentence."), 0o644))

	result, err := p.IngestFile(context.Background(), src, "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.DocumentID)
}

func TestIngestFileMissing(t *testing.T) {
	p := newTestPipeline(t, t.TempDir())
	_, err := p.IngestFile(context.Background(), "/no/such/file.txt", "", "")
	require.Error(t, err)
}
