// Package embedder computes vector embeddings for finished chunks.
package embedder

import (
	"context"

	"ingest-worker/config"
	"ingest-worker/pkg/errors"
)

// Embedder turns chunk texts into fixed-size vectors. Implementations
// must return one vector per input text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

// New builds the embedder selected by configuration. Embedding disabled
// returns a no-op embedder so the pipeline never branches on nil.
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	if cfg == nil || !cfg.Enabled {
		return Noop{}, nil
	}
	if cfg.APIKey == "" {
		return nil, errors.NewConfigurationError("embedding enabled but no api key configured")
	}
	return newOpenAI(cfg)
}

// Noop satisfies Embedder without producing vectors.
type Noop struct{}

func (Noop) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (Noop) Name() string { return "noop" }
