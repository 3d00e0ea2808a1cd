package embedder

import (
	"context"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"ingest-worker/config"
	"ingest-worker/pkg/errors"
)

type openAIEmbedder struct {
	embedder *embeddings.EmbedderImpl
	model    string
}

func newOpenAI(cfg *config.EmbeddingConfig) (Embedder, error) {
	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "EMBEDDER_INIT_FAILED", "failed to initialize openai client")
	}
	emb, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, errors.Wrap(err, errors.ConfigurationError, "EMBEDDER_INIT_FAILED", "failed to build embedder")
	}

	return &openAIEmbedder{embedder: emb, model: cfg.Model}, nil
}

func (e *openAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, errors.Wrap(err, errors.NetworkError, "EMBEDDING_FAILED", "embedding request failed")
	}
	if len(vectors) != len(texts) {
		return nil, errors.NewEmbeddingError("embedding count does not match input count")
	}
	return vectors, nil
}

func (e *openAIEmbedder) Name() string { return "openai/" + e.model }
