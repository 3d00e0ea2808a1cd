// Package destinations ships finished chunks to their configured
// sinks. Every enabled destination receives every record; a failing
// destination fails the document so the job can be retried.
package destinations

import (
	"context"

	"ingest-worker/config"
	"ingest-worker/elements"
	"ingest-worker/pkg/errors"
)

// Record pairs a chunk with its optional embedding vector.
type Record struct {
	Chunk     elements.Element `json:"chunk"`
	Embedding []float32        `json:"embedding,omitempty"`
}

// Uploader writes one document's chunk records to a destination.
type Uploader interface {
	Upload(ctx context.Context, documentID string, records []Record) error
	Ping(ctx context.Context) error
	Name() string
	Close() error
}

// Build instantiates every destination enabled in configuration.
func Build(ctx context.Context, cfg *config.DestinationsConfig) ([]Uploader, error) {
	var out []Uploader

	if cfg.Local.Enabled {
		local, err := NewLocal(cfg.Local.Directory)
		if err != nil {
			return nil, err
		}
		out = append(out, local)
	}
	if cfg.Postgres.Enabled {
		pg, err := NewPostgres(ctx, &cfg.Postgres)
		if err != nil {
			return nil, err
		}
		out = append(out, pg)
	}
	if cfg.Bleve.Enabled {
		idx, err := NewBleve(cfg.Bleve.Path)
		if err != nil {
			return nil, err
		}
		out = append(out, idx)
	}

	if len(out) == 0 {
		return nil, errors.NewConfigurationError("no destinations enabled")
	}
	return out, nil
}

// CloseAll closes every uploader, returning the first error seen.
func CloseAll(uploaders []Uploader) error {
	var first error
	for _, u := range uploaders {
		if err := u.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
