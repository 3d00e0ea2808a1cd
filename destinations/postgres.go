package destinations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ingest-worker/config"
	"ingest-worker/pkg/errors"
)

// Postgres upserts chunk records into a table, with embeddings stored
// in a pgvector column. The vector column is added lazily on the first
// upload that actually carries embeddings, since the dimension is not
// known until then.
type Postgres struct {
	pool      *pgxpool.Pool
	table     string
	vectorDim int
}

func NewPostgres(ctx context.Context, cfg *config.PostgresDestinationConfig) (*Postgres, error) {
	if cfg.URL == "" {
		return nil, errors.NewConfigurationError("postgres destination enabled but no url configured")
	}

	pool, err := pgxpool.New(ctx, cfg.URL)
	if err != nil {
		return nil, errors.Wrap(err, errors.NetworkError, "DEST_PG_CONNECT_FAILED", "failed to create postgres pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, errors.NetworkError, "DEST_PG_CONNECT_FAILED", "postgres ping failed")
	}

	p := &Postgres{pool: pool, table: cfg.Table}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL,
			chunk_index INT NOT NULL,
			chunk_type TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, p.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_document ON %s(document_id)", p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, errors.ResourceError, "DEST_PG_SCHEMA_FAILED", "failed to ensure destination schema")
		}
	}
	return nil
}

func (p *Postgres) ensureVectorColumn(ctx context.Context, dim int) error {
	if p.vectorDim == dim {
		return nil
	}
	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS embedding VECTOR(%d)", p.table, dim)
	if _, err := p.pool.Exec(ctx, stmt); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_PG_SCHEMA_FAILED", "failed to add embedding column")
	}
	p.vectorDim = dim
	return nil
}

func (p *Postgres) Upload(ctx context.Context, documentID string, records []Record) error {
	dim := 0
	for _, r := range records {
		if len(r.Embedding) > 0 {
			dim = len(r.Embedding)
			break
		}
	}
	if dim > 0 {
		if err := p.ensureVectorColumn(ctx, dim); err != nil {
			return err
		}
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, errors.NetworkError, "DEST_PG_TX_FAILED", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE document_id = $1", p.table), documentID); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_PG_UPLOAD_FAILED", "failed to clear previous chunks")
	}

	batch := &pgx.Batch{}
	for i, r := range records {
		meta, err := json.Marshal(r.Chunk.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.InternalError, "DEST_PG_UPLOAD_FAILED", "failed to marshal chunk metadata")
		}
		if len(r.Embedding) > 0 {
			batch.Queue(fmt.Sprintf(
				`INSERT INTO %s (chunk_id, document_id, chunk_index, chunk_type, content, metadata, embedding)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`, p.table),
				r.Chunk.ID, documentID, i, string(r.Chunk.Type), r.Chunk.Text, meta, pgvector.NewVector(r.Embedding))
		} else {
			batch.Queue(fmt.Sprintf(
				`INSERT INTO %s (chunk_id, document_id, chunk_index, chunk_type, content, metadata)
				 VALUES ($1, $2, $3, $4, $5, $6)`, p.table),
				r.Chunk.ID, documentID, i, string(r.Chunk.Type), r.Chunk.Text, meta)
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_PG_UPLOAD_FAILED", "failed to insert chunk batch")
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, errors.NetworkError, "DEST_PG_TX_FAILED", "failed to commit transaction")
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
