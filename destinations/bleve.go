package destinations

import (
	"context"

	"github.com/blevesearch/bleve/v2"

	"ingest-worker/pkg/errors"
)

// Bleve maintains a local full-text index over chunk content, so
// ingested documents are searchable without any external service.
type Bleve struct {
	index bleve.Index
}

// chunkDocument is the flat shape stored in the index.
type chunkDocument struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
	ChunkType  string `json:"chunk_type"`
	Content    string `json:"content"`
	Filename   string `json:"filename"`
	Page       int    `json:"page,omitempty"`
}

func NewBleve(path string) (*Bleve, error) {
	index, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		index, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceError, "DEST_BLEVE_OPEN_FAILED", "failed to open search index")
	}
	return &Bleve{index: index}, nil
}

func (b *Bleve) Upload(_ context.Context, documentID string, records []Record) error {
	batch := b.index.NewBatch()
	for i, r := range records {
		doc := chunkDocument{
			DocumentID: documentID,
			ChunkIndex: i,
			ChunkType:  string(r.Chunk.Type),
			Content:    r.Chunk.Text,
			Filename:   r.Chunk.Metadata.Filename,
		}
		if r.Chunk.Metadata.PageNumber != nil {
			doc.Page = *r.Chunk.Metadata.PageNumber
		}
		if err := batch.Index(r.Chunk.ID, doc); err != nil {
			return errors.Wrap(err, errors.InternalError, "DEST_BLEVE_INDEX_FAILED", "failed to stage chunk for indexing")
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_BLEVE_INDEX_FAILED", "failed to index chunk batch")
	}
	return nil
}

// Search runs a match query over indexed chunk content.
func (b *Bleve) Search(query string, limit int) (*bleve.SearchResult, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	if limit > 0 {
		req.Size = limit
	}
	req.Fields = []string{"document_id", "content", "filename"}
	result, err := b.index.Search(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.InternalError, "SEARCH_FAILED", "search query failed")
	}
	return result, nil
}

func (b *Bleve) Ping(_ context.Context) error {
	_, err := b.index.DocCount()
	return err
}

func (b *Bleve) Name() string { return "bleve" }

func (b *Bleve) Close() error { return b.index.Close() }
