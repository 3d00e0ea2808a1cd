package destinations

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"ingest-worker/pkg/errors"
)

// Local writes one JSON file per document into a directory. The file
// holds the full record array, so a document's output is replaced
// atomically on re-ingest.
type Local struct {
	dir string
}

func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ResourceError, "DEST_DIR_FAILED", "failed to create output directory")
	}
	return &Local{dir: dir}, nil
}

func (l *Local) Upload(_ context.Context, documentID string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.InternalError, "DEST_MARSHAL_FAILED", "failed to marshal chunk records")
	}

	final := filepath.Join(l.dir, documentID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_WRITE_FAILED", "failed to write chunk file")
	}
	if err := os.Rename(tmp, final); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_WRITE_FAILED", "failed to finalize chunk file")
	}
	return nil
}

// Ping verifies the output directory is still writable.
func (l *Local) Ping(_ context.Context) error {
	probe := filepath.Join(l.dir, ".probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return errors.Wrap(err, errors.ResourceError, "DEST_DIR_FAILED", "output directory not writable")
	}
	return os.Remove(probe)
}

func (l *Local) Name() string { return "local" }

func (l *Local) Close() error { return nil }
