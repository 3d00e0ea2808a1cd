// Package partition turns raw document bytes into the typed element
// sequence the chunking engine consumes. Format detection is
// content-based; the filename only breaks ties for text formats that
// sniff identically (markdown vs plain text).
package partition

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"ingest-worker/elements"
	"ingest-worker/pkg/errors"
)

// Partitioner dispatches documents to the format-specific partitioners.
type Partitioner struct{}

func New() *Partitioner {
	return &Partitioner{}
}

// PartitionFile reads and partitions the document at path.
func (p *Partitioner) PartitionFile(path string) ([]elements.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ResourceError, "FILE_READ_FAILED", "failed to read input file")
	}
	return p.Partition(data, filepath.Base(path))
}

// Partition detects the document format and produces its elements. The
// filename is recorded in every element's metadata.
func (p *Partitioner) Partition(data []byte, filename string) ([]elements.Element, error) {
	mime := mimetype.Detect(data)

	var (
		elems []elements.Element
		err   error
	)
	switch {
	case mime.Is("application/json"):
		elems, err = partitionJSON(data)
	case mime.Is("text/html"):
		elems, err = partitionHTML(data)
	case isMarkdown(mime, filename):
		elems, err = partitionMarkdown(data)
	case strings.HasPrefix(mime.String(), "text/"):
		elems, err = partitionText(data)
	default:
		return nil, errors.NewUnsupportedFileTypeError(mime.String())
	}
	if err != nil {
		return nil, err
	}

	for i := range elems {
		elems[i].Metadata.Filename = filename
		elems[i].Metadata.FileType = mime.String()
	}
	return elems, nil
}

func isMarkdown(mime *mimetype.MIME, filename string) bool {
	if mime.Is("text/markdown") {
		return true
	}
	ext := strings.ToLower(filepath.Ext(filename))
	return (ext == ".md" || ext == ".markdown") && strings.HasPrefix(mime.String(), "text/")
}
