package chunking

import (
	"strings"

	"ingest-worker/elements"
)

// assemble materializes a pre-chunk into its final chunk element(s).
func assemble(pc preChunk, opts Options) []elements.Element {
	switch {
	case pc.table:
		return assembleTable(pc.elems[0], opts)
	case pc.oversized:
		return assembleOversized(pc.elems[0], opts)
	default:
		return []elements.Element{assembleComposite(pc.elems, opts)}
	}
}

// assembleComposite joins a run of text elements into one
// CompositeElement with merged metadata and a deterministic id.
func assembleComposite(elems []elements.Element, opts Options) elements.Element {
	texts := make([]string, 0, len(elems))
	for _, e := range elems {
		if e.Text != "" {
			texts = append(texts, e.Text)
		}
	}
	text := strings.Join(texts, textSeparator)

	meta := elements.MergeMetadata(elems)
	if opts.IncludeOrigElements {
		meta.OrigElements = append([]elements.Element(nil), elems...)
	}

	return elements.Element{
		ID:       opts.IDFunc(text),
		Type:     elements.TypeCompositeElement,
		Text:     text,
		Metadata: meta,
	}
}

// assembleTable emits a table either whole or as an ordered sequence of
// TableChunk fragments. Fragments are 0-indexed and carry a stable
// reference back to the source table so consumers can regroup them;
// concatenating their text reproduces the table text exactly.
func assembleTable(table elements.Element, opts Options) []elements.Element {
	if len(table.Text) <= opts.MaxCharacters {
		meta := table.Metadata.Clone()
		meta.OriginElementID = table.ID
		if opts.IncludeOrigElements {
			meta.OrigElements = []elements.Element{table}
		}
		return []elements.Element{{
			ID:       opts.IDFunc(table.Text),
			Type:     elements.TypeTable,
			Text:     table.Text,
			Metadata: meta,
		}}
	}

	fragments := splitText(table.Text, opts.MaxCharacters)
	htmlParts := sliceTableHTML(table.Metadata.TextAsHTML, fragments)

	out := make([]elements.Element, 0, len(fragments))
	for i, frag := range fragments {
		meta := table.Metadata.Clone()
		seq := i
		meta.ChunkSequenceNumber = &seq
		meta.OriginElementID = table.ID
		meta.TextAsHTML = htmlParts[i]
		if opts.IncludeOrigElements {
			meta.OrigElements = []elements.Element{table}
		}
		out = append(out, elements.Element{
			ID:       opts.IDFunc(frag),
			Type:     elements.TypeTableChunk,
			Text:     frag,
			Metadata: meta,
		})
	}
	return out
}

// assembleOversized splits a single too-large text element into ordered
// CompositeElement fragments whose concatenation reproduces the
// original text exactly.
func assembleOversized(e elements.Element, opts Options) []elements.Element {
	fragments := splitText(e.Text, opts.MaxCharacters)

	out := make([]elements.Element, 0, len(fragments))
	for _, frag := range fragments {
		meta := e.Metadata.Clone()
		meta.OriginElementID = e.ID
		if opts.IncludeOrigElements {
			meta.OrigElements = []elements.Element{e}
		}
		out = append(out, elements.Element{
			ID:       opts.IDFunc(frag),
			Type:     elements.TypeCompositeElement,
			Text:     frag,
			Metadata: meta,
		})
	}
	return out
}
