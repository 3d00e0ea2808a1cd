package chunking

import (
	"ingest-worker/elements"
)

// isIsolated reports whether an element must always form a section (and
// chunk) of its own: tables and every non-textual element.
func isIsolated(e elements.Element) bool {
	return e.Type == elements.TypeTable || !e.Type.IsTextual()
}

// isSectionBoundary decides whether a hard boundary precedes cur given
// its predecessor. Pure function of the two elements and the options;
// malformed or missing metadata is treated as "different" and forces a
// boundary rather than erroring.
func isSectionBoundary(prev *elements.Element, cur elements.Element, opts Options) bool {
	if prev == nil {
		return true
	}
	if isIsolated(cur) || isIsolated(*prev) {
		return true
	}
	if opts.Strategy != StrategyByTitle {
		return false
	}
	if cur.Type == elements.TypeTitle {
		return true
	}
	return metadataDiscontinuity(prev.Metadata, cur.Metadata, opts)
}

// metadataDiscontinuity applies the by_title metadata rules: a section
// identifier change, a page change when sections may not span pages, or
// a switch between main document and attachment content.
func metadataDiscontinuity(prev, cur elements.Metadata, opts Options) bool {
	if prev.Section != cur.Section {
		return true
	}
	if prev.IsAttached != cur.IsAttached {
		return true
	}
	if !opts.MultipageSections && !samePage(prev.PageNumber, cur.PageNumber) {
		return true
	}
	return false
}

func samePage(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
