package chunking

import (
	"ingest-worker/elements"
)

// section is a maximal run of elements that may be chunked together.
// Sections partition the input sequence without gaps or overlaps and
// preserve its order. An isolated section holds exactly one table or
// non-textual element.
type section struct {
	isolated bool
	elems    []elements.Element
}

// sectionize cuts the element sequence at every classifier boundary.
// Textual elements with empty text carry no content and are dropped
// here; they neither start sections nor force boundaries.
func sectionize(elems []elements.Element, opts Options) []section {
	var sections []section
	var cur []elements.Element
	var prev *elements.Element

	flush := func() {
		if len(cur) > 0 {
			sections = append(sections, section{elems: cur})
			cur = nil
		}
	}

	for _, e := range elems {
		if e.Type != elements.TypeTable && e.Type.IsTextual() && e.Text == "" {
			continue
		}
		e := e
		if isSectionBoundary(prev, e, opts) {
			flush()
		}
		if isIsolated(e) {
			sections = append(sections, section{isolated: true, elems: []elements.Element{e}})
		} else {
			cur = append(cur, e)
		}
		prev = &e
	}
	flush()

	return sections
}
