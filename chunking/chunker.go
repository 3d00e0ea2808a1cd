package chunking

import (
	"ingest-worker/elements"
)

// Chunk regroups an ordered element sequence into bounded-size chunks
// according to opts. With StrategyNone the input passes through
// untouched. The transformation is deterministic for a fixed IDFunc:
// identical input and options yield identical output.
//
// Pipeline: classifier boundaries -> sections -> greedy packing ->
// small-chunk combining -> assembly (splitting oversized content).
func Chunk(elems []elements.Element, opts Options) ([]elements.Element, error) {
	opts, err := opts.normalize()
	if err != nil {
		return nil, err
	}

	if opts.Strategy == StrategyNone {
		return append([]elements.Element(nil), elems...), nil
	}

	var pcs []preChunk
	for _, sec := range sectionize(elems, opts) {
		pcs = append(pcs, packSection(sec, opts)...)
	}
	pcs = combinePreChunks(pcs, opts)

	chunks := make([]elements.Element, 0, len(pcs))
	for _, pc := range pcs {
		chunks = append(chunks, assemble(pc, opts)...)
	}
	return chunks, nil
}
