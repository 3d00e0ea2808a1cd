package chunking

import (
	"ingest-worker/elements"
)

// textSeparator joins constituent element texts inside a composite
// chunk.
const textSeparator = "\n"

// preChunk is the unit between greedy packing and final assembly: a run
// of elements destined to become one chunk. Tables and oversized
// singletons are materialized separately and never merged with
// neighbors.
type preChunk struct {
	table     bool
	oversized bool
	elems     []elements.Element
	textLen   int
}

// packSection greedily packs one section's elements into pre-chunks,
// honoring the hard cap strictly and closing early at the soft cap.
// Ties favor closing: reaching the soft cap exactly closes the chunk,
// while the hard cap only rejects additions that would go past it.
func packSection(sec section, opts Options) []preChunk {
	if sec.isolated {
		e := sec.elems[0]
		if e.Type == elements.TypeTable {
			return []preChunk{{table: true, elems: sec.elems, textLen: len(e.Text)}}
		}
		if e.Text == "" {
			// Non-textual element without content contributes nothing.
			return nil
		}
		return []preChunk{{
			oversized: len(e.Text) > opts.MaxCharacters,
			elems:     sec.elems,
			textLen:   len(e.Text),
		}}
	}

	var out []preChunk
	var buf []elements.Element
	bufLen := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, preChunk{elems: buf, textLen: bufLen})
			buf = nil
			bufLen = 0
		}
	}

	for _, e := range sec.elems {
		n := len(e.Text)
		if n > opts.MaxCharacters {
			// Too large to accumulate; hand to the splitter at assembly.
			flush()
			out = append(out, preChunk{oversized: true, elems: []elements.Element{e}, textLen: n})
			continue
		}
		if len(buf) > 0 {
			combined := bufLen + len(textSeparator) + n
			if combined > opts.MaxCharacters || combined >= opts.NewAfterNChars {
				flush()
			}
		}
		if len(buf) == 0 {
			buf = []elements.Element{e}
			bufLen = n
		} else {
			buf = append(buf, e)
			bufLen += len(textSeparator) + n
		}
		if bufLen >= opts.NewAfterNChars {
			flush()
		}
	}
	flush()

	return out
}

// combinePreChunks merges adjacent small composite pre-chunks after the
// greedy pass. A merge happens only when both sides are under the
// combine threshold and the merged text stays within the soft cap.
// Table and oversized pre-chunks are never touched.
func combinePreChunks(pcs []preChunk, opts Options) []preChunk {
	if opts.CombineTextUnderNChars <= 0 {
		return pcs
	}

	out := make([]preChunk, 0, len(pcs))
	var cur *preChunk

	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}

	for _, pc := range pcs {
		pc := pc
		if pc.table || pc.oversized {
			flush()
			out = append(out, pc)
			continue
		}
		if cur == nil {
			cur = &pc
			continue
		}
		merged := cur.textLen + len(textSeparator) + pc.textLen
		if cur.textLen < opts.CombineTextUnderNChars &&
			pc.textLen < opts.CombineTextUnderNChars &&
			merged <= opts.NewAfterNChars {
			cur.elems = append(cur.elems, pc.elems...)
			cur.textLen = merged
			continue
		}
		flush()
		cur = &pc
	}
	flush()

	return out
}
