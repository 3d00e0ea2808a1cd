package chunking

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// splitLookback is how far back from the hard cap the splitter searches
// for a whitespace boundary before falling back to a hard cut.
const splitLookback = 100

// splitText cuts text into ordered fragments of at most maxChars bytes
// each. Concatenating the fragments in order reproduces the input
// exactly: nothing is trimmed or inserted. Cuts land on whitespace when
// one exists within the lookback window, and never inside a UTF-8
// sequence.
func splitText(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	var parts []string
	rest := text
	for len(rest) > maxChars {
		cut := maxChars

		lookback := splitLookback
		if lookback > maxChars-1 {
			lookback = maxChars - 1
		}
		found := false
		for i := maxChars; i > maxChars-lookback; i-- {
			if isSplitSpace(rest[i]) {
				cut = i
				found = true
				break
			}
		}
		if !found {
			// Hard cut; back off to a rune boundary so fragments stay
			// valid UTF-8.
			for cut > 0 && !utf8.RuneStart(rest[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxChars
			}
		}

		parts = append(parts, rest[:cut])
		rest = rest[cut:]
	}
	if len(rest) > 0 {
		parts = append(parts, rest)
	}
	return parts
}

func isSplitSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

// sliceTableHTML distributes a table's rows over the plain-text
// fragments the table was split into, producing one well-formed
// <table> fragment per text fragment. The mapping from character
// offsets to rows is proportional and best-effort: the plain text is
// authoritative, the HTML fragments merely stay structurally valid.
// When the markup contains no rows the whole table travels with the
// first fragment.
func sliceTableHTML(tableHTML string, fragments []string) []string {
	out := make([]string, len(fragments))
	if tableHTML == "" || len(fragments) == 0 {
		return out
	}

	rows := extractTableRows(tableHTML)
	if len(rows) == 0 {
		out[0] = tableHTML
		return out
	}

	total := 0
	for _, f := range fragments {
		total += len(f)
	}
	if total == 0 {
		out[0] = tableHTML
		return out
	}

	// Assign whole rows to fragments by cumulative text share.
	assigned := 0
	cum := 0
	for i, f := range fragments {
		cum += len(f)
		end := len(rows) * cum / total
		if i == len(fragments)-1 {
			end = len(rows)
		}
		if end < assigned {
			end = assigned
		}
		if end > assigned {
			var sb strings.Builder
			sb.WriteString("<table>")
			for _, row := range rows[assigned:end] {
				sb.WriteString(row)
			}
			sb.WriteString("</table>")
			out[i] = sb.String()
		}
		assigned = end
	}
	return out
}

// extractTableRows parses the table markup and renders each <tr> back to
// a string. A parse failure yields no rows, which callers treat as
// "ship the original markup whole".
func extractTableRows(tableHTML string) []string {
	doc, err := html.Parse(strings.NewReader(tableHTML))
	if err != nil {
		return nil
	}

	var rows []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var buf bytes.Buffer
			if err := html.Render(&buf, n); err == nil {
				rows = append(rows, buf.String())
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return rows
}
