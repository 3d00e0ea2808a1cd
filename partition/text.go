package partition

import (
	"strings"
	"unicode"

	"ingest-worker/elements"
)

// partitionText splits plain text into block elements. Blocks are
// separated by blank lines; form feeds advance the page counter and
// emit a PageBreak element.
func partitionText(data []byte) ([]elements.Element, error) {
	var out []elements.Element
	page := 1

	for _, pageText := range strings.Split(string(data), "\f") {
		if page > 1 {
			p := page
			out = append(out, elements.New(elements.TypePageBreak, "", elements.Metadata{PageNumber: &p}))
		}
		for _, block := range splitBlocks(pageText) {
			p := page
			out = append(out, elements.New(classifyBlock(block), block, elements.Metadata{PageNumber: &p}))
		}
		page++
	}
	return out, nil
}

// splitBlocks cuts text into trimmed paragraphs on blank lines. List
// marker lines are their own blocks, so a run of bullets yields one
// block per item.
func splitBlocks(text string) []string {
	var blocks []string
	var cur []string

	flush := func() {
		if len(cur) > 0 {
			blocks = append(blocks, strings.Join(cur, "\n"))
			cur = nil
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if isListItem(trimmed) {
			flush()
			blocks = append(blocks, trimmed)
			continue
		}
		cur = append(cur, trimmed)
	}
	flush()
	return blocks
}

func classifyBlock(block string) elements.ElementType {
	if isListItem(block) {
		return elements.TypeListItem
	}
	if looksLikeTitle(block) {
		return elements.TypeTitle
	}
	if !strings.ContainsFunc(block, unicode.IsLetter) {
		return elements.TypeUncategorizedText
	}
	return elements.TypeNarrativeText
}

var bulletPrefixes = []string{"- ", "* ", "• ", "⁃ ", "∙ "}

func isListItem(block string) bool {
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(block, p) {
			return true
		}
	}
	// Numbered list markers like "1." or "3)".
	i := 0
	for i < len(block) && block[i] >= '0' && block[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(block)-1 {
		return false
	}
	return (block[i] == '.' || block[i] == ')') && block[i+1] == ' '
}

// looksLikeTitle applies cheap heuristics: a short single line that
// starts with an uppercase letter and does not end in sentence
// punctuation.
func looksLikeTitle(block string) bool {
	if strings.Contains(block, "\n") || len(block) > 120 {
		return false
	}
	runes := []rune(block)
	if len(runes) == 0 || !unicode.IsUpper(runes[0]) {
		return false
	}
	switch runes[len(runes)-1] {
	case '.', '!', '?', ',', ';':
		return false
	}
	// Mostly-prose lines with many words read as narrative even when
	// they lack terminal punctuation.
	return len(strings.Fields(block)) <= 12
}
