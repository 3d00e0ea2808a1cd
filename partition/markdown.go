package partition

import (
	stdhtml "html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"ingest-worker/elements"
	"ingest-worker/pkg/errors"
)

var markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))

// partitionMarkdown walks the markdown AST and emits one element per
// top-level block. Headings become titles carrying their depth, list
// items are emitted individually, and GFM tables become Table elements
// with both a plain-text and an HTML rendering.
func partitionMarkdown(data []byte) ([]elements.Element, error) {
	doc := markdownParser.Parser().Parse(text.NewReader(data))
	if doc == nil {
		return nil, errors.NewPartitionError("markdown parse produced no document")
	}

	var out []elements.Element
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, markdownBlock(n, data)...)
	}
	return out, nil
}

func markdownBlock(n ast.Node, source []byte) []elements.Element {
	switch n.Kind() {
	case ast.KindHeading:
		h := n.(*ast.Heading)
		depth := h.Level
		meta := elements.Metadata{CategoryDepth: &depth}
		return []elements.Element{elements.New(elements.TypeTitle, nodeText(n, source), meta)}

	case ast.KindParagraph:
		txt := nodeText(n, source)
		if txt == "" {
			return nil
		}
		return []elements.Element{elements.New(elements.TypeNarrativeText, txt, inlineMetadata(n, source))}

	case ast.KindList:
		var out []elements.Element
		for item := n.FirstChild(); item != nil; item = item.NextSibling() {
			txt := nodeText(item, source)
			if txt == "" {
				continue
			}
			out = append(out, elements.New(elements.TypeListItem, txt, inlineMetadata(item, source)))
		}
		return out

	case ast.KindFencedCodeBlock, ast.KindCodeBlock:
		txt := rawLines(n, source)
		if txt == "" {
			return nil
		}
		return []elements.Element{elements.New(elements.TypeUncategorizedText, txt, elements.Metadata{})}

	case ast.KindBlockquote:
		var out []elements.Element
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			out = append(out, markdownBlock(c, source)...)
		}
		return out

	case east.KindTable:
		return []elements.Element{markdownTable(n, source)}

	case ast.KindThematicBreak, ast.KindHTMLBlock:
		return nil

	default:
		txt := nodeText(n, source)
		if txt == "" {
			return nil
		}
		return []elements.Element{elements.New(elements.TypeUncategorizedText, txt, elements.Metadata{})}
	}
}

// markdownTable flattens a GFM table into a Table element: rows joined
// by newlines in the plain text, a minimal <table> rendering in
// metadata.
func markdownTable(n ast.Node, source []byte) elements.Element {
	var textRows []string
	var html strings.Builder
	html.WriteString("<table>")

	for row := n.FirstChild(); row != nil; row = row.NextSibling() {
		header := row.Kind() == east.KindTableHeader
		var cells []string
		html.WriteString("<tr>")
		for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
			txt := nodeText(cell, source)
			cells = append(cells, txt)
			escaped := stdhtml.EscapeString(txt)
			if header {
				html.WriteString("<th>" + escaped + "</th>")
			} else {
				html.WriteString("<td>" + escaped + "</td>")
			}
		}
		html.WriteString("</tr>")
		textRows = append(textRows, strings.Join(cells, " | "))
	}
	html.WriteString("</table>")

	meta := elements.Metadata{TextAsHTML: html.String()}
	return elements.New(elements.TypeTable, strings.Join(textRows, "\n"), meta)
}

// inlineMetadata collects links and emphasized spans from a block's
// inline children.
func inlineMetadata(n ast.Node, source []byte) elements.Metadata {
	var meta elements.Metadata
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch c.Kind() {
		case ast.KindLink:
			l := c.(*ast.Link)
			meta.Links = append(meta.Links, elements.Link{
				Text: nodeText(c, source),
				URL:  string(l.Destination),
			})
		case ast.KindEmphasis:
			e := c.(*ast.Emphasis)
			tag := "i"
			if e.Level >= 2 {
				tag = "b"
			}
			meta.EmphasizedTextContents = append(meta.EmphasizedTextContents, nodeText(c, source))
			meta.EmphasizedTextTags = append(meta.EmphasizedTextTags, tag)
		}
		return ast.WalkContinue, nil
	})
	return meta
}

// nodeText flattens a node's text content, preserving line breaks
// inside a block.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := c.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

// rawLines reassembles a code block's literal lines.
func rawLines(n ast.Node, source []byte) string {
	var sb strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
	return strings.TrimRight(sb.String(), "\n")
}
