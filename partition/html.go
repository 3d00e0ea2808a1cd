package partition

import (
	"bytes"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/net/html"

	"ingest-worker/elements"
	"ingest-worker/pkg/errors"
)

// partitionHTML walks the document in order, lifting <table> subtrees
// out as Table elements and converting the prose runs between them to
// markdown, which then goes through the markdown partitioner. That
// keeps one classification path for headings, lists and emphasis.
func partitionHTML(data []byte) ([]elements.Element, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, errors.ProcessingError, "HTML_PARSE_FAILED", "failed to parse html document")
	}

	conv := md.NewConverter("", true, nil)

	var out []elements.Element
	var pending bytes.Buffer

	flush := func() error {
		if pending.Len() == 0 {
			return nil
		}
		markdown, err := conv.ConvertString(pending.String())
		pending.Reset()
		if err != nil {
			return errors.Wrap(err, errors.ProcessingError, "HTML_CONVERT_FAILED", "failed to convert html to markdown")
		}
		elems, err := partitionMarkdown([]byte(markdown))
		if err != nil {
			return err
		}
		out = append(out, elems...)
		return nil
	}

	var walk func(n *html.Node) error
	walk = func(n *html.Node) error {
		if n.Type == html.ElementNode && n.Data == "table" {
			if err := flush(); err != nil {
				return err
			}
			out = append(out, tableElement(n))
			return nil
		}
		if !containsTable(n) {
			if n.Type == html.ElementNode || n.Type == html.TextNode {
				if err := html.Render(&pending, n); err != nil {
					return errors.Wrap(err, errors.ProcessingError, "HTML_RENDER_FAILED", "failed to render html fragment")
				}
			}
			return nil
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}

	body := findNode(doc, "body")
	if body == nil {
		body = doc
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := walk(c); err != nil {
			return nil, err
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// tableElement renders a table subtree back to markup and flattens its
// cells into plain text, one row per line with " | " between cells.
func tableElement(n *html.Node) elements.Element {
	var markup bytes.Buffer
	_ = html.Render(&markup, n)

	var rows []string
	var walkRows func(n *html.Node)
	walkRows = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []string
			var walkCells func(n *html.Node)
			walkCells = func(n *html.Node) {
				if n.Type == html.ElementNode && (n.Data == "td" || n.Data == "th") {
					cells = append(cells, strings.TrimSpace(textContent(n)))
					return
				}
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					walkCells(c)
				}
			}
			walkCells(n)
			rows = append(rows, strings.Join(cells, " | "))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkRows(c)
		}
	}
	walkRows(n)

	meta := elements.Metadata{TextAsHTML: markup.String()}
	return elements.New(elements.TypeTable, strings.Join(rows, "\n"), meta)
}

func containsTable(n *html.Node) bool {
	if n.Type == html.ElementNode && n.Data == "table" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsTable(c) {
			return true
		}
	}
	return false
}

func findNode(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, name); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
