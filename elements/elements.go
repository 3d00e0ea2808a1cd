// Package elements defines the typed document elements produced by
// partitioning and consumed by the chunking engine. Elements are treated
// as read-only inputs; chunking produces fresh elements of the derived
// types (CompositeElement, Table, TableChunk).
package elements

import (
	"encoding/json"
)

// ElementType is the closed set of element categories.
type ElementType string

const (
	TypeTitle             ElementType = "Title"
	TypeNarrativeText     ElementType = "NarrativeText"
	TypeListItem          ElementType = "ListItem"
	TypeTable             ElementType = "Table"
	TypeImage             ElementType = "Image"
	TypePageBreak         ElementType = "PageBreak"
	TypeHeader            ElementType = "Header"
	TypeFooter            ElementType = "Footer"
	TypeUncategorizedText ElementType = "UncategorizedText"
	TypeFigureCaption     ElementType = "FigureCaption"
	TypeAddress           ElementType = "Address"
	TypeFormula           ElementType = "Formula"

	// Derived types produced by chunking.
	TypeCompositeElement ElementType = "CompositeElement"
	TypeTableChunk       ElementType = "TableChunk"
)

// IsTextual reports whether elements of this type carry meaningful text
// that may be accumulated with neighbors. Tables are textual but are
// always isolated by the chunker; images and page breaks are not.
func (t ElementType) IsTextual() bool {
	switch t {
	case TypeImage, TypePageBreak:
		return false
	default:
		return true
	}
}

// Link is a hyperlink found in element text.
type Link struct {
	Text     string `json:"text,omitempty"`
	URL      string `json:"url,omitempty"`
	StartIdx int    `json:"start_index,omitempty"`
}

// Metadata is the structured bag attached to every element. All fields
// are optional; absent values marshal away. Merge policy during chunking:
// list-valued fields are unioned order-preserving, scalar fields are
// copied from the first constituent element.
type Metadata struct {
	Filename      string `json:"filename,omitempty"`
	FileType      string `json:"filetype,omitempty"`
	PageNumber    *int   `json:"page_number,omitempty"`
	Section       string `json:"section,omitempty"`
	CategoryDepth *int   `json:"category_depth,omitempty"`
	ParentID      string `json:"parent_id,omitempty"`

	// IsAttached marks elements originating from an attachment rather
	// than the main document body.
	IsAttached bool `json:"is_attached,omitempty"`

	Languages              []string `json:"languages,omitempty"`
	Links                  []Link   `json:"links,omitempty"`
	EmphasizedTextContents []string `json:"emphasized_text_contents,omitempty"`
	EmphasizedTextTags     []string `json:"emphasized_text_tags,omitempty"`

	// TextAsHTML carries the HTML rendering of a Table element.
	TextAsHTML string `json:"text_as_html,omitempty"`

	// ChunkSequenceNumber is the 0-indexed position of a TableChunk
	// fragment within its parent table's fragment sequence.
	ChunkSequenceNumber *int `json:"chunk_sequence_number,omitempty"`

	// OriginElementID refers back to the element a derived chunk was
	// built from, so consumers can regroup TableChunk fragments.
	OriginElementID string `json:"origin_element_id,omitempty"`

	// OrigElements optionally carries the constituent elements of a
	// composite chunk when the chunker is configured to preserve them.
	OrigElements []Element `json:"orig_elements,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	out := m
	out.Languages = append([]string(nil), m.Languages...)
	out.Links = append([]Link(nil), m.Links...)
	out.EmphasizedTextContents = append([]string(nil), m.EmphasizedTextContents...)
	out.EmphasizedTextTags = append([]string(nil), m.EmphasizedTextTags...)
	out.OrigElements = append([]Element(nil), m.OrigElements...)
	if m.PageNumber != nil {
		n := *m.PageNumber
		out.PageNumber = &n
	}
	if m.CategoryDepth != nil {
		d := *m.CategoryDepth
		out.CategoryDepth = &d
	}
	if m.ChunkSequenceNumber != nil {
		s := *m.ChunkSequenceNumber
		out.ChunkSequenceNumber = &s
	}
	return out
}

// Element is one unit of parsed document content.
type Element struct {
	ID       string      `json:"element_id"`
	Type     ElementType `json:"type"`
	Text     string      `json:"text"`
	Metadata Metadata    `json:"metadata"`
}

// New builds an element with a deterministic hash id.
func New(t ElementType, text string, meta Metadata) Element {
	return Element{
		ID:       HashID(string(t) + "\x00" + text),
		Type:     t,
		Text:     text,
		Metadata: meta,
	}
}

// JSON renders the element in the interchange form consumed by
// downstream stagers and uploaders.
func (e Element) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// MergeMetadata combines the metadata of several elements into the
// metadata for a chunk built from them. Scalars come from the first
// element; list fields are the deduplicated, order-preserving union.
func MergeMetadata(elems []Element) Metadata {
	if len(elems) == 0 {
		return Metadata{}
	}
	merged := elems[0].Metadata.Clone()
	merged.TextAsHTML = ""
	merged.OrigElements = nil
	for _, e := range elems[1:] {
		merged.Languages = unionStrings(merged.Languages, e.Metadata.Languages)
		merged.EmphasizedTextContents = unionStrings(merged.EmphasizedTextContents, e.Metadata.EmphasizedTextContents)
		merged.EmphasizedTextTags = unionStrings(merged.EmphasizedTextTags, e.Metadata.EmphasizedTextTags)
		merged.Links = unionLinks(merged.Links, e.Metadata.Links)
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]struct{}, len(a))
	out := append([]string(nil), a...)
	for _, s := range a {
		seen[s] = struct{}{}
	}
	for _, s := range b {
		if _, ok := seen[s]; !ok {
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func unionLinks(a, b []Link) []Link {
	seen := make(map[Link]struct{}, len(a))
	out := append([]Link(nil), a...)
	for _, l := range a {
		seen[l] = struct{}{}
	}
	for _, l := range b {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	return out
}
