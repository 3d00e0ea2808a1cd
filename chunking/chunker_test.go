package chunking

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ingest-worker/elements"
	perrors "ingest-worker/pkg/errors"
)

func textEl(t elements.ElementType, text string) elements.Element {
	return elements.New(t, text, elements.Metadata{})
}

func textElOnPage(t elements.ElementType, text string, page int) elements.Element {
	return elements.New(t, text, elements.Metadata{PageNumber: &page})
}

func optsByTitle(maxChars, softCap, combine int) Options {
	return Options{
		Strategy:               StrategyByTitle,
		MaxCharacters:          maxChars,
		NewAfterNChars:         softCap,
		CombineTextUnderNChars: combine,
		MultipageSections:      true,
	}
}

func chunkTexts(chunks []elements.Element) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, c.Text)
	}
	return out
}

func TestChunkByTitle(t *testing.T) {
	t.Run("titles cut sections", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeTitle, "A"),
			textEl(elements.TypeNarrativeText, strings.Repeat("x", 100)),
			textEl(elements.TypeTitle, "B"),
			textEl(elements.TypeNarrativeText, strings.Repeat("y", 100)),
		}

		chunks, err := Chunk(input, optsByTitle(1500, 1500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 2)

		assert.Equal(t, "A\n"+strings.Repeat("x", 100), chunks[0].Text)
		assert.Equal(t, "B\n"+strings.Repeat("y", 100), chunks[1].Text)
		assert.Equal(t, elements.TypeCompositeElement, chunks[0].Type)
		assert.Equal(t, elements.TypeCompositeElement, chunks[1].Type)
	})

	t.Run("no chunk mixes content across a title boundary", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, "before"),
			textEl(elements.TypeTitle, "Section"),
			textEl(elements.TypeNarrativeText, "after"),
		}

		chunks, err := Chunk(input, optsByTitle(1500, 1500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "before", chunks[0].Text)
		assert.Equal(t, "Section\nafter", chunks[1].Text)
	})

	t.Run("page change cuts when multipage sections disabled", func(t *testing.T) {
		opts := optsByTitle(1500, 1500, 0)
		opts.MultipageSections = false

		input := []elements.Element{
			textElOnPage(elements.TypeNarrativeText, "page one", 1),
			textElOnPage(elements.TypeNarrativeText, "page two", 2),
		}

		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
	})

	t.Run("page change does not cut when multipage sections enabled", func(t *testing.T) {
		input := []elements.Element{
			textElOnPage(elements.TypeNarrativeText, "page one", 1),
			textElOnPage(elements.TypeNarrativeText, "page two", 2),
		}

		chunks, err := Chunk(input, optsByTitle(1500, 1500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "page one\npage two", chunks[0].Text)
	})

	t.Run("section identifier change cuts", func(t *testing.T) {
		a := elements.New(elements.TypeNarrativeText, "intro", elements.Metadata{Section: "1"})
		b := elements.New(elements.TypeNarrativeText, "body", elements.Metadata{Section: "2"})

		chunks, err := Chunk([]elements.Element{a, b}, optsByTitle(1500, 1500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 2)
	})

	t.Run("attachment switch cuts", func(t *testing.T) {
		a := elements.New(elements.TypeNarrativeText, "body", elements.Metadata{})
		b := elements.New(elements.TypeNarrativeText, "attached", elements.Metadata{IsAttached: true})

		chunks, err := Chunk([]elements.Element{a, b}, optsByTitle(1500, 1500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 2)
	})
}

func TestChunkBasic(t *testing.T) {
	t.Run("accumulates across titles", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeTitle, "A"),
			textEl(elements.TypeNarrativeText, "one"),
			textEl(elements.TypeTitle, "B"),
			textEl(elements.TypeNarrativeText, "two"),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 1500, NewAfterNChars: 1500}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, "A\none\nB\ntwo", chunks[0].Text)
	})

	t.Run("still isolates tables", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, "before"),
			textEl(elements.TypeTable, "a | b"),
			textEl(elements.TypeNarrativeText, "after"),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 1500, NewAfterNChars: 1500}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, elements.TypeTable, chunks[1].Type)
		assert.Equal(t, "a | b", chunks[1].Text)
	})
}

func TestChunkSizeLimits(t *testing.T) {
	t.Run("soft cap closes early", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, strings.Repeat("a", 300)),
			textEl(elements.TypeNarrativeText, strings.Repeat("b", 300)),
			textEl(elements.TypeNarrativeText, strings.Repeat("c", 300)),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 1500, NewAfterNChars: 500}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		// 300+1+300 crosses the soft cap, so every element closes its
		// own chunk.
		require.Len(t, chunks, 3)
	})

	t.Run("hard cap never exceeded", func(t *testing.T) {
		var input []elements.Element
		for i := 0; i < 20; i++ {
			input = append(input, textEl(elements.TypeNarrativeText, strings.Repeat("z", 217)))
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 500, NewAfterNChars: 500}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c.Text), 500)
		}
	})

	t.Run("oversized narrative is split losslessly", func(t *testing.T) {
		original := strings.Repeat("x", 3000)
		input := []elements.Element{textEl(elements.TypeNarrativeText, original)}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 1000, NewAfterNChars: 1000}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 3)

		var rebuilt strings.Builder
		for _, c := range chunks {
			assert.Equal(t, elements.TypeCompositeElement, c.Type)
			assert.LessOrEqual(t, len(c.Text), 1000)
			rebuilt.WriteString(c.Text)
		}
		assert.Equal(t, original, rebuilt.String())
	})
}

func TestChunkTables(t *testing.T) {
	t.Run("small table passes through whole", func(t *testing.T) {
		table := elements.New(elements.TypeTable, "h1 h2\nv1 v2", elements.Metadata{
			TextAsHTML: "<table><tr><td>h1</td><td>h2</td></tr></table>",
		})

		chunks, err := Chunk([]elements.Element{table}, optsByTitle(1500, 1500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, elements.TypeTable, chunks[0].Type)
		assert.Equal(t, table.Text, chunks[0].Text)
		assert.Equal(t, table.Metadata.TextAsHTML, chunks[0].Metadata.TextAsHTML)
		assert.Equal(t, table.ID, chunks[0].Metadata.OriginElementID)
	})

	t.Run("large table splits into ordered fragments", func(t *testing.T) {
		var html strings.Builder
		html.WriteString("<table>")
		for i := 0; i < 40; i++ {
			html.WriteString("<tr><td>cell</td></tr>")
		}
		html.WriteString("</table>")

		original := strings.Repeat("r", 2000)
		table := elements.New(elements.TypeTable, original, elements.Metadata{TextAsHTML: html.String()})

		chunks, err := Chunk([]elements.Element{table}, optsByTitle(800, 800, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 3)

		var rebuilt strings.Builder
		for i, c := range chunks {
			assert.Equal(t, elements.TypeTableChunk, c.Type)
			require.NotNil(t, c.Metadata.ChunkSequenceNumber)
			assert.Equal(t, i, *c.Metadata.ChunkSequenceNumber)
			assert.Equal(t, table.ID, c.Metadata.OriginElementID)
			if c.Metadata.TextAsHTML != "" {
				assert.True(t, strings.HasPrefix(c.Metadata.TextAsHTML, "<table>"))
				assert.True(t, strings.HasSuffix(c.Metadata.TextAsHTML, "</table>"))
			}
			rebuilt.WriteString(c.Text)
		}
		assert.Equal(t, original, rebuilt.String())
	})

	t.Run("table never shares a chunk with text", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, "short"),
			elements.New(elements.TypeTable, "a | b", elements.Metadata{}),
			textEl(elements.TypeNarrativeText, "tail"),
		}

		chunks, err := Chunk(input, optsByTitle(1500, 1500, 500))
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, elements.TypeCompositeElement, chunks[0].Type)
		assert.Equal(t, elements.TypeTable, chunks[1].Type)
		assert.Equal(t, elements.TypeCompositeElement, chunks[2].Type)
	})
}

func TestCombineSmallChunks(t *testing.T) {
	t.Run("five small titles collapse to one chunk", func(t *testing.T) {
		var input []elements.Element
		for i := 0; i < 5; i++ {
			input = append(input, textEl(elements.TypeTitle, strings.Repeat("t", 50)))
		}

		chunks, err := Chunk(input, optsByTitle(1500, 500, 500))
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.LessOrEqual(t, len(chunks[0].Text), 500)
	})

	t.Run("zero disables the combine pass", func(t *testing.T) {
		var input []elements.Element
		for i := 0; i < 5; i++ {
			input = append(input, textEl(elements.TypeTitle, strings.Repeat("t", 50)))
		}

		chunks, err := Chunk(input, optsByTitle(1500, 500, 0))
		require.NoError(t, err)
		require.Len(t, chunks, 5)
	})

	t.Run("combine stops once the threshold is reached", func(t *testing.T) {
		var input []elements.Element
		for i := 0; i < 4; i++ {
			input = append(input, textEl(elements.TypeTitle, strings.Repeat("t", 300)))
		}

		// Each greedy chunk is 300 chars and under the threshold, but
		// merging any pair gives 601 which exceeds the 600 soft cap.
		chunks, err := Chunk(input, optsByTitle(1500, 600, 400))
		require.NoError(t, err)
		require.Len(t, chunks, 4)
	})
}

func TestChunkPassthroughAndErrors(t *testing.T) {
	t.Run("empty strategy passes elements through", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeTitle, "A"),
			textEl(elements.TypeNarrativeText, "body"),
		}

		chunks, err := Chunk(input, Options{Strategy: StrategyNone})
		require.NoError(t, err)
		assert.Equal(t, input, chunks)
	})

	t.Run("non-positive max_characters is rejected", func(t *testing.T) {
		_, err := Chunk(nil, Options{Strategy: StrategyBasic, MaxCharacters: 0})
		require.Error(t, err)
		assert.True(t, perrors.IsType(err, perrors.ConfigurationError))

		_, err = Chunk(nil, Options{Strategy: StrategyBasic, MaxCharacters: -10})
		require.Error(t, err)
		assert.True(t, perrors.IsType(err, perrors.ConfigurationError))
	})

	t.Run("unknown strategy is rejected", func(t *testing.T) {
		_, err := Chunk(nil, Options{Strategy: "aggressive", MaxCharacters: 100})
		require.Error(t, err)
		assert.True(t, perrors.IsType(err, perrors.ConfigurationError))
	})

	t.Run("negative thresholds are rejected", func(t *testing.T) {
		_, err := Chunk(nil, Options{Strategy: StrategyBasic, MaxCharacters: 100, NewAfterNChars: -1})
		require.Error(t, err)

		_, err = Chunk(nil, Options{Strategy: StrategyBasic, MaxCharacters: 100, CombineTextUnderNChars: -1})
		require.Error(t, err)
	})

	t.Run("soft cap above hard cap is clamped", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, strings.Repeat("a", 90)),
			textEl(elements.TypeNarrativeText, strings.Repeat("b", 90)),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 100, NewAfterNChars: 5000}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
	})
}

func TestChunkDeterminism(t *testing.T) {
	input := []elements.Element{
		textEl(elements.TypeTitle, "Heading"),
		textEl(elements.TypeNarrativeText, "First paragraph of the body."),
		elements.New(elements.TypeTable, "k v", elements.Metadata{}),
		textEl(elements.TypeNarrativeText, strings.Repeat("long ", 500)),
	}

	opts := optsByTitle(400, 400, 100)

	first, err := Chunk(input, opts)
	require.NoError(t, err)
	second, err := Chunk(input, opts)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	for _, c := range first {
		assert.NotEmpty(t, c.ID)
	}
}

func TestChunkRoundTrip(t *testing.T) {
	// Concatenating all chunk texts, ignoring injected separators,
	// must reproduce the concatenation of the input texts.
	input := []elements.Element{
		textEl(elements.TypeTitle, "Introduction"),
		textEl(elements.TypeNarrativeText, strings.Repeat("alpha ", 80)),
		elements.New(elements.TypeTable, strings.Repeat("cell ", 300), elements.Metadata{}),
		textEl(elements.TypeTitle, "Conclusion"),
		textEl(elements.TypeListItem, "final point"),
	}

	var want strings.Builder
	for _, e := range input {
		want.WriteString(e.Text)
	}

	for _, strategy := range []Strategy{StrategyBasic, StrategyByTitle} {
		opts := Options{Strategy: strategy, MaxCharacters: 350, NewAfterNChars: 350, MultipageSections: true}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)

		var got strings.Builder
		for _, c := range chunks {
			got.WriteString(strings.ReplaceAll(c.Text, textSeparator, ""))
		}
		assert.Equal(t, want.String(), got.String(), "strategy %q", strategy)
	}
}

func TestChunkMetadataMerge(t *testing.T) {
	page := 3
	a := elements.New(elements.TypeTitle, "Heading", elements.Metadata{
		PageNumber: &page,
		Filename:   "report.pdf",
		Languages:  []string{"eng"},
	})
	b := elements.New(elements.TypeNarrativeText, "Body text.", elements.Metadata{
		PageNumber:             &page,
		Filename:               "report.pdf",
		Languages:              []string{"eng", "deu"},
		EmphasizedTextContents: []string{"Body"},
	})

	chunks, err := Chunk([]elements.Element{a, b}, optsByTitle(1500, 1500, 0))
	require.NoError(t, err)
	require.Len(t, chunks, 1)

	meta := chunks[0].Metadata
	assert.Equal(t, "report.pdf", meta.Filename)
	require.NotNil(t, meta.PageNumber)
	assert.Equal(t, 3, *meta.PageNumber)
	assert.Equal(t, []string{"eng", "deu"}, meta.Languages)
	assert.Equal(t, []string{"Body"}, meta.EmphasizedTextContents)
	assert.Empty(t, meta.OrigElements)
}

func TestChunkIncludeOrigElements(t *testing.T) {
	opts := optsByTitle(1500, 1500, 0)
	opts.IncludeOrigElements = true

	input := []elements.Element{
		textEl(elements.TypeTitle, "T"),
		textEl(elements.TypeNarrativeText, "body"),
	}

	chunks, err := Chunk(input, opts)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Len(t, chunks[0].Metadata.OrigElements, 2)
	assert.Equal(t, "T", chunks[0].Metadata.OrigElements[0].Text)
}

func TestChunkNonTextElements(t *testing.T) {
	t.Run("page break without text yields no chunk but cuts", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, "before"),
			elements.New(elements.TypePageBreak, "", elements.Metadata{}),
			textEl(elements.TypeNarrativeText, "after"),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 1500, NewAfterNChars: 1500}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, "before", chunks[0].Text)
		assert.Equal(t, "after", chunks[1].Text)
	})

	t.Run("image with caption text becomes its own chunk", func(t *testing.T) {
		input := []elements.Element{
			textEl(elements.TypeNarrativeText, "before"),
			elements.New(elements.TypeImage, "Figure 1: a diagram", elements.Metadata{}),
			textEl(elements.TypeNarrativeText, "after"),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 1500, NewAfterNChars: 1500}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		assert.Equal(t, "Figure 1: a diagram", chunks[1].Text)
	})

	t.Run("isolated element above the hard cap is split", func(t *testing.T) {
		caption := strings.Repeat("c", 500)
		input := []elements.Element{
			elements.New(elements.TypeImage, caption, elements.Metadata{}),
		}

		opts := Options{Strategy: StrategyBasic, MaxCharacters: 100, NewAfterNChars: 100}
		chunks, err := Chunk(input, opts)
		require.NoError(t, err)
		require.Len(t, chunks, 5)

		var rebuilt strings.Builder
		for _, c := range chunks {
			assert.LessOrEqual(t, len(c.Text), 100)
			assert.Equal(t, elements.TypeCompositeElement, c.Type)
			rebuilt.WriteString(c.Text)
		}
		assert.Equal(t, caption, rebuilt.String())
	})
}
