package chunking

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitText(t *testing.T) {
	t.Run("short text returns a single fragment", func(t *testing.T) {
		frags := splitText("hello world", 100)
		assert.Equal(t, []string{"hello world"}, frags)
	})

	t.Run("prefers whitespace near the cap", func(t *testing.T) {
		text := strings.Repeat("a", 90) + " " + strings.Repeat("b", 90)
		frags := splitText(text, 100)
		require.Len(t, frags, 2)
		assert.Equal(t, strings.Repeat("a", 90), frags[0])
		assert.Equal(t, " "+strings.Repeat("b", 90), frags[1])
	})

	t.Run("hard cut when no whitespace in the lookback window", func(t *testing.T) {
		text := strings.Repeat("x", 250)
		frags := splitText(text, 100)
		require.Len(t, frags, 3)
		assert.Equal(t, 100, len(frags[0]))
		assert.Equal(t, 100, len(frags[1]))
		assert.Equal(t, 50, len(frags[2]))
	})

	t.Run("never cuts inside a multibyte rune", func(t *testing.T) {
		text := strings.Repeat("é", 200) // 2 bytes each
		frags := splitText(text, 101)
		for _, f := range frags {
			assert.True(t, utf8.ValidString(f))
		}
		assert.Equal(t, text, strings.Join(frags, ""))
	})

	t.Run("concatenation reproduces the input", func(t *testing.T) {
		inputs := []string{
			strings.Repeat("word ", 200),
			strings.Repeat("z", 999),
			"one two\tthree\nfour " + strings.Repeat("five", 100),
			strings.Repeat("日本語", 150),
		}
		for _, text := range inputs {
			for _, max := range []int{50, 100, 333, 1500} {
				frags := splitText(text, max)
				assert.Equal(t, text, strings.Join(frags, ""))
				for _, f := range frags {
					assert.LessOrEqual(t, len(f), max)
					assert.NotEmpty(t, f)
				}
			}
		}
	})
}

func TestSliceTableHTML(t *testing.T) {
	t.Run("rows distributed across fragments proportionally", func(t *testing.T) {
		var html strings.Builder
		html.WriteString("<table>")
		for i := 0; i < 10; i++ {
			html.WriteString("<tr><td>row</td></tr>")
		}
		html.WriteString("</table>")

		slices := sliceTableHTML(html.String(), []string{
			strings.Repeat("a", 500),
			strings.Repeat("b", 500),
		})
		require.Len(t, slices, 2)
		assert.Equal(t, 5, strings.Count(slices[0], "<tr>"))
		assert.Equal(t, 5, strings.Count(slices[1], "<tr>"))
		for _, s := range slices {
			assert.True(t, strings.HasPrefix(s, "<table>"))
			assert.True(t, strings.HasSuffix(s, "</table>"))
		}
	})

	t.Run("all rows are preserved", func(t *testing.T) {
		var html strings.Builder
		html.WriteString("<table>")
		for i := 0; i < 7; i++ {
			html.WriteString("<tr><td>r</td></tr>")
		}
		html.WriteString("</table>")

		slices := sliceTableHTML(html.String(), []string{"aaa", "bb", "c"})
		total := 0
		for _, s := range slices {
			total += strings.Count(s, "<tr>")
		}
		assert.Equal(t, 7, total)
	})

	t.Run("rowless markup lands on the first fragment", func(t *testing.T) {
		slices := sliceTableHTML("<div>not a table</div>", []string{"a", "b"})
		require.Len(t, slices, 2)
		assert.Equal(t, "<div>not a table</div>", slices[0])
		assert.Empty(t, slices[1])
	})

	t.Run("empty markup yields empty slices", func(t *testing.T) {
		slices := sliceTableHTML("", []string{"a", "b"})
		require.Len(t, slices, 2)
		assert.Empty(t, slices[0])
		assert.Empty(t, slices[1])
	})
}
