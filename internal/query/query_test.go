package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderTable(t *testing.T) {
	t.Run("empty result", func(t *testing.T) {
		out := renderTable([]string{"id", "name"}, nil, false)
		assert.Equal(t, "(no rows)", out)
	})

	t.Run("aligned columns", func(t *testing.T) {
		out := renderTable(
			[]string{"id", "product"},
			[][]string{
				{"1", "widget"},
				{"2", "industrial sprocket"},
			},
			false,
		)

		lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
		assert.Len(t, lines, 4)
		assert.Contains(t, lines[0], "id")
		assert.Contains(t, lines[0], "product")
		assert.Contains(t, lines[1], "---")
		assert.Contains(t, lines[3], "industrial sprocket")

		// Header and separator are as wide as the widest cell
		assert.Equal(t, len(lines[1]), len(strings.TrimRight(lines[3], " "))+0)
	})

	t.Run("null rendering", func(t *testing.T) {
		out := renderTable([]string{"v"}, [][]string{{"NULL"}}, false)
		assert.Contains(t, out, "NULL")
	})

	t.Run("truncation marker", func(t *testing.T) {
		out := renderTable([]string{"v"}, [][]string{{"1"}}, true)
		assert.Contains(t, out, "(result truncated)")
	})
}
