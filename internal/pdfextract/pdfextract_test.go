package pdfextract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectTables_FindsRunOfMultiColumnRows(t *testing.T) {
	rows := []row{
		{y: 100, text: "Report Title", cols: []string{"Report Title"}},
		{y: 90, text: "Name Age", cols: []string{"Name", "Age"}},
		{y: 80, text: "Alice 30", cols: []string{"Alice", "30"}},
		{y: 70, text: "Bob 40", cols: []string{"Bob", "40"}},
		{y: 60, text: "End of page", cols: []string{"End of page"}},
	}

	runs := detectTables(rows)
	require.Len(t, runs, 1)
	assert.Equal(t, tableRun{start: 1, end: 4}, runs[0])
}

func TestDetectTables_SingleMultiColumnRowIsNotATable(t *testing.T) {
	rows := []row{
		{y: 100, text: "Name Age", cols: []string{"Name", "Age"}},
		{y: 90, text: "just text", cols: []string{"just text"}},
	}
	assert.Empty(t, detectTables(rows))
}

func TestJoinRows_JoinsWithNewlines(t *testing.T) {
	rows := []row{{text: "a"}, {text: "b"}, {text: "c"}}
	assert.Equal(t, "a\nb\nc", joinRows(rows, 0, 3))
}

func TestContextAbove_TruncatesToMaxLengthOnLineBoundary(t *testing.T) {
	long := strings.Repeat("x", 200) + "\n" + strings.Repeat("y", 40)
	rows := []row{{text: long}}
	ctx := contextAbove(rows, 0, 1)
	assert.LessOrEqual(t, len(ctx), maxTableContext)
	assert.True(t, strings.HasSuffix(ctx, strings.Repeat("y", 40)))
}

func TestContextAbove_ShortTextPassesThroughUnchanged(t *testing.T) {
	rows := []row{{text: "short context"}}
	assert.Equal(t, "short context", contextAbove(rows, 0, 1))
}

func TestRenderMarkdownTable_EscapesPipesAndPadsShortRows(t *testing.T) {
	rows := []row{
		{cols: []string{"Name", "Note"}},
		{cols: []string{"A | B", "x\ny"}},
		{cols: []string{"C"}},
	}
	md := renderMarkdownTable(rows)

	lines := strings.Split(md, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| Name | Note |", lines[0])
	assert.Equal(t, "| --- | --- |", lines[1])
	assert.Equal(t, "| A \\| B | x y |", lines[2])
	assert.Equal(t, "| C |  |", lines[3])
}

func TestRenderMarkdownTable_EmptyRowsReturnsEmptyString(t *testing.T) {
	assert.Equal(t, "", renderMarkdownTable(nil))
}

func TestSanitizeCell_TrimsAndEscapes(t *testing.T) {
	assert.Equal(t, "a \\| b", sanitizeCell(" a | b "))
	assert.Equal(t, "a b", sanitizeCell("a\nb"))
}
