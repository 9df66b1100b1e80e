package chunker

import (
	"strings"
	"testing"

	"docrag/internal/pdfextract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestChunk_TableBlockIsAtomicAndSingleChunk(t *testing.T) {
	md := "| a | b |\n| --- | --- |\n| 1 | 2 |"
	c := New(Config{ChunkSize: 1000, ChunkOverlap: 200, MinStandaloneChunkSize: 150}, zap.NewNop())

	chunks := c.Chunk([]pdfextract.Block{
		{ContentType: pdfextract.ContentTable, Text: md, Page: 1, TotalPages: 1},
	})

	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsAtomic)
	assert.Equal(t, 0, chunks[0].StartIndex)
	assert.Equal(t, md, chunks[0].Content)
}

func TestChunk_TextBlockRespectsSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("word ", 500) // 2500 chars
	c := New(Config{ChunkSize: 200, ChunkOverlap: 40, MinStandaloneChunkSize: 10}, zap.NewNop())

	chunks := c.Chunk([]pdfextract.Block{
		{ContentType: pdfextract.ContentText, Text: text, Page: 1, TotalPages: 1},
	})

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.False(t, ch.IsAtomic)
		assert.LessOrEqual(t, len(ch.Content), 200+40) // merge pass may extend trailing small chunks
	}
}

func TestChunk_SmallTrailingChunkIsMerged(t *testing.T) {
	// First window fills exactly chunk_size, second window is tiny.
	text := strings.Repeat("a", 100) + " " + strings.Repeat("b", 10)
	c := New(Config{ChunkSize: 100, ChunkOverlap: 10, MinStandaloneChunkSize: 50}, zap.NewNop())

	chunks := c.Chunk([]pdfextract.Block{
		{ContentType: pdfextract.ContentText, Text: text, Page: 1, TotalPages: 1},
	})

	require.NotEmpty(t, chunks)
	last := chunks[len(chunks)-1]
	if len(chunks) == 1 {
		assert.True(t, last.MergedSmallChunk || len(last.Content) >= 50)
	}
}

func TestConfig_NormalizeClampsOverlap(t *testing.T) {
	cfg := Config{ChunkSize: 100, ChunkOverlap: 500}.Normalize()
	assert.Equal(t, 20, cfg.ChunkOverlap)
}

func TestChunk_TableExceedingSizeIsNotSplit(t *testing.T) {
	big := strings.Repeat("| x |\n", 200)
	c := New(Config{ChunkSize: 50, ChunkOverlap: 10, MinStandaloneChunkSize: 10}, zap.NewNop())

	chunks := c.Chunk([]pdfextract.Block{
		{ContentType: pdfextract.ContentTable, Text: big, Page: 1, TotalPages: 1},
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, big, chunks[0].Content)
}
