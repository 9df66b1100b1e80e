// Package chunker splits extracted content blocks into bounded-size
// windows with overlap, passing tables through atomically and merging
// undersized trailing text chunks (spec §4.2). Grounded on spec.md's
// explicit algorithm; original_source's chunking_service.py is an
// unimplemented stub, so this is original engineering in the style of
// the teacher's plain struct-plus-method packages.
package chunker

import (
	"strings"

	"docrag/internal/pdfextract"
	"go.uber.org/zap"
)

// Config holds the chunker's size parameters (spec §4.2).
type Config struct {
	ChunkSize              int
	ChunkOverlap           int
	MinStandaloneChunkSize int
}

// Normalize clamps overlap below size, matching spec §4.2's fallback
// (overlap reset to size/5 when it would exceed or equal size).
func (c Config) Normalize() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap <= 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	if c.MinStandaloneChunkSize <= 0 {
		c.MinStandaloneChunkSize = 150
	}
	return c
}

// Chunk is one unit of text destined for embedding.
type Chunk struct {
	Content           string
	ContentType       pdfextract.ContentType
	IsAtomic          bool
	StartIndex        int
	Page              int
	TotalPages        int
	TableContext      string
	MergedSmallChunk  bool
}

var separators = []string{"\n\n", "\n", " "}

// Chunker splits content blocks per Config.
type Chunker struct {
	cfg    Config
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Chunker {
	return &Chunker{cfg: cfg.Normalize(), logger: logger}
}

// Chunk produces the final chunk list for an ordered list of content
// blocks belonging to one document.
func (c *Chunker) Chunk(blocks []pdfextract.Block) []Chunk {
	var out []Chunk
	for _, b := range blocks {
		if b.ContentType == pdfextract.ContentTable {
			out = append(out, Chunk{
				Content:      b.Text,
				ContentType:  pdfextract.ContentTable,
				IsAtomic:     true,
				StartIndex:   0,
				Page:         b.Page,
				TotalPages:   b.TotalPages,
				TableContext: b.Context,
			})
			if len(b.Text) > c.cfg.ChunkSize {
				c.logger.Warn("table chunk exceeds configured chunk size, not split",
					zap.Int("page", b.Page), zap.Int("length", len(b.Text)))
			}
			continue
		}

		for _, w := range c.splitText(b.Text) {
			out = append(out, Chunk{
				Content:     w.text,
				ContentType: pdfextract.ContentText,
				IsAtomic:    false,
				StartIndex:  w.start,
				Page:        b.Page,
				TotalPages:  b.TotalPages,
			})
		}
	}

	return c.mergeSmallChunks(out)
}

type window struct {
	text  string
	start int
}

// splitText recursively splits on paragraph, line, then space
// separators into windows of at most ChunkSize with ChunkOverlap
// (spec §4.2).
func (c *Chunker) splitText(text string) []window {
	if len(text) <= c.cfg.ChunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []window{{text: text, start: 0}}
	}

	pieces := recursiveSplit(text, separators, c.cfg.ChunkSize)
	return mergeToWindows(pieces, c.cfg.ChunkSize, c.cfg.ChunkOverlap)
}

// recursiveSplit breaks text into atoms no one of which individually
// exceeds limit where a separator can achieve that; falls back to
// hard character slicing if no separator helps.
func recursiveSplit(text string, seps []string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	if len(seps) == 0 {
		var out []string
		for len(text) > limit {
			out = append(out, text[:limit])
			text = text[limit:]
		}
		if text != "" {
			out = append(out, text)
		}
		return out
	}

	sep := seps[0]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return recursiveSplit(text, seps[1:], limit)
	}

	var out []string
	for i, p := range parts {
		piece := p
		if i < len(parts)-1 {
			piece += sep
		}
		if len(piece) > limit {
			out = append(out, recursiveSplit(piece, seps[1:], limit)...)
		} else {
			out = append(out, piece)
		}
	}
	return out
}

// mergeToWindows packs atoms produced by recursiveSplit into windows
// bounded by chunkSize, carrying overlap between consecutive windows
// and tracking each window's start offset in the original text.
func mergeToWindows(pieces []string, chunkSize, overlap int) []window {
	var windows []window
	var cur strings.Builder
	curStart := 0
	absolute := 0

	flush := func() {
		if cur.Len() == 0 {
			return
		}
		windows = append(windows, window{text: cur.String(), start: curStart})
	}

	for _, p := range pieces {
		if cur.Len() > 0 && cur.Len()+len(p) > chunkSize {
			flush()
			prev := cur.String()
			overlapText := ""
			if overlap > 0 && len(prev) > 0 {
				ov := overlap
				if ov > len(prev) {
					ov = len(prev)
				}
				overlapText = prev[len(prev)-ov:]
			}
			cur.Reset()
			cur.WriteString(overlapText)
			curStart = absolute - len(overlapText)
			if curStart < 0 {
				curStart = 0
			}
		}
		cur.WriteString(p)
		absolute += len(p)
	}
	flush()
	return windows
}

// mergeSmallChunks merges a TEXT chunk shorter than
// MinStandaloneChunkSize into the previous chunk when one exists,
// marking the result MergedSmallChunk. Tables are never merge
// candidates or targets (spec §4.2 post-pass).
func (c *Chunker) mergeSmallChunks(chunks []Chunk) []Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	out := make([]Chunk, 0, len(chunks))
	out = append(out, chunks[0])

	for i := 1; i < len(chunks); i++ {
		cur := chunks[i]
		prevIdx := len(out) - 1
		prev := out[prevIdx]

		if cur.ContentType == pdfextract.ContentText && !cur.IsAtomic &&
			len(cur.Content) < c.cfg.MinStandaloneChunkSize &&
			prev.ContentType == pdfextract.ContentText && !prev.IsAtomic {
			prev.Content = prev.Content + "\n\n" + cur.Content
			prev.MergedSmallChunk = true
			out[prevIdx] = prev
			continue
		}

		out = append(out, cur)
	}

	return out
}
