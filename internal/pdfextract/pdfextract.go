// Package pdfextract parses a PDF byte stream into ordered content
// blocks: text regions and atomic tables with preceding context
// (spec §4.1). Built against github.com/ledongthuc/pdf, the PDF
// parser grounded across the retrieved pack's manifests.
package pdfextract

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// ContentType distinguishes text regions from atomic tables.
type ContentType string

const (
	ContentText  ContentType = "text"
	ContentTable ContentType = "table"
)

// rowYTolerance is a tolerance in PDF points. extractPage does not
// consult it: the sweep emits a text strip above or below a table
// whenever the strip holds non-whitespace text, whatever its height.
const rowYTolerance = 5.0

// maxTableContext is the maximum length of the context string
// captured immediately above a table (spec §4.1).
const maxTableContext = 150

// Block is one ordered content block extracted from a page.
type Block struct {
	ContentType ContentType
	Text        string
	// Context holds up to maxTableContext characters of text
	// immediately above a TABLE block; empty for TEXT blocks.
	Context string
	Page     int
	TotalPages int
	// topY is the block's page-relative Y position, used only for
	// ordering within a page; not exposed beyond this package.
	topY float64
}

// row is one line of positioned text read off a page.
type row struct {
	y    float64
	text string
	cols []string
}

// Extract parses raw PDF bytes into an ordered list of content
// blocks. objectID is provenance only (not embedded in output here;
// callers attach it to chunk metadata). Unreadable PDFs (open
// failure, zero pages) return an error classified by the caller as
// bad input (spec §4.1 failure policy).
func Extract(data []byte, objectID string, logger *zap.Logger) ([]Block, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf %q: %w", objectID, err)
	}

	totalPages := reader.NumPage()
	if totalPages == 0 {
		return nil, fmt.Errorf("pdf %q has zero pages", objectID)
	}

	var blocks []Block
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		pageBlocks, err := extractPage(page, pageNum, totalPages)
		if err != nil {
			logger.Warn("skipping page after extraction error",
				zap.Int("page", pageNum), zap.Error(err))
			continue
		}
		blocks = append(blocks, pageBlocks...)
	}

	return blocks, nil
}

func extractPage(page pdf.Page, pageNum, totalPages int) ([]Block, error) {
	rows, err := rowsFromPage(page)
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", pageNum, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	tableRuns := detectTables(rows)
	if len(tableRuns) == 0 {
		text := joinRows(rows, 0, len(rows))
		if strings.TrimSpace(text) == "" {
			return nil, nil
		}
		return []Block{{ContentType: ContentText, Text: text, Page: pageNum, TotalPages: totalPages}}, nil
	}

	sort.Slice(tableRuns, func(i, j int) bool { return rows[tableRuns[i].start].y > rows[tableRuns[j].start].y })

	var blocks []Block
	cursor := 0
	for _, run := range tableRuns {
		if run.start > cursor {
			stripText := joinRows(rows, cursor, run.start)
			if strings.TrimSpace(stripText) != "" {
				blocks = append(blocks, Block{
					ContentType: ContentText, Text: stripText,
					Page: pageNum, TotalPages: totalPages, topY: rows[cursor].y,
				})
			}
		}

		context := contextAbove(rows, cursor, run.start)
		md := renderMarkdownTable(rows[run.start:run.end])
		blocks = append(blocks, Block{
			ContentType: ContentTable, Text: md, Context: context,
			Page: pageNum, TotalPages: totalPages, topY: rows[run.start].y,
		})
		cursor = run.end
	}
	if cursor < len(rows) {
		stripText := joinRows(rows, cursor, len(rows))
		if strings.TrimSpace(stripText) != "" {
			blocks = append(blocks, Block{
				ContentType: ContentText, Text: stripText,
				Page: pageNum, TotalPages: totalPages, topY: rows[cursor].y,
			})
		}
	}

	return blocks, nil
}

// rowsFromPage groups the page's positioned text into line bands by Y
// coordinate, the prerequisite for both plain paragraph joining and
// table-column detection.
func rowsFromPage(page pdf.Page) ([]row, error) {
	prows, err := page.GetTextByRow()
	if err != nil {
		return nil, err
	}

	rows := make([]row, 0, len(prows))
	for _, pr := range prows {
		var cols []string
		var sb strings.Builder
		for i, t := range pr.Content {
			s := strings.TrimSpace(t.S)
			if s == "" {
				continue
			}
			cols = append(cols, s)
			if i > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(s)
		}
		text := sb.String()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rows = append(rows, row{y: pr.Position, text: text, cols: cols})
	}

	// ledongthuc/pdf yields rows top-to-bottom already; sort
	// defensively descending by Y (PDF space has Y increasing upward).
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].y > rows[j].y })
	return rows, nil
}

type tableRun struct{ start, end int }

// detectTables finds runs of >=2 consecutive rows that each split into
// >=2 columns, a coarse heuristic for tabular bands (spec §4.1 leaves
// the detector unspecified beyond the Markdown/atomicity contract).
func detectTables(rows []row) []tableRun {
	var runs []tableRun
	i := 0
	for i < len(rows) {
		if len(rows[i].cols) < 2 {
			i++
			continue
		}
		start := i
		for i < len(rows) && len(rows[i].cols) >= 2 {
			i++
		}
		if i-start >= 2 {
			runs = append(runs, tableRun{start: start, end: i})
		}
	}
	return runs
}

func joinRows(rows []row, start, end int) string {
	lines := make([]string, 0, end-start)
	for _, r := range rows[start:end] {
		lines = append(lines, r.text)
	}
	return strings.Join(lines, "\n")
}

// contextAbove captures up to maxTableContext characters of the text
// immediately above a table, whitespace-trimmed and line-boundary
// aware (spec §4.1 step 2).
func contextAbove(rows []row, start, end int) string {
	text := joinRows(rows, start, end)
	text = strings.TrimSpace(text)
	if len(text) <= maxTableContext {
		return text
	}
	tail := text[len(text)-maxTableContext:]
	if idx := strings.IndexByte(tail, '\n'); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}

// renderMarkdownTable converts a run of rows into a Markdown table:
// cells sanitized, pipe characters escaped, a header separator row
// inserted after the first row, short rows right-padded to the
// maximum column count (spec §4.1 step 2). Cell rendering never
// panics; unknown/empty cells coerce to "".
func renderMarkdownTable(rows []row) string {
	maxCols := 0
	for _, r := range rows {
		if len(r.cols) > maxCols {
			maxCols = len(r.cols)
		}
	}
	if maxCols == 0 {
		return ""
	}

	var sb strings.Builder
	for i, r := range rows {
		cells := make([]string, maxCols)
		for j := 0; j < maxCols; j++ {
			if j < len(r.cols) {
				cells[j] = sanitizeCell(r.cols[j])
			} else {
				cells[j] = ""
			}
		}
		sb.WriteString("| ")
		sb.WriteString(strings.Join(cells, " | "))
		sb.WriteString(" |\n")

		if i == 0 {
			sep := make([]string, maxCols)
			for j := range sep {
				sep[j] = "---"
			}
			sb.WriteString("| ")
			sb.WriteString(strings.Join(sep, " | "))
			sb.WriteString(" |\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func sanitizeCell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}
