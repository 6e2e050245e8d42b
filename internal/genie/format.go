package genie

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// maxDisplayRows caps how many data rows are rendered. The total row
// count line below the table is independent of the cap.
const maxDisplayRows = 50

// noResultsMessage is returned for an empty data array.
const noResultsMessage = "No results returned."

// FormatDataArray renders a data array as a fixed-width text table.
// Row 0 is the header row; remaining rows are data. Output is
// byte-for-byte deterministic for a given input.
//
// Column widths are the maximum cell width per column, counting the
// header. Cells beyond the header count are ignored; rows shorter than
// the header render their cells and stop. No column-count validation is
// performed.
func FormatDataArray(data [][]any) string {
	if len(data) == 0 {
		return noResultsMessage
	}

	headers := make([]string, len(data[0]))
	for i, h := range data[0] {
		headers[i] = formatCell(h)
	}

	if len(data) == 1 {
		return fmt.Sprintf("Columns: %s\n\nNo data rows returned.", strings.Join(headers, ", "))
	}

	rows := data[1:]

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = cellWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if w := cellWidth(formatCell(cell)); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var lines []string

	headerCells := make([]string, len(headers))
	for i, h := range headers {
		headerCells[i] = pad(h, widths[i])
	}
	lines = append(lines, strings.Join(headerCells, " | "))

	separators := make([]string, len(widths))
	for i, w := range widths {
		separators[i] = strings.Repeat("-", w)
	}
	lines = append(lines, strings.Join(separators, "-+-"))

	shown := rows
	if len(shown) > maxDisplayRows {
		shown = shown[:maxDisplayRows]
	}
	for _, row := range shown {
		var cells []string
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			cells = append(cells, pad(formatCell(cell), widths[i]))
		}
		lines = append(lines, strings.Join(cells, " | "))
	}

	if len(rows) > maxDisplayRows {
		lines = append(lines, fmt.Sprintf("\n... and %d more rows", len(rows)-maxDisplayRows))
	}

	lines = append(lines, fmt.Sprintf("\nTotal rows: %d", len(rows)))

	return strings.Join(lines, "\n")
}

// formatCell renders one heterogeneous cell value as a string.
// JSON null renders as "null". Numbers decode as float64; they are
// rendered in plain decimal notation so integral values keep their
// digits (1048576, not 1.048576e+06).
func formatCell(v any) string {
	switch c := v.(type) {
	case nil:
		return "null"
	case string:
		return c
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return fmt.Sprint(c)
	}
}

// cellWidth measures a cell in code points, not bytes, so multi-byte
// names line up.
func cellWidth(s string) int {
	return utf8.RuneCountInString(s)
}

// pad left-justifies s to width code points with trailing spaces.
func pad(s string, width int) string {
	if n := cellWidth(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
