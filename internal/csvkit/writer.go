package csvkit

import "strings"

// WriteString serializes a header row and data rows back to CSV text
// using the same quoting rules the parser accepts, so parsed cell values
// round-trip exactly. Used for the errored-rows export.
func WriteString(headers []string, rows [][]string) string {
	var b strings.Builder
	writeLine(&b, headers)
	for _, row := range rows {
		writeLine(&b, row)
	}
	return b.String()
}

func writeLine(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(encodeCell(cell))
	}
	b.WriteByte('\n')
}

// encodeCell quotes a cell only when it needs it: commas, quotes, or
// newlines. Quotes inside the cell are doubled.
func encodeCell(s string) string {
	if !strings.ContainsAny(s, ",\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
