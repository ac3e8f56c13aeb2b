// Package csvkit parses and serializes the CSV exports that feed the
// certification importer.
//
// The parser is deliberately narrower than RFC 4180: it handles the two
// quoting behaviors that show up in real human-produced exports (commas
// inside quoted cells, doubled quotes for a literal quote) and nothing
// else. Upstream tools produce files with inconsistent line endings,
// UTF-8 BOMs, stray blank lines, and whitespace-padded cells, so the
// parser normalizes all of those before tokenizing.
package csvkit

import (
	"errors"
	"strings"
)

// Sentinel errors for structurally unusable input. Callers treat these as
// fatal: no row processing happens when either is returned.
var (
	ErrEmptyHeaders = errors.New("header row has no columns")
	ErrNoDataRows   = errors.New("no data rows after header")
)

// RawRow is one data line of the source file, keyed by header name.
//
// Line is the 1-based line number in the original file, counting the
// header as line 1, so the first data row is line 2. Blank lines consume
// line numbers even though they never become rows. Cells holds the
// trimmed values in column order; lookups by header go through Get.
type RawRow struct {
	Line  int
	Cells []string

	byHeader map[string]string
}

// Get returns the trimmed cell value under the given header, or "" when
// the header is unknown or the row is too short to reach it.
func (r RawRow) Get(header string) string {
	return r.byHeader[header]
}

// NewRawRow builds a RawRow from parallel header and cell slices.
// Cells beyond len(headers) are kept in Cells but unreachable via Get;
// for duplicate header names the last column wins.
func NewRawRow(line int, headers, cells []string) RawRow {
	byHeader := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(cells) {
			byHeader[h] = cells[i]
		} else {
			byHeader[h] = ""
		}
	}
	return RawRow{Line: line, Cells: cells, byHeader: byHeader}
}

// Parsed is the result of tokenizing one CSV file.
type Parsed struct {
	Headers []string
	Rows    []RawRow
}

// Parse tokenizes raw CSV text into a header row and data rows.
//
// Normalization before tokenizing: CRLF and bare CR become LF, a leading
// byte-order-mark is stripped, and the whole input is trimmed. The first
// non-blank line is always the header row. Blank lines between data rows
// are skipped entirely but still advance the line counter, so RawRow.Line
// always matches the original file.
func Parse(text string) (*Parsed, error) {
	text = strings.TrimPrefix(text, "\uFEFF")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, ErrEmptyHeaders
	}

	lines := strings.Split(text, "\n")

	headers := splitLine(lines[0])
	if len(headers) == 0 {
		return nil, ErrEmptyHeaders
	}
	// A BOM survives here only if the input had one after leading
	// whitespace; strip it from the first header cell regardless.
	headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")

	var rows []RawRow
	for i, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rows = append(rows, NewRawRow(i+2, headers, splitLine(line)))
	}

	if len(rows) == 0 {
		return nil, ErrNoDataRows
	}

	return &Parsed{Headers: headers, Rows: rows}, nil
}

// splitLine scans one line into trimmed cells. A double quote toggles
// quoted mode; inside quotes a comma is literal and a doubled quote is
// one literal quote. Outside quotes a comma delimits cells.
func splitLine(line string) []string {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	var cells []string
	var cur strings.Builder
	inQuotes := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
			} else {
				inQuotes = !inQuotes
			}
		case c == ',' && !inQuotes:
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	cells = append(cells, strings.TrimSpace(cur.String()))

	return cells
}
