package store

// convert.go turns trimmed CSV strings into pgtype values. This is the
// storage-format conversion the normalizer defers: candidates carry
// dates verbatim, and only here do they become real date columns.

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would land more than this many years in the future are
// assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling.
var (
	fourDigitYearLayouts = []string{
		"2006-01-02", "1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006",
		"2006/1/2", "2006.01.02",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "02 Jan 2006",
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06",
	}
)

// toPgText converts a string to pgtype.Text, mapping empty to NULL.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgDate parses a date string into pgtype.Date, mapping empty or
// unparseable input to NULL. Four-digit-year layouts are tried first
// because they are unambiguous; two-digit years get the pivot
// adjustment afterward.
func toPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	// Go's time.Parse maps 2-digit years 00-68 to 2000-2068 and 69-99
	// to 1969-1999; apply a consistent pivot instead.
	pivotYear := time.Now().Year() + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}
