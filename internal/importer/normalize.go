package importer

import (
	"fmt"
	"strings"
	"time"

	"github.com/certwise/importer/internal/csvkit"
)

// Validation issue texts. These are operator-facing strings surfaced in
// the preview UI, so they stay stable.
const (
	issueInvalidEmail    = "Missing or invalid email"
	issueMissingNameType = "Missing certification name/type"
)

// dateMatcher is one entry in the ordered list of accepted expiration
// date formats.
type dateMatcher struct {
	tag    string
	layout string
}

// dateMatchers is tried in order. Every matcher goes through time.Parse,
// which enforces calendar validity, so out-of-range components like
// month 13 or day 40 are rejected by all of them uniformly. The
// "fallback" entries are the generic-parse tail for formats that show up
// occasionally in real exports; extending support means appending here.
var dateMatchers = []dateMatcher{
	{"iso", "2006-01-02"},
	{"us-slash", "1/2/2006"},
	{"us-dash", "1-2-2006"},
	{"fallback", "2006/1/2"},
	{"fallback", "2006.01.02"},
	{"fallback", "Jan 2, 2006"},
	{"fallback", "January 2, 2006"},
	{"fallback", "2 Jan 2006"},
	{"fallback", "02 Jan 2006"},
}

// ValidDate reports whether s matches one of the accepted expiration
// date formats. Empty is not valid here; callers treat empty as
// "no expiration" before asking.
func ValidDate(s string) bool {
	for _, m := range dateMatchers {
		if _, err := time.Parse(m.layout, s); err == nil {
			return true
		}
	}
	return false
}

// MapRow converts one raw row into a typed Candidate using the final
// field mapping, attaching validation issues rather than failing.
//
// A mapped header that is absent from the row (ragged CSV) reads as
// empty. Email is lower-cased and trimmed and must contain an "@"; a
// single "@" check is all the validation done, deliberately, so that
// unusual but legitimate addresses in the source data are not rejected.
// The expiration date is validated but kept verbatim: converting it to a
// storage format is the store's concern, not the normalizer's.
func MapRow(row csvkit.RawRow, mapping FieldMapping) Candidate {
	get := func(header string) string {
		if header == "" {
			return ""
		}
		return strings.TrimSpace(row.Get(header))
	}

	c := Candidate{
		RowIndex:         row.Line,
		Email:            strings.ToLower(get(mapping.Email)),
		CertType:         get(mapping.CertType),
		CertName:         get(mapping.CertName),
		ExpirationDate:   get(mapping.ExpirationDate),
		CertNumber:       get(mapping.CertNumber),
		IssuingAuthority: get(mapping.IssuingAuthority),
		Issues:           []string{},
	}

	if c.Email == "" || !strings.Contains(c.Email, "@") {
		c.Issues = append(c.Issues, issueInvalidEmail)
	}
	if c.CertName == "" && c.CertType == "" {
		c.Issues = append(c.Issues, issueMissingNameType)
	}
	if c.ExpirationDate != "" && !ValidDate(c.ExpirationDate) {
		c.Issues = append(c.Issues, fmt.Sprintf("Invalid date format: \"%s\"", c.ExpirationDate))
	}

	return c
}
