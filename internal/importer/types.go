// Package importer provides the business logic for bulk-loading
// instructor certification records from CSV exports.
// This package has no UI dependencies and can be used by any frontend.
package importer

import "context"

// FieldMapping maps each canonical certification field to a source
// column header, or "" when unmapped. Email is the only required
// mapping; everything else is optional.
//
// The closed struct (rather than a map keyed by field name) is
// deliberate: a typo in a field name is a compile error here, not a
// silently ignored key.
type FieldMapping struct {
	Email            string `json:"email"`
	CertType         string `json:"cert_type"`
	CertName         string `json:"cert_name"`
	ExpirationDate   string `json:"expiration_date"`
	CertNumber       string `json:"cert_number"`
	IssuingAuthority string `json:"issuing_authority"`
}

// Candidate is one normalized row awaiting reconciliation.
//
// RowIndex is the 1-based line number in the original file (header =
// line 1), preserved verbatim for operator-facing diagnostics. Issues
// lists human-readable validation failures; an empty list means the row
// is clean. Excluded is an operator opt-out and defaults to false.
type Candidate struct {
	RowIndex         int      `json:"row_index"`
	Email            string   `json:"email"`
	CertType         string   `json:"cert_type"`
	CertName         string   `json:"cert_name"`
	ExpirationDate   string   `json:"expiration_date"`
	CertNumber       string   `json:"cert_number"`
	IssuingAuthority string   `json:"issuing_authority"`
	Issues           []string `json:"issues"`
	Excluded         bool     `json:"excluded"`
}

// Eligible reports whether the candidate may be submitted to the store:
// not operator-excluded and free of validation issues.
func (c Candidate) Eligible() bool {
	return !c.Excluded && len(c.Issues) == 0
}

// MatchName returns the certification half of the match key: the
// certification name when present, otherwise the type.
func (c Candidate) MatchName() string {
	if c.CertName != "" {
		return c.CertName
	}
	return c.CertType
}

// Action classifies what the reconciler did with one candidate.
type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
	ActionSkipped  Action = "skipped"
	ActionErrored  Action = "errored"
)

// Outcome records the reconciliation result for a single candidate.
type Outcome struct {
	RowIndex int    `json:"row_index"`
	Email    string `json:"email"`
	Action   Action `json:"action"`
	Err      string `json:"error,omitempty"`
}

// Result is the aggregate outcome of one import run. For a batch of N
// candidates, Imported + Updated + Skipped + len(Errors) == N: every
// row is accounted for somewhere. Never mutated after the reconciler
// returns it.
type Result struct {
	Imported int      `json:"imported"`
	Updated  int      `json:"updated"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors"`
}

// ExistingRecord is the store's view of an already-persisted
// certification, as returned by RecordStore.FindMatch.
type ExistingRecord struct {
	ID       string
	Email    string
	CertName string
	CertType string
	Verified bool
}

// RecordStore is the persistence collaborator the reconciler writes
// through. FindMatch must treat both arguments case-insensitively and
// return (nil, nil) when no record matches.
type RecordStore interface {
	FindMatch(ctx context.Context, email, nameOrType string) (*ExistingRecord, error)
	Insert(ctx context.Context, c Candidate) error
	Update(ctx context.Context, id string, c Candidate) error
}
