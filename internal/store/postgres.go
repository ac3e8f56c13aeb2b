// Package store implements the importer's RecordStore on PostgreSQL.
//
// The match key (lower-cased email, lower-cased certification
// name-or-type) is enforced by a unique expression index, so a race
// between two concurrent runs inserting the same certification surfaces
// as a constraint error on one of them rather than a duplicate record.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/certwise/importer/internal/importer"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Postgres is the PostgreSQL-backed record store.
type Postgres struct {
	db DBTX
}

// NewPostgres creates a store on top of the given pool or transaction.
func NewPostgres(db DBTX) *Postgres {
	return &Postgres{db: db}
}

const findMatchSQL = `
SELECT id::text, email, cert_name, cert_type, verified
FROM instructor_certifications
WHERE lower(email) = $1
  AND lower(coalesce(nullif(cert_name, ''), cert_type)) = $2`

// FindMatch looks up an existing certification by the case-insensitive
// match key. Returns (nil, nil) when no record matches.
func (p *Postgres) FindMatch(ctx context.Context, email, nameOrType string) (*importer.ExistingRecord, error) {
	row := p.db.QueryRow(ctx, findMatchSQL, strings.ToLower(email), strings.ToLower(nameOrType))

	var rec importer.ExistingRecord
	err := row.Scan(&rec.ID, &rec.Email, &rec.CertName, &rec.CertType, &rec.Verified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find match: %w", err)
	}

	return &rec, nil
}

const insertSQL = `
INSERT INTO instructor_certifications
	(email, cert_name, cert_type, cert_number, issuing_authority, expiration_date)
VALUES ($1, $2, $3, $4, $5, $6)`

// Insert persists a new certification record. The expiration date is
// converted from the candidate's verbatim source string here; the
// normalizer guarantees it already matched an accepted format.
func (p *Postgres) Insert(ctx context.Context, c importer.Candidate) error {
	_, err := p.db.Exec(ctx, insertSQL,
		strings.ToLower(c.Email),
		c.CertName,
		c.CertType,
		toPgText(c.CertNumber),
		toPgText(c.IssuingAuthority),
		toPgDate(c.ExpirationDate),
	)
	if err != nil {
		return fmt.Errorf("insert certification: %w", err)
	}
	return nil
}

const updateSQL = `
UPDATE instructor_certifications
SET cert_type         = $2,
	cert_number       = $3,
	issuing_authority = $4,
	expiration_date   = $5,
	updated_at        = now()
WHERE id = $1::uuid`

// Update overwrites the mutable attributes of an existing record.
// Verification status is deliberately untouched: re-importing a roster
// must not undo a manual verification.
func (p *Postgres) Update(ctx context.Context, id string, c importer.Candidate) error {
	tag, err := p.db.Exec(ctx, updateSQL,
		id,
		c.CertType,
		toPgText(c.CertNumber),
		toPgText(c.IssuingAuthority),
		toPgDate(c.ExpirationDate),
	)
	if err != nil {
		return fmt.Errorf("update certification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update certification: no record with id %s", id)
	}
	return nil
}
