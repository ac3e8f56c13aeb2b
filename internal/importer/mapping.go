package importer

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmailNotMapped is returned when a mapping reaches validation
// without an email column. Structural: the run cannot proceed.
var ErrEmailNotMapped = errors.New("email column is not mapped")

// Alias lists per canonical field, all lower-cased. Matching is exact,
// case-insensitive equality only: no substring or distance matching.
// Fuzzy matching was considered and rejected; a wrong guess that looks
// right is worse than an unmapped column the operator has to fill in.
//
// Pure configuration data, never mutated at runtime.
var (
	emailAliases = []string{
		"email", "e-mail", "email address", "instructor email",
		"instructor_email", "user email", "user_email", "address",
	}
	certTypeAliases = []string{
		"type", "cert type", "cert_type", "certification type",
		"certification_type", "category",
	}
	certNameAliases = []string{
		"name", "cert", "cert name", "cert_name", "certification",
		"certification name", "certification_name", "course",
	}
	expirationDateAliases = []string{
		"expiration", "expiration date", "expiration_date", "expires",
		"expiry", "expiry date", "exp date", "exp_date", "valid until",
		"valid_until",
	}
	certNumberAliases = []string{
		"number", "cert number", "cert_number", "certificate number",
		"certification number", "license number", "license_number",
		"cert no", "credential id", "credential_id",
	}
	issuingAuthorityAliases = []string{
		"issuer", "issuing authority", "issuing_authority", "authority",
		"issued by", "issued_by", "organization", "issuing organization",
		"issuing_organization",
	}
)

// InferMapping proposes a FieldMapping for the given headers. For each
// canonical field it scans headers in file order and picks the first
// whose lower-cased form exactly equals one of that field's aliases;
// fields with no match stay unmapped.
//
// The result is advisory: the operator may override any field before
// the run proceeds, and the normalizer only ever sees the final mapping.
func InferMapping(headers []string) FieldMapping {
	return FieldMapping{
		Email:            firstAliasMatch(headers, emailAliases),
		CertType:         firstAliasMatch(headers, certTypeAliases),
		CertName:         firstAliasMatch(headers, certNameAliases),
		ExpirationDate:   firstAliasMatch(headers, expirationDateAliases),
		CertNumber:       firstAliasMatch(headers, certNumberAliases),
		IssuingAuthority: firstAliasMatch(headers, issuingAuthorityAliases),
	}
}

func firstAliasMatch(headers, aliases []string) string {
	for _, h := range headers {
		lower := strings.ToLower(strings.TrimSpace(h))
		for _, a := range aliases {
			if lower == a {
				return h
			}
		}
	}
	return ""
}

// mappedColumn pairs a canonical field key with its mapped header, for
// iteration in a fixed order.
type mappedColumn struct {
	Field  string
	Header string
}

func (m FieldMapping) columns() []mappedColumn {
	return []mappedColumn{
		{"email", m.Email},
		{"cert_type", m.CertType},
		{"cert_name", m.CertName},
		{"expiration_date", m.ExpirationDate},
		{"cert_number", m.CertNumber},
		{"issuing_authority", m.IssuingAuthority},
	}
}

// Validate checks that the mapping can drive a run against the given
// headers: email must be mapped, and every mapped column must be one of
// the parsed headers.
func (m FieldMapping) Validate(headers []string) error {
	if m.Email == "" {
		return ErrEmailNotMapped
	}

	known := make(map[string]bool, len(headers))
	for _, h := range headers {
		known[h] = true
	}

	for _, col := range m.columns() {
		if col.Header != "" && !known[col.Header] {
			return fmt.Errorf("%s is mapped to unknown column %q", col.Field, col.Header)
		}
	}
	return nil
}
