// Package ddl holds the naming rules for schemas, tables and columns. They
// follow Postgres identifier limits; names are always stored quoted, so
// any printable text is allowed.
package ddl

import (
	"strings"
	"unicode/utf8"

	"dbadmin/internal/domain"
)

// MaxIdentifierBytes is the Postgres identifier limit (NAMEDATALEN - 1).
const MaxIdentifierBytes = 63

// ValidateName checks a user-supplied object name. kind names the object
// in error messages ("schema", "table", "column").
func ValidateName(kind, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return domain.ErrValidation("%s name cannot be empty", kind)
	case !utf8.ValidString(name):
		return domain.ErrValidation("%s name is not valid UTF-8", kind)
	case strings.ContainsRune(name, 0):
		return domain.ErrValidation("%s name cannot contain NUL characters", kind)
	case len(name) > MaxIdentifierBytes:
		return domain.ErrValidation("%s name %s is longer than %d bytes", kind, QuoteIdentifier(name), MaxIdentifierBytes)
	}
	return nil
}

// NormalizeName trims surrounding space and validates the result.
func NormalizeName(kind, name string) (string, error) {
	name = strings.TrimSpace(name)
	return name, ValidateName(kind, name)
}

// QuoteIdentifier wraps a SQL identifier in double quotes, escaping any
// embedded double-quote characters by doubling them (standard SQL).
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
