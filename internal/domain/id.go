package domain

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// NewID generates a UUIDv7 string used for request correlation.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// TablesKey identifies one tables cache: a schema inside a database.
type TablesKey struct {
	DatabaseID int64
	SchemaOID  int64
}

func (k TablesKey) String() string {
	return fmt.Sprintf("%d/%d", k.DatabaseID, k.SchemaOID)
}

// ParseOID parses a Postgres object identifier given on the command line.
func ParseOID(s string) (int64, error) {
	oid, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, ErrValidation("invalid oid %q", s)
	}
	if oid <= 0 {
		return 0, ErrValidation("invalid oid %q: must be positive", s)
	}
	return oid, nil
}
