package tables

import (
	"strings"

	"dbadmin/internal/domain"
)

// NameValidator returns a function listing the problems with renaming
// table to a given name: an empty name, or the name of another table in
// the same schema. The function reads the store on every call, so it
// follows later changes. It fails when the table's schema has no store.
func (r *Registry) NameValidator(databaseID int64, table domain.Table) (func(name string) []string, error) {
	s, ok := r.Lookup(domain.TablesKey{DatabaseID: databaseID, SchemaOID: table.Schema})
	if !ok {
		return nil, domain.ErrNotFound("tables store not found")
	}
	return func(name string) []string {
		if strings.TrimSpace(name) == "" {
			return []string{MsgTableNameEmpty}
		}
		for _, other := range s.Get().Tables.Values() {
			if other.OID != table.OID && other.Name == name {
				return []string{MsgTableNameExists}
			}
		}
		return nil
	}, nil
}
