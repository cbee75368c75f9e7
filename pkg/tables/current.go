package tables

import (
	"context"

	"dbadmin/internal/domain"
	"dbadmin/pkg/store"
)

// Msg strings returned by name validation.
const (
	MsgTableNameEmpty  = "Table name cannot be empty."
	MsgTableNameExists = "A table with that name already exists."
)

// Selection tracks the current database, schema and table, and exposes the
// tables of the selected schema. Selecting a schema creates its store on
// first use.
type Selection struct {
	reg *Registry

	key     *store.Writable[domain.TablesKey]
	tableID *store.Writable[int64]
	source  *store.Writable[store.Readable[TablesData]]
	data    store.Readable[TablesData]
}

// NewSelection returns a Selection with nothing selected.
func (r *Registry) NewSelection() *Selection {
	s := &Selection{
		reg:     r,
		key:     store.NewWritable(domain.TablesKey{}),
		tableID: store.NewWritable[int64](0),
		source:  store.NewWritable(store.Static(EmptyTablesData())),
	}
	s.data = store.Collapse[TablesData](s.source)
	return s
}

// Select changes the current database and schema. Zero values clear the
// selection.
func (s *Selection) Select(databaseID, schemaOID int64) {
	key := domain.TablesKey{DatabaseID: databaseID, SchemaOID: schemaOID}
	s.key.Set(key)
	if databaseID == 0 || schemaOID == 0 {
		s.source.Set(store.Static(EmptyTablesData()))
		return
	}
	s.source.Set(s.reg.Store(databaseID, schemaOID))
}

// SelectTable changes the current table. Zero clears it.
func (s *Selection) SelectTable(oid int64) { s.tableID.Set(oid) }

// Key returns the selected database and schema.
func (s *Selection) Key() domain.TablesKey { return s.key.Get() }

// Data is the observable TablesData of the selected schema.
func (s *Selection) Data() store.Readable[TablesData] { return s.data }

// TablesData returns the current TablesData.
func (s *Selection) TablesData() TablesData { return s.data.Get() }

// TablesMap returns the tables of the selected schema.
func (s *Selection) TablesMap() TablesMap { return s.data.Get().Tables }

// Tables returns the tables of the selected schema sorted by name.
func (s *Selection) Tables() []domain.Table { return s.data.Get().Tables.Values() }

// ImportVerifiedTables returns the tables that do not await import
// confirmation.
func (s *Selection) ImportVerifiedTables() TablesMap {
	return s.TablesMap().Filter(func(t domain.Table) bool { return !RequiresImportConfirmation(t) })
}

// CurrentTable is the observable selected table; nil when nothing is
// selected or the table is not in the selected schema.
func (s *Selection) CurrentTable() store.Readable[*domain.Table] {
	return store.Derive2(store.Readable[int64](s.tableID), s.data, func(oid int64, d TablesData) *domain.Table {
		if oid == 0 {
			return nil
		}
		t, ok := d.Tables.Get(oid)
		if !ok {
			return nil
		}
		return &t
	})
}

// Table returns the selected table.
func (s *Selection) Table() (domain.Table, bool) {
	t := s.CurrentTable().Get()
	if t == nil {
		return domain.Table{}, false
	}
	return *t, true
}

// ValidateNewTableName returns a validation error when a table of the
// selected schema already uses name.
func (s *Selection) ValidateNewTableName(name string) error {
	for _, t := range s.Tables() {
		if t.Name == name {
			return domain.ErrConflict(MsgTableNameExists)
		}
	}
	return nil
}

// RefetchCurrent refetches the selected schema. It is a no-op when no
// schema is selected.
func (s *Selection) RefetchCurrent(ctx context.Context) error {
	key := s.key.Get()
	if key.DatabaseID == 0 || key.SchemaOID == 0 {
		return nil
	}
	_, err := s.reg.Refetch(ctx, key.DatabaseID, key.SchemaOID)
	return err
}
