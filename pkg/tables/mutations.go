package tables

import (
	"context"
	"fmt"
	"strconv"

	"dbadmin/internal/domain"
)

// DeleteTable drops a table on the server, decrements the schema's table
// count and removes the table from the schema's store.
func (r *Registry) DeleteTable(ctx context.Context, schema domain.TablesKey, tableOID int64) error {
	if err := r.svc.DeleteTable(ctx, schema.DatabaseID, tableOID); err != nil {
		return fmt.Errorf("delete table %d: %w", tableOID, err)
	}
	r.counter.AdjustTableCount(schema.DatabaseID, schema.SchemaOID, -1)
	if s, ok := r.Lookup(schema); ok {
		s.Update(func(cur TablesData) TablesData {
			cur.Tables = cur.Tables.Without(tableOID)
			return cur
		})
	}
	return nil
}

// UpdateTable sends a table change in one batch: rename/description,
// column alterations, metadata and column deletions. It then merges the
// change into the store holding the table and returns the merged table.
// An error is returned when no store of the database holds the table.
func (r *Registry) UpdateTable(ctx context.Context, databaseID int64, patch domain.TablePatch, columns []domain.ColumnPatchSpec, deleteColumns []int) (domain.Table, error) {
	if err := r.svc.UpdateTable(ctx, databaseID, patch, columns, deleteColumns); err != nil {
		return domain.Table{}, fmt.Errorf("update table %d: %w", patch.OID, err)
	}

	s, ok := r.findStoreContaining(databaseID, patch.OID)
	if !ok {
		return domain.Table{}, domain.ErrNotFound("table store not found for table %d", patch.OID)
	}

	var merged domain.Table
	err := s.TryUpdate(func(cur TablesData) (TablesData, error) {
		old, ok := cur.Tables.Get(patch.OID)
		if !ok {
			return cur, domain.ErrNotFound("table %d not found within store", patch.OID)
		}
		merged = MergeTables(old, patch)
		cur.Tables = cur.Tables.With(merged)
		return cur, nil
	})
	if err != nil {
		return domain.Table{}, err
	}
	return merged, nil
}

// addTableToStore fills in defaults for a freshly created table, increments
// the schema's table count and inserts it into the schema's store if there
// is one.
func (r *Registry) addTableToStore(schema domain.TablesKey, basic domain.Table) domain.Table {
	r.counter.AdjustTableCount(schema.DatabaseID, schema.SchemaOID, 1)
	full := basic
	full.Schema = schema.SchemaOID
	if s, ok := r.Lookup(schema); ok {
		s.Update(func(cur TablesData) TablesData {
			cur.Tables = cur.Tables.With(full)
			return cur
		})
	}
	return full
}

// CreateTable creates a table with default columns in a schema.
func (r *Registry) CreateTable(ctx context.Context, schema domain.TablesKey) (domain.Table, error) {
	created, err := r.svc.AddTable(ctx, schema.DatabaseID, schema.SchemaOID)
	if err != nil {
		return domain.Table{}, fmt.Errorf("create table in schema %d: %w", schema.SchemaOID, err)
	}
	return r.addTableToStore(schema, created), nil
}

// CreateTableFromDataFile imports an uploaded data file as a new table and
// marks it as awaiting import confirmation.
func (r *Registry) CreateTableFromDataFile(ctx context.Context, schema domain.TablesKey, dataFileID int64, name string) (domain.Table, error) {
	created, err := r.svc.ImportTable(ctx, schema.DatabaseID, schema.SchemaOID, dataFileID, name)
	if err != nil {
		return domain.Table{}, fmt.Errorf("import data file %d: %w", dataFileID, err)
	}
	basic := r.addTableToStore(schema, domain.Table{OID: created.OID, Name: created.Name})

	verified := false
	fileID := dataFileID
	return r.UpdateTable(ctx, schema.DatabaseID, domain.TablePatch{
		OID:         basic.OID,
		Name:        &basic.Name,
		Description: basic.Description,
		Metadata:    &domain.TableMetadata{ImportVerified: &verified, DataFileID: &fileID},
	}, nil, nil)
}

// GetTableFromStoreOrAPI returns a cached table of the database or fetches
// it. Concurrent fetches of the same table share one request. A fetched
// table is inserted into its schema's store when that store exists.
func (r *Registry) GetTableFromStoreOrAPI(ctx context.Context, databaseID, tableOID int64) (domain.Table, error) {
	if s, ok := r.findStoreContaining(databaseID, tableOID); ok {
		if t, ok := s.Get().Tables.Get(tableOID); ok {
			return t, nil
		}
	}

	key := strconv.FormatInt(databaseID, 10) + "/" + strconv.FormatInt(tableOID, 10)
	ch := r.lookup.DoChan(key, func() (any, error) {
		return r.svc.GetTableWithMetadata(context.WithoutCancel(ctx), databaseID, tableOID)
	})

	var t domain.Table
	select {
	case <-ctx.Done():
		return domain.Table{}, ctx.Err()
	case out := <-ch:
		if out.Err != nil {
			return domain.Table{}, fmt.Errorf("get table %d: %w", tableOID, out.Err)
		}
		t = out.Val.(domain.Table)
	}
	if s, ok := r.Lookup(domain.TablesKey{DatabaseID: databaseID, SchemaOID: t.Schema}); ok {
		s.Update(func(cur TablesData) TablesData {
			cur.Tables = cur.Tables.With(t)
			return cur
		})
	}
	return t, nil
}
