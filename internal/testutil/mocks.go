// Package testutil provides shared mock implementations of domain interfaces
// and a fake API server for use in tests across the codebase. This follows
// the Go convention of a shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"sync"

	"dbadmin/internal/domain"
)

// === Tables Service Mock ===

// MockTablesService implements domain.TablesService for testing.
type MockTablesService struct {
	ListTablesWithMetadataFn func(ctx context.Context, databaseID, schemaOID int64) ([]domain.Table, error)
	GetTableWithMetadataFn   func(ctx context.Context, databaseID, tableOID int64) (domain.Table, error)
	AddTableFn               func(ctx context.Context, databaseID, schemaOID int64) (domain.Table, error)
	ImportTableFn            func(ctx context.Context, databaseID, schemaOID, dataFileID int64, name string) (domain.Table, error)
	DeleteTableFn            func(ctx context.Context, databaseID, tableOID int64) error
	UpdateTableFn            func(ctx context.Context, databaseID int64, patch domain.TablePatch, columns []domain.ColumnPatchSpec, deleteColumns []int) error
}

// ListTablesWithMetadata implements the interface method for testing.
func (m *MockTablesService) ListTablesWithMetadata(ctx context.Context, databaseID, schemaOID int64) ([]domain.Table, error) {
	if m.ListTablesWithMetadataFn != nil {
		return m.ListTablesWithMetadataFn(ctx, databaseID, schemaOID)
	}
	panic("unexpected call to MockTablesService.ListTablesWithMetadata")
}

// GetTableWithMetadata implements the interface method for testing.
func (m *MockTablesService) GetTableWithMetadata(ctx context.Context, databaseID, tableOID int64) (domain.Table, error) {
	if m.GetTableWithMetadataFn != nil {
		return m.GetTableWithMetadataFn(ctx, databaseID, tableOID)
	}
	panic("unexpected call to MockTablesService.GetTableWithMetadata")
}

// AddTable implements the interface method for testing.
func (m *MockTablesService) AddTable(ctx context.Context, databaseID, schemaOID int64) (domain.Table, error) {
	if m.AddTableFn != nil {
		return m.AddTableFn(ctx, databaseID, schemaOID)
	}
	panic("unexpected call to MockTablesService.AddTable")
}

// ImportTable implements the interface method for testing.
func (m *MockTablesService) ImportTable(ctx context.Context, databaseID, schemaOID, dataFileID int64, name string) (domain.Table, error) {
	if m.ImportTableFn != nil {
		return m.ImportTableFn(ctx, databaseID, schemaOID, dataFileID, name)
	}
	panic("unexpected call to MockTablesService.ImportTable")
}

// DeleteTable implements the interface method for testing.
func (m *MockTablesService) DeleteTable(ctx context.Context, databaseID, tableOID int64) error {
	if m.DeleteTableFn != nil {
		return m.DeleteTableFn(ctx, databaseID, tableOID)
	}
	panic("unexpected call to MockTablesService.DeleteTable")
}

// UpdateTable implements the interface method for testing.
func (m *MockTablesService) UpdateTable(ctx context.Context, databaseID int64, patch domain.TablePatch, columns []domain.ColumnPatchSpec, deleteColumns []int) error {
	if m.UpdateTableFn != nil {
		return m.UpdateTableFn(ctx, databaseID, patch, columns, deleteColumns)
	}
	panic("unexpected call to MockTablesService.UpdateTable")
}

var _ domain.TablesService = (*MockTablesService)(nil)

// === Schemas Service Mock ===

// MockSchemasService implements domain.SchemasService for testing.
type MockSchemasService struct {
	ListSchemasFn  func(ctx context.Context, databaseID int64) ([]domain.Schema, error)
	AddSchemaFn    func(ctx context.Context, databaseID int64, name string, description *string) (int64, error)
	DeleteSchemaFn func(ctx context.Context, databaseID, schemaOID int64) error
	PatchSchemaFn  func(ctx context.Context, databaseID, schemaOID int64, patch domain.SchemaPatch) error
}

// ListSchemas implements the interface method for testing.
func (m *MockSchemasService) ListSchemas(ctx context.Context, databaseID int64) ([]domain.Schema, error) {
	if m.ListSchemasFn != nil {
		return m.ListSchemasFn(ctx, databaseID)
	}
	panic("unexpected call to MockSchemasService.ListSchemas")
}

// AddSchema implements the interface method for testing.
func (m *MockSchemasService) AddSchema(ctx context.Context, databaseID int64, name string, description *string) (int64, error) {
	if m.AddSchemaFn != nil {
		return m.AddSchemaFn(ctx, databaseID, name, description)
	}
	panic("unexpected call to MockSchemasService.AddSchema")
}

// DeleteSchema implements the interface method for testing.
func (m *MockSchemasService) DeleteSchema(ctx context.Context, databaseID, schemaOID int64) error {
	if m.DeleteSchemaFn != nil {
		return m.DeleteSchemaFn(ctx, databaseID, schemaOID)
	}
	panic("unexpected call to MockSchemasService.DeleteSchema")
}

// PatchSchema implements the interface method for testing.
func (m *MockSchemasService) PatchSchema(ctx context.Context, databaseID, schemaOID int64, patch domain.SchemaPatch) error {
	if m.PatchSchemaFn != nil {
		return m.PatchSchemaFn(ctx, databaseID, schemaOID, patch)
	}
	panic("unexpected call to MockSchemasService.PatchSchema")
}

var _ domain.SchemasService = (*MockSchemasService)(nil)

// === Records Service Mock ===

// MockRecordsService implements domain.RecordsService for testing.
type MockRecordsService struct {
	GetRecordFn   func(ctx context.Context, tableID int64, pk string) (domain.RecordResponse, error)
	PatchRecordFn func(ctx context.Context, tableID int64, pk string, payload map[string]any) (domain.RecordResponse, error)
}

// GetRecord implements the interface method for testing.
func (m *MockRecordsService) GetRecord(ctx context.Context, tableID int64, pk string) (domain.RecordResponse, error) {
	if m.GetRecordFn != nil {
		return m.GetRecordFn(ctx, tableID, pk)
	}
	panic("unexpected call to MockRecordsService.GetRecord")
}

// PatchRecord implements the interface method for testing.
func (m *MockRecordsService) PatchRecord(ctx context.Context, tableID int64, pk string, payload map[string]any) (domain.RecordResponse, error) {
	if m.PatchRecordFn != nil {
		return m.PatchRecordFn(ctx, tableID, pk, payload)
	}
	panic("unexpected call to MockRecordsService.PatchRecord")
}

var _ domain.RecordsService = (*MockRecordsService)(nil)

// === Schema Table Counter Mock ===

// MockSchemaCounter implements domain.SchemaTableCounter and records every
// adjustment.
type MockSchemaCounter struct {
	mu      sync.Mutex
	Changes []CountChange
}

// CountChange is one recorded AdjustTableCount call.
type CountChange struct {
	DatabaseID int64
	SchemaOID  int64
	Delta      int
}

// AdjustTableCount implements the interface method for testing.
func (m *MockSchemaCounter) AdjustTableCount(databaseID, schemaOID int64, delta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Changes = append(m.Changes, CountChange{databaseID, schemaOID, delta})
}

// Total returns the summed delta for one schema.
func (m *MockSchemaCounter) Total(databaseID, schemaOID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.Changes {
		if c.DatabaseID == databaseID && c.SchemaOID == schemaOID {
			total += c.Delta
		}
	}
	return total
}

var _ domain.SchemaTableCounter = (*MockSchemaCounter)(nil)
