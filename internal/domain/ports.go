package domain

import "context"

// TablesService is the remote API used by the tables cache.
// Implemented by api.Client.
type TablesService interface {
	ListTablesWithMetadata(ctx context.Context, databaseID, schemaOID int64) ([]Table, error)
	GetTableWithMetadata(ctx context.Context, databaseID, tableOID int64) (Table, error)
	// AddTable and ImportTable return a basic table with OID and Name set.
	AddTable(ctx context.Context, databaseID, schemaOID int64) (Table, error)
	ImportTable(ctx context.Context, databaseID, schemaOID, dataFileID int64, name string) (Table, error)
	DeleteTable(ctx context.Context, databaseID, tableOID int64) error
	// UpdateTable sends every part of the change in a single batch.
	UpdateTable(ctx context.Context, databaseID int64, patch TablePatch, columns []ColumnPatchSpec, deleteColumns []int) error
}

// SchemasService is the remote API used by the schemas cache.
// Implemented by api.Client.
type SchemasService interface {
	ListSchemas(ctx context.Context, databaseID int64) ([]Schema, error)
	AddSchema(ctx context.Context, databaseID int64, name string, description *string) (int64, error)
	DeleteSchema(ctx context.Context, databaseID, schemaOID int64) error
	PatchSchema(ctx context.Context, databaseID, schemaOID int64, patch SchemaPatch) error
}

// RecordsService is the REST API used by record stores.
// Implemented by api.Client.
type RecordsService interface {
	GetRecord(ctx context.Context, tableID int64, pk string) (RecordResponse, error)
	PatchRecord(ctx context.Context, tableID int64, pk string, payload map[string]any) (RecordResponse, error)
}

// SchemaTableCounter adjusts the cached table count of a schema after a
// table is created or deleted. Implemented by schemas.Cache.
type SchemaTableCounter interface {
	AdjustTableCount(databaseID, schemaOID int64, delta int)
}
