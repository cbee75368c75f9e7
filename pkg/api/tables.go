package api

import (
	"context"
	"fmt"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rest"
	"dbadmin/pkg/rpc"
)

// AddedTable is returned by tables.add and tables.import.
type AddedTable struct {
	OID  int64  `json:"oid"`
	Name string `json:"name"`
}

// PreviewColumn describes a cast applied by tables.get_import_preview.
type PreviewColumn struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
}

// AddTableParams are the optional arguments of tables.add.
type AddTableParams struct {
	TableName string                   `json:"table_name,omitempty"`
	Columns   []domain.CreatableColumn `json:"column_data_list,omitempty"`
	Comment   string                   `json:"comment,omitempty"`
}

// TablePatchData is the table_data_dict argument of tables.patch.
type TablePatchData struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

type tableRef struct {
	DatabaseID int64 `json:"database_id"`
	TableOID   int64 `json:"table_oid"`
}

type schemaRef struct {
	DatabaseID int64 `json:"database_id"`
	SchemaOID  int64 `json:"schema_oid"`
}

// TablesAPI wraps the tables.* methods.
type TablesAPI struct {
	rpc  *rpc.Client
	rest *rest.Client
}

// ListRequest builds tables.list.
func (a *TablesAPI) ListRequest(databaseID, schemaOID int64) *rpc.Request[[]domain.Table] {
	return rpc.NewRequest[[]domain.Table]("tables.list", schemaRef{databaseID, schemaOID})
}

// List returns the tables of a schema without application metadata.
func (a *TablesAPI) List(ctx context.Context, databaseID, schemaOID int64) ([]domain.Table, error) {
	return a.ListRequest(databaseID, schemaOID).Run(ctx, a.rpc)
}

// ListWithMetadataRequest builds tables.list_with_metadata.
func (a *TablesAPI) ListWithMetadataRequest(databaseID, schemaOID int64) *rpc.Request[[]domain.Table] {
	return rpc.NewRequest[[]domain.Table]("tables.list_with_metadata", schemaRef{databaseID, schemaOID})
}

// ListWithMetadata returns the tables of a schema with their metadata.
func (a *TablesAPI) ListWithMetadata(ctx context.Context, databaseID, schemaOID int64) ([]domain.Table, error) {
	return a.ListWithMetadataRequest(databaseID, schemaOID).Run(ctx, a.rpc)
}

// GetRequest builds tables.get.
func (a *TablesAPI) GetRequest(databaseID, tableOID int64) *rpc.Request[domain.Table] {
	return rpc.NewRequest[domain.Table]("tables.get", tableRef{databaseID, tableOID})
}

// Get returns a single table without metadata.
func (a *TablesAPI) Get(ctx context.Context, databaseID, tableOID int64) (domain.Table, error) {
	return a.GetRequest(databaseID, tableOID).Run(ctx, a.rpc)
}

// GetWithMetadataRequest builds tables.get_with_metadata.
func (a *TablesAPI) GetWithMetadataRequest(databaseID, tableOID int64) *rpc.Request[domain.Table] {
	return rpc.NewRequest[domain.Table]("tables.get_with_metadata", tableRef{databaseID, tableOID})
}

// GetWithMetadata returns a single table with its metadata.
func (a *TablesAPI) GetWithMetadata(ctx context.Context, databaseID, tableOID int64) (domain.Table, error) {
	return a.GetWithMetadataRequest(databaseID, tableOID).Run(ctx, a.rpc)
}

// AddRequest builds tables.add.
func (a *TablesAPI) AddRequest(databaseID, schemaOID int64, p AddTableParams) *rpc.Request[AddedTable] {
	return rpc.NewRequest[AddedTable]("tables.add", struct {
		schemaRef
		AddTableParams
	}{schemaRef{databaseID, schemaOID}, p})
}

// Add creates a table with a default id column.
func (a *TablesAPI) Add(ctx context.Context, databaseID, schemaOID int64, p AddTableParams) (AddedTable, error) {
	return a.AddRequest(databaseID, schemaOID, p).Run(ctx, a.rpc)
}

// DeleteRequest builds tables.delete. The result is the dropped table name.
func (a *TablesAPI) DeleteRequest(databaseID, tableOID int64, cascade bool) *rpc.Request[string] {
	return rpc.NewRequest[string]("tables.delete", struct {
		tableRef
		Cascade bool `json:"cascade,omitempty"`
	}{tableRef{databaseID, tableOID}, cascade})
}

// Delete drops a table.
func (a *TablesAPI) Delete(ctx context.Context, databaseID, tableOID int64, cascade bool) (string, error) {
	return a.DeleteRequest(databaseID, tableOID, cascade).Run(ctx, a.rpc)
}

// PatchRequest builds tables.patch. The result is the table name after the
// change.
func (a *TablesAPI) PatchRequest(databaseID, tableOID int64, data TablePatchData) *rpc.Request[string] {
	return rpc.NewRequest[string]("tables.patch", struct {
		tableRef
		Data TablePatchData `json:"table_data_dict"`
	}{tableRef{databaseID, tableOID}, data})
}

// Patch renames a table or changes its description.
func (a *TablesAPI) Patch(ctx context.Context, databaseID, tableOID int64, data TablePatchData) (string, error) {
	return a.PatchRequest(databaseID, tableOID, data).Run(ctx, a.rpc)
}

// ImportRequest builds tables.import.
func (a *TablesAPI) ImportRequest(databaseID, schemaOID, dataFileID int64, tableName string) *rpc.Request[AddedTable] {
	return rpc.NewRequest[AddedTable]("tables.import", struct {
		schemaRef
		DataFileID int64  `json:"data_file_id"`
		TableName  string `json:"table_name,omitempty"`
	}{schemaRef{databaseID, schemaOID}, dataFileID, tableName})
}

// Import creates a table from an uploaded data file.
func (a *TablesAPI) Import(ctx context.Context, databaseID, schemaOID, dataFileID int64, tableName string) (AddedTable, error) {
	return a.ImportRequest(databaseID, schemaOID, dataFileID, tableName).Run(ctx, a.rpc)
}

// GetImportPreviewRequest builds tables.get_import_preview.
func (a *TablesAPI) GetImportPreviewRequest(databaseID, tableOID int64, columns []PreviewColumn, limit int) *rpc.Request[[]map[string]any] {
	if limit <= 0 {
		limit = 20
	}
	return rpc.NewRequest[[]map[string]any]("tables.get_import_preview", struct {
		tableRef
		Columns []PreviewColumn `json:"columns"`
		Limit   int             `json:"limit"`
	}{tableRef{databaseID, tableOID}, columns, limit})
}

// GetImportPreview returns records of an imported table with the given
// column casts applied.
func (a *TablesAPI) GetImportPreview(ctx context.Context, databaseID, tableOID int64, columns []PreviewColumn, limit int) ([]map[string]any, error) {
	return a.GetImportPreviewRequest(databaseID, tableOID, columns, limit).Run(ctx, a.rpc)
}

// SetMetadataRequest builds tables.metadata.set.
func (a *TablesAPI) SetMetadataRequest(databaseID, tableOID int64, md domain.TableMetadata) *rpc.Request[rpc.Void] {
	return rpc.NewRequest[rpc.Void]("tables.metadata.set", struct {
		tableRef
		Metadata domain.TableMetadata `json:"metadata"`
	}{tableRef{databaseID, tableOID}, md})
}

// SetMetadata stores application metadata for a table.
func (a *TablesAPI) SetMetadata(ctx context.Context, databaseID, tableOID int64, md domain.TableMetadata) error {
	_, err := a.SetMetadataRequest(databaseID, tableOID, md).Run(ctx, a.rpc)
	return err
}

// Entry fetches the REST representation of a table, which carries the
// record summary template used on record pages.
func (a *TablesAPI) Entry(ctx context.Context, tableID int64) (domain.TableEntry, error) {
	return rest.Get[domain.TableEntry](ctx, a.rest, fmt.Sprintf("/tables/%d/", tableID), nil)
}
