package sandbox

import (
	"context"
	"errors"

	"dbadmin/internal/domain"
	"dbadmin/pkg/api"
)

type databaseParams struct {
	DatabaseID int64 `json:"database_id"`
}

func (p *databaseParams) validate() error {
	if p.DatabaseID <= 0 {
		return errors.New("database_id is required")
	}
	return nil
}

type schemaParams struct {
	DatabaseID int64 `json:"database_id"`
	SchemaOID  int64 `json:"schema_oid"`
}

func (p *schemaParams) validate() error {
	if p.DatabaseID <= 0 || p.SchemaOID <= 0 {
		return errors.New("database_id and schema_oid are required")
	}
	return nil
}

type tableParams struct {
	DatabaseID int64 `json:"database_id"`
	TableOID   int64 `json:"table_oid"`
}

func (p *tableParams) validate() error {
	if p.DatabaseID <= 0 || p.TableOID <= 0 {
		return errors.New("database_id and table_oid are required")
	}
	return nil
}

type databasesListParams struct {
	ServerID *int64 `json:"server_id"`
}

type schemasAddParams struct {
	databaseParams
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

type schemasPatchParams struct {
	schemaParams
	Patch domain.SchemaPatch `json:"patch"`
}

type tablesAddParams struct {
	schemaParams
	api.AddTableParams
}

type tablesDeleteParams struct {
	tableParams
	Cascade bool `json:"cascade"`
}

type tablesPatchParams struct {
	tableParams
	Data api.TablePatchData `json:"table_data_dict"`
}

type tablesImportParams struct {
	schemaParams
	DataFileID int64  `json:"data_file_id"`
	TableName  string `json:"table_name"`
}

func (p *tablesImportParams) validate() error {
	if err := p.schemaParams.validate(); err != nil {
		return err
	}
	if p.DataFileID <= 0 {
		return errors.New("data_file_id is required")
	}
	return nil
}

type importPreviewParams struct {
	tableParams
	Columns []api.PreviewColumn `json:"columns"`
	Limit   int                 `json:"limit"`
}

type metadataSetParams struct {
	tableParams
	Metadata domain.TableMetadata `json:"metadata"`
}

type columnsAddParams struct {
	tableParams
	Columns []domain.CreatableColumn `json:"column_data_list"`
}

type columnsPatchParams struct {
	tableParams
	Columns []domain.ColumnPatchSpec `json:"column_data_list"`
}

type columnsDeleteParams struct {
	tableParams
	Attnums []int `json:"column_attnums"`
}

type foreignKeyParams struct {
	DatabaseID  int64  `json:"database_id"`
	ReferrerOID int64  `json:"referrer_table_oid"`
	ReferentOID int64  `json:"referent_table_oid"`
	ColumnName  string `json:"column_name"`
}

func (p *foreignKeyParams) validate() error {
	if p.DatabaseID <= 0 || p.ReferrerOID <= 0 || p.ReferentOID <= 0 {
		return errors.New("database_id, referrer_table_oid and referent_table_oid are required")
	}
	return nil
}

type mappingTableParams struct {
	schemaParams
	TableName string              `json:"table_name"`
	Columns   []api.MappingColumn `json:"mapping_columns"`
}

// RegisterMethods installs the catalog and data modeling methods backed by
// st on d.
func RegisterMethods(d *Dispatcher, st *Store) {
	d.Register("databases.list", method(func(ctx context.Context, p databasesListParams) (any, error) {
		return st.ListDatabases(ctx, p.ServerID)
	}))

	d.Register("schemas.list", method(func(ctx context.Context, p databaseParams) (any, error) {
		return st.ListSchemas(ctx, p.DatabaseID)
	}))
	d.Register("schemas.add", method(func(ctx context.Context, p schemasAddParams) (any, error) {
		return st.AddSchema(ctx, p.DatabaseID, p.Name, p.Description)
	}))
	d.Register("schemas.delete", method(func(ctx context.Context, p schemaParams) (any, error) {
		return nil, st.DeleteSchema(ctx, p.DatabaseID, p.SchemaOID)
	}))
	d.Register("schemas.patch", method(func(ctx context.Context, p schemasPatchParams) (any, error) {
		return nil, st.PatchSchema(ctx, p.DatabaseID, p.SchemaOID, p.Patch)
	}))

	d.Register("tables.list", method(func(ctx context.Context, p schemaParams) (any, error) {
		return st.ListTables(ctx, p.DatabaseID, p.SchemaOID, false)
	}))
	d.Register("tables.list_with_metadata", method(func(ctx context.Context, p schemaParams) (any, error) {
		return st.ListTables(ctx, p.DatabaseID, p.SchemaOID, true)
	}))
	d.Register("tables.get", method(func(ctx context.Context, p tableParams) (any, error) {
		return st.GetTable(ctx, p.DatabaseID, p.TableOID, false)
	}))
	d.Register("tables.get_with_metadata", method(func(ctx context.Context, p tableParams) (any, error) {
		return st.GetTable(ctx, p.DatabaseID, p.TableOID, true)
	}))
	d.Register("tables.add", method(func(ctx context.Context, p tablesAddParams) (any, error) {
		return st.AddTable(ctx, p.DatabaseID, p.SchemaOID, p.AddTableParams)
	}))
	d.Register("tables.delete", method(func(ctx context.Context, p tablesDeleteParams) (any, error) {
		return st.DeleteTable(ctx, p.DatabaseID, p.TableOID)
	}))
	d.Register("tables.patch", method(func(ctx context.Context, p tablesPatchParams) (any, error) {
		return st.PatchTable(ctx, p.DatabaseID, p.TableOID, p.Data)
	}))
	d.Register("tables.import", method(func(ctx context.Context, p tablesImportParams) (any, error) {
		return st.ImportTable(ctx, p.DatabaseID, p.SchemaOID, p.DataFileID, p.TableName)
	}))
	d.Register("tables.get_import_preview", method(func(ctx context.Context, p importPreviewParams) (any, error) {
		return st.ImportPreview(ctx, p.DatabaseID, p.TableOID, p.Columns, p.Limit)
	}))
	d.Register("tables.metadata.set", method(func(ctx context.Context, p metadataSetParams) (any, error) {
		return nil, st.SetTableMetadata(ctx, p.DatabaseID, p.TableOID, p.Metadata)
	}))

	d.Register("columns.list", method(func(ctx context.Context, p tableParams) (any, error) {
		return st.ListColumns(ctx, p.DatabaseID, p.TableOID)
	}))
	d.Register("columns.add", method(func(ctx context.Context, p columnsAddParams) (any, error) {
		return st.AddColumns(ctx, p.DatabaseID, p.TableOID, p.Columns)
	}))
	d.Register("columns.patch", method(func(ctx context.Context, p columnsPatchParams) (any, error) {
		return nil, st.PatchColumns(ctx, p.DatabaseID, p.TableOID, p.Columns)
	}))
	d.Register("columns.delete", method(func(ctx context.Context, p columnsDeleteParams) (any, error) {
		return st.DeleteColumns(ctx, p.DatabaseID, p.TableOID, p.Attnums)
	}))

	d.Register("data_modeling.suggest_types", method(func(ctx context.Context, p tableParams) (any, error) {
		return st.SuggestTypes(ctx, p.DatabaseID, p.TableOID)
	}))
	d.Register("data_modeling.add_foreign_key_column", method(func(ctx context.Context, p foreignKeyParams) (any, error) {
		return nil, st.AddForeignKeyColumn(ctx, p.DatabaseID, p.ReferrerOID, p.ReferentOID, p.ColumnName)
	}))
	d.Register("data_modeling.add_mapping_table", method(func(ctx context.Context, p mappingTableParams) (any, error) {
		return nil, st.AddMappingTable(ctx, p.DatabaseID, p.SchemaOID, p.TableName, p.Columns)
	}))
}
