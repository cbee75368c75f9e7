package api

import (
	"context"

	"dbadmin/pkg/rpc"
)

// MappingColumn describes one foreign key column of a mapping table.
type MappingColumn struct {
	ColumnName       string `json:"column_name"`
	ReferentTableOID int64  `json:"referent_table_oid"`
}

// DataModelingAPI wraps the data_modeling.* methods.
type DataModelingAPI struct {
	rpc *rpc.Client
}

// SuggestTypesRequest builds data_modeling.suggest_types. The result maps
// stringified attnums to Postgres type names.
func (a *DataModelingAPI) SuggestTypesRequest(databaseID, tableOID int64) *rpc.Request[map[string]string] {
	return rpc.NewRequest[map[string]string]("data_modeling.suggest_types", tableRef{databaseID, tableOID})
}

// SuggestTypes infers column types for a table.
func (a *DataModelingAPI) SuggestTypes(ctx context.Context, databaseID, tableOID int64) (map[string]string, error) {
	return a.SuggestTypesRequest(databaseID, tableOID).Run(ctx, a.rpc)
}

// AddForeignKeyColumnRequest builds data_modeling.add_foreign_key_column.
func (a *DataModelingAPI) AddForeignKeyColumnRequest(databaseID, referrerOID, referentOID int64, columnName string) *rpc.Request[rpc.Void] {
	return rpc.NewRequest[rpc.Void]("data_modeling.add_foreign_key_column", struct {
		DatabaseID  int64  `json:"database_id"`
		ReferrerOID int64  `json:"referrer_table_oid"`
		ReferentOID int64  `json:"referent_table_oid"`
		ColumnName  string `json:"column_name"`
	}{databaseID, referrerOID, referentOID, columnName})
}

// AddForeignKeyColumn adds a column on the referrer table that references
// the referent table.
func (a *DataModelingAPI) AddForeignKeyColumn(ctx context.Context, databaseID, referrerOID, referentOID int64, columnName string) error {
	_, err := a.AddForeignKeyColumnRequest(databaseID, referrerOID, referentOID, columnName).Run(ctx, a.rpc)
	return err
}

// AddMappingTableRequest builds data_modeling.add_mapping_table.
func (a *DataModelingAPI) AddMappingTableRequest(databaseID, schemaOID int64, tableName string, cols []MappingColumn) *rpc.Request[rpc.Void] {
	return rpc.NewRequest[rpc.Void]("data_modeling.add_mapping_table", struct {
		schemaRef
		TableName string          `json:"table_name"`
		Columns   []MappingColumn `json:"mapping_columns"`
	}{schemaRef{databaseID, schemaOID}, tableName, cols})
}

// AddMappingTable creates a many-to-many mapping table.
func (a *DataModelingAPI) AddMappingTable(ctx context.Context, databaseID, schemaOID int64, tableName string, cols []MappingColumn) error {
	_, err := a.AddMappingTableRequest(databaseID, schemaOID, tableName, cols).Run(ctx, a.rpc)
	return err
}
