package api

import (
	"context"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rpc"
)

// ListTablesWithMetadata implements domain.TablesService.
func (c *Client) ListTablesWithMetadata(ctx context.Context, databaseID, schemaOID int64) ([]domain.Table, error) {
	return c.Tables.ListWithMetadata(ctx, databaseID, schemaOID)
}

// GetTableWithMetadata implements domain.TablesService.
func (c *Client) GetTableWithMetadata(ctx context.Context, databaseID, tableOID int64) (domain.Table, error) {
	return c.Tables.GetWithMetadata(ctx, databaseID, tableOID)
}

// AddTable implements domain.TablesService.
func (c *Client) AddTable(ctx context.Context, databaseID, schemaOID int64) (domain.Table, error) {
	added, err := c.Tables.Add(ctx, databaseID, schemaOID, AddTableParams{})
	if err != nil {
		return domain.Table{}, err
	}
	return domain.Table{OID: added.OID, Name: added.Name, Schema: schemaOID}, nil
}

// ImportTable implements domain.TablesService.
func (c *Client) ImportTable(ctx context.Context, databaseID, schemaOID, dataFileID int64, name string) (domain.Table, error) {
	added, err := c.Tables.Import(ctx, databaseID, schemaOID, dataFileID, name)
	if err != nil {
		return domain.Table{}, err
	}
	return domain.Table{OID: added.OID, Name: added.Name, Schema: schemaOID}, nil
}

// DeleteTable implements domain.TablesService.
func (c *Client) DeleteTable(ctx context.Context, databaseID, tableOID int64) error {
	_, err := c.Tables.Delete(ctx, databaseID, tableOID, false)
	return err
}

// UpdateTable implements domain.TablesService. tables.patch is only sent
// when the name or description is set, an empty string included; columns.delete only when there is
// something to delete.
func (c *Client) UpdateTable(ctx context.Context, databaseID int64, patch domain.TablePatch, columns []domain.ColumnPatchSpec, deleteColumns []int) error {
	return c.RPC.Batch(ctx, UpdateTableRequests(c, databaseID, patch, columns, deleteColumns)...)
}

// UpdateTableRequests builds the batch sent by UpdateTable.
func UpdateTableRequests(c *Client, databaseID int64, patch domain.TablePatch, columns []domain.ColumnPatchSpec, deleteColumns []int) []rpc.Runnable {
	var reqs []rpc.Runnable
	if patch.HasNameOrDescription() {
		reqs = append(reqs, c.Tables.PatchRequest(databaseID, patch.OID, TablePatchData{
			Name:        patch.Name,
			Description: patch.Description,
		}))
	}
	if columns != nil {
		reqs = append(reqs, c.Columns.PatchRequest(databaseID, patch.OID, columns))
	}
	if patch.Metadata != nil {
		reqs = append(reqs, c.Tables.SetMetadataRequest(databaseID, patch.OID, *patch.Metadata))
	}
	if len(deleteColumns) > 0 {
		reqs = append(reqs, c.Columns.DeleteRequest(databaseID, patch.OID, deleteColumns))
	}
	return reqs
}

// ListSchemas implements domain.SchemasService.
func (c *Client) ListSchemas(ctx context.Context, databaseID int64) ([]domain.Schema, error) {
	return c.Schemas.List(ctx, databaseID)
}

// AddSchema implements domain.SchemasService.
func (c *Client) AddSchema(ctx context.Context, databaseID int64, name string, description *string) (int64, error) {
	return c.Schemas.Add(ctx, databaseID, name, description)
}

// DeleteSchema implements domain.SchemasService.
func (c *Client) DeleteSchema(ctx context.Context, databaseID, schemaOID int64) error {
	return c.Schemas.Delete(ctx, databaseID, schemaOID)
}

// PatchSchema implements domain.SchemasService.
func (c *Client) PatchSchema(ctx context.Context, databaseID, schemaOID int64, patch domain.SchemaPatch) error {
	return c.Schemas.Patch(ctx, databaseID, schemaOID, patch)
}

// GetRecord implements domain.RecordsService.
func (c *Client) GetRecord(ctx context.Context, tableID int64, pk string) (domain.RecordResponse, error) {
	return c.Records.Get(ctx, tableID, pk)
}

// PatchRecord implements domain.RecordsService.
func (c *Client) PatchRecord(ctx context.Context, tableID int64, pk string, payload map[string]any) (domain.RecordResponse, error) {
	return c.Records.Patch(ctx, tableID, pk, payload)
}

var (
	_ domain.TablesService  = (*Client)(nil)
	_ domain.SchemasService = (*Client)(nil)
	_ domain.RecordsService = (*Client)(nil)
)
