package api

import (
	"context"
	"fmt"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rest"
	"dbadmin/pkg/rpc"
)

// ColumnsRESTLimit is the page size used when listing columns over REST.
const ColumnsRESTLimit = 500

// ColumnsAPI wraps the columns.* methods.
type ColumnsAPI struct {
	rpc  *rpc.Client
	rest *rest.Client
}

// ListRequest builds columns.list.
func (a *ColumnsAPI) ListRequest(databaseID, tableOID int64) *rpc.Request[[]domain.Column] {
	return rpc.NewRequest[[]domain.Column]("columns.list", tableRef{databaseID, tableOID})
}

// List returns the columns of a table.
func (a *ColumnsAPI) List(ctx context.Context, databaseID, tableOID int64) ([]domain.Column, error) {
	return a.ListRequest(databaseID, tableOID).Run(ctx, a.rpc)
}

// PatchRequest builds columns.patch.
func (a *ColumnsAPI) PatchRequest(databaseID, tableOID int64, specs []domain.ColumnPatchSpec) *rpc.Request[rpc.Void] {
	return rpc.NewRequest[rpc.Void]("columns.patch", struct {
		tableRef
		Columns []domain.ColumnPatchSpec `json:"column_data_list"`
	}{tableRef{databaseID, tableOID}, specs})
}

// Patch alters existing columns.
func (a *ColumnsAPI) Patch(ctx context.Context, databaseID, tableOID int64, specs []domain.ColumnPatchSpec) error {
	_, err := a.PatchRequest(databaseID, tableOID, specs).Run(ctx, a.rpc)
	return err
}

// DeleteRequest builds columns.delete. The result is the number of
// columns dropped.
func (a *ColumnsAPI) DeleteRequest(databaseID, tableOID int64, attnums []int) *rpc.Request[int] {
	return rpc.NewRequest[int]("columns.delete", struct {
		tableRef
		Attnums []int `json:"column_attnums"`
	}{tableRef{databaseID, tableOID}, attnums})
}

// Delete drops the given columns.
func (a *ColumnsAPI) Delete(ctx context.Context, databaseID, tableOID int64, attnums []int) (int, error) {
	return a.DeleteRequest(databaseID, tableOID, attnums).Run(ctx, a.rpc)
}

// AddRequest builds columns.add. The result holds the new attnums.
func (a *ColumnsAPI) AddRequest(databaseID, tableOID int64, cols []domain.CreatableColumn) *rpc.Request[[]int] {
	return rpc.NewRequest[[]int]("columns.add", struct {
		tableRef
		Columns []domain.CreatableColumn `json:"column_data_list"`
	}{tableRef{databaseID, tableOID}, cols})
}

// Add creates columns on a table.
func (a *ColumnsAPI) Add(ctx context.Context, databaseID, tableOID int64, cols []domain.CreatableColumn) ([]int, error) {
	return a.AddRequest(databaseID, tableOID, cols).Run(ctx, a.rpc)
}

// ListREST lists columns through the REST endpoint.
func (a *ColumnsAPI) ListREST(ctx context.Context, tableID int64) (rest.PaginatedResponse[domain.Column], error) {
	return rest.Get[rest.PaginatedResponse[domain.Column]](ctx, a.rest,
		fmt.Sprintf("/tables/%d/columns/", tableID), rest.Page{Limit: ColumnsRESTLimit}.Query())
}
