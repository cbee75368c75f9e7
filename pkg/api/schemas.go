package api

import (
	"context"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rpc"
)

type databaseRef struct {
	DatabaseID int64 `json:"database_id"`
}

// SchemasAPI wraps the schemas.* methods.
type SchemasAPI struct {
	rpc *rpc.Client
}

// ListRequest builds schemas.list.
func (a *SchemasAPI) ListRequest(databaseID int64) *rpc.Request[[]domain.Schema] {
	return rpc.NewRequest[[]domain.Schema]("schemas.list", databaseRef{databaseID})
}

// List returns the non-internal schemas of a database.
func (a *SchemasAPI) List(ctx context.Context, databaseID int64) ([]domain.Schema, error) {
	return a.ListRequest(databaseID).Run(ctx, a.rpc)
}

// AddRequest builds schemas.add. The result is the new schema OID.
func (a *SchemasAPI) AddRequest(databaseID int64, name string, description *string) *rpc.Request[int64] {
	return rpc.NewRequest[int64]("schemas.add", struct {
		databaseRef
		Name        string  `json:"name"`
		Description *string `json:"description,omitempty"`
	}{databaseRef{databaseID}, name, description})
}

// Add creates a schema.
func (a *SchemasAPI) Add(ctx context.Context, databaseID int64, name string, description *string) (int64, error) {
	return a.AddRequest(databaseID, name, description).Run(ctx, a.rpc)
}

// DeleteRequest builds schemas.delete.
func (a *SchemasAPI) DeleteRequest(databaseID, schemaOID int64) *rpc.Request[rpc.Void] {
	return rpc.NewRequest[rpc.Void]("schemas.delete", schemaRef{databaseID, schemaOID})
}

// Delete drops a schema.
func (a *SchemasAPI) Delete(ctx context.Context, databaseID, schemaOID int64) error {
	_, err := a.DeleteRequest(databaseID, schemaOID).Run(ctx, a.rpc)
	return err
}

// PatchRequest builds schemas.patch.
func (a *SchemasAPI) PatchRequest(databaseID, schemaOID int64, patch domain.SchemaPatch) *rpc.Request[rpc.Void] {
	return rpc.NewRequest[rpc.Void]("schemas.patch", struct {
		schemaRef
		Patch domain.SchemaPatch `json:"patch"`
	}{schemaRef{databaseID, schemaOID}, patch})
}

// Patch renames a schema or changes its description.
func (a *SchemasAPI) Patch(ctx context.Context, databaseID, schemaOID int64, patch domain.SchemaPatch) error {
	_, err := a.PatchRequest(databaseID, schemaOID, patch).Run(ctx, a.rpc)
	return err
}

// DatabasesAPI wraps the databases.* methods.
type DatabasesAPI struct {
	rpc *rpc.Client
}

// ListRequest builds databases.list. A nil serverID lists every database.
func (a *DatabasesAPI) ListRequest(serverID *int64) *rpc.Request[[]domain.Database] {
	return rpc.NewRequest[[]domain.Database]("databases.list", struct {
		ServerID *int64 `json:"server_id,omitempty"`
	}{serverID})
}

// List returns the databases registered with the application.
func (a *DatabasesAPI) List(ctx context.Context, serverID *int64) ([]domain.Database, error) {
	return a.ListRequest(serverID).Run(ctx, a.rpc)
}
