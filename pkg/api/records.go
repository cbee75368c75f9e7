package api

import (
	"context"
	"fmt"
	"net/url"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rest"
)

// RecordsAPI wraps the REST record endpoints.
type RecordsAPI struct {
	rest *rest.Client
}

// RecordPath returns the REST path of a single record.
func RecordPath(tableID int64, pk string) string {
	return fmt.Sprintf("/tables/%d/records/%s/", tableID, url.PathEscape(pk))
}

// Get fetches one record together with its foreign key preview data.
func (a *RecordsAPI) Get(ctx context.Context, tableID int64, pk string) (domain.RecordResponse, error) {
	return rest.Get[domain.RecordResponse](ctx, a.rest, RecordPath(tableID, pk), nil)
}

// Patch updates one record. Payload keys are stringified column ids.
func (a *RecordsAPI) Patch(ctx context.Context, tableID int64, pk string, payload map[string]any) (domain.RecordResponse, error) {
	return rest.Patch[domain.RecordResponse](ctx, a.rest, RecordPath(tableID, pk), payload)
}

// Create inserts a record and returns it as Get does.
func (a *RecordsAPI) Create(ctx context.Context, tableID int64, payload map[string]any) (domain.RecordResponse, error) {
	return rest.Post[domain.RecordResponse](ctx, a.rest, fmt.Sprintf("/tables/%d/records/", tableID), payload)
}
