package api

import (
	"context"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rest"
)

// DataFileUpload is pasted delimited text to import as a table.
type DataFileUpload struct {
	Name      string `json:"name,omitempty"`
	Paste     string `json:"paste"`
	Header    *bool  `json:"header,omitempty"`
	Delimiter string `json:"delimiter,omitempty"`
}

// DataFilesAPI wraps the data file upload endpoint.
type DataFilesAPI struct {
	rest *rest.Client
}

// Create uploads a data file. The returned id is passed to tables.import.
func (a *DataFilesAPI) Create(ctx context.Context, in DataFileUpload) (domain.DataFile, error) {
	return rest.Post[domain.DataFile](ctx, a.rest, "/data_files/", in)
}
