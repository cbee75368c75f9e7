package domain

import "encoding/json"

// Server is a Postgres server known to the application.
type Server struct {
	ID   int64  `json:"id"`
	Host string `json:"host"`
	Port int    `json:"port"`
}

// Database is a database registered with the application. ID is assigned by
// the application, not by Postgres.
type Database struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	ServerID int64  `json:"server_id"`
}

// Schema is a Postgres schema inside a database.
type Schema struct {
	OID         int64   `json:"oid"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	TableCount  int     `json:"table_count"`
}

// SchemaPatch holds the settable schema fields. Nil fields are left alone.
type SchemaPatch struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// TableMetadata is the application-side metadata stored for a table.
// Every field is optional; nil means "not set".
type TableMetadata struct {
	DataFileID            *int64  `json:"data_file_id,omitempty"`
	ImportVerified        *bool   `json:"import_verified,omitempty"`
	ColumnOrder           []int   `json:"column_order,omitempty"`
	RecordSummaryTemplate *string `json:"record_summary_template,omitempty"`
	AddedPKeyAttnum       *int    `json:"mathesar_added_pkey_attnum,omitempty"`
}

// Table is a table row as returned by tables.list_with_metadata.
type Table struct {
	OID         int64          `json:"oid"`
	Name        string         `json:"name"`
	Schema      int64          `json:"schema"`
	Description *string        `json:"description"`
	Metadata    *TableMetadata `json:"metadata"`
}

// TablePatch is a partial Table used for client-side updates. OID is
// required; nil fields are left unchanged.
type TablePatch struct {
	OID         int64
	Name        *string
	Description *string
	Metadata    *TableMetadata
}

// HasNameOrDescription reports whether the patch touches the fields sent
// through tables.patch. An empty description is a change: it clears it.
func (p TablePatch) HasNameOrDescription() bool {
	return p.Name != nil || p.Description != nil
}

// ColumnDefault describes a column default value.
type ColumnDefault struct {
	Value     any  `json:"value"`
	IsDynamic bool `json:"is_dynamic"`
}

// Column describes a table column. ID is the Postgres attnum.
type Column struct {
	ID             int            `json:"id"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	TypeOptions    map[string]any `json:"type_options,omitempty"`
	Nullable       bool           `json:"nullable"`
	PrimaryKey     bool           `json:"primary_key"`
	Default        *ColumnDefault `json:"default"`
	HasDependents  bool           `json:"has_dependents"`
	Description    *string        `json:"description"`
	DisplayOptions map[string]any `json:"display_options,omitempty"`
}

// ColumnPatchSpec describes an alteration to one existing column.
type ColumnPatchSpec struct {
	ID          int            `json:"id"`
	Name        *string        `json:"name,omitempty"`
	Type        *string        `json:"type,omitempty"`
	TypeOptions map[string]any `json:"type_options,omitempty"`
	Nullable    *bool          `json:"nullable,omitempty"`
	Description *string        `json:"description,omitempty"`
}

// CreatableColumn describes a column added through columns.add.
type CreatableColumn struct {
	Name        string         `json:"name,omitempty"`
	Type        string         `json:"type,omitempty"`
	TypeOptions map[string]any `json:"type_options,omitempty"`
	Nullable    *bool          `json:"nullable,omitempty"`
	Description *string        `json:"description,omitempty"`
}

// DataFile is an uploaded CSV/TSV file that can be imported into a table.
type DataFile struct {
	ID int64 `json:"id"`
}

// RecordValues maps column ids to cell values.
type RecordValues map[int]any

// PreviewData carries foreign-key preview rows returned alongside records.
// Column is the referring column id; each row is keyed by stringified
// column ids of the referent table and carries its key under "__id".
type PreviewData struct {
	Column   int              `json:"column"`
	Table    int64            `json:"table"`
	Template string           `json:"template"`
	Data     []map[string]any `json:"data"`
}

// RecordResponse is the REST payload for a single record fetch or patch.
type RecordResponse struct {
	Count       int                          `json:"count"`
	Results     []map[string]json.RawMessage `json:"results"`
	PreviewData []PreviewData                `json:"preview_data,omitempty"`
}

// TableEntry is the REST representation of a table used by record pages.
type TableEntry struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Settings TableSettings `json:"settings"`
}

// TableSettings holds per-table presentation settings.
type TableSettings struct {
	PreviewSettings PreviewSettings `json:"preview_settings"`
}

// PreviewSettings holds the record summary template, e.g. "{3} {4}".
type PreviewSettings struct {
	Template string `json:"template"`
}
