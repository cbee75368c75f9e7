package domain

import "encoding/json"

// InternalDBConnection describes the application's own database.
type InternalDBConnection struct {
	Database string `json:"database"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Type     string `json:"type"`
	User     string `json:"user"`
}

// User is the authenticated user embedded in the preload payload.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}

// CommonData is the JSON payload embedded in every page under
// #common-data. It is consumed once at start-up.
type CommonData struct {
	Databases             []Database           `json:"databases"`
	Servers               []Server             `json:"servers"`
	Schemas               []Schema             `json:"schemas"`
	Tables                []Table              `json:"tables"`
	Queries               []json.RawMessage    `json:"queries"`
	CurrentDatabase       *int64               `json:"current_database"`
	CurrentSchema         *int64               `json:"current_schema"`
	InternalDBConnection  InternalDBConnection `json:"internal_db_connection"`
	AbstractTypes         []json.RawMessage    `json:"abstract_types"`
	User                  User                 `json:"user"`
	CurrentReleaseTagName string               `json:"current_release_tag_name"`
	SupportedLanguages    map[string]string    `json:"supported_languages"`
	IsAuthenticated       bool                 `json:"is_authenticated"`
	RoutingContext        string               `json:"routing_context"`
}

// IsCurrent reports whether the payload was rendered for the given
// database and schema.
func (c *CommonData) IsCurrent(key TablesKey) bool {
	if c == nil || c.CurrentDatabase == nil || c.CurrentSchema == nil {
		return false
	}
	return *c.CurrentDatabase == key.DatabaseID && *c.CurrentSchema == key.SchemaOID
}
