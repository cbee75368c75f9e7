package sandbox

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	g "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"dbadmin/internal/domain"
	"dbadmin/internal/middleware"
	"dbadmin/pkg/preload"
)

// commonData assembles the preload payload. current may be nil for pages
// outside a schema.
func (s *Server) commonData(r *http.Request, current *domain.TablesKey) (domain.CommonData, error) {
	ctx := r.Context()
	cd := domain.CommonData{
		Schemas:               []domain.Schema{},
		Tables:                []domain.Table{},
		Queries:               []json.RawMessage{},
		AbstractTypes:         []json.RawMessage{},
		InternalDBConnection:  domain.InternalDBConnection{Type: "sqlite", Database: "sandbox"},
		CurrentReleaseTagName: s.opts.Version,
		SupportedLanguages:    map[string]string{"en": "English"},
		RoutingContext:        "normal",
	}
	if name, ok := middleware.PrincipalFromContext(ctx); ok {
		cd.User = domain.User{Username: name, IsSuperuser: true}
		cd.IsAuthenticated = true
	}

	var err error
	if cd.Databases, err = s.store.ListDatabases(ctx, nil); err != nil {
		return cd, err
	}
	if cd.Servers, err = s.store.ListServers(ctx); err != nil {
		return cd, err
	}
	if current == nil {
		return cd, nil
	}
	if cd.Schemas, err = s.store.ListSchemas(ctx, current.DatabaseID); err != nil {
		return cd, err
	}
	if cd.Tables, err = s.store.ListTables(ctx, current.DatabaseID, current.SchemaOID, true); err != nil {
		return cd, err
	}
	cd.CurrentDatabase = &current.DatabaseID
	cd.CurrentSchema = &current.SchemaOID
	return cd, nil
}

func preloadPage(title string, payload []byte) g.Node {
	return Doctype(HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			TitleEl(g.Text(title)),
		),
		Body(
			Div(ID("app"), NoScript(g.Text("This page needs JavaScript."))),
			// json.Marshal escapes '<' so the payload cannot close the tag.
			Script(ID(preload.CommonDataID), Type("application/json"), g.Raw(string(payload))),
		),
	))
}

func (s *Server) servePage(w http.ResponseWriter, r *http.Request) {
	var current *domain.TablesKey
	title := "dbadmin sandbox"
	if dbParam := chi.URLParam(r, "databaseID"); dbParam != "" {
		dbID, err1 := strconv.ParseInt(dbParam, 10, 64)
		schemaOID, err2 := strconv.ParseInt(chi.URLParam(r, "schemaOID"), 10, 64)
		if err1 != nil || err2 != nil {
			http.NotFound(w, r)
			return
		}
		current = &domain.TablesKey{DatabaseID: dbID, SchemaOID: schemaOID}
		title = fmt.Sprintf("Schema %d | dbadmin sandbox", schemaOID)
	}

	cd, err := s.commonData(r, current)
	if err != nil {
		status := http.StatusInternalServerError
		if domain.IsNotFound(err) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}
	payload, err := json.Marshal(cd)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = preloadPage(title, payload).Render(w)
}
