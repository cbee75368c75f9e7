package sandbox

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"dbadmin/internal/domain"
	"dbadmin/pkg/rest"
)

const maxRESTBody = 32 << 20

// restError is one element of the REST error list body.
type restError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRESTError answers with a list of errors, the shape the record
// endpoints use.
func writeRESTError(w http.ResponseWriter, err error) {
	var (
		nf *domain.NotFoundError
		cf *domain.ConflictError
		ve *domain.ValidationError
	)
	status := http.StatusInternalServerError
	switch {
	case errors.As(err, &nf):
		status = http.StatusNotFound
	case errors.As(err, &cf):
		status = http.StatusConflict
	case errors.As(err, &ve):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, []restError{{Code: status, Message: err.Error()}})
}

func decodeBody(r *http.Request, w http.ResponseWriter, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRESTBody))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return domain.ErrValidation("invalid JSON body: %v", err)
	}
	return nil
}

func tableIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "tableID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrNotFound("table %q not found", chi.URLParam(r, "tableID"))
	}
	return id, nil
}

func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) restRoutes(r chi.Router) {
	r.Post("/data_files/", s.createDataFile)
	r.Route("/tables/{tableID}", func(r chi.Router) {
		r.Get("/", s.getTableEntry)
		r.Get("/columns/", s.listColumnsREST)
		r.Post("/records/", s.createRecord)
		r.Get("/records/{pk}/", s.getRecord)
		r.Patch("/records/{pk}/", s.patchRecord)
	})
}

func (s *Server) getTableEntry(w http.ResponseWriter, r *http.Request) {
	id, err := tableIDParam(r)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	entry, err := s.store.TableEntry(r.Context(), id)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) listColumnsREST(w http.ResponseWriter, r *http.Request) {
	id, err := tableIDParam(r)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	cols, total, err := s.store.ColumnsPage(r.Context(), id, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rest.PaginatedResponse[domain.Column]{Count: total, Results: cols})
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	id, err := tableIDParam(r)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	var payload map[string]any
	if err := decodeBody(r, w, &payload); err != nil {
		writeRESTError(w, err)
		return
	}
	pk, err := s.store.InsertRecord(r.Context(), id, payload)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	resp, err := s.store.GetRecord(r.Context(), id, pk)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := tableIDParam(r)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	resp, err := s.store.GetRecord(r.Context(), id, chi.URLParam(r, "pk"))
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) patchRecord(w http.ResponseWriter, r *http.Request) {
	id, err := tableIDParam(r)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	var payload map[string]any
	if err := decodeBody(r, w, &payload); err != nil {
		writeRESTError(w, err)
		return
	}
	resp, err := s.store.PatchRecord(r.Context(), id, chi.URLParam(r, "pk"), payload)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) createDataFile(w http.ResponseWriter, r *http.Request) {
	var in DataFileInput
	if err := decodeBody(r, w, &in); err != nil {
		writeRESTError(w, err)
		return
	}
	df, err := s.store.CreateDataFile(r.Context(), in)
	if err != nil {
		writeRESTError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, df)
}
