package web

import (
	"encoding/csv"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/recimport/internal/core"
	"github.com/JonMunkholm/recimport/internal/logging"
	"github.com/JonMunkholm/recimport/internal/schema"
)

// multipartMemory is how much of an upload form is held in memory before
// spilling to a temporary file.
const multipartMemory = 8 << 20

// errorLine is one rejected row or file error in an API response.
type errorLine struct {
	Row      int    `json:"row"`
	Column   string `json:"column,omitempty"`
	Kind     string `json:"kind"`
	Expected string `json:"expected,omitempty"`
	Value    string `json:"value,omitempty"`
	Message  string `json:"message"`
	Code     string `json:"code"`
}

func errorLines(errs []core.ValidationError) []errorLine {
	out := make([]errorLine, len(errs))
	for i, e := range errs {
		out[i] = errorLine{
			Row:      e.Row,
			Column:   e.Column,
			Kind:     string(e.Kind),
			Expected: e.Expected,
			Value:    e.Value,
			Message:  e.Error(),
			Code:     core.MapError(e).Code,
		}
	}
	return out
}

// importResponse is the result of a direct upload.
type importResponse struct {
	core.FileOutcome
	Disposition  core.Disposition `json:"disposition"`
	RejectedRows int              `json:"rejected_rows"`
	Errors       []errorLine      `json:"errors"`
	NotifyError  string           `json:"notify_error,omitempty"`
}

// recordView renders a record with plain dates.
type recordView struct {
	ID          string           `json:"id"`
	IDType      string           `json:"id_type"`
	IDValue     string           `json:"id_value"`
	Product     string           `json:"product"`
	IsActive    string           `json:"is_active"`
	ValidFrom   string           `json:"valid_from"`
	ValidTo     string           `json:"valid_to"`
	Descriptive core.Descriptive `json:"descriptive"`
	Version     time.Time        `json:"version"`
	Author      string           `json:"author,omitempty"`
}

func viewOf(r core.CanonicalRecord) recordView {
	return recordView{
		ID:          r.ID,
		IDType:      r.IDType,
		IDValue:     r.IDValue,
		Product:     r.Product,
		IsActive:    r.IsActive,
		ValidFrom:   r.ValidFrom.Format(core.DateLayout),
		ValidTo:     r.ValidTo.Format(core.DateLayout),
		Descriptive: r.Descriptive,
		Version:     r.Version,
		Author:      r.Author,
	}
}

// handleHealth reports liveness and import capacity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.Limiter().Status(),
	})
}

// handleImport validates and emits one uploaded file. A file with any
// rejected row answers 422 with the full error list; accepted rows of that
// file are still emitted.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartMemory)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, core.ErrNoFile, http.StatusBadRequest)
		return
	}
	defer file.Close()

	out, err := s.service.ImportFile(r.Context(), header.Filename, requestAuthor(r), file)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	resp := importResponse{
		FileOutcome:  out,
		Disposition:  out.Disposition(),
		RejectedRows: out.RejectedRows(),
		Errors:       errorLines(out.Rejected),
	}
	if out.NotifyErr != nil {
		resp.NotifyError = core.FormatUserError(out.NotifyErr)
	}

	status := http.StatusOK
	if !out.Clean() {
		status = http.StatusUnprocessableEntity
	}
	logging.FromContext(r.Context()).Info("direct import finished",
		"file_name", out.FileName,
		"batch_id", out.BatchID,
		"author", out.Author,
		"accepted", len(out.Accepted),
		"rejected_rows", resp.RejectedRows,
	)
	writeJSON(w, status, resp)
}

func (s *Server) handleImportStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Limiter().Status())
}

// handleListBatches returns recent batch results, newest first.
func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"batches": s.service.RecentBatches()})
}

// handleRunBatch processes the document library now instead of waiting
// for the next poll.
func (s *Server) handleRunBatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.service.RunBatch(r.Context())
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleSchema returns the descriptive schema as the next batch sees it.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	sch, err := s.service.Schema(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"descriptive": sch.Map()})
}

// handleTemplate returns a blank import file: the fixed source headers
// followed by the descriptive keys. If the schema cannot be fetched only
// the fixed headers are returned.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	header := schema.TemplateHeader()
	if sch, err := s.service.Schema(r.Context()); err == nil {
		header = append(header, sch.Keys()...)
	} else {
		logging.FromContext(r.Context()).Warn("template without descriptive keys", "error", err)
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="import_template.csv"`)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		logging.FromContext(r.Context()).Error("write template", "error", err)
		return
	}
	cw.Flush()
}

// handleVersions returns every version of a business key, oldest first.
func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Message: "Invalid record key", Code: "REQ001"})
		return
	}
	history, err := s.service.History(r.Context(), key)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if len(history) == 0 {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "record not found", Message: "No versions for this key", Code: "REQ404"})
		return
	}
	views := make([]recordView, len(history))
	for i, rec := range history {
		views[i] = viewOf(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "versions": views})
}

// handleLatest returns the current version of a business key.
func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	key, err := keyFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Message: "Invalid record key", Code: "REQ001"})
		return
	}
	rec, ok, err := s.service.Latest(r.Context(), key)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "record not found", Message: "No versions for this key", Code: "REQ404"})
		return
	}
	writeJSON(w, http.StatusOK, viewOf(rec))
}

// keyFromRequest reads {idType}/{idValue} and the optional product query.
func keyFromRequest(r *http.Request) (core.BusinessKey, error) {
	idType, err := url.PathUnescape(chi.URLParam(r, "idType"))
	if err != nil {
		return core.BusinessKey{}, err
	}
	idValue, err := url.PathUnescape(chi.URLParam(r, "idValue"))
	if err != nil {
		return core.BusinessKey{}, err
	}
	product := r.URL.Query().Get("product")
	if product == "" {
		product = core.DefaultProduct
	}
	return core.BusinessKey{IDType: idType, IDValue: idValue, Product: product}, nil
}
