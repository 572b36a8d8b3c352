package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"coparent/backend/reports"
	"coparent/backend/services"

	"github.com/gorilla/mux"
)

func Reconcile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rec, err := services.Reconcile(r.Context(), principal(r), mux.Vars(r)["id"], q.Get("year"), q.Get("quarter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ExportReconciliation renders the reconciliation as a download. The format
// defaults to PDF.
func ExportReconciliation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	format := q.Get("format")
	if format == "" {
		format = reports.FormatPDF
	}
	contentType, err := reports.ContentType(format)
	if err != nil {
		writeError(w, r, &services.ValidationError{Field: "format", Message: err.Error()})
		return
	}

	rec, err := services.Reconcile(r.Context(), principal(r), mux.Vars(r)["id"], q.Get("year"), q.Get("quarter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	report := reports.New(rec, cfg.PublicBaseURL, services.Now())

	var buf bytes.Buffer
	if err := reports.Render(&buf, format, report); err != nil {
		writeError(w, r, fmt.Errorf("failed to render %s export: %w", format, err))
		return
	}

	w.Header().Set("Content-Type", contentType)
	if format != reports.FormatHTML {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename(format)))
	}
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	buf.WriteTo(w)
}

func CategoryDocuments(w http.ResponseWriter, r *http.Request) {
	vars, q := mux.Vars(r), r.URL.Query()
	out, err := services.CategoryDocuments(r.Context(), principal(r), vars["id"], vars["categoryId"], q.Get("year"), q.Get("quarter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func ListIndexations(w http.ResponseWriter, r *http.Request) {
	history, err := services.ListIndexHistory(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func ApplyIndexation(w http.ResponseWriter, r *http.Request) {
	var in services.IndexationInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := services.ApplyIndexation(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func ReverseIndexation(w http.ResponseWriter, r *http.Request) {
	if err := services.ReverseIndexation(r.Context(), principal(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
