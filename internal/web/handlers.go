package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/certwise/importer/internal/csvkit"
	"github.com/certwise/importer/internal/importer"
	"github.com/go-chi/chi/v5"
)

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handlePreview tokenizes an uploaded CSV, infers a field mapping, and
// returns every row normalized with it. Nothing is persisted.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	csvText, err := s.readCSVUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	preview, err := s.service.Preview(csvText)
	if err != nil {
		s.respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, preview)
}

// handleStartImport starts an asynchronous import run.
//
// Accepts multipart form data with a "file" part plus optional "mapping"
// (JSON FieldMapping overriding the inferred one) and "excluded" (JSON
// array of row indexes), or a raw CSV body for mapping-free imports.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	csvText, err := s.readCSVUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	req := importer.ImportRequest{CSV: csvText}

	if mappingJSON := r.FormValue("mapping"); mappingJSON != "" {
		var mapping importer.FieldMapping
		if err := json.Unmarshal([]byte(mappingJSON), &mapping); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid mapping format: %w", err), http.StatusBadRequest)
			return
		}
		req.Mapping = &mapping
	}

	if excludedJSON := r.FormValue("excluded"); excludedJSON != "" {
		if err := json.Unmarshal([]byte(excludedJSON), &req.ExcludedRows); err != nil {
			s.respondError(w, r, fmt.Errorf("invalid excluded rows format: %w", err), http.StatusBadRequest)
			return
		}
	}

	runID, err := s.service.StartImport(r.Context(), req)
	if err != nil {
		s.respondError(w, r, err, http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, map[string]string{"run_id": runID})
}

// handleProgress returns a non-blocking progress snapshot.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	progress, err := s.service.Progress(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, progress)
}

// handleResult blocks until the run completes and returns the final
// aggregated result.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	result, err := s.service.Result(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, result)
}

// handleCancel cancels an in-progress run.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	if err := s.service.Cancel(runID); err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleErrorsCSV exports the rows that did not end up inserted or
// updated, one status cell prepended, so the operator can fix them at
// the source and re-import just the remainder.
func (s *Server) handleErrorsCSV(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	result, err := s.service.Result(runID)
	if err != nil {
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	byRow := make(map[int]importer.Outcome, len(result.Outcomes))
	for _, o := range result.Outcomes {
		byRow[o.RowIndex] = o
	}

	headers := []string{"Status", "Row", "Email", "Cert Name", "Cert Type", "Expiration Date", "Cert Number", "Issuing Authority"}
	var rows [][]string
	for _, c := range result.Candidates {
		o, ok := byRow[c.RowIndex]
		if !ok || o.Action == importer.ActionInserted || o.Action == importer.ActionUpdated {
			continue
		}
		status := string(o.Action)
		if o.Err != "" {
			status = o.Err
		} else if len(c.Issues) > 0 {
			status = strings.Join(c.Issues, "; ")
		}
		rows = append(rows, []string{
			status, fmt.Sprintf("%d", c.RowIndex), c.Email, c.CertName,
			c.CertType, c.ExpirationDate, c.CertNumber, c.IssuingAuthority,
		})
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "import-errors-"+runID+".csv"))
	io.WriteString(w, csvkit.WriteString(headers, rows))
}

// readCSVUpload extracts the CSV text from a request: a multipart form
// "file" part when present, otherwise the raw body. The body is capped
// at the configured maximum file size either way.
func (s *Server) readCSVUpload(w http.ResponseWriter, r *http.Request) (string, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxSize); err != nil {
			return "", fmt.Errorf("parse upload form: %w", err)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("no file provided: %w", err)
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			return "", fmt.Errorf("read uploaded file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", fmt.Errorf("read request body: %w", err)
	}
	return string(data), nil
}
