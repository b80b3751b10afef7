package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// multipartOverhead is the request size allowed beyond the file limit for
// form fields and part headers.
const multipartOverhead = 1 << 20

// multipartMemory is held in memory before form parts spill to disk.
const multipartMemory = 8 << 20

// handleUpload imports one CSV file of kind from a multipart form with
// company_id and file fields.
func (s *Server) handleUpload(kind core.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxFile := s.service.Importer().Limits().MaxFileSize
		r.Body = http.MaxBytesReader(w, r.Body, maxFile+multipartOverhead)

		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(w, r, fmt.Errorf("%w: %v", errBodyTooLarge, err), http.StatusRequestEntityTooLarge)
				return
			}
			respondError(w, r, fmt.Errorf("%w: %v", errInvalidForm, err), http.StatusBadRequest)
			return
		}
		defer r.MultipartForm.RemoveAll()

		companyID := strings.TrimSpace(r.FormValue("company_id"))
		if companyID == "" {
			respondError(w, r, errMissingCompany, http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, r, fmt.Errorf("%w: %v", errNoFile, err), http.StatusBadRequest)
			return
		}
		defer file.Close()

		out, err := s.service.Import(r.Context(), core.ImportRequest{
			CompanyID: companyID,
			Kind:      kind,
			FileName:  header.Filename,
			Size:      header.Size,
			Body:      file,
		})
		if err != nil {
			if out != nil {
				logging.FromContext(r.Context()).Warn("import interrupted",
					"upload_id", out.Job.ID, "processed", out.Job.TotalRows)
			}
			respondError(w, r, err, statusFor(err))
			return
		}

		if out.Wholesale != nil {
			writeJSON(w, http.StatusBadRequest, rejectionResponse(out))
			return
		}
		writeJSON(w, http.StatusCreated, importResponse(out))
	}
}

// handleRetry re-runs the failed rows of an upload.
func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	out, err := s.service.Retry(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, retryResponse(out))
}

// handleErrors returns the Row Errors of an upload as JSON, or as a CSV
// download with ?format=csv.
func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	report, err := s.service.Errors(r.Context(), uploadID)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, errorsResponse(report))
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="bulk_upload_%s_errors.csv"`, uploadID))
		if err := report.WriteCSV(w); err != nil {
			logging.FromContext(r.Context()).Error("error report export failed", "upload_id", uploadID, "error", err)
		}
	default:
		respondError(w, r, fmt.Errorf("%w: format %q", errInvalidQuery, format), http.StatusBadRequest)
	}
}

// handleDetail returns one upload.
func (s *Server) handleDetail(w http.ResponseWriter, r *http.Request) {
	job, err := s.service.Get(r.Context(), chi.URLParam(r, "uploadID"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, JobResponse{UploadJob: *job, SuccessRate: job.SuccessRate()})
}

// handleHistory lists uploads, newest first.
// Query: company_id, upload_type, status, page, page_size.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	page, err := s.service.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, historyResponse(page))
}

func parseListFilter(r *http.Request) (core.ListFilter, error) {
	q := r.URL.Query()
	filter := core.ListFilter{CompanyID: strings.TrimSpace(q.Get("company_id"))}

	if v := q.Get("upload_type"); v != "" {
		kind, err := core.ParseKind(v)
		if err != nil {
			return filter, fmt.Errorf("%w: upload_type %q", errInvalidQuery, v)
		}
		filter.Kind = kind
	}

	if v := q.Get("status"); v != "" {
		st := core.Status(strings.ToLower(v))
		if !st.Valid() {
			return filter, fmt.Errorf("%w: status %q", errInvalidQuery, v)
		}
		filter.Status = st
	}

	var err error
	if filter.Page, err = parseIntParam(q.Get("page"), 1); err != nil {
		return filter, fmt.Errorf("%w: page %q", errInvalidQuery, q.Get("page"))
	}
	if filter.PageSize, err = parseIntParam(q.Get("page_size"), core.DefaultPageSize); err != nil {
		return filter, fmt.Errorf("%w: page_size %q", errInvalidQuery, q.Get("page_size"))
	}
	return filter.Normalize(), nil
}

// parseIntParam parses a positive integer, returning def when s is empty.
func parseIntParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errInvalidQuery
	}
	return n, nil
}

// handleTemplate serves the CSV template of a kind.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		respondError(w, r, err, http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_template.csv"`, kind))
	if err := core.WriteTemplate(w, kind); err != nil {
		logging.FromContext(r.Context()).Error("template export failed", "kind", kind, "error", err)
	}
}

// handleHealth reports liveness, import slot usage and, when configured,
// the database connection.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":  "ok",
		"uploads": s.service.LimiterStatus(),
	}

	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			logging.FromContext(r.Context()).Error("health check failed", "error", err)
			body["status"] = "unavailable"
			writeJSON(w, http.StatusServiceUnavailable, body)
			return
		}
	}
	writeJSON(w, http.StatusOK, body)
}
