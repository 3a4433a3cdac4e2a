package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nbbaier/tableimport/internal/core"
	"github.com/nbbaier/tableimport/internal/logging"
)

var (
	errNoFile      = errors.New("no file provided")
	errInvalidForm = errors.New("invalid form")
)

// handleImport replaces the named table with the uploaded file.
// The file is either the multipart field "file" or the raw request body.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	opts, err := parseOptions(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	body, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}
	defer body.Close()

	result, err := s.service.ImportDelimited(r.Context(), table, body, opts)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}

	logging.WithFields(r.Context(), "import_id", result.ImportID).Info("import request done",
		"table", result.Table.SanitizedTableName,
		"rows", result.Table.RowCount,
	)
	writeJSON(w, http.StatusCreated, result)
}

// handlePreview returns the inferred layout without writing anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	opts, err := parseOptions(r)
	if err != nil {
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	body, err := s.openUpload(w, r)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}
	defer body.Close()

	meta, err := s.service.Preview(table, body, opts)
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleTableCount(w http.ResponseWriter, r *http.Request) {
	table, n, err := s.service.TableRowCount(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":    table,
		"rowCount": n,
	})
}

func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	table, err := s.service.DropTable(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.respondError(w, r, err, statusForError(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"table":   table,
		"dropped": true,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.service.LimiterStatus())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// openUpload returns the uploaded file, capped at the configured size.
func (s *Server) openUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("file too large: limit is %d bytes: %w", maxSize, err)
		}
		return nil, fmt.Errorf("%w: %v", errInvalidForm, err)
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, errNoFile
	}
	return file, nil
}

// parseOptions reads the optional ?delimiter= query parameter.
func parseOptions(r *http.Request) (core.ParseOptions, error) {
	d, err := core.ParseDelimiter(r.URL.Query().Get("delimiter"))
	if err != nil {
		return core.ParseOptions{}, err
	}
	return core.ParseOptions{Delimiter: d}, nil
}
