package web

// errors.go turns errors into JSON responses.
//
// The technical error is logged with the request id; the client gets the
// user-facing message and support code from core.MapError.

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nbbaier/tableimport/internal/core"
	"github.com/nbbaier/tableimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "30")
	}

	writeJSON(w, statusCode, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusForError picks the HTTP status for an error from the import path.
func statusForError(err error) int {
	var tooLarge *http.MaxBytesError
	var pgErr *pgconn.PgError
	var importErr *core.ImportError

	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, errNoFile),
		errors.Is(err, core.ErrInvalidDelimiter),
		errors.Is(err, errInvalidForm),
		errors.Is(err, core.ErrEmptyInput),
		errors.Is(err, core.ErrNoColumns):
		return http.StatusBadRequest
	case errors.As(err, &pgErr) && pgErr.Code == "42P01":
		return http.StatusNotFound
	case errors.As(err, &pgErr) && len(pgErr.Code) == 5 && pgErr.Code[:2] == "22":
		// Class 22: data exception. The file holds a value the column rejects.
		return http.StatusUnprocessableEntity
	case errors.As(err, &importErr):
		return http.StatusInternalServerError
	}

	if core.MapError(err).Code == "FILE002" {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
