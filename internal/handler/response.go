package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/folio/backend/internal/repository"
	"github.com/folio/backend/internal/service"
	"github.com/folio/backend/pkg/requestcontext"
)

type errorResponse struct {
	Error   string               `json:"error"`
	Message string               `json:"message,omitempty"`
	Fields  []service.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError maps service and repository errors onto HTTP responses.
// Unknown errors are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "validation_failed",
			Message: "one or more fields are invalid",
			Fields:  verr.Fields,
		})
	case errors.Is(err, repository.ErrInvalidID):
		writeError(w, http.StatusBadRequest, "invalid_id", "contact id is malformed")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "contact not found")
	case errors.Is(err, repository.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate_submission", "this message was already received")
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "")
	}
}
