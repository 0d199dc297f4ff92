package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yourorg/timetrack/internal/domain"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error      string                  `json:"error"`
	Violations []domain.FieldViolation `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeError maps domain errors onto HTTP status codes. Validation
// failures carry their field violations so clients can highlight the
// offending inputs.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:      verr.Error(),
			Violations: verr.Violations,
		})
		return
	}

	var terr *domain.InvalidTransitionError
	if errors.As(err, &terr) {
		writeErrorMsg(w, http.StatusUnprocessableEntity, terr.Error())
		return
	}

	var cerr *domain.ConflictError
	if errors.As(err, &cerr) {
		writeErrorMsg(w, http.StatusConflict, cerr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeErrorMsg(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrForbidden):
		writeErrorMsg(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrUnauthenticated):
		writeErrorMsg(w, http.StatusUnauthorized, "unauthorized")
	case domain.IsTransient(err):
		logger.Error("transient store failure", slog.String("error", err.Error()))
		writeErrorMsg(w, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		logger.Error("request failed", slog.String("error", err.Error()))
		writeErrorMsg(w, http.StatusInternalServerError, "internal error")
	}
}
