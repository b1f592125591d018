package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/users"
)

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, exam.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, exam.ErrInvalidState),
		errors.Is(err, exam.ErrAlreadyInProgress),
		errors.Is(err, exam.ErrAlreadyAnswered),
		errors.Is(err, exam.ErrConflict),
		errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, users.ErrLastAdmin):
		return http.StatusConflict
	case errors.Is(err, users.ErrBadCredentials):
		return http.StatusForbidden
	case errors.Is(err, exam.ErrInvalidOption),
		errors.Is(err, exam.ErrQuestionNotInExam):
		return http.StatusUnprocessableEntity
	case errors.Is(err, exam.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError answers with the mapped status. Internal errors are logged and
// not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		http.Error(w, "internal error", code)
		return
	}
	http.Error(w, err.Error(), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
