package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/parakh/adaptive-exam/internal/auth/middleware"
	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/rbac"
)

// Exams is the slice of exam.Service the handlers use.
type Exams interface {
	Start(ctx context.Context, userID, subject string) (exam.SessionState, error)
	Submit(ctx context.Context, a exam.Answer) (exam.SessionState, error)
	State(ctx context.Context, sessionID string) (exam.SessionState, error)
	Session(ctx context.Context, sessionID string) (exam.Session, error)
	Report(ctx context.Context, sessionID string) (exam.Report, error)
	History(ctx context.Context, userID string) ([]exam.Session, error)
}

// POST /exams {"subject": "..."}
func StartExamHandler(exams Exams, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Subject string `json:"subject"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		st, err := exams.Start(r.Context(), auth.SubjectFromContext(r.Context()), req.Subject)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	}
}

// GET /exams[?user_id=...]; other users' history needs exam:view-all.
func ListExamsHandler(exams Exams, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller := auth.SubjectFromContext(r.Context())
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if userID == "" {
			userID = caller
		}
		if userID != caller && !rbac.Can(r.Context(), rbac.PermExamViewAll) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		out, err := exams.History(r.Context(), userID)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if out == nil {
			out = []exam.Session{}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// GET /exams/{sessionID}
func GetExamHandler(exams Exams, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := exams.State(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// maxTimeTakenSec bounds time_taken_seconds to one day.
const maxTimeTakenSec = 24 * 60 * 60

// POST /exams/{sessionID}/answers
//
//	{"question_id": "...", "selected_option": "B", "time_taken_seconds": 12}
//
// Only the session's owner may answer.
func SubmitAnswerHandler(exams Exams, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "sessionID")
		var req struct {
			QuestionID string `json:"question_id"`
			Selected   string `json:"selected_option"`
			TimeTaken  int64  `json:"time_taken_seconds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "question_id required", http.StatusBadRequest)
			return
		}
		if req.TimeTaken > maxTimeTakenSec {
			http.Error(w, "time_taken_seconds out of range", http.StatusBadRequest)
			return
		}

		sess, err := exams.Session(r.Context(), id)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		if sess.UserID != auth.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		st, err := exams.Submit(r.Context(), exam.Answer{
			SessionID:  id,
			QuestionID: req.QuestionID,
			Selected:   req.Selected,
			TimeTaken:  time.Duration(req.TimeTaken) * time.Second,
		})
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// GET /exams/{sessionID}/report
func ReportHandler(exams Exams, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rep, err := exams.Report(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// sessionOwner reports whether the caller owns the {sessionID} session.
// Unknown sessions pass so the handler can answer 404.
func sessionOwner(exams Exams) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		sess, err := exams.Session(r.Context(), chi.URLParam(r, "sessionID"))
		if errors.Is(err, exam.ErrNotFound) {
			return true
		}
		return err == nil && sess.UserID == auth.SubjectFromContext(r.Context())
	}
}
