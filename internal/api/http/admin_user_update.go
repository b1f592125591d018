package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/parakh/adaptive-exam/internal/users"
)

// PUT /admin/users/{userID}/approve and /reject
func AdminSetUserStatusHandler(accounts Accounts, status string, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID")
		if target == "" {
			http.Error(w, "missing userID", http.StatusBadRequest)
			return
		}
		if err := accounts.SetStatus(r.Context(), target, status); err != nil {
			writeError(w, r, log, err)
			return
		}
		log.InfoContext(r.Context(), "user status changed", "user_id", target, "status", status)
		w.WriteHeader(http.StatusNoContent)
	}
}

type updateUserRoleReq struct {
	Role string `json:"role"`
}

// PUT /admin/users/{userID}/role {"role": "teacher"}
func AdminUpdateUserRoleHandler(accounts Accounts, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target := chi.URLParam(r, "userID")
		if target == "" {
			http.Error(w, "missing userID", http.StatusBadRequest)
			return
		}

		var req updateUserRoleReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		role := strings.ToLower(strings.TrimSpace(req.Role))
		if role != users.RoleStudent && role != users.RoleTeacher && role != users.RoleAdmin {
			http.Error(w, "invalid role", http.StatusBadRequest)
			return
		}

		if err := accounts.SetRole(r.Context(), target, role); err != nil {
			writeError(w, r, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
