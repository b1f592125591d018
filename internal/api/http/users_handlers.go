package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parakh/adaptive-exam/internal/users"
)

// Accounts is the user administration surface of users.SQLStore.
type Accounts interface {
	Register(ctx context.Context, email, name, role, password string) (users.User, error)
	List(ctx context.Context, role, status string) ([]users.User, error)
	SetStatus(ctx context.Context, id, status string) error
	SetRole(ctx context.Context, id, role string) error
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
}

// POST /auth/register {"email","name","password","role"}; the account waits
// for an admin to approve it.
func RegisterHandler(accounts Accounts, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Name     string `json:"name"`
			Password string `json:"password"`
			Role     string `json:"role"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := accounts.Register(r.Context(), req.Email, strings.TrimSpace(req.Name),
			strings.ToLower(strings.TrimSpace(req.Role)), req.Password)
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		log.InfoContext(r.Context(), "user registered", "user_id", u.ID, "role", u.Role)
		writeJSON(w, http.StatusCreated, u)
	}
}

// GET /admin/users?role=student&status=PENDING
func ListUsersHandler(accounts Accounts, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		out, err := accounts.List(r.Context(),
			strings.ToLower(q.Get("role")), strings.ToUpper(q.Get("status")))
		if err != nil {
			writeError(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
