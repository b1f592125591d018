package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/parakh/adaptive-exam/internal/rbac"
	"github.com/parakh/adaptive-exam/internal/users"
)

// AttachRoleFromDB replaces the token's role with the one stored for the
// subject, so demotions and suspensions apply before the token expires.
// allowClaimFallback=true keeps the claim role when the lookup fails (dev only).
func AttachRoleFromDB(db *sql.DB, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			var role, status string
			err := db.QueryRowContext(ctx,
				`SELECT role, status FROM users WHERE id=$1`, sub,
			).Scan(&role, &status)

			switch {
			case err == nil && status != users.StatusApproved:
				http.Error(w, "forbidden", http.StatusForbidden)
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case allowClaimFallback && claimRole != "" && (err == nil || errors.Is(err, sql.ErrNoRows)):
				next.ServeHTTP(w, r)
			default:
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}
