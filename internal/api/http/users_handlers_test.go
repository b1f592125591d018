package http

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	auth "github.com/parakh/adaptive-exam/internal/auth/middleware"
	"github.com/parakh/adaptive-exam/internal/db"
	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/users"
)

func newAccountsServer(t *testing.T) (*testServer, *users.SQLStore, users.User) {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "accounts.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })

	store := users.NewSQLStore(dbh).WithCost(bcrypt.MinCost)
	admin, err := store.Upsert(context.Background(),
		users.User{Email: "admin@parakh.com", Name: "Admin", Role: users.RoleAdmin}, "pw")
	require.NoError(t, err)

	a := auth.NewAuthService("test-secret", time.Hour)
	mem := exam.NewMemoryStore()
	h := NewRouter(Deps{
		Exams:     exam.NewService(mem, store, mem),
		Questions: mem,
		Auth:      a,
		Users:     store,
		Accounts:  store,
		RoleDB:    dbh,
	})
	return &testServer{t: t, h: h, auth: a, store: mem}, store, admin
}

func TestRegisterApproveLogin(t *testing.T) {
	s, _, admin := newAccountsServer(t)

	rec := s.do(http.MethodPost, "/auth/register", "", "", map[string]string{
		"email": "ravi@parakh.com", "name": "Ravi", "password": "pw", "role": "Teacher",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	u := decode[users.User](t, rec)
	assert.Equal(t, users.RoleTeacher, u.Role)
	assert.Equal(t, users.StatusPending, u.Status)

	rec = s.do(http.MethodPost, "/auth/register", "", "", map[string]string{
		"email": "ravi@parakh.com", "name": "Ravi", "password": "pw",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/auth/login", "", "", map[string]string{"email": "ravi@parakh.com", "password": "pw"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/admin/users?status=pending", admin.ID, users.RoleAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pending := decode[[]users.User](t, rec)
	require.Len(t, pending, 1)
	assert.Equal(t, u.ID, pending[0].ID)

	rec = s.do(http.MethodPut, "/admin/users/"+u.ID+"/approve", admin.ID, users.RoleAdmin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/auth/login", "", "", map[string]string{"email": "ravi@parakh.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestAdminRoutesNeedAdmin(t *testing.T) {
	s, store, _ := newAccountsServer(t)
	teacher, err := store.Upsert(context.Background(),
		users.User{Email: "t@parakh.com", Name: "T", Role: users.RoleTeacher}, "pw")
	require.NoError(t, err)

	rec := s.do(http.MethodGet, "/admin/users", teacher.ID, users.RoleTeacher, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// the users table wins over a forged admin claim
	rec = s.do(http.MethodGet, "/admin/users", teacher.ID, users.RoleAdmin, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminRoleChange(t *testing.T) {
	s, store, admin := newAccountsServer(t)
	stu, err := store.Upsert(context.Background(),
		users.User{Email: "s@parakh.com", Name: "S"}, "pw")
	require.NoError(t, err)

	rec := s.do(http.MethodPut, "/admin/users/"+stu.ID+"/role", admin.ID, users.RoleAdmin, map[string]string{"role": "teacher"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	got, err := store.ByID(context.Background(), stu.ID)
	require.NoError(t, err)
	assert.Equal(t, users.RoleTeacher, got.Role)

	rec = s.do(http.MethodPut, "/admin/users/"+stu.ID+"/role", admin.ID, users.RoleAdmin, map[string]string{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPut, "/admin/users/"+admin.ID+"/role", admin.ID, users.RoleAdmin, map[string]string{"role": "student"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPut, "/admin/users/nobody/reject", admin.ID, users.RoleAdmin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChangePasswordRoute(t *testing.T) {
	s, store, _ := newAccountsServer(t)
	stu, err := store.Upsert(context.Background(),
		users.User{Email: "s@parakh.com", Name: "S"}, "old")
	require.NoError(t, err)

	rec := s.do(http.MethodPost, "/users/change-password", stu.ID, users.RoleStudent,
		map[string]string{"old_password": "nope", "new_password": "new"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, "/users/change-password", stu.ID, users.RoleStudent,
		map[string]string{"old_password": "old", "new_password": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/users/change-password", stu.ID, users.RoleStudent,
		map[string]string{"old_password": "old", "new_password": "new"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	_, err = store.Authenticate(context.Background(), "s@parakh.com", "new")
	assert.NoError(t, err)
}
