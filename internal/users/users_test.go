package users

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/parakh/adaptive-exam/internal/db"
	"github.com/parakh/adaptive-exam/internal/exam"
)

func newStore(t *testing.T) *SQLStore {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "users.db") + "?_pragma=busy_timeout(5000)"
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { dbh.Close() })
	return NewSQLStore(dbh).WithCost(bcrypt.MinCost)
}

func TestUpsertAndAuthenticate(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Upsert(ctx, User{Email: " Student@Parakh.com ", Name: "Arjun"}, "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "student@parakh.com", u.Email)
	assert.Equal(t, RoleStudent, u.Role)
	assert.Equal(t, StatusApproved, u.Status)

	got, err := s.Authenticate(ctx, "STUDENT@parakh.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = s.Authenticate(ctx, "student@parakh.com", "wrong")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = s.Authenticate(ctx, "nobody@parakh.com", "secret")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestUpsertUpdatesAndKeepsPassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Upsert(ctx, User{ID: "u1", Email: "t@parakh.com", Name: "Priya", Role: RoleTeacher}, "pw")
	require.NoError(t, err)

	u.Name = "Priya R"
	u.Role = RoleAdmin
	_, err = s.Upsert(ctx, u, "")
	require.NoError(t, err)

	got, err := s.Authenticate(ctx, "t@parakh.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Priya R", got.Name)
	assert.Equal(t, RoleAdmin, got.Role)
}

func TestUpsertRejectsBadInput(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, User{Email: "x@parakh.com", Role: "janitor"}, "pw")
	assert.ErrorIs(t, err, exam.ErrInvalidInput)
	_, err = s.Upsert(ctx, User{Email: ""}, "pw")
	assert.ErrorIs(t, err, exam.ErrInvalidInput)
	_, err = s.Upsert(ctx, User{Email: "new@parakh.com"}, "")
	assert.ErrorIs(t, err, exam.ErrInvalidInput)
}

func TestPendingUserCannotLogIn(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, User{Email: "p@parakh.com", Status: StatusPending}, "pw")
	require.NoError(t, err)

	_, err = s.Authenticate(ctx, "p@parakh.com", "pw")
	assert.ErrorIs(t, err, ErrNotApproved)
	_, err = s.Authenticate(ctx, "p@parakh.com", "nope")
	assert.ErrorIs(t, err, ErrBadCredentials)
}

func TestFindUserIsDirectory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Upsert(ctx, User{ID: "u9", Email: "d@parakh.com", Name: "Dev"}, "pw")
	require.NoError(t, err)

	var dir exam.Directory = s
	u, err := dir.FindUser(ctx, "u9")
	require.NoError(t, err)
	assert.Equal(t, exam.User{ID: "u9", Name: "Dev", Role: RoleStudent}, u)

	_, err = dir.FindUser(ctx, "missing")
	assert.ErrorIs(t, err, exam.ErrNotFound)
}

func TestRegisterCreatesPendingAccount(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "new@parakh.com", "Meera", "", "pw")
	require.NoError(t, err)
	assert.Equal(t, RoleStudent, u.Role)
	assert.Equal(t, StatusPending, u.Status)

	_, err = s.Authenticate(ctx, "new@parakh.com", "pw")
	assert.ErrorIs(t, err, ErrNotApproved)

	_, err = s.Register(ctx, "NEW@parakh.com", "Meera", RoleStudent, "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)
	_, err = s.Register(ctx, "boss@parakh.com", "Boss", RoleAdmin, "pw")
	assert.ErrorIs(t, err, exam.ErrInvalidInput)
	_, err = s.Register(ctx, "empty@parakh.com", "Empty", RoleTeacher, "")
	assert.ErrorIs(t, err, exam.ErrInvalidInput)
}

func TestApproveAndRejectFlow(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Register(ctx, "t1@parakh.com", "Ravi", RoleTeacher, "pw")
	require.NoError(t, err)
	_, err = s.Register(ctx, "s1@parakh.com", "Sita", RoleStudent, "pw")
	require.NoError(t, err)

	pending, err := s.List(ctx, "", StatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	teachers, err := s.List(ctx, RoleTeacher, "")
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	assert.Equal(t, u.ID, teachers[0].ID)

	require.NoError(t, s.SetStatus(ctx, u.ID, StatusApproved))
	got, err := s.Authenticate(ctx, "t1@parakh.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Status)

	require.NoError(t, s.SetStatus(ctx, u.ID, StatusRejected))
	_, err = s.Authenticate(ctx, "t1@parakh.com", "pw")
	assert.ErrorIs(t, err, ErrNotApproved)

	assert.ErrorIs(t, s.SetStatus(ctx, u.ID, "SUSPENDED"), exam.ErrInvalidInput)
	assert.ErrorIs(t, s.SetStatus(ctx, "missing", StatusApproved), exam.ErrNotFound)

	none, err := s.List(ctx, RoleAdmin, "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestSetRoleKeepsLastAdmin(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	a1, err := s.Upsert(ctx, User{Email: "a1@parakh.com", Name: "A1", Role: RoleAdmin}, "pw")
	require.NoError(t, err)
	assert.ErrorIs(t, s.SetRole(ctx, a1.ID, RoleTeacher), ErrLastAdmin)

	a2, err := s.Upsert(ctx, User{Email: "a2@parakh.com", Name: "A2", Role: RoleAdmin}, "pw")
	require.NoError(t, err)
	require.NoError(t, s.SetRole(ctx, a1.ID, RoleTeacher))
	assert.ErrorIs(t, s.SetRole(ctx, a2.ID, RoleStudent), ErrLastAdmin)

	got, err := s.ByID(ctx, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, RoleTeacher, got.Role)

	assert.ErrorIs(t, s.SetRole(ctx, a1.ID, "owner"), exam.ErrInvalidInput)
	assert.ErrorIs(t, s.SetRole(ctx, "missing", RoleStudent), exam.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	u, err := s.Upsert(ctx, User{Email: "p@parakh.com", Name: "P"}, "old")
	require.NoError(t, err)

	assert.ErrorIs(t, s.ChangePassword(ctx, u.ID, "wrong", "new"), ErrBadCredentials)
	assert.ErrorIs(t, s.ChangePassword(ctx, u.ID, "old", ""), exam.ErrInvalidInput)
	require.NoError(t, s.ChangePassword(ctx, u.ID, "old", "new"))

	_, err = s.Authenticate(ctx, "p@parakh.com", "old")
	assert.ErrorIs(t, err, ErrBadCredentials)
	_, err = s.Authenticate(ctx, "p@parakh.com", "new")
	assert.NoError(t, err)
}

func TestEmailCollisionIsEmailTaken(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Upsert(ctx, User{ID: "u1", Email: "dup@parakh.com", Name: "One"}, "pw")
	require.NoError(t, err)
	_, err = s.Upsert(ctx, User{ID: "u2", Email: "DUP@parakh.com", Name: "Two"}, "pw")
	assert.ErrorIs(t, err, ErrEmailTaken)

	other, err := s.Upsert(ctx, User{ID: "u3", Email: "other@parakh.com", Name: "Three"}, "pw")
	require.NoError(t, err)
	other.Email = "dup@parakh.com"
	_, err = s.Upsert(ctx, other, "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestConcurrentRegisterSameEmail(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Register(ctx, "race@parakh.com", "Racer", RoleStudent, "pw")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, ErrEmailTaken)
	}
	assert.Equal(t, 1, ok)
}
