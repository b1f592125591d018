package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/parakh/adaptive-exam/internal/db"
	"github.com/parakh/adaptive-exam/internal/exam"
)

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"

	StatusApproved = "APPROVED"
	StatusPending  = "PENDING"
	StatusRejected = "REJECTED"
)

// bcryptCost matches the cost used for imported passwords.
const bcryptCost = 12

var (
	ErrBadCredentials = errors.New("invalid credentials")
	ErrNotApproved    = errors.New("account not approved")
	ErrEmailTaken     = errors.New("email already registered")
	ErrLastAdmin      = errors.New("cannot demote the last admin")
)

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func validRole(r string) bool {
	return r == RoleStudent || r == RoleTeacher || r == RoleAdmin
}

func validStatus(s string) bool {
	return s == StatusApproved || s == StatusPending || s == StatusRejected
}

// SQLStore is the user directory on the users table.
type SQLStore struct {
	db   *sql.DB
	cost int
}

func NewSQLStore(dbh *sql.DB) *SQLStore { return &SQLStore{db: dbh, cost: bcryptCost} }

// WithCost returns a copy hashing with cost; tests use bcrypt.MinCost.
func (s *SQLStore) WithCost(cost int) *SQLStore {
	return &SQLStore{db: s.db, cost: cost}
}

const userCols = `id,email,name,role,status,password_hash,created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	var created int64
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Status, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, exam.ErrNotFound
		}
		return User{}, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	return u, nil
}

func (s *SQLStore) ByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
}

func (s *SQLStore) ByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email=$1`, strings.ToLower(strings.TrimSpace(email))))
}

// FindUser makes SQLStore an exam.Directory.
func (s *SQLStore) FindUser(ctx context.Context, id string) (exam.User, error) {
	u, err := s.ByID(ctx, id)
	if err != nil {
		return exam.User{}, err
	}
	return exam.User{ID: u.ID, Name: u.Name, Role: u.Role}, nil
}

// Upsert inserts or updates u keyed by id. A non-empty password replaces the
// stored hash; new users need one. An email held by another account yields
// ErrEmailTaken.
func (s *SQLStore) Upsert(ctx context.Context, u User, password string) (User, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Email == "" {
		return User{}, fmt.Errorf("email required: %w", exam.ErrInvalidInput)
	}
	if u.Role == "" {
		u.Role = RoleStudent
	}
	if !validRole(u.Role) {
		return User{}, fmt.Errorf("invalid role %q: %w", u.Role, exam.ErrInvalidInput)
	}
	if u.Status == "" {
		u.Status = StatusApproved
	}
	if !validStatus(u.Status) {
		return User{}, fmt.Errorf("invalid status %q: %w", u.Status, exam.ErrInvalidInput)
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}

	var phash string
	if password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
		if err != nil {
			return User{}, err
		}
		phash = string(b)
	}

	existing, err := s.ByID(ctx, u.ID)
	switch {
	case err == nil:
		if phash == "" {
			phash = existing.PasswordHash
		}
		_, err = s.db.ExecContext(ctx,
			`UPDATE users SET email=$1, name=$2, role=$3, status=$4, password_hash=$5 WHERE id=$6`,
			u.Email, u.Name, u.Role, u.Status, phash, u.ID)
		u.CreatedAt = existing.CreatedAt
	case errors.Is(err, exam.ErrNotFound):
		if phash == "" {
			return User{}, fmt.Errorf("password required for new user %s: %w", u.Email, exam.ErrInvalidInput)
		}
		u.CreatedAt = time.Now().UTC().Truncate(time.Second)
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO users (`+userCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			u.ID, u.Email, u.Name, u.Role, u.Status, phash, u.CreatedAt.Unix())
	}
	if constraint, dup := db.UniqueViolation(err); dup && strings.Contains(constraint, "email") {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	u.PasswordHash = phash
	return u, nil
}

// Authenticate checks email and password. Unknown emails and wrong passwords
// both yield ErrBadCredentials.
func (s *SQLStore) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := s.ByEmail(ctx, email)
	if errors.Is(err, exam.ErrNotFound) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	if u.Status != StatusApproved {
		return User{}, ErrNotApproved
	}
	return u, nil
}

// Register creates a PENDING account. Admin accounts cannot self-register.
func (s *SQLStore) Register(ctx context.Context, email, name, role, password string) (User, error) {
	if role == "" {
		role = RoleStudent
	}
	if role != RoleStudent && role != RoleTeacher {
		return User{}, fmt.Errorf("role %q cannot self-register: %w", role, exam.ErrInvalidInput)
	}
	if password == "" {
		return User{}, fmt.Errorf("password required: %w", exam.ErrInvalidInput)
	}
	_, err := s.ByEmail(ctx, email)
	switch {
	case err == nil:
		return User{}, ErrEmailTaken
	case !errors.Is(err, exam.ErrNotFound):
		return User{}, err
	}
	return s.Upsert(ctx, User{Email: email, Name: name, Role: role, Status: StatusPending}, password)
}

// List returns users ordered by email; empty filters match everything.
func (s *SQLStore) List(ctx context.Context, role, status string) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userCols+` FROM users
		WHERE ($1 = '' OR role = $2) AND ($3 = '' OR status = $4) ORDER BY email`, role, role, status, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetStatus approves, rejects or suspends an account.
func (s *SQLStore) SetStatus(ctx context.Context, id, status string) error {
	if !validStatus(status) {
		return fmt.Errorf("invalid status %q: %w", status, exam.ErrInvalidInput)
	}
	return s.exec1(ctx, `UPDATE users SET status=$1 WHERE id=$2`, status, id)
}

// SetRole changes a role, refusing to demote the last admin.
func (s *SQLStore) SetRole(ctx context.Context, id, role string) error {
	if !validRole(role) {
		return fmt.Errorf("invalid role %q: %w", role, exam.ErrInvalidInput)
	}
	u, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == RoleAdmin && role != RoleAdmin {
		var admins int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users WHERE role=$1`, RoleAdmin).Scan(&admins); err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}
	return s.exec1(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
}

// ChangePassword replaces the hash after checking the old password.
func (s *SQLStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return fmt.Errorf("new password required: %w", exam.ErrInvalidInput)
	}
	u, err := s.ByID(ctx, id)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cost)
	if err != nil {
		return err
	}
	return s.exec1(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), id)
}

// exec1 runs an update that must touch exactly one row.
func (s *SQLStore) exec1(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return exam.ErrNotFound
	}
	return nil
}
