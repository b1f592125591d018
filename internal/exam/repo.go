package exam

import (
	"context"

	syncx "github.com/parakh/adaptive-exam/internal/sync"
)

// QuestionPool is read-only from the engine's point of view.
type QuestionPool interface {
	FindQuestion(ctx context.Context, id string) (Question, error)
	FindBySubject(ctx context.Context, subject string) ([]Question, error)
	FindBySubjectAndDifficulty(ctx context.Context, subject string, d Difficulty) ([]Question, error)
}

// ResponseLedger is append-only; one Response per (session, question).
type ResponseLedger interface {
	FindBySession(ctx context.Context, sessionID string) ([]Response, error)
	Append(ctx context.Context, r Response) error
}

type SessionStore interface {
	Create(ctx context.Context, s Session) (Session, error)
	FindByID(ctx context.Context, id string) (Session, error)
	// Update persists s if its Version still matches the stored one and
	// returns it with the bumped version; ErrConflict otherwise.
	Update(ctx context.Context, s Session) (Session, error)
	// FindActive returns the IN_PROGRESS session for (user, subject) or ErrNotFound.
	FindActive(ctx context.Context, userID, subject string) (Session, error)
	ListByUser(ctx context.Context, userID string) ([]Session, error)
}

// Directory resolves users; unknown ids yield ErrNotFound.
type Directory interface {
	FindUser(ctx context.Context, id string) (User, error)
}

type EventLog interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Tx groups the writable collaborators bound to one unit of work.
type Tx struct {
	Sessions  SessionStore
	Responses ResponseLedger
	Events    EventLog
}

// Transactor runs fn atomically: either every write made through tx is
// kept, or none is.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// QuestionAdmin is the write side of the pool, used by imports and seeding.
type QuestionAdmin interface {
	PutQuestions(ctx context.Context, qs []Question) (inserted, updated int, err error)
}
