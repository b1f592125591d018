package exam

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	syncx "github.com/parakh/adaptive-exam/internal/sync"
)

// DefaultMaxQuestions is the session length limit.
const DefaultMaxQuestions = 10

// Service is the exam session state machine. A session is IN_PROGRESS from
// Start until it has DefaultMaxQuestions responses or its subject runs out of
// unanswered questions, then COMPLETED for good.
type Service struct {
	questions QuestionPool
	users     Directory
	tx        Transactor
	selector  *Selector

	sessionLocks *keyedMutex
	startLocks   *keyedMutex

	log          *slog.Logger
	now          func() time.Time
	newID        func() string
	maxQuestions int
	rnd          Rand
}

type ServiceOption func(*Service)

func WithLogger(l *slog.Logger) ServiceOption { return func(s *Service) { s.log = l } }
func WithRand(r Rand) ServiceOption           { return func(s *Service) { s.rnd = r } }
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}
func WithIDs(newID func() string) ServiceOption { return func(s *Service) { s.newID = newID } }

// WithMaxQuestions overrides the session length; values below 1 are ignored.
func WithMaxQuestions(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxQuestions = n
		}
	}
}

func NewService(questions QuestionPool, users Directory, tx Transactor, opts ...ServiceOption) *Service {
	s := &Service{
		questions:    questions,
		users:        users,
		tx:           tx,
		sessionLocks: newKeyedMutex(),
		startLocks:   newKeyedMutex(),
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:          time.Now,
		newID:        uuid.NewString,
		maxQuestions: DefaultMaxQuestions,
	}
	for _, o := range opts {
		o(s)
	}
	s.selector = NewSelector(questions, s.rnd)
	return s
}

// Start opens a session for (userID, subject) at Medium difficulty and
// returns the first question, or a completed state if the subject is empty.
func (s *Service) Start(ctx context.Context, userID, subject string) (SessionState, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return SessionState{}, fmt.Errorf("subject required: %w", ErrInvalidInput)
	}
	if _, err := s.users.FindUser(ctx, userID); err != nil {
		return SessionState{}, fmt.Errorf("user %q: %w", userID, err)
	}

	unlock := s.startLocks.Lock(userID + "\x00" + subject)
	defer unlock()

	var state SessionState
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		_, err := tx.Sessions.FindActive(ctx, userID, subject)
		switch {
		case err == nil:
			return ErrAlreadyInProgress
		case !errors.Is(err, ErrNotFound):
			return fmt.Errorf("find active session: %w", err)
		}

		sess, err := tx.Sessions.Create(ctx, Session{
			ID:         s.newID(),
			UserID:     userID,
			Subject:    subject,
			Status:     StatusInProgress,
			Difficulty: Medium,
			StartedAt:  s.now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if err := s.emit(ctx, tx, syncx.TypeExamStarted, sess); err != nil {
			return err
		}
		state, err = s.advance(ctx, tx, sess, nil)
		return err
	})
	if err != nil {
		return SessionState{}, err
	}
	s.log.Info("exam started", "session_id", state.SessionID, "user_id", userID, "subject", subject)
	return state, nil
}

// Submit records an answer, rescores, retunes difficulty and moves the session
// on. The session and question are checked before the option, and nothing is
// persisted when it returns an error.
func (s *Service) Submit(ctx context.Context, a Answer) (SessionState, error) {
	if a.TimeTaken < 0 {
		a.TimeTaken = 0
	}

	unlock := s.sessionLocks.Lock(a.SessionID)
	defer unlock()

	var (
		state   SessionState
		correct bool
		tier    Difficulty
	)
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		sess, err := tx.Sessions.FindByID(ctx, a.SessionID)
		if err != nil {
			return fmt.Errorf("session %q: %w", a.SessionID, err)
		}
		q, err := s.questions.FindQuestion(ctx, a.QuestionID)
		if err != nil {
			return fmt.Errorf("question %q: %w", a.QuestionID, err)
		}
		if sess.Status != StatusInProgress {
			return fmt.Errorf("exam already completed: %w", ErrInvalidState)
		}
		if q.Subject != sess.Subject {
			return ErrQuestionNotInExam
		}
		selected, err := ParseOption(a.Selected)
		if err != nil {
			return err
		}

		responses, err := tx.Responses.FindBySession(ctx, sess.ID)
		if err != nil {
			return fmt.Errorf("load responses: %w", err)
		}
		if len(responses) >= s.maxQuestions {
			return fmt.Errorf("exam has %d answers: %w", len(responses), ErrInvalidState)
		}
		for _, r := range responses {
			if r.QuestionID == q.ID {
				return ErrAlreadyAnswered
			}
		}

		correct = selected == q.CorrectOption
		resp := Response{
			ID:         s.newID(),
			SessionID:  sess.ID,
			QuestionID: q.ID,
			Seq:        len(responses) + 1,
			Selected:   selected,
			Correct:    correct,
			Difficulty: q.Difficulty,
			TimeTaken:  a.TimeTaken,
			AnsweredAt: s.now().UTC(),
		}
		if err := tx.Responses.Append(ctx, resp); err != nil {
			return fmt.Errorf("append response: %w", err)
		}

		if correct {
			sess.Score++
		}
		sess.Difficulty = AdjustDifficulty(sess.Difficulty, correct)
		tier = sess.Difficulty

		state, err = s.advance(ctx, tx, sess, append(responses, resp))
		return err
	})
	if err != nil {
		return SessionState{}, err
	}
	s.log.Debug("answer recorded",
		"session_id", a.SessionID, "question_id", a.QuestionID,
		"correct", correct, "difficulty", tier, "answered", state.Answered)
	return state, nil
}

// advance applies the completion rules and picks the next question, then
// persists sess.
func (s *Service) advance(ctx context.Context, tx Tx, sess Session, responses []Response) (SessionState, error) {
	var next *PublicQuestion

	if len(responses) >= s.maxQuestions {
		s.complete(&sess, EndLimitReached)
	} else {
		answered := make(map[string]bool, len(responses))
		for _, r := range responses {
			answered[r.QuestionID] = true
		}
		q, ok, err := s.selector.NextQuestion(ctx, sess, answered)
		if err != nil {
			return SessionState{}, err
		}
		if ok {
			next = &q
			sess.CurrentQuestionID = q.ID
		} else {
			s.complete(&sess, EndPoolExhausted)
		}
	}

	sess, err := tx.Sessions.Update(ctx, sess)
	if err != nil {
		return SessionState{}, fmt.Errorf("update session: %w", err)
	}
	if sess.Completed() {
		if err := s.emit(ctx, tx, syncx.TypeExamCompleted, sess); err != nil {
			return SessionState{}, err
		}
		s.log.Info("exam completed",
			"session_id", sess.ID, "reason", sess.EndReason,
			"score", sess.Score, "answered", len(responses))
	}

	return SessionState{
		SessionID:    sess.ID,
		NextQuestion: next,
		Completed:    sess.Completed(),
		Score:        sess.Score,
		Answered:     len(responses),
	}, nil
}

func (s *Service) complete(sess *Session, reason EndReason) {
	end := s.now().UTC()
	sess.Status = StatusCompleted
	sess.EndReason = reason
	sess.EndedAt = &end
	sess.CurrentQuestionID = ""
}

type sessionEvent struct {
	UserID     string     `json:"user_id"`
	Subject    string     `json:"subject"`
	Status     Status     `json:"status"`
	Score      int        `json:"score"`
	Difficulty Difficulty `json:"difficulty"`
	EndReason  EndReason  `json:"end_reason,omitempty"`
}

func (s *Service) emit(ctx context.Context, tx Tx, typ string, sess Session) error {
	if tx.Events == nil {
		return nil
	}
	e, err := syncx.NewEvent(typ, sess.ID, sessionEvent{
		UserID:     sess.UserID,
		Subject:    sess.Subject,
		Status:     sess.Status,
		Score:      sess.Score,
		Difficulty: sess.Difficulty,
		EndReason:  sess.EndReason,
	})
	if err != nil {
		return err
	}
	if err := tx.Events.Append(ctx, e); err != nil {
		return fmt.Errorf("append %s event: %w", typ, err)
	}
	return nil
}

// State re-reads a session without changing it. The question shown is the one
// presented last, not a fresh draw.
func (s *Service) State(ctx context.Context, sessionID string) (SessionState, error) {
	var state SessionState
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		sess, err := tx.Sessions.FindByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("session %q: %w", sessionID, err)
		}
		responses, err := tx.Responses.FindBySession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load responses: %w", err)
		}
		state = SessionState{
			SessionID: sess.ID,
			Completed: sess.Completed(),
			Score:     sess.Score,
			Answered:  len(responses),
		}
		if !sess.Completed() && sess.CurrentQuestionID != "" {
			q, err := s.questions.FindQuestion(ctx, sess.CurrentQuestionID)
			if err != nil {
				return fmt.Errorf("current question: %w", err)
			}
			pq := q.Public()
			state.NextQuestion = &pq
		}
		return nil
	})
	return state, err
}

// Session returns the stored record, used by the transport for ownership checks.
func (s *Service) Session(ctx context.Context, sessionID string) (Session, error) {
	var sess Session
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		var err error
		sess, err = tx.Sessions.FindByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("session %q: %w", sessionID, err)
		}
		return nil
	})
	return sess, err
}

// History lists a user's sessions, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]Session, error) {
	var out []Session
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		var err error
		out, err = tx.Sessions.ListByUser(ctx, userID)
		return err
	})
	return out, err
}
