package exam

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// firstRand always picks the first candidate.
type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

// stepClock advances one second per call.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

var tierKeys = map[Difficulty]Option{Easy: OptionA, Medium: OptionB, Hard: OptionC}

// bank builds perTier questions per difficulty for subject, keyed A/B/C for
// Easy/Medium/Hard.
func bank(subject string, perTier int) []Question {
	var out []Question
	for _, d := range Difficulties {
		for i := 1; i <= perTier; i++ {
			out = append(out, Question{
				ID:            fmt.Sprintf("%s-%s-%02d", subject, d, i),
				Subject:       subject,
				Difficulty:    d,
				Topic:         fmt.Sprintf("%s topic %d", d, i),
				Content:       fmt.Sprintf("%s question %d about %s", d, i, subject),
				OptionA:       "first",
				OptionB:       "second",
				OptionC:       "third",
				OptionD:       "fourth",
				CorrectOption: tierKeys[d],
			})
		}
	}
	return out
}

// answerFor returns the right tag for q when correct, otherwise a wrong one.
func answerFor(q PublicQuestion, correct bool) string {
	key := tierKeys[q.Difficulty]
	if correct {
		return string(key)
	}
	if key == OptionD {
		return string(OptionA)
	}
	return string(OptionD)
}

type fixture struct {
	store *MemoryStore
	svc   *Service
	clock *stepClock
}

func newFixture(t *testing.T, perTier int, opts ...ServiceOption) *fixture {
	t.Helper()
	store := NewMemoryStore()
	_, _, err := store.PutQuestions(context.Background(), append(bank("Science", perTier), bank("Mathematics", perTier)...))
	require.NoError(t, err)
	store.PutUser(User{ID: "stu-1", Name: "Arjun", Role: "student"})
	store.PutUser(User{ID: "stu-2", Name: "Meera", Role: "student"})

	clock := newStepClock()
	opts = append([]ServiceOption{WithRand(firstRand{}), WithClock(clock.Now)}, opts...)
	return &fixture{store: store, svc: NewService(store, store, store, opts...), clock: clock}
}

// ledger reads the committed responses of a session.
func ledger(t *testing.T, tr Transactor, sessionID string) []Response {
	t.Helper()
	var out []Response
	require.NoError(t, tr.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		out, err = tx.Responses.FindBySession(context.Background(), sessionID)
		return err
	}))
	return out
}

func stored(t *testing.T, tr Transactor, sessionID string) Session {
	t.Helper()
	var s Session
	require.NoError(t, tr.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		s, err = tx.Sessions.FindByID(context.Background(), sessionID)
		return err
	}))
	return s
}
