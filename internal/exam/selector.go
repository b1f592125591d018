package exam

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Rand is the randomness the selector draws from. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// Selector picks the next unseen question for a session.
type Selector struct {
	pool QuestionPool

	mu  sync.Mutex // guards rnd; a seeded *rand.Rand is not safe for concurrent use
	rnd Rand
}

// NewSelector uses the process-wide generator when rnd is nil.
func NewSelector(pool QuestionPool, rnd Rand) *Selector {
	if rnd == nil {
		rnd = globalRand{}
	}
	return &Selector{pool: pool, rnd: rnd}
}

// NextQuestion draws uniformly from the questions of the session's subject and
// tier that are not in answered, widening to the whole subject when the tier is
// used up. ok is false once the subject has nothing left.
func (s *Selector) NextQuestion(ctx context.Context, sess Session, answered map[string]bool) (q PublicQuestion, ok bool, err error) {
	candidates, err := s.pool.FindBySubjectAndDifficulty(ctx, sess.Subject, sess.Difficulty)
	if err != nil {
		return PublicQuestion{}, false, fmt.Errorf("questions by difficulty: %w", err)
	}
	available := unanswered(candidates, answered)

	if len(available) == 0 {
		all, err := s.pool.FindBySubject(ctx, sess.Subject)
		if err != nil {
			return PublicQuestion{}, false, fmt.Errorf("questions by subject: %w", err)
		}
		available = unanswered(all, answered)
	}
	if len(available) == 0 {
		return PublicQuestion{}, false, nil
	}

	s.mu.Lock()
	i := s.rnd.IntN(len(available))
	s.mu.Unlock()
	return available[i].Public(), true, nil
}

func unanswered(qs []Question, answered map[string]bool) []Question {
	out := make([]Question, 0, len(qs))
	for _, q := range qs {
		if !answered[q.ID] {
			out = append(out, q)
		}
	}
	return out
}

// AdjustDifficulty moves one tier up on a correct answer and one tier down on
// a wrong one, clamped to Easy..Hard.
func AdjustDifficulty(current Difficulty, correct bool) Difficulty {
	if correct {
		return current.Harder()
	}
	return current.Easier()
}
