package exam

import (
	"context"
	"fmt"
	"time"
)

// Tally counts answers at one difficulty tier.
type Tally struct {
	Answered int `json:"answered"`
	Correct  int `json:"correct"`
}

type ReportItem struct {
	QuestionID    string     `json:"question_id"`
	Topic         string     `json:"topic"`
	Difficulty    Difficulty `json:"difficulty"`
	Selected      Option     `json:"selected_option"`
	CorrectOption Option     `json:"correct_option"`
	Correct       bool       `json:"correct"`
	TimeTakenSec  int64      `json:"time_taken_seconds"`
}

// Report is the post-exam breakdown. Answer keys appear here only because the
// session is over.
type Report struct {
	Session      Session               `json:"session"`
	Items        []ReportItem          `json:"items"`
	ByDifficulty map[Difficulty]*Tally `json:"by_difficulty"`
	Duration     time.Duration         `json:"-"`
	DurationSec  int64                 `json:"duration_seconds"`
}

// Report builds the breakdown of a COMPLETED session; ErrInvalidState before that.
func (s *Service) Report(ctx context.Context, sessionID string) (Report, error) {
	var (
		sess      Session
		responses []Response
	)
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		var err error
		if sess, err = tx.Sessions.FindByID(ctx, sessionID); err != nil {
			return fmt.Errorf("session %q: %w", sessionID, err)
		}
		if !sess.Completed() {
			return fmt.Errorf("exam still in progress: %w", ErrInvalidState)
		}
		responses, err = tx.Responses.FindBySession(ctx, sessionID)
		return err
	})
	if err != nil {
		return Report{}, err
	}

	rep := Report{
		Session:      sess,
		Items:        make([]ReportItem, 0, len(responses)),
		ByDifficulty: map[Difficulty]*Tally{},
	}
	for _, d := range Difficulties {
		rep.ByDifficulty[d] = &Tally{}
	}
	for _, r := range responses {
		q, err := s.questions.FindQuestion(ctx, r.QuestionID)
		if err != nil {
			return Report{}, fmt.Errorf("question %q: %w", r.QuestionID, err)
		}
		rep.Items = append(rep.Items, ReportItem{
			QuestionID:    q.ID,
			Topic:         q.Topic,
			Difficulty:    r.Difficulty,
			Selected:      r.Selected,
			CorrectOption: q.CorrectOption,
			Correct:       r.Correct,
			TimeTakenSec:  int64(r.TimeTaken / time.Second),
		})
		if t, ok := rep.ByDifficulty[r.Difficulty]; ok {
			t.Answered++
			if r.Correct {
				t.Correct++
			}
		}
	}
	if sess.EndedAt != nil {
		rep.Duration = sess.EndedAt.Sub(sess.StartedAt)
		rep.DurationSec = int64(rep.Duration / time.Second)
	}
	return rep, nil
}
