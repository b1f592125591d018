// Package seed loads the demo question bank and demo accounts.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/parakh/adaptive-exam/internal/exam"
	"github.com/parakh/adaptive-exam/internal/users"
)

// Subjects seeded by Questions.
var Subjects = []string{"Science", "Mathematics"}

// PerTier is the number of questions seeded per subject and difficulty.
const PerTier = 5

// DemoPassword is shared by every demo account.
const DemoPassword = "password"

var tiers = []struct {
	d       exam.Difficulty
	topic   string
	correct exam.Option
}{
	{exam.Easy, "Basic Concept", exam.OptionA},
	{exam.Medium, "Intermediate Concept", exam.OptionB},
	{exam.Hard, "Advanced Concept", exam.OptionC},
}

// Questions returns the demo bank. Ids are stable so seeding twice updates
// rather than duplicates.
func Questions() []exam.Question {
	var out []exam.Question
	for _, subject := range Subjects {
		for _, t := range tiers {
			for i := 1; i <= PerTier; i++ {
				topic := fmt.Sprintf("%s %d", t.topic, i)
				out = append(out, exam.Question{
					ID:            fmt.Sprintf("%s-%s-%d", strings.ToLower(subject), strings.ToLower(string(t.d)), i),
					Subject:       subject,
					Difficulty:    t.d,
					Topic:         topic,
					Content:       fmt.Sprintf("This is a %s question about %s in %s.", t.d, topic, subject),
					OptionA:       "Option A Value",
					OptionB:       "Option B Value",
					OptionC:       "Option C Value",
					OptionD:       "Option D Value",
					CorrectOption: t.correct,
				})
			}
		}
	}
	return out
}

// Users returns the demo accounts, all APPROVED. Ids derive from the email.
func Users() []users.User {
	mk := func(email, name, role string) users.User {
		return users.User{
			ID:     uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+email)).String(),
			Email:  email,
			Name:   name,
			Role:   role,
			Status: users.StatusApproved,
		}
	}
	return []users.User{
		mk("student@parakh.com", "Arjun Student", users.RoleStudent),
		mk("teacher@parakh.com", "Priya Teacher", users.RoleTeacher),
		mk("admin@parakh.com", "PR Admin", users.RoleAdmin),
	}
}

type UserWriter interface {
	Upsert(ctx context.Context, u users.User, password string) (users.User, error)
}

type Result struct {
	QuestionsInserted int
	QuestionsUpdated  int
	Users             int
}

// Run upserts the demo bank and, when uw is non-nil, the demo accounts.
func Run(ctx context.Context, qa exam.QuestionAdmin, uw UserWriter, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var res Result
	var err error
	res.QuestionsInserted, res.QuestionsUpdated, err = qa.PutQuestions(ctx, Questions())
	if err != nil {
		return res, fmt.Errorf("seed questions: %w", err)
	}
	if uw != nil {
		for _, u := range Users() {
			if _, err := uw.Upsert(ctx, u, DemoPassword); err != nil {
				return res, fmt.Errorf("seed user %s: %w", u.Email, err)
			}
			res.Users++
		}
	}
	log.Info("seeded",
		"questions_inserted", res.QuestionsInserted,
		"questions_updated", res.QuestionsUpdated,
		"users", res.Users)
	return res, nil
}
