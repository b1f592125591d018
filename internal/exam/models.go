package exam

import (
	"fmt"
	"strings"
	"time"
)

type Difficulty string

const (
	Easy   Difficulty = "Easy"
	Medium Difficulty = "Medium"
	Hard   Difficulty = "Hard"
)

// Difficulties lists the tiers from easiest to hardest.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// ParseDifficulty accepts any casing ("easy", "EASY", "Easy").
func ParseDifficulty(s string) (Difficulty, error) {
	for _, d := range Difficulties {
		if strings.EqualFold(strings.TrimSpace(s), string(d)) {
			return d, nil
		}
	}
	return "", fmt.Errorf("difficulty %q: %w", s, ErrInvalidInput)
}

func (d Difficulty) Valid() bool {
	return d == Easy || d == Medium || d == Hard
}

// Harder returns the next tier up; Hard is the ceiling.
func (d Difficulty) Harder() Difficulty {
	switch d {
	case Easy:
		return Medium
	case Medium, Hard:
		return Hard
	}
	return Medium
}

// Easier returns the next tier down; Easy is the floor.
func (d Difficulty) Easier() Difficulty {
	switch d {
	case Hard:
		return Medium
	case Medium, Easy:
		return Easy
	}
	return Medium
}

// Option is one of the four answer tags A-D.
type Option string

const (
	OptionA Option = "A"
	OptionB Option = "B"
	OptionC Option = "C"
	OptionD Option = "D"
)

// ParseOption normalizes a tag ("b", " B ") and rejects anything outside A-D.
func ParseOption(s string) (Option, error) {
	o := Option(strings.ToUpper(strings.TrimSpace(s)))
	switch o {
	case OptionA, OptionB, OptionC, OptionD:
		return o, nil
	}
	return "", fmt.Errorf("option %q: %w", s, ErrInvalidOption)
}

// Question is the full pool record, answer key included. It never leaves the
// package boundary towards students; see PublicQuestion.
type Question struct {
	ID            string     `json:"id"`
	Subject       string     `json:"subject"`
	Difficulty    Difficulty `json:"difficulty"`
	Topic         string     `json:"topic"`
	Content       string     `json:"content"`
	OptionA       string     `json:"option_a"`
	OptionB       string     `json:"option_b"`
	OptionC       string     `json:"option_c"`
	OptionD       string     `json:"option_d"`
	CorrectOption Option     `json:"correct_option"`
}

// PublicQuestion is the masked projection handed to callers.
type PublicQuestion struct {
	ID         string     `json:"id"`
	Subject    string     `json:"subject"`
	Difficulty Difficulty `json:"difficulty"`
	Topic      string     `json:"topic"`
	Content    string     `json:"content"`
	OptionA    string     `json:"option_a"`
	OptionB    string     `json:"option_b"`
	OptionC    string     `json:"option_c"`
	OptionD    string     `json:"option_d"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Subject:    q.Subject,
		Difficulty: q.Difficulty,
		Topic:      q.Topic,
		Content:    q.Content,
		OptionA:    q.OptionA,
		OptionB:    q.OptionB,
		OptionC:    q.OptionC,
		OptionD:    q.OptionD,
	}
}

// Validate checks the fields a pool record must carry before it is stored.
func (q Question) Validate() error {
	switch {
	case strings.TrimSpace(q.Subject) == "":
		return fmt.Errorf("question %q: subject required: %w", q.ID, ErrInvalidInput)
	case strings.TrimSpace(q.Content) == "":
		return fmt.Errorf("question %q: content required: %w", q.ID, ErrInvalidInput)
	case !q.Difficulty.Valid():
		return fmt.Errorf("question %q: difficulty %q: %w", q.ID, q.Difficulty, ErrInvalidInput)
	}
	if _, err := ParseOption(string(q.CorrectOption)); err != nil {
		return fmt.Errorf("question %q: %w", q.ID, err)
	}
	return nil
}

type Status string

const (
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// EndReason records which of the two terminal transitions closed a session.
type EndReason string

const (
	EndNone          EndReason = ""
	EndLimitReached  EndReason = "limit"
	EndPoolExhausted EndReason = "exhausted"
)

// Session is one student's attempt at an adaptive exam for a subject.
type Session struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Subject           string     `json:"subject"`
	Status            Status     `json:"status"`
	Difficulty        Difficulty `json:"difficulty"`
	Score             int        `json:"score"`
	CurrentQuestionID string     `json:"current_question_id,omitempty"`
	EndReason         EndReason  `json:"end_reason,omitempty"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	Version           int64      `json:"-"`
}

func (s Session) Completed() bool { return s.Status == StatusCompleted }

// Response is one answered question. Append-only.
type Response struct {
	ID         string        `json:"id"`
	SessionID  string        `json:"session_id"`
	QuestionID string        `json:"question_id"`
	Seq        int           `json:"seq"` // 1-based position within the session
	Selected   Option        `json:"selected_option"`
	Correct    bool          `json:"correct"`
	Difficulty Difficulty    `json:"difficulty"`
	TimeTaken  time.Duration `json:"-"`
	AnsweredAt time.Time     `json:"answered_at"`
}

// User is the slice of identity the engine needs.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Answer is the input to Submit. TimeTaken is optional.
type Answer struct {
	SessionID  string
	QuestionID string
	Selected   string
	TimeTaken  time.Duration
}

// SessionState is what the transport layer serializes after every operation.
type SessionState struct {
	SessionID    string          `json:"session_id"`
	NextQuestion *PublicQuestion `json:"next_question,omitempty"`
	Completed    bool            `json:"completed"`
	Score        int             `json:"score"`
	Answered     int             `json:"answered"`
}
