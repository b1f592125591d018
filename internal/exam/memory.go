package exam

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	syncx "github.com/parakh/adaptive-exam/internal/sync"
)

// MemoryStore keeps every collaborator in process memory. Tests run the
// engine against it.
type MemoryStore struct {
	qmu       sync.RWMutex
	questions map[string]Question
	qorder    []string

	umu   sync.RWMutex
	users map[string]User

	// mu is held for the whole of a transaction.
	mu        sync.Mutex
	sessions  map[string]Session
	responses map[string][]Response
	events    []syncx.Event
	eventSeq  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		questions: map[string]Question{},
		users:     map[string]User{},
		sessions:  map[string]Session{},
		responses: map[string][]Response{},
	}
}

func (m *MemoryStore) PutQuestions(_ context.Context, qs []Question) (inserted, updated int, err error) {
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = uuid.NewString()
		}
		if err := qs[i].Validate(); err != nil {
			return 0, 0, err
		}
	}
	m.qmu.Lock()
	defer m.qmu.Unlock()
	for _, q := range qs {
		if _, ok := m.questions[q.ID]; ok {
			updated++
		} else {
			inserted++
			m.qorder = append(m.qorder, q.ID)
		}
		m.questions[q.ID] = q
	}
	return inserted, updated, nil
}

func (m *MemoryStore) FindQuestion(_ context.Context, id string) (Question, error) {
	m.qmu.RLock()
	defer m.qmu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (m *MemoryStore) FindBySubject(_ context.Context, subject string) ([]Question, error) {
	return m.filter(func(q Question) bool { return q.Subject == subject }), nil
}

func (m *MemoryStore) FindBySubjectAndDifficulty(_ context.Context, subject string, d Difficulty) ([]Question, error) {
	return m.filter(func(q Question) bool { return q.Subject == subject && q.Difficulty == d }), nil
}

func (m *MemoryStore) filter(keep func(Question) bool) []Question {
	m.qmu.RLock()
	defer m.qmu.RUnlock()
	var out []Question
	for _, id := range m.qorder {
		if q := m.questions[id]; keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func (m *MemoryStore) PutUser(u User) {
	m.umu.Lock()
	defer m.umu.Unlock()
	m.users[u.ID] = u
}

func (m *MemoryStore) FindUser(_ context.Context, id string) (User, error) {
	m.umu.RLock()
	defer m.umu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// Events returns the events recorded for key, oldest first.
func (m *MemoryStore) Events(key string) []syncx.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []syncx.Event
	for _, e := range m.events {
		if e.Key == key {
			out = append(out, e)
		}
	}
	return out
}

// WithinTx stages writes and applies them only when fn succeeds.
func (m *MemoryStore) WithinTx(_ context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := &memTx{
		m:         m,
		sessions:  map[string]Session{},
		responses: map[string][]Response{},
	}
	if err := fn(Tx{Sessions: memSessions{t}, Responses: memResponses{t}, Events: memEvents{t}}); err != nil {
		return err
	}

	for id, s := range t.sessions {
		m.sessions[id] = s
	}
	for id, rs := range t.responses {
		m.responses[id] = append(m.responses[id], rs...)
	}
	for _, e := range t.events {
		m.eventSeq++
		e.Seq = m.eventSeq
		m.events = append(m.events, e)
	}
	return nil
}

type memTx struct {
	m         *MemoryStore
	sessions  map[string]Session
	responses map[string][]Response
	events    []syncx.Event
}

func (t *memTx) session(id string) (Session, bool) {
	if s, ok := t.sessions[id]; ok {
		return s, true
	}
	s, ok := t.m.sessions[id]
	return s, ok
}

func (t *memTx) allSessions() []Session {
	out := make([]Session, 0, len(t.m.sessions)+len(t.sessions))
	for id, s := range t.m.sessions {
		if _, staged := t.sessions[id]; !staged {
			out = append(out, s)
		}
	}
	for _, s := range t.sessions {
		out = append(out, s)
	}
	return out
}

type memSessions struct{ t *memTx }

func (s memSessions) Create(_ context.Context, sess Session) (Session, error) {
	if _, ok := s.t.session(sess.ID); ok {
		return Session{}, fmt.Errorf("session %q exists: %w", sess.ID, ErrInvalidInput)
	}
	if sess.Status == StatusInProgress {
		for _, other := range s.t.allSessions() {
			if other.Status == StatusInProgress && other.UserID == sess.UserID && other.Subject == sess.Subject {
				return Session{}, ErrAlreadyInProgress
			}
		}
	}
	sess.Version = 1
	s.t.sessions[sess.ID] = sess
	return sess, nil
}

func (s memSessions) FindByID(_ context.Context, id string) (Session, error) {
	sess, ok := s.t.session(id)
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (s memSessions) Update(_ context.Context, sess Session) (Session, error) {
	cur, ok := s.t.session(sess.ID)
	if !ok {
		return Session{}, ErrNotFound
	}
	if cur.Version != sess.Version {
		return Session{}, ErrConflict
	}
	sess.Version++
	s.t.sessions[sess.ID] = sess
	return sess, nil
}

func (s memSessions) FindActive(_ context.Context, userID, subject string) (Session, error) {
	for _, sess := range s.t.allSessions() {
		if sess.Status == StatusInProgress && sess.UserID == userID && sess.Subject == subject {
			return sess, nil
		}
	}
	return Session{}, ErrNotFound
}

func (s memSessions) ListByUser(_ context.Context, userID string) ([]Session, error) {
	var out []Session
	for _, sess := range s.t.allSessions() {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type memResponses struct{ t *memTx }

func (r memResponses) FindBySession(_ context.Context, sessionID string) ([]Response, error) {
	committed := r.t.m.responses[sessionID]
	staged := r.t.responses[sessionID]
	out := make([]Response, 0, len(committed)+len(staged))
	out = append(out, committed...)
	return append(out, staged...), nil
}

func (r memResponses) Append(ctx context.Context, resp Response) error {
	if _, ok := r.t.session(resp.SessionID); !ok {
		return ErrNotFound
	}
	existing, _ := r.FindBySession(ctx, resp.SessionID)
	for _, e := range existing {
		if e.QuestionID == resp.QuestionID {
			return ErrAlreadyAnswered
		}
	}
	if resp.AnsweredAt.IsZero() {
		resp.AnsweredAt = time.Now().UTC()
	}
	r.t.responses[resp.SessionID] = append(r.t.responses[resp.SessionID], resp)
	return nil
}

type memEvents struct{ t *memTx }

func (e memEvents) Append(_ context.Context, ev syncx.Event) error {
	if ev.SiteID == "" {
		ev.SiteID = "local"
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = time.Now().Unix()
	}
	e.t.events = append(e.t.events, ev)
	return nil
}
