package exam

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/parakh/adaptive-exam/internal/db"
	syncx "github.com/parakh/adaptive-exam/internal/sync"
)

// SQLStore implements the pool, the ledger and the session store on top of
// database/sql. Queries use $N placeholders, which both the sqlite and the
// pgx drivers accept.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(dbh *sql.DB) *SQLStore {
	return &SQLStore{db: dbh}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ---- question pool ----

const questionCols = `id,subject,difficulty,topic,content,option_a,option_b,option_c,option_d,correct_option`

func scanQuestion(r rowScanner) (Question, error) {
	var q Question
	var diff, correct string
	if err := r.Scan(&q.ID, &q.Subject, &diff, &q.Topic, &q.Content,
		&q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD, &correct); err != nil {
		return Question{}, err
	}
	q.Difficulty = Difficulty(diff)
	q.CorrectOption = Option(correct)
	return q, nil
}

func (s *SQLStore) FindQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, ErrNotFound
	}
	return q, err
}

func (s *SQLStore) FindBySubject(ctx context.Context, subject string) ([]Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionCols+` FROM questions WHERE subject=$1 ORDER BY created_at, id`, subject)
}

func (s *SQLStore) FindBySubjectAndDifficulty(ctx context.Context, subject string, d Difficulty) ([]Question, error) {
	return s.queryQuestions(ctx,
		`SELECT `+questionCols+` FROM questions WHERE subject=$1 AND difficulty=$2 ORDER BY created_at, id`,
		subject, string(d))
}

func (s *SQLStore) queryQuestions(ctx context.Context, query string, args ...any) ([]Question, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// PutQuestions upserts qs in one transaction. Questions without an id get a
// fresh UUID.
func (s *SQLStore) PutQuestions(ctx context.Context, qs []Question) (inserted, updated int, err error) {
	for i := range qs {
		if qs[i].ID == "" {
			qs[i].ID = uuid.NewString()
		}
		if err := qs[i].Validate(); err != nil {
			return 0, 0, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, q := range qs {
		var exists bool
		if err = tx.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id=$1`, q.ID).Scan(new(int)); err == nil {
			exists = true
		} else if !errors.Is(err, sql.ErrNoRows) {
			return inserted, updated, err
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO questions (`+questionCols+`,created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (id) DO UPDATE SET subject=EXCLUDED.subject, difficulty=EXCLUDED.difficulty,
				topic=EXCLUDED.topic, content=EXCLUDED.content, option_a=EXCLUDED.option_a,
				option_b=EXCLUDED.option_b, option_c=EXCLUDED.option_c, option_d=EXCLUDED.option_d,
				correct_option=EXCLUDED.correct_option`,
			q.ID, q.Subject, string(q.Difficulty), q.Topic, q.Content,
			q.OptionA, q.OptionB, q.OptionC, q.OptionD, string(q.CorrectOption), now)
		if err != nil {
			return inserted, updated, err
		}
		if exists {
			updated++
		} else {
			inserted++
		}
	}
	return inserted, updated, nil
}

// ---- transactions ----

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(Tx{
		Sessions:  sqlSessions{q: tx},
		Responses: sqlResponses{q: tx},
		Events:    syncx.NewEventRepo(tx),
	})
}

// ---- sessions ----

const sessionCols = `id,user_id,subject,status,difficulty,score,current_question_id,end_reason,started_at,ended_at,version`

type sqlSessions struct{ q querier }

func scanSession(r rowScanner) (Session, error) {
	var (
		s                       Session
		status, diff, endReason string
		started                 int64
		ended                   sql.NullInt64
	)
	if err := r.Scan(&s.ID, &s.UserID, &s.Subject, &status, &diff, &s.Score,
		&s.CurrentQuestionID, &endReason, &started, &ended, &s.Version); err != nil {
		return Session{}, err
	}
	s.Status = Status(status)
	s.Difficulty = Difficulty(diff)
	s.EndReason = EndReason(endReason)
	s.StartedAt = time.Unix(started, 0).UTC()
	if ended.Valid {
		t := time.Unix(ended.Int64, 0).UTC()
		s.EndedAt = &t
	}
	return s, nil
}

func endedAt(s Session) sql.NullInt64 {
	if s.EndedAt == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.EndedAt.Unix(), Valid: true}
}

func (r sqlSessions) Create(ctx context.Context, s Session) (Session, error) {
	s.Version = 1
	_, err := r.q.ExecContext(ctx, `INSERT INTO exam_sessions (`+sessionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		s.ID, s.UserID, s.Subject, string(s.Status), string(s.Difficulty), s.Score,
		s.CurrentQuestionID, string(s.EndReason), s.StartedAt.Unix(), endedAt(s), s.Version)
	if err != nil {
		if _, dup := db.UniqueViolation(err); dup {
			return Session{}, ErrAlreadyInProgress
		}
		return Session{}, err
	}
	return s, nil
}

func (r sqlSessions) FindByID(ctx context.Context, id string) (Session, error) {
	s, err := scanSession(r.q.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM exam_sessions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

func (r sqlSessions) Update(ctx context.Context, s Session) (Session, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE exam_sessions
		SET status=$1, difficulty=$2, score=$3, current_question_id=$4, end_reason=$5, ended_at=$6, version=version+1
		WHERE id=$7 AND version=$8`,
		string(s.Status), string(s.Difficulty), s.Score, s.CurrentQuestionID, string(s.EndReason),
		endedAt(s), s.ID, s.Version)
	if err != nil {
		return Session{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return Session{}, err
	}
	if n == 0 {
		if _, err := r.FindByID(ctx, s.ID); err != nil {
			return Session{}, err
		}
		return Session{}, ErrConflict
	}
	s.Version++
	return s, nil
}

func (r sqlSessions) FindActive(ctx context.Context, userID, subject string) (Session, error) {
	s, err := scanSession(r.q.QueryRowContext(ctx, `SELECT `+sessionCols+` FROM exam_sessions
		WHERE user_id=$1 AND subject=$2 AND status=$3`, userID, subject, string(StatusInProgress)))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return s, err
}

func (r sqlSessions) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+sessionCols+` FROM exam_sessions
		WHERE user_id=$1 ORDER BY started_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ---- responses ----

type sqlResponses struct{ q querier }

func (r sqlResponses) FindBySession(ctx context.Context, sessionID string) ([]Response, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id,session_id,question_id,seq,selected_option,is_correct,
		difficulty,time_taken_sec,answered_at FROM responses WHERE session_id=$1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Response
	for rows.Next() {
		var (
			resp           Response
			selected, diff string
			secs, answered int64
		)
		if err := rows.Scan(&resp.ID, &resp.SessionID, &resp.QuestionID, &resp.Seq, &selected,
			&resp.Correct, &diff, &secs, &answered); err != nil {
			return nil, err
		}
		resp.Selected = Option(selected)
		resp.Difficulty = Difficulty(diff)
		resp.TimeTaken = time.Duration(secs) * time.Second
		resp.AnsweredAt = time.Unix(answered, 0).UTC()
		out = append(out, resp)
	}
	return out, rows.Err()
}

func (r sqlResponses) Append(ctx context.Context, resp Response) error {
	if resp.AnsweredAt.IsZero() {
		resp.AnsweredAt = time.Now().UTC()
	}
	_, err := r.q.ExecContext(ctx, `INSERT INTO responses
		(id,session_id,question_id,seq,selected_option,is_correct,difficulty,time_taken_sec,answered_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		resp.ID, resp.SessionID, resp.QuestionID, resp.Seq, string(resp.Selected), resp.Correct,
		string(resp.Difficulty), int64(resp.TimeTaken/time.Second), resp.AnsweredAt.Unix())
	if constraint, dup := db.UniqueViolation(err); dup {
		// (session_id, seq) collides when another writer appended first
		if strings.Contains(constraint, "seq") {
			return fmt.Errorf("response #%d of session %q: %w", resp.Seq, resp.SessionID, ErrConflict)
		}
		return ErrAlreadyAnswered
	}
	return err
}
