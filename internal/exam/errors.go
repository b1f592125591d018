package exam

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid exam state")
	ErrAlreadyInProgress = errors.New("exam already in progress for subject")
	ErrAlreadyAnswered   = errors.New("question already answered in this exam")
	ErrQuestionNotInExam = errors.New("question does not belong to exam subject")
	ErrInvalidOption     = errors.New("selected option must be one of A, B, C, D")
	ErrInvalidInput      = errors.New("invalid input")

	// ErrConflict means another writer changed the session first: a version
	// mismatch on update, or a response already stored at the same position.
	ErrConflict = errors.New("exam session was modified concurrently")
)
