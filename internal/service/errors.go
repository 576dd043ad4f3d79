package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-engine/internal/model"
)

// Domain errors surfaced to clients. All are caused by client input or
// timing and are not worth retrying.
var (
	ErrExamNotFound       = errors.New("exam not found")
	ErrExamNotActive      = errors.New("exam is outside its active window")
	ErrAttemptsExhausted  = errors.New("no attempts remaining for this exam")
	ErrAttemptNotActive   = errors.New("attempt is not in progress")
	ErrAttemptNotFound    = errors.New("attempt not found")
	ErrQuestionNotInExam  = errors.New("question does not belong to this exam")
	ErrAttemptNotFinished = errors.New("attempt has not been submitted yet")
	ErrNothingToGrade     = errors.New("answer is not awaiting manual grading")
	ErrInvalidGrade       = errors.New("awarded points exceed question points")
	ErrAttemptNotDue      = errors.New("attempt deadline has not passed")

	ErrInvalidExam = errors.New("invalid exam definition")

	// ErrInvalidQuestion is returned by catalog writes for malformed questions.
	ErrInvalidQuestion = model.ErrInvalidQuestion
)

// NotDueError is returned when the timer tries to seal an attempt before its
// deadline. It matches ErrAttemptNotDue and carries the real deadline.
type NotDueError struct {
	AttemptID  uuid.UUID
	DeadlineAt time.Time
}

func (e *NotDueError) Error() string {
	return fmt.Sprintf("attempt %s: deadline %s has not passed", e.AttemptID, e.DeadlineAt.Format(time.RFC3339))
}

func (e *NotDueError) Unwrap() error { return ErrAttemptNotDue }
