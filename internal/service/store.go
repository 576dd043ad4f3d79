package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-engine/internal/model"
)

// Storage contracts of the services. Postgres and Redis implementations live
// in the repository package; not-found lookups return pgx.ErrNoRows.

// ExamStore is the durable exam catalog.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Create(ctx context.Context, e *model.Exam) error
	AddQuestion(ctx context.Context, examID uuid.UUID, q *model.Question) (int, error)
	ReplaceQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) (int, error)
}

// ExamCache holds exam definitions. Get returns nil, nil on a miss.
type ExamCache interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	Set(ctx context.Context, e *model.Exam) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// ExamProvider resolves exam definitions for the session controller.
type ExamProvider interface {
	GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// AttemptStore is the durable attempt store and the owner of the
// concurrency guards around start and seal.
type AttemptStore interface {
	// Open returns the in-progress attempt of candidate's (exam, student) or
	// inserts candidate when the quota allows, atomically.
	Open(ctx context.Context, candidate *model.Attempt, maxAttempts int) (model.OpenOutcome, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Attempt, error)
	ListInProgress(ctx context.Context) ([]model.Attempt, error)
	// Update runs fn on the locked attempt and writes it back if fn succeeds.
	Update(ctx context.Context, id uuid.UUID, fn func(a *model.Attempt) error) (*model.Attempt, error)
}

// LiveState is the fast lane for attempt status and autosaved answers.
// GetState returns nil, nil on a miss.
type LiveState interface {
	GetState(ctx context.Context, attemptID uuid.UUID) (*model.AttemptState, error)
	PutState(ctx context.Context, st model.AttemptState) error
	// DropState forgets the cached status so the next read goes to Postgres.
	DropState(ctx context.Context, attemptID uuid.UUID) error
	SaveAnswer(ctx context.Context, entry model.AutosaveEntry, expireAt time.Time) error
	Answers(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]model.AutosaveEntry, error)
	Clear(ctx context.Context, attemptID uuid.UUID) error
}

// ExpiryScheduler tracks attempt deadlines for the expiry worker.
type ExpiryScheduler interface {
	Schedule(ctx context.Context, attemptID uuid.UUID, deadline time.Time) error
	Cancel(ctx context.Context, attemptID uuid.UUID) error
}

// EventPublisher broadcasts attempt lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.AttemptEvent) error
}

// MonitorReader provides the aggregate counts shown on the live monitor.
type MonitorReader interface {
	CountByStatus(ctx context.Context, examID uuid.UUID) (inProgress, submitted, graded int, err error)
	GetAnsweredCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
	GetEventCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
}
