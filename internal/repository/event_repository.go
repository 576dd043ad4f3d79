package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-engine/internal/model"
)

// EventRepository appends attempt events to the attempt_events log.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

var eventColumns = []string{"attempt_id", "exam_id", "student_id", "event_type", "payload", "recorded_at"}

// InsertBatch writes events with COPY. The batch is all or nothing.
func (r *EventRepository) InsertBatch(ctx context.Context, events []model.AttemptEvent) error {
	rows := make([][]any, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []any{
			ev.AttemptID, ev.ExamID, ev.StudentID, string(ev.Type), payloadOf(ev), ev.RecordedAt,
		})
	}

	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"attempt_events"}, eventColumns, pgx.CopyFromRows(rows))
	return err
}

// Insert writes a single event.
func (r *EventRepository) Insert(ctx context.Context, ev model.AttemptEvent) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_events (attempt_id, exam_id, student_id, event_type, payload, recorded_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6)`,
		ev.AttemptID, ev.ExamID, ev.StudentID, string(ev.Type), string(payloadOf(ev)), ev.RecordedAt,
	)
	return err
}

func payloadOf(ev model.AttemptEvent) []byte {
	if len(ev.Payload) == 0 {
		return []byte("{}")
	}
	return ev.Payload
}
