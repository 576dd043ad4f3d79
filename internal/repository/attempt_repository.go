package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-engine/internal/model"
)

// AttemptRepository is the durable attempt store. Every state transition of
// an attempt row goes through Open or Update.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

const attemptColumns = `id, exam_id, student_id, attempt_number, status, started_at, deadline_at,
	submitted_at, graded_at, shuffle_seed, total_score, percentage, COALESCE(grade, ''),
	time_spent, is_late, COALESCE(submit_trigger, '')`

func scanAttempt(row pgx.Row, a *model.Attempt) error {
	return row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.AttemptNumber, &a.Status, &a.StartedAt, &a.DeadlineAt,
		&a.SubmittedAt, &a.GradedAt, &a.ShuffleSeed, &a.TotalScore, &a.Percentage, &a.Grade,
		&a.TimeSpent, &a.IsLate, &a.SubmitTrigger)
}

// Open returns the student's in-progress attempt for the exam, or inserts
// candidate as a new one when fewer than maxAttempts attempts are finished.
// Concurrent calls for the same (exam, student) are serialised by a
// transaction-scoped advisory lock; the partial unique index on in-progress
// attempts backs it up.
func (r *AttemptRepository) Open(ctx context.Context, candidate *model.Attempt, maxAttempts int) (model.OpenOutcome, error) {
	var out model.OpenOutcome

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return out, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1::text, $2::bigint))`,
		candidate.ExamID, candidate.StudentID,
	); err != nil {
		return out, fmt.Errorf("advisory lock: %w", err)
	}

	existing := &model.Attempt{}
	err = scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status = $3`,
		candidate.ExamID, candidate.StudentID, model.AttemptStatusInProgress,
	), existing)
	switch {
	case err == nil:
		out.Attempt = existing
		return out, tx.Commit(ctx)
	case !errors.Is(err, pgx.ErrNoRows):
		return out, fmt.Errorf("find in-progress attempt: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM attempts
		 WHERE exam_id = $1 AND student_id = $2 AND status IN ($3, $4)`,
		candidate.ExamID, candidate.StudentID, model.AttemptStatusSubmitted, model.AttemptStatusGraded,
	).Scan(&out.Finished); err != nil {
		return out, fmt.Errorf("count finished attempts: %w", err)
	}
	if out.Finished >= maxAttempts {
		return out, tx.Commit(ctx)
	}

	candidate.AttemptNumber = out.Finished + 1
	candidate.Status = model.AttemptStatusInProgress
	if err := tx.QueryRow(ctx,
		`INSERT INTO attempts (exam_id, student_id, attempt_number, status, started_at, deadline_at, shuffle_seed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		candidate.ExamID, candidate.StudentID, candidate.AttemptNumber, candidate.Status,
		candidate.StartedAt, candidate.DeadlineAt, candidate.ShuffleSeed,
	).Scan(&candidate.ID); err != nil {
		return out, fmt.Errorf("insert attempt: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return out, fmt.Errorf("commit tx: %w", err)
	}
	out.Attempt = candidate
	out.Created = true
	return out, nil
}

// GetByID retrieves an attempt with its answers.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	if err := scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1`, id,
	), a); err != nil {
		return nil, err
	}

	answers, err := loadAnswers(ctx, r.pool, id)
	if err != nil {
		return nil, err
	}
	a.Answers = answers
	return a, nil
}

// ListByExamAndStudent returns a student's attempts at an exam, oldest first, without answers.
func (r *AttemptRepository) ListByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+`
		 FROM attempts
		 WHERE exam_id = $1 AND student_id = $2
		 ORDER BY attempt_number`, examID, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// ListInProgress returns every attempt that has not been sealed yet.
func (r *AttemptRepository) ListInProgress(ctx context.Context) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE status = $1 ORDER BY deadline_at`,
		model.AttemptStatusInProgress,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := scanAttempt(rows, &a); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// Update locks the attempt row with SELECT ... FOR UPDATE, loads its answers
// and hands it to fn. If fn returns nil the attempt fields and the full answer
// set are written back in the same transaction; otherwise nothing changes and
// fn's error is returned as is.
func (r *AttemptRepository) Update(ctx context.Context, id uuid.UUID, fn func(a *model.Attempt) error) (*model.Attempt, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	a := &model.Attempt{}
	if err := scanAttempt(tx.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE id = $1 FOR UPDATE`, id,
	), a); err != nil {
		return nil, err
	}
	if a.Answers, err = loadAnswers(ctx, tx, id); err != nil {
		return nil, err
	}

	if err := fn(a); err != nil {
		return nil, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $2, submitted_at = $3, graded_at = $4, total_score = $5, percentage = $6,
		     grade = NULLIF($7, ''), time_spent = $8, is_late = $9, submit_trigger = NULLIF($10, '')
		 WHERE id = $1`,
		a.ID, a.Status, a.SubmittedAt, a.GradedAt, a.TotalScore, a.Percentage,
		a.Grade, a.TimeSpent, a.IsLate, a.SubmitTrigger,
	); err != nil {
		return nil, fmt.Errorf("update attempt: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM attempt_answers WHERE attempt_id = $1`, id); err != nil {
		return nil, fmt.Errorf("clear answers: %w", err)
	}
	if len(a.Answers) > 0 {
		rows := make([][]any, 0, len(a.Answers))
		for qid, ans := range a.Answers {
			updated := ans.UpdatedAt
			if updated.IsZero() {
				updated = time.Now()
			}
			rows = append(rows, []any{id, qid, ans.Answer, ans.TimeSpent, ans.IsCorrect, ans.PointsEarned, ans.NeedsReview, updated})
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"attempt_answers"},
			[]string{"attempt_id", "question_id", "answer", "time_spent", "is_correct", "points_earned", "needs_review", "updated_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return nil, fmt.Errorf("write answers: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return a, nil
}

// UpsertAnswers persists a batch of autosaved answers. An entry is applied
// only while its attempt is still in progress: the attempt row is read
// FOR SHARE, so a concurrent seal either finishes first (and the entry is
// dropped) or waits for this batch. Older entries never overwrite newer ones.
// It returns how many entries were applied.
func (r *AttemptRepository) UpsertAnswers(ctx context.Context, entries []model.AutosaveEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`WITH live AS (
				SELECT id FROM attempts WHERE id = $1 AND status = 'IN_PROGRESS' FOR SHARE
			 )
			 INSERT INTO attempt_answers (attempt_id, question_id, answer, time_spent, updated_at)
			 SELECT live.id, $2, $3, $4, $5 FROM live
			 ON CONFLICT (attempt_id, question_id) DO UPDATE
			 SET answer = EXCLUDED.answer,
			     time_spent = GREATEST(attempt_answers.time_spent, EXCLUDED.time_spent),
			     updated_at = EXCLUDED.updated_at
			 WHERE attempt_answers.updated_at <= EXCLUDED.updated_at`,
			e.AttemptID, e.QuestionID, e.Answer, e.TimeSpent, e.SavedAt,
		)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	br := tx.SendBatch(ctx, batch)
	applied := 0
	for range entries {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, fmt.Errorf("upsert answer: %w", err)
		}
		applied += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return applied, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadAnswers(ctx context.Context, q querier, attemptID uuid.UUID) (map[uuid.UUID]model.Answer, error) {
	rows, err := q.Query(ctx,
		`SELECT question_id, answer, time_spent, is_correct, points_earned, needs_review, updated_at
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID,
	)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}
	defer rows.Close()

	answers := make(map[uuid.UUID]model.Answer)
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.TimeSpent, &a.IsCorrect, &a.PointsEarned, &a.NeedsReview, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers[a.QuestionID] = a
	}
	return answers, rows.Err()
}
