package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-engine/internal/model"
)

// ExamRepository handles exam and question data access. Every write that
// touches questions recomputes exams.total_points in the same transaction.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID, with questions ordered by order_num.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, instructions, duration_minutes, start_date, end_date, max_attempts,
		        total_points, passing_score, shuffle_questions, shuffle_options,
		        show_correct_answers, show_results, auto_grade, created_at, updated_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Instructions, &e.DurationMinutes, &e.StartDate, &e.EndDate, &e.MaxAttempts,
		&e.TotalPoints, &e.PassingScore, &e.ShuffleQuestions, &e.ShuffleOptions,
		&e.ShowCorrectAnswers, &e.ShowResults, &e.AutoGrade, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Questions, err = r.listQuestions(ctx, id)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *ExamRepository) listQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, options, COALESCE(correct_answer, ''), points, order_num
		 FROM questions WHERE exam_id = $1
		 ORDER BY order_num, id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType, &q.Options,
			&q.CorrectAnswer, &q.Points, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Create inserts a new exam together with its questions.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx,
		`INSERT INTO exams (title, instructions, duration_minutes, start_date, end_date, max_attempts,
		                    passing_score, shuffle_questions, shuffle_options, show_correct_answers,
		                    show_results, auto_grade)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, '{}'::jsonb))
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Instructions, e.DurationMinutes, e.StartDate, e.EndDate, e.MaxAttempts,
		e.PassingScore, e.ShuffleQuestions, e.ShuffleOptions, e.ShowCorrectAnswers,
		e.ShowResults, e.AutoGrade,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	for i := range e.Questions {
		e.Questions[i].ExamID = e.ID
		if err := insertQuestion(ctx, tx, &e.Questions[i]); err != nil {
			return err
		}
	}

	if e.TotalPoints, err = recomputeTotalPoints(ctx, tx, e.ID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AddQuestion appends a question to an exam and returns the new total points.
// A zero OrderNum places the question last.
func (r *ExamRepository) AddQuestion(ctx context.Context, examID uuid.UUID, q *model.Question) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockExam(ctx, tx, examID); err != nil {
		return 0, err
	}

	if q.OrderNum == 0 {
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(order_num), 0) + 1 FROM questions WHERE exam_id = $1`, examID,
		).Scan(&q.OrderNum); err != nil {
			return 0, fmt.Errorf("next order: %w", err)
		}
	}
	q.ExamID = examID
	if err := insertQuestion(ctx, tx, q); err != nil {
		return 0, err
	}

	total, err := recomputeTotalPoints(ctx, tx, examID)
	if err != nil {
		return 0, err
	}
	return total, tx.Commit(ctx)
}

// ReplaceQuestions swaps the exam's question list and returns the new total points.
func (r *ExamRepository) ReplaceQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockExam(ctx, tx, examID); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM questions WHERE exam_id = $1`, examID); err != nil {
		return 0, fmt.Errorf("delete questions: %w", err)
	}
	for i := range questions {
		questions[i].ExamID = examID
		if questions[i].OrderNum == 0 {
			questions[i].OrderNum = i + 1
		}
		if err := insertQuestion(ctx, tx, &questions[i]); err != nil {
			return 0, err
		}
	}

	total, err := recomputeTotalPoints(ctx, tx, examID)
	if err != nil {
		return 0, err
	}
	return total, tx.Commit(ctx)
}

func lockExam(ctx context.Context, tx pgx.Tx, examID uuid.UUID) error {
	var id uuid.UUID
	return tx.QueryRow(ctx, `SELECT id FROM exams WHERE id = $1 FOR UPDATE`, examID).Scan(&id)
}

func insertQuestion(ctx context.Context, tx pgx.Tx, q *model.Question) error {
	var correct *string
	if q.CorrectAnswer != "" {
		correct = &q.CorrectAnswer
	}
	options := q.Options
	if options == nil {
		options = []model.Option{}
	}
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO questions (id, exam_id, question_text, question_type, options, correct_answer, points, order_num)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		q.ID, q.ExamID, q.QuestionText, q.QuestionType, options, correct, q.Points, q.OrderNum,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

func recomputeTotalPoints(ctx context.Context, tx pgx.Tx, examID uuid.UUID) (int, error) {
	var total int
	err := tx.QueryRow(ctx,
		`UPDATE exams
		 SET total_points = (SELECT COALESCE(SUM(points), 0) FROM questions WHERE exam_id = $1),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING total_points`, examID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("recompute total points: %w", err)
	}
	return total, nil
}
