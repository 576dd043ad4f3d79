package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
)

// ExamService is the engine's view of the exam catalog: cached reads for the
// session controller, and the question writes that keep total points in sync.
type ExamService struct {
	store ExamStore
	cache ExamCache
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(store ExamStore, cache ExamCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		store: store,
		cache: cache,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExam returns the full exam definition, answer key included. Redis is
// tried first; on a miss or a Redis failure the definition is read from
// Postgres and written back.
func (s *ExamService) GetExam(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	cached, err := s.cache.Get(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Exam cache read failed, falling back to database")
	}
	if cached != nil {
		return cached, nil
	}

	exam, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}

	if err := s.cache.Set(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to cache exam definition")
	}
	return exam, nil
}

// CreateExam validates and stores a new exam with its questions.
func (s *ExamService) CreateExam(ctx context.Context, exam *model.Exam) error {
	if exam.MaxAttempts < 1 {
		exam.MaxAttempts = 1
	}
	if !exam.EndDate.After(exam.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", ErrInvalidExam)
	}
	if err := prepareQuestions(exam.Questions); err != nil {
		return err
	}
	if err := s.store.Create(ctx, exam); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(exam.Questions)).
		Int("total_points", exam.TotalPoints).
		Msg("Exam created")
	return nil
}

// AddQuestion appends a question and returns the exam's new total points.
func (s *ExamService) AddQuestion(ctx context.Context, examID uuid.UUID, q *model.Question) (int, error) {
	if err := prepareQuestion(q); err != nil {
		return 0, err
	}

	total, err := s.store.AddQuestion(ctx, examID, q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrExamNotFound
		}
		return 0, fmt.Errorf("add question: %w", err)
	}
	s.invalidate(ctx, examID)
	return total, nil
}

// ReplaceQuestions swaps the whole question list and returns the new total points.
func (s *ExamService) ReplaceQuestions(ctx context.Context, examID uuid.UUID, questions []model.Question) (int, error) {
	if err := prepareQuestions(questions); err != nil {
		return 0, err
	}

	total, err := s.store.ReplaceQuestions(ctx, examID, questions)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrExamNotFound
		}
		return 0, fmt.Errorf("replace questions: %w", err)
	}
	s.invalidate(ctx, examID)
	return total, nil
}

// Prewarm loads the given exams into the cache ahead of traffic.
func (s *ExamService) Prewarm(ctx context.Context, ids []uuid.UUID) int {
	warmed := 0
	for _, id := range ids {
		if _, err := s.GetExam(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("exam_id", id.String()).Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}
	return warmed
}

func (s *ExamService) invalidate(ctx context.Context, examID uuid.UUID) {
	// Cached definitions must not outlive a question change.
	for attempt := 0; attempt < 3; attempt++ {
		err := s.cache.Invalidate(ctx, examID)
		if err == nil {
			return
		}
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to invalidate exam cache")
		time.Sleep(50 * time.Millisecond)
	}
}

func prepareQuestion(q *model.Question) error {
	q.Normalize()
	return q.Validate()
}

func prepareQuestions(questions []model.Question) error {
	for i := range questions {
		if err := prepareQuestion(&questions[i]); err != nil {
			return fmt.Errorf("question %d: %w", i+1, err)
		}
	}
	return nil
}
