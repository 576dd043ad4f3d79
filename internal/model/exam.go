package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is an exam definition as owned by the catalog. The engine only ever
// writes TotalPoints, and only as a function of Questions.
type Exam struct {
	ID                 uuid.UUID             `json:"id"`
	Title              string                `json:"title" binding:"required,max=255"`
	Instructions       string                `json:"instructions"`
	DurationMinutes    int                   `json:"duration_minutes" binding:"required,min=1"`
	StartDate          time.Time             `json:"start_date" binding:"required"`
	EndDate            time.Time             `json:"end_date" binding:"required,gtfield=StartDate"`
	MaxAttempts        int                   `json:"max_attempts" binding:"min=0"`
	TotalPoints        int                   `json:"total_points"`
	PassingScore       float64               `json:"passing_score" binding:"min=0,max=100"`
	ShuffleQuestions   bool                  `json:"shuffle_questions"`
	ShuffleOptions     bool                  `json:"shuffle_options"`
	ShowCorrectAnswers bool                  `json:"show_correct_answers"`
	ShowResults        bool                  `json:"show_results"`
	AutoGrade          map[QuestionType]bool `json:"auto_grade,omitempty"`
	Questions          []Question            `json:"questions" binding:"dive"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

// Duration returns the allotted time for one attempt.
func (e *Exam) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// IsActive reports whether attempts may be created or mutated at now.
// Both ends of the window are inclusive.
func (e *Exam) IsActive(now time.Time) bool {
	return !now.Before(e.StartDate) && !now.After(e.EndDate)
}

// RecomputeTotalPoints sets TotalPoints to the sum of question points and returns it.
func (e *Exam) RecomputeTotalPoints() int {
	total := 0
	for _, q := range e.Questions {
		total += q.Points
	}
	e.TotalPoints = total
	return total
}

// Question looks up a question by id.
func (e *Exam) Question(id uuid.UUID) (*Question, bool) {
	for i := range e.Questions {
		if e.Questions[i].ID == id {
			return &e.Questions[i], true
		}
	}
	return nil, false
}

// ExamPayload is the exam-taking view sent to a student. It never carries
// correct options or correct answers.
type ExamPayload struct {
	AttemptID        uuid.UUID            `json:"attempt_id"`
	AttemptNumber    int                  `json:"attempt_number"`
	ExamID           uuid.UUID            `json:"exam_id"`
	Title            string               `json:"title"`
	Instructions     string               `json:"instructions"`
	Duration         int                  `json:"duration"`
	RemainingSeconds float64              `json:"remaining_seconds"`
	Questions        []QuestionForStudent `json:"questions"`
	ExistingAnswers  map[string]string    `json:"existing_answers"`
}
