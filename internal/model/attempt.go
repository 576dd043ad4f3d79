package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt states. Transitions only move forward:
// IN_PROGRESS -> SUBMITTED -> GRADED, or IN_PROGRESS -> GRADED directly.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusGraded     AttemptStatus = "GRADED"
)

// SubmitTrigger records who sealed an attempt.
type SubmitTrigger string

const (
	SubmitTriggerClient SubmitTrigger = "CLIENT"
	SubmitTriggerTimer  SubmitTrigger = "TIMER"
)

// Attempt is one student's timed session against one exam.
type Attempt struct {
	ID            uuid.UUID     `json:"id"`
	ExamID        uuid.UUID     `json:"exam_id"`
	StudentID     int           `json:"student_id"`
	AttemptNumber int           `json:"attempt_number"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	DeadlineAt    time.Time     `json:"deadline_at"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	GradedAt      *time.Time    `json:"graded_at,omitempty"`
	ShuffleSeed   int64         `json:"-"`
	TotalScore    *float64      `json:"total_score,omitempty"`
	Percentage    *float64      `json:"percentage,omitempty"`
	Grade         string        `json:"grade,omitempty"`
	TimeSpent     int           `json:"time_spent"`
	IsLate        bool          `json:"is_late"`
	SubmitTrigger SubmitTrigger `json:"submit_trigger,omitempty"`

	// Answers is keyed by question id; a question has at most one answer.
	Answers map[uuid.UUID]Answer `json:"answers,omitempty"`
}

// InProgress reports whether the attempt still accepts answers and a submit.
func (a *Attempt) InProgress() bool {
	return a.Status == AttemptStatusInProgress
}

// Finished reports whether the attempt has been sealed.
func (a *Attempt) Finished() bool {
	return a.Status == AttemptStatusSubmitted || a.Status == AttemptStatusGraded
}

// PendingReview counts answers still waiting for a manual grade.
func (a *Attempt) PendingReview() int {
	n := 0
	for _, ans := range a.Answers {
		if ans.NeedsReview {
			n++
		}
	}
	return n
}

// Answer is a student's response to a single question. Grading fields are
// nil until the attempt is submitted.
type Answer struct {
	QuestionID   uuid.UUID `json:"question_id"`
	Answer       string    `json:"answer"`
	TimeSpent    int       `json:"time_spent"`
	IsCorrect    *bool     `json:"is_correct,omitempty"`
	PointsEarned *float64  `json:"points_earned,omitempty"`
	NeedsReview  bool      `json:"needs_review,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// OpenOutcome reports what happened when a student asked to start an attempt.
// Attempt is nil when the quota was already used up.
type OpenOutcome struct {
	Attempt  *Attempt
	Created  bool
	Finished int
}

// AttemptState is the compact status record cached in Redis so that autosaves
// avoid a Postgres round trip.
type AttemptState struct {
	AttemptID  uuid.UUID     `json:"attempt_id"`
	ExamID     uuid.UUID     `json:"exam_id"`
	StudentID  int           `json:"student_id"`
	Status     AttemptStatus `json:"status"`
	DeadlineAt time.Time     `json:"deadline_at"`
}

// StateOf builds the cached state record for a.
func StateOf(a *Attempt) AttemptState {
	return AttemptState{
		AttemptID:  a.ID,
		ExamID:     a.ExamID,
		StudentID:  a.StudentID,
		Status:     a.Status,
		DeadlineAt: a.DeadlineAt,
	}
}

// AutosaveEntry is one answer in flight between the Redis buffer and Postgres.
type AutosaveEntry struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answer     string    `json:"answer"`
	TimeSpent  int       `json:"time_spent"`
	SavedAt    time.Time `json:"saved_at"`
}

// ─── Requests ───────────────────────────────────────────────────────

// StartAttemptRequest is the payload for starting (or resuming) an attempt.
// StudentID may be omitted when the caller presents a student token.
type StartAttemptRequest struct {
	StudentID int `json:"student_id" binding:"omitempty,min=1"`
}

// SaveAnswerRequest is the payload for a single autosave.
type SaveAnswerRequest struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"max=20000"`
	TimeSpent  int       `json:"time_spent" binding:"min=0"`
}

// SubmitAnswerItem is one entry of a final answer snapshot.
type SubmitAnswerItem struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Answer     string    `json:"answer" binding:"max=20000"`
	TimeSpent  int       `json:"time_spent" binding:"min=0"`
}

// SubmitAttemptRequest is the payload for an explicit submit. A missing
// answers field keeps the autosaved set; an empty array clears it.
type SubmitAttemptRequest struct {
	Answers        []SubmitAnswerItem `json:"answers" binding:"omitempty,dive"`
	TotalTimeSpent int                `json:"total_time_spent" binding:"min=0"`
}

// ManualGrade assigns points to one answer awaiting review.
type ManualGrade struct {
	QuestionID uuid.UUID `json:"question_id" binding:"required"`
	Points     float64   `json:"points" binding:"min=0"`
}

// ManualGradeRequest is the payload for grading subjective answers.
type ManualGradeRequest struct {
	Grades []ManualGrade `json:"grades" binding:"required,min=1,dive"`
}

// ─── Responses ──────────────────────────────────────────────────────

// StartAttemptResponse is returned from start.
type StartAttemptResponse struct {
	AttemptID     uuid.UUID `json:"attempt_id"`
	AttemptNumber int       `json:"attempt_number"`
	Created       bool      `json:"created"`
	DeadlineAt    time.Time `json:"deadline_at"`
}

// SaveAnswerResponse acknowledges an autosave.
type SaveAnswerResponse struct {
	Ack        bool      `json:"ack"`
	QuestionID uuid.UUID `json:"question_id"`
	SavedAt    time.Time `json:"saved_at"`
}

// SubmitResult is the sealed score of an attempt.
type SubmitResult struct {
	AttemptID     uuid.UUID     `json:"attempt_id"`
	Status        AttemptStatus `json:"status"`
	TotalScore    float64       `json:"total_score"`
	TotalPoints   int           `json:"total_points"`
	Percentage    float64       `json:"percentage"`
	Grade         string        `json:"grade"`
	Passed        bool          `json:"passed"`
	IsLate        bool          `json:"is_late"`
	PendingReview int           `json:"pending_review"`
	SubmittedAt   time.Time     `json:"submitted_at"`
	SubmitTrigger SubmitTrigger `json:"submit_trigger"`
}

// ResultQuestion is one graded question inside an attempt result.
type ResultQuestion struct {
	ID            uuid.UUID          `json:"id"`
	Number        int                `json:"number"`
	QuestionText  string             `json:"question_text"`
	QuestionType  QuestionType       `json:"question_type"`
	Options       []OptionForStudent `json:"options,omitempty"`
	Points        int                `json:"points"`
	Answer        *string            `json:"answer"`
	IsCorrect     *bool              `json:"is_correct,omitempty"`
	PointsEarned  *float64           `json:"points_earned,omitempty"`
	NeedsReview   bool               `json:"needs_review,omitempty"`
	CorrectAnswer string             `json:"correct_answer,omitempty"`
}

// AttemptResult is the full result of a finished attempt. Score and
// questions are omitted when the exam hides results.
type AttemptResult struct {
	AttemptID     uuid.UUID        `json:"attempt_id"`
	ExamID        uuid.UUID        `json:"exam_id"`
	StudentID     int              `json:"student_id"`
	AttemptNumber int              `json:"attempt_number"`
	Status        AttemptStatus    `json:"status"`
	StartedAt     time.Time        `json:"started_at"`
	SubmittedAt   *time.Time       `json:"submitted_at,omitempty"`
	TimeSpent     int              `json:"time_spent"`
	IsLate        bool             `json:"is_late"`
	ResultsHidden bool             `json:"results_hidden"`
	TotalScore    *float64         `json:"total_score,omitempty"`
	TotalPoints   int              `json:"total_points,omitempty"`
	Percentage    *float64         `json:"percentage,omitempty"`
	Grade         string           `json:"grade,omitempty"`
	Passed        *bool            `json:"passed,omitempty"`
	PendingReview int              `json:"pending_review"`
	Questions     []ResultQuestion `json:"questions,omitempty"`
}

// AttemptSummary is one row of a student's attempt history.
type AttemptSummary struct {
	AttemptID     uuid.UUID     `json:"attempt_id"`
	AttemptNumber int           `json:"attempt_number"`
	Status        AttemptStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	SubmittedAt   *time.Time    `json:"submitted_at,omitempty"`
	TotalScore    *float64      `json:"total_score,omitempty"`
	Percentage    *float64      `json:"percentage,omitempty"`
	Grade         string        `json:"grade,omitempty"`
	IsLate        bool          `json:"is_late"`
}

// AttemptHistory lists a student's attempts at one exam.
type AttemptHistory struct {
	ExamID            uuid.UUID        `json:"exam_id"`
	StudentID         int              `json:"student_id"`
	MaxAttempts       int              `json:"max_attempts"`
	AttemptsRemaining int              `json:"attempts_remaining"`
	Attempts          []AttemptSummary `json:"attempts"`
}
