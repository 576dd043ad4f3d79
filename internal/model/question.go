package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidQuestion is returned when a question cannot be scored reliably.
var ErrInvalidQuestion = errors.New("invalid question")

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple-choice"
	QuestionTypeTrueFalse      QuestionType = "true-false"
	QuestionTypeShortAnswer    QuestionType = "short-answer"
	QuestionTypeEssay          QuestionType = "essay"
	QuestionTypeFillBlank      QuestionType = "fill-blank"
)

// QuestionTypes lists every supported type in display order.
var QuestionTypes = []QuestionType{
	QuestionTypeMultipleChoice,
	QuestionTypeTrueFalse,
	QuestionTypeShortAnswer,
	QuestionTypeEssay,
	QuestionTypeFillBlank,
}

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Subjective reports whether answers of this type cannot be checked against a key.
func (t QuestionType) Subjective() bool {
	switch t {
	case QuestionTypeShortAnswer, QuestionTypeEssay, QuestionTypeFillBlank:
		return true
	}
	return false
}

// Option is one choice of a multiple-choice question. ID is stable for the
// lifetime of the question; Text is display only.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

// Question represents a single exam question.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	QuestionText  string       `json:"question_text" binding:"required"`
	QuestionType  QuestionType `json:"question_type" binding:"required,question_type"`
	Options       []Option     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correct_answer,omitempty"`
	Points        int          `json:"points" binding:"required,min=1"`
	OrderNum      int          `json:"order_num"`
}

// CorrectOption returns the option flagged correct, if there is exactly one.
func (q *Question) CorrectOption() (*Option, bool) {
	var found *Option
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			if found != nil {
				return nil, false
			}
			found = &q.Options[i]
		}
	}
	return found, found != nil
}

// Normalize fills in option ids that were left blank (A, B, C, ...) and trims text.
func (q *Question) Normalize() {
	q.QuestionText = strings.TrimSpace(q.QuestionText)
	if q.QuestionType == QuestionTypeTrueFalse {
		q.CorrectAnswer = strings.ToLower(strings.TrimSpace(q.CorrectAnswer))
	}
	for i := range q.Options {
		q.Options[i].ID = strings.TrimSpace(q.Options[i].ID)
		if q.Options[i].ID == "" {
			q.Options[i].ID = optionLabel(i)
		}
	}
}

// Validate rejects questions the scoring engine would mis-score.
func (q *Question) Validate() error {
	if !q.QuestionType.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidQuestion, q.QuestionType)
	}
	if q.QuestionText == "" {
		return fmt.Errorf("%w: empty question text", ErrInvalidQuestion)
	}
	if q.Points <= 0 {
		return fmt.Errorf("%w: points must be positive", ErrInvalidQuestion)
	}

	switch q.QuestionType {
	case QuestionTypeMultipleChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: multiple-choice needs at least two options", ErrInvalidQuestion)
		}
		seen := make(map[string]struct{}, len(q.Options))
		correct := 0
		for _, o := range q.Options {
			if o.ID == "" {
				return fmt.Errorf("%w: option without id", ErrInvalidQuestion)
			}
			if _, dup := seen[o.ID]; dup {
				return fmt.Errorf("%w: duplicate option id %q", ErrInvalidQuestion, o.ID)
			}
			seen[o.ID] = struct{}{}
			if o.IsCorrect {
				correct++
			}
		}
		if correct != 1 {
			return fmt.Errorf("%w: multiple-choice needs exactly one correct option, got %d", ErrInvalidQuestion, correct)
		}
	case QuestionTypeTrueFalse:
		if q.CorrectAnswer != "true" && q.CorrectAnswer != "false" {
			return fmt.Errorf("%w: true-false answer must be \"true\" or \"false\"", ErrInvalidQuestion)
		}
	}
	return nil
}

// ForStudent strips the grading key.
func (q *Question) ForStudent() QuestionForStudent {
	out := QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Points:       q.Points,
		OrderNum:     q.OrderNum,
	}
	if len(q.Options) > 0 {
		out.Options = make([]OptionForStudent, len(q.Options))
		for i, o := range q.Options {
			out.Options[i] = OptionForStudent{ID: o.ID, Text: o.Text}
		}
	}
	return out
}

func optionLabel(i int) string {
	if i < 26 {
		return string(rune('A' + i))
	}
	return fmt.Sprintf("O%d", i+1)
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID          `json:"id"`
	Number       int                `json:"number"`
	QuestionText string             `json:"question_text"`
	QuestionType QuestionType       `json:"question_type"`
	Options      []OptionForStudent `json:"options,omitempty"`
	Points       int                `json:"points"`
	OrderNum     int                `json:"order_num"`
}

// OptionForStudent exposes only what a student needs to pick an option.
type OptionForStudent struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}
