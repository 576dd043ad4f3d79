package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptStarted   EventType = "STARTED"
	EventAnswerSaved      EventType = "ANSWER_SAVED"
	EventAttemptSubmitted EventType = "SUBMITTED"
	EventAttemptForced    EventType = "FORCE_SUBMITTED"
	EventAttemptGraded    EventType = "GRADED"
)

// AttemptEvent is an audit and monitoring record of an attempt lifecycle change.
type AttemptEvent struct {
	AttemptID  uuid.UUID       `json:"attempt_id"`
	ExamID     uuid.UUID       `json:"exam_id"`
	StudentID  int             `json:"student_id"`
	Type       EventType       `json:"type"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	RecordedAt time.Time       `json:"recorded_at"`
}

// MonitorSnapshot summarises attempt progress of one exam.
type MonitorSnapshot struct {
	ExamID         uuid.UUID     `json:"exam_id"`
	InProgress     int           `json:"in_progress"`
	Submitted      int           `json:"submitted"`
	Graded         int           `json:"graded"`
	AnsweredCounts map[int]int64 `json:"answered_counts"`
	EventCounts    map[int]int64 `json:"event_counts"`
}
