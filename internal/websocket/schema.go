package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAutosave Action = "autosave"
	ActionSubmit   Action = "submit"
	ActionPing     Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// AutosaveRequest is sent by the client to save a single answer.
type AutosaveRequest struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	TimeSpent  int    `json:"time_spent"`
}

// SubmitRequest finishes the attempt. Omitting answers seals the autosaved set.
type SubmitRequest struct {
	Answers        []SubmitAnswer `json:"answers"`
	TotalTimeSpent int            `json:"total_time_spent"`
}

type SubmitAnswer struct {
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
	TimeSpent  int    `json:"time_spent"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventSaved  Event = "saved"
	EventGraded Event = "graded"
	EventPong   Event = "pong"
)

// Message is every server frame: an event name and its data.
type Message struct {
	Event Event       `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
