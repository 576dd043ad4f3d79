package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stemsi/exstem-engine/internal/response"
	"github.com/stemsi/exstem-engine/internal/service"
	ws "github.com/stemsi/exstem-engine/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams autosaves and the final submit of one attempt over a
// WebSocket.
type WSHandler struct {
	sessions SessionAPI
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions SessionAPI, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// AttemptStream godoc
// WS /ws/v1/exams/:exam_id/attempts/:attempt_id/stream
// Accepts autosave, submit and ping actions until the attempt is sealed or
// the client goes away.
func (h *WSHandler) AttemptStream(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}
	studentID := claimedStudent(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	ws.Prepare(conn)

	wsLog := h.log.With().
		Str("exam_id", examID.String()).
		Str("attempt_id", attemptID.String()).
		Int("student_id", studentID).
		Logger()
	wsLog.Info().Msg("Attempt stream connected")

	s := &attemptStream{
		sessions:  h.sessions,
		conn:      conn,
		log:       wsLog,
		examID:    examID,
		attemptID: attemptID,
		studentID: studentID,
	}

	ctx := c.Request.Context()
	for {
		env, err := ws.ReadEnvelope(conn)
		if err != nil {
			if errors.Is(err, ws.ErrMalformed) {
				_ = ws.WriteError(conn, string(response.ErrInvalidPayload), response.GetMessage(response.ErrInvalidPayload))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch env.Action {
		case ws.ActionAutosave:
			s.autosave(ctx, env.Data)
		case ws.ActionSubmit:
			if s.submit(ctx, env.Data) {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"))
				return
			}
		case ws.ActionPing:
			_ = ws.Write(conn, ws.EventPong, nil)
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(env.Action))
		}
	}
}

// attemptStream carries the per-connection state of one stream.
type attemptStream struct {
	sessions  SessionAPI
	conn      *websocket.Conn
	log       zerolog.Logger
	examID    uuid.UUID
	attemptID uuid.UUID
	studentID int
}

func (s *attemptStream) autosave(ctx context.Context, data json.RawMessage) {
	var req ws.AutosaveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.writeCode(response.ErrInvalidPayload)
		return
	}
	questionID, err := uuid.Parse(req.QuestionID)
	if err != nil || req.TimeSpent < 0 {
		s.writeCode(response.ErrValidation)
		return
	}

	ack, err := s.sessions.SaveAnswer(ctx, s.examID, s.attemptID, service.SaveAnswerInput{
		StudentID:  s.studentID,
		QuestionID: questionID,
		Answer:     req.Answer,
		TimeSpent:  req.TimeSpent,
	})
	if err != nil {
		s.writeErr(err)
		return
	}
	_ = ws.Write(s.conn, ws.EventSaved, ack)
}

// submit reports whether the attempt was sealed.
func (s *attemptStream) submit(ctx context.Context, data json.RawMessage) bool {
	var req ws.SubmitRequest
	if len(data) > 0 {
		if err := json.Unmarshal(data, &req); err != nil {
			s.writeCode(response.ErrInvalidPayload)
			return false
		}
	}

	var answers []model.SubmitAnswerItem
	if req.Answers != nil {
		answers = make([]model.SubmitAnswerItem, 0, len(req.Answers))
		for _, a := range req.Answers {
			questionID, err := uuid.Parse(a.QuestionID)
			if err != nil || a.TimeSpent < 0 {
				s.writeCode(response.ErrValidation)
				return false
			}
			answers = append(answers, model.SubmitAnswerItem{
				QuestionID: questionID,
				Answer:     a.Answer,
				TimeSpent:  a.TimeSpent,
			})
		}
	}

	result, err := s.sessions.Submit(ctx, service.SubmitInput{
		ExamID:         s.examID,
		AttemptID:      s.attemptID,
		StudentID:      s.studentID,
		Answers:        answers,
		TotalTimeSpent: req.TotalTimeSpent,
		Trigger:        model.SubmitTriggerClient,
	})
	if err != nil {
		s.writeErr(err)
		return false
	}

	s.log.Info().
		Float64("score", result.TotalScore).
		Str("grade", result.Grade).
		Msg("Attempt submitted over stream")
	_ = ws.Write(s.conn, ws.EventGraded, result)
	return true
}

func (s *attemptStream) writeErr(err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Stream action failed")
	}
	s.writeCode(code)
}

func (s *attemptStream) writeCode(code response.ErrCode) {
	_ = ws.WriteError(s.conn, string(code), response.GetMessage(code))
}
