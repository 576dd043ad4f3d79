package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/middleware"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stemsi/exstem-engine/internal/response"
	"github.com/stemsi/exstem-engine/internal/service"
	"github.com/stemsi/exstem-engine/internal/validator"
)

// SessionAPI is the slice of the session service the HTTP and WebSocket
// surfaces call.
type SessionAPI interface {
	Start(ctx context.Context, examID uuid.UUID, studentID int) (*model.Attempt, bool, error)
	TakingView(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamPayload, error)
	SaveAnswer(ctx context.Context, examID, attemptID uuid.UUID, in service.SaveAnswerInput) (*model.SaveAnswerResponse, error)
	Submit(ctx context.Context, in service.SubmitInput) (*model.SubmitResult, error)
	Result(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptResult, error)
	History(ctx context.Context, examID uuid.UUID, studentID int) (*model.AttemptHistory, error)
	GradeAnswers(ctx context.Context, attemptID uuid.UUID, grades []model.ManualGrade) (*model.SubmitResult, error)
}

// AttemptHandler serves the student exam-taking endpoints.
type AttemptHandler struct {
	sessions SessionAPI
	log      zerolog.Logger
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(sessions SessionAPI, log zerolog.Logger) *AttemptHandler {
	return &AttemptHandler{
		sessions: sessions,
		log:      log.With().Str("component", "attempt_handler").Logger(),
	}
}

// TakeExam godoc
// GET /api/v1/exams/:exam_id/take?studentId=
// Returns the shuffled, sanitized exam for the student's open attempt.
func (h *AttemptHandler) TakeExam(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}
	studentID, ok := resolveStudent(c, c.Query("studentId"))
	if !ok {
		return
	}

	payload, err := h.sessions.TakingView(c.Request.Context(), examID, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, payload)
}

// StartAttempt godoc
// POST /api/v1/exams/:exam_id/start
// Opens a new attempt, or returns the one already in progress.
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.StartAttemptRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}
	studentID, ok := resolveStudentID(c, req.StudentID)
	if !ok {
		return
	}

	attempt, created, err := h.sessions.Start(c.Request.Context(), examID, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	response.Success(c, status, model.StartAttemptResponse{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		Created:       created,
		DeadlineAt:    attempt.DeadlineAt,
	})
}

// SaveAnswer godoc
// POST /api/v1/exams/:exam_id/attempts/:attempt_id/answer
func (h *AttemptHandler) SaveAnswer(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ack, err := h.sessions.SaveAnswer(c.Request.Context(), examID, attemptID, service.SaveAnswerInput{
		StudentID:  claimedStudent(c),
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		TimeSpent:  req.TimeSpent,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, ack)
}

// SubmitAttempt godoc
// POST /api/v1/exams/:exam_id/attempts/:attempt_id/submit
// Seals the attempt and returns its score.
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.SubmitAttemptRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	result, err := h.sessions.Submit(c.Request.Context(), service.SubmitInput{
		ExamID:         examID,
		AttemptID:      attemptID,
		StudentID:      claimedStudent(c),
		Answers:        req.Answers,
		TotalTimeSpent: req.TotalTimeSpent,
		Trigger:        model.SubmitTriggerClient,
	})
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/exams/:exam_id/result/:student_id
func (h *AttemptHandler) GetResult(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}
	studentID, ok := resolveStudent(c, c.Param("student_id"))
	if !ok {
		return
	}

	result, err := h.sessions.Result(c.Request.Context(), examID, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// GetHistory godoc
// GET /api/v1/exams/:exam_id/attempts?studentId=
func (h *AttemptHandler) GetHistory(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}
	studentID, ok := resolveStudent(c, c.Query("studentId"))
	if !ok {
		return
	}

	history, err := h.sessions.History(c.Request.Context(), examID, studentID)
	if err != nil {
		fail(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, history)
}

// resolveStudent parses a student id from the query or path and reconciles
// it with the token, if any.
func resolveStudent(c *gin.Context, raw string) (int, bool) {
	supplied := 0
	if raw != "" {
		id, err := strconv.Atoi(raw)
		if err != nil || id <= 0 {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return 0, false
		}
		supplied = id
	}
	return resolveStudentID(c, supplied)
}

// resolveStudentID picks the acting student. A verified token wins, and a
// supplied id that disagrees with it is forbidden. Without a token the
// supplied id is required.
func resolveStudentID(c *gin.Context, supplied int) (int, bool) {
	if claims := middleware.GetClaims(c); claims != nil {
		if supplied != 0 && supplied != claims.UserID {
			response.Fail(c, http.StatusForbidden, response.ErrForbidden)
			return 0, false
		}
		return claims.UserID, true
	}
	if supplied <= 0 {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
			"studentId": "studentId wajib diisi",
		})
		return 0, false
	}
	return supplied, true
}

// claimedStudent is the token's student, or 0 when the request is anonymous.
func claimedStudent(c *gin.Context) int {
	if claims := middleware.GetClaims(c); claims != nil {
		return claims.UserID
	}
	return 0
}
