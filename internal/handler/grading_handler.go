package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/model"
	"github.com/stemsi/exstem-engine/internal/response"
	"github.com/stemsi/exstem-engine/internal/validator"
)

// GradingHandler lets staff grade answers held for manual review.
type GradingHandler struct {
	sessions SessionAPI
	log      zerolog.Logger
}

func NewGradingHandler(sessions SessionAPI, log zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		sessions: sessions,
		log:      log.With().Str("component", "grading_handler").Logger(),
	}
}

// GradeAnswers godoc
// POST /api/v1/admin/attempts/:attempt_id/grades
// Applies manual points and rescoring; the attempt becomes GRADED once
// nothing is left for review.
func (h *GradingHandler) GradeAnswers(c *gin.Context) {
	attemptID, ok := parseUUIDParam(c, "attempt_id")
	if !ok {
		return
	}

	var req model.ManualGradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.sessions.GradeAnswers(c.Request.Context(), attemptID, req.Grades)
	if err != nil {
		fail(c, h.log, err)
		return
	}

	h.log.Info().
		Str("attempt_id", attemptID.String()).
		Int("graded", len(req.Grades)).
		Int("pending_review", result.PendingReview).
		Msg("Manual grades applied")
	response.Success(c, http.StatusOK, result)
}
