package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-engine/internal/response"
	"github.com/stemsi/exstem-engine/internal/service"
)

// errorMapping pairs a domain sentinel with its HTTP status and API code.
type errorMapping struct {
	err    error
	status int
	code   response.ErrCode
}

// Client-input failures are 400, not 409 or 422.
var errorMappings = []errorMapping{
	{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
	{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
	{service.ErrExamNotActive, http.StatusBadRequest, response.ErrExamNotActive},
	{service.ErrAttemptsExhausted, http.StatusBadRequest, response.ErrAttemptsExhausted},
	{service.ErrAttemptNotActive, http.StatusBadRequest, response.ErrAttemptNotActive},
	{service.ErrAttemptNotDue, http.StatusBadRequest, response.ErrAttemptNotActive},
	{service.ErrQuestionNotInExam, http.StatusBadRequest, response.ErrQuestionNotInExam},
	{service.ErrAttemptNotFinished, http.StatusBadRequest, response.ErrAttemptNotFinished},
	{service.ErrNothingToGrade, http.StatusBadRequest, response.ErrNothingToGrade},
	{service.ErrInvalidGrade, http.StatusBadRequest, response.ErrInvalidGrade},
	{service.ErrInvalidQuestion, http.StatusBadRequest, response.ErrValidation},
	{service.ErrInvalidExam, http.StatusBadRequest, response.ErrValidation},
}

// classify maps err to its status and code. Unknown errors are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// fail writes err through the response envelope. Internal errors are
// logged; expected domain outcomes only at debug level.
func fail(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", response.RequestID(c)).Str("path", c.FullPath()).Msg("Request failed")
	} else {
		log.Debug().Err(err).Str("code", string(code)).Msg("Request rejected")
	}
	response.Fail(c, status, code)
}

// parseUUIDParam reads a UUID path parameter, answering 400 when malformed.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
