package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
)

// serviceErrors maps conduct errors to their HTTP status and error code.
var serviceErrors = []struct {
	err    error
	status int
	code   response.ErrCode
}{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrConfiguration, http.StatusUnprocessableEntity, response.ErrExamConfiguration},
	{service.ErrTestRunNoLiveEvents, http.StatusConflict, response.ErrTestRunNoLiveEvents},
	{service.ErrInvalidWorkingTime, http.StatusBadRequest, response.ErrInvalidWorkingTime},
	{service.ErrExerciseNotInExam, http.StatusBadRequest, response.ErrExerciseNotInExam},
	{service.ErrUserNotRegistered, http.StatusUnprocessableEntity, response.ErrUserNotRegistered},
	{service.ErrStudentExamExists, http.StatusConflict, response.ErrStudentExamExists},
	{service.ErrInvalidSubnet, http.StatusBadRequest, response.ErrInvalidSubnet},
}

// failService writes the response for an error returned by a service.
// Unknown errors are logged and reported as internal errors.
func failService(c *gin.Context, log zerolog.Logger, err error, msg string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			response.Fail(c, m.status, m.code)
			return
		}
	}

	log.Error().Err(err).Str("request_id", response.RequestID(c)).Msg(msg)
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}

// examIDParam parses the :exam_id path parameter. It writes the failure
// response itself and reports false when the id is malformed.
func examIDParam(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}

// int64Param parses a positive integer path parameter.
func int64Param(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return 0, false
	}
	return id, true
}
