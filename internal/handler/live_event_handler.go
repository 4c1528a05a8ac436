package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/middleware"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
	"github.com/stemsi/exam-conduct/internal/validator"
)

// LiveEventHandler serves the exam live event log.
type LiveEventHandler struct {
	liveEventService *service.ExamLiveEventService
	log              zerolog.Logger
}

// NewLiveEventHandler creates a new LiveEventHandler.
func NewLiveEventHandler(liveEventService *service.ExamLiveEventService, log zerolog.Logger) *LiveEventHandler {
	return &LiveEventHandler{
		liveEventService: liveEventService,
		log:              log.With().Str("component", "live_event_handler").Logger(),
	}
}

// ListForStudent godoc
// GET /api/v1/student/exams/:exam_id/student-exams/:id/live-events
// Returns global events and the events addressed to the student exam, newest first.
func (h *LiveEventHandler) ListForStudent(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	studentExamID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	events, err := h.liveEventService.FetchForUser(c.Request.Context(), claims.UserID, examID, studentExamID)
	if err != nil {
		failService(c, h.log, err, "Failed to fetch live events")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"live_events": events})
}

// Announce godoc
// POST /api/v1/admin/exams/:exam_id/announcements
func (h *LiveEventHandler) Announce(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.AnnouncementRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	event, err := h.liveEventService.Announce(c.Request.Context(), examID, req.Text, claims.UserID)
	if err != nil {
		failService(c, h.log, err, "Failed to post announcement")
		return
	}

	response.Created(c, gin.H{"live_event": event})
}

// AttendanceCheck godoc
// POST /api/v1/admin/exams/:exam_id/student-exams/:id/attendance-check
func (h *LiveEventHandler) AttendanceCheck(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	studentExamID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req model.AttendanceCheckRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	event, err := h.liveEventService.AttendanceCheck(c.Request.Context(), examID, studentExamID, req.Message, claims.UserID)
	if err != nil {
		failService(c, h.log, err, "Failed to send attendance check")
		return
	}

	response.Created(c, gin.H{"live_event": event})
}
