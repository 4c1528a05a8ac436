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

// SessionHandler records exam sessions and exposes session matching.
type SessionHandler struct {
	sessionService *service.ExamSessionService
	log            zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.ExamSessionService, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
		log:            log.With().Str("component", "session_handler").Logger(),
	}
}

// StartSession godoc
// POST /api/v1/student/student-exams/:id/sessions
// Records a new session every time the student (re)starts their exam.
func (h *SessionHandler) StartSession(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	studentExamID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req model.StartSessionRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	info := model.SessionInfo{
		IPAddress:       model.Text(c.ClientIP()),
		FingerprintHash: model.Text(req.FingerprintHash),
		UserAgent:       model.Text(c.Request.UserAgent()),
		InstanceID:      model.Text(req.InstanceID),
	}

	session, err := h.sessionService.RecordSessionForUser(c.Request.Context(), claims.UserID, studentExamID, info)
	if err != nil {
		failService(c, h.log, err, "Failed to record exam session")
		return
	}

	response.Created(c, gin.H{"session": session})
}

// ListMatches godoc
// GET /api/v1/admin/exams/:exam_id/sessions/:session_id/matches
// Lists sessions of other students that match the session on whichever of IP
// address and browser fingerprint it has. An absent value does not restrict.
func (h *SessionHandler) ListMatches(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	sessionID, ok := int64Param(c, "session_id")
	if !ok {
		return
	}

	matches, err := h.sessionService.MatchesForSession(c.Request.Context(), examID, sessionID)
	if err != nil {
		failService(c, h.log, err, "Failed to find matching sessions")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"sessions": matches})
}
