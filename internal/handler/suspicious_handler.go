package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
	"github.com/stemsi/exam-conduct/internal/validator"
)

// SuspiciousSessionHandler serves the suspicious session analysis.
type SuspiciousSessionHandler struct {
	suspiciousService *service.SuspiciousSessionService
	log               zerolog.Logger
}

// NewSuspiciousSessionHandler creates a new SuspiciousSessionHandler.
func NewSuspiciousSessionHandler(suspiciousService *service.SuspiciousSessionService, log zerolog.Logger) *SuspiciousSessionHandler {
	return &SuspiciousSessionHandler{
		suspiciousService: suspiciousService,
		log:               log.With().Str("component", "suspicious_session_handler").Logger(),
	}
}

// Analyze godoc
// GET /api/v1/admin/exams/:exam_id/suspicious-sessions?same_ip=true&subnet=10.0.0.0/8
// At least one check must be enabled through the query string.
func (h *SuspiciousSessionHandler) Analyze(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var opts model.AnalysisOptions
	if fields := validator.BindQuery(c, &opts); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !opts.Any() {
		response.Fail(c, http.StatusBadRequest, response.ErrNoAnalysisCriteria)
		return
	}

	groups, err := h.suspiciousService.Analyze(c.Request.Context(), examID, opts)
	if err != nil {
		failService(c, h.log, err, "Failed to analyze sessions")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"suspicious_sessions": groups})
}
