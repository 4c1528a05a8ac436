package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
)

// ConductHandler handles exam-wide conduct operations.
type ConductHandler struct {
	conductService *service.ExamConductService
	log            zerolog.Logger
}

// NewConductHandler creates a new ConductHandler.
func NewConductHandler(conductService *service.ExamConductService, log zerolog.Logger) *ConductHandler {
	return &ConductHandler{
		conductService: conductService,
		log:            log.With().Str("component", "conduct_handler").Logger(),
	}
}

// Teardown godoc
// DELETE /api/v1/admin/exams/:exam_id/conduct
// Deletes every live event, session and student exam of the exam.
func (h *ConductHandler) Teardown(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	result, err := h.conductService.Teardown(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err, "Failed to tear down exam conduct")
		return
	}

	response.Success(c, http.StatusOK, result)
}
