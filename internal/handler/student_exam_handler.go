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

// StudentExamHandler handles student exam assembly and administration.
type StudentExamHandler struct {
	studentExamService *service.StudentExamService
	log                zerolog.Logger
}

// NewStudentExamHandler creates a new StudentExamHandler.
func NewStudentExamHandler(studentExamService *service.StudentExamService, log zerolog.Logger) *StudentExamHandler {
	return &StudentExamHandler{
		studentExamService: studentExamService,
		log:                log.With().Str("component", "student_exam_handler").Logger(),
	}
}

// Generate godoc
// POST /api/v1/admin/exams/:exam_id/student-exams/generate
// Replaces every non test-run student exam with a freshly assembled one.
func (h *StudentExamHandler) Generate(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	result, err := h.studentExamService.Generate(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err, "Failed to generate student exams")
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GenerateMissing godoc
// POST /api/v1/admin/exams/:exam_id/student-exams/generate-missing
// Assembles student exams only for registered users who have none yet.
func (h *StudentExamHandler) GenerateMissing(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	result, err := h.studentExamService.GenerateMissing(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err, "Failed to generate missing student exams")
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GenerateIndividual godoc
// POST /api/v1/admin/exams/:exam_id/student-exams/users/:user_id/generate
func (h *StudentExamHandler) GenerateIndividual(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	userID, ok := int64Param(c, "user_id")
	if !ok {
		return
	}

	se, err := h.studentExamService.GenerateIndividual(c.Request.Context(), examID, int(userID))
	if err != nil {
		failService(c, h.log, err, "Failed to generate individual student exam")
		return
	}

	response.Created(c, gin.H{"student_exam": se})
}

// CreateTestRun godoc
// POST /api/v1/admin/exams/:exam_id/test-runs
// Creates a dry run for the calling staff member with hand-picked exercises.
func (h *StudentExamHandler) CreateTestRun(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	var req model.CreateTestRunRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	se, err := h.studentExamService.CreateTestRun(c.Request.Context(), examID, claims.UserID, req)
	if err != nil {
		failService(c, h.log, err, "Failed to create test run")
		return
	}

	response.Created(c, gin.H{"student_exam": se})
}

// UpdateWorkingTime godoc
// PATCH /api/v1/admin/student-exams/:id/working-time
func (h *StudentExamHandler) UpdateWorkingTime(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	studentExamID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	var req model.UpdateWorkingTimeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	se, err := h.studentExamService.UpdateWorkingTime(c.Request.Context(), studentExamID, req.WorkingTimeSeconds, claims.UserID)
	if err != nil {
		failService(c, h.log, err, "Failed to update working time")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"student_exam": se})
}
