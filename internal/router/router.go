package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/handler"
	"github.com/stemsi/exam-conduct/internal/middleware"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/response"
)

// Handlers groups all handler instances for route setup.
type Handlers struct {
	StudentExam *handler.StudentExamHandler
	Session     *handler.SessionHandler
	LiveEvent   *handler.LiveEventHandler
	Suspicious  *handler.SuspiciousSessionHandler
	Conduct     *handler.ConductHandler
	Monitor     *handler.MonitorHandler
	WS          *handler.WSHandler
}

// SetupRouter configures all Gin route groups with appropriate middlewares.
func SetupRouter(
	auth middleware.TokenValidator,
	assemblyLimiter *middleware.RateLimiter,
	handlers *Handlers,
	cfg *config.Config,
	log zerolog.Logger,
) *gin.Engine {
	gin.SetMode(cfg.GinMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// ─── CORS ──────────────────────────────────────────────────────────
	// If AllowedOrigins is set in config, restrict to that list;
	// otherwise allow all (*) so dev works without extra config.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
	corsConfig.ExposeHeaders = []string{"X-Request-ID"}
	corsConfig.MaxAge = 12 * time.Hour
	router.Use(cors.New(corsConfig))

	// Apply request ID middleware globally so every response includes metadata.
	router.Use(response.RequestIDMiddleware())
	router.Use(middleware.RequestLogger(log))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	timeout := middleware.RequestTimeout(cfg.RequestTimeout)

	// ─── 1. Student Group (JWT) ────────────────────────────────────────
	studentAPI := router.Group("/api/v1/student")
	studentAPI.Use(middleware.RequireStudentJWT(auth), timeout)
	{
		// Session starts are never limited: a student must always be able to resume.
		studentAPI.POST("/student-exams/:id/sessions", handlers.Session.StartSession)
		studentAPI.GET("/exams/:exam_id/student-exams/:id/live-events", handlers.LiveEvent.ListForStudent)
	}

	// ─── 2. WebSocket Group (Student WS Auth) ──────────────────────────
	ws := router.Group("/ws/v1")
	ws.Use(middleware.RequireStudentWSAuth(auth))
	{
		ws.GET("/student/exams/:exam_id/student-exams/:id/live-events", handlers.WS.LiveEventStream)
	}

	// ─── 3. Admin Group (JWT + RBAC) ───────────────────────────────────
	adminAPI := router.Group("/api/v1/admin")
	adminAPI.Use(middleware.RequireAdminJWT(auth), timeout)
	{
		// Student exam assembly
		limitAssembly := assemblyLimiter.Middleware()
		adminAPI.POST("/exams/:exam_id/student-exams/generate",
			middleware.RequirePermission(model.PermissionExamsConduct),
			limitAssembly,
			handlers.StudentExam.Generate,
		)
		adminAPI.POST("/exams/:exam_id/student-exams/generate-missing",
			middleware.RequirePermission(model.PermissionExamsConduct),
			limitAssembly,
			handlers.StudentExam.GenerateMissing,
		)
		adminAPI.POST("/exams/:exam_id/student-exams/users/:user_id/generate",
			middleware.RequirePermission(model.PermissionExamsConduct),
			limitAssembly,
			handlers.StudentExam.GenerateIndividual,
		)
		adminAPI.POST("/exams/:exam_id/test-runs",
			middleware.RequirePermission(model.PermissionExamsConduct),
			limitAssembly,
			handlers.StudentExam.CreateTestRun,
		)
		adminAPI.PATCH("/student-exams/:id/working-time",
			middleware.RequirePermission(model.PermissionExamsConduct),
			handlers.StudentExam.UpdateWorkingTime,
		)

		// Live events
		adminAPI.POST("/exams/:exam_id/announcements",
			middleware.RequirePermission(model.PermissionExamsConduct),
			handlers.LiveEvent.Announce,
		)
		adminAPI.POST("/exams/:exam_id/student-exams/:id/attendance-check",
			middleware.RequirePermission(model.PermissionExamsConduct),
			handlers.LiveEvent.AttendanceCheck,
		)

		// Session integrity
		adminAPI.GET("/exams/:exam_id/sessions/:session_id/matches",
			middleware.RequirePermission(model.PermissionExamsMonitor),
			handlers.Session.ListMatches,
		)
		adminAPI.GET("/exams/:exam_id/suspicious-sessions",
			middleware.RequirePermission(model.PermissionExamsMonitor),
			handlers.Suspicious.Analyze,
		)
		adminAPI.GET("/exams/:exam_id/monitor/snapshot",
			middleware.RequirePermission(model.PermissionExamsMonitor),
			handlers.Monitor.Snapshot,
		)

		// Teardown
		adminAPI.DELETE("/exams/:exam_id/conduct",
			middleware.RequirePermission(model.PermissionExamsDelete),
			handlers.Conduct.Teardown,
		)
	}

	// ─── 4. Admin Streams (JWT + RBAC, no timeout) ─────────────────────
	adminStream := router.Group("/api/v1/admin")
	adminStream.Use(middleware.RequireAdminJWT(auth))
	{
		adminStream.GET("/exams/:exam_id/monitor",
			middleware.RequirePermission(model.PermissionExamsMonitor),
			handlers.Monitor.MonitorExamSSE,
		)
	}

	return router
}
