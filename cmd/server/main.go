package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/assembly"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/database"
	"github.com/stemsi/exam-conduct/internal/handler"
	"github.com/stemsi/exam-conduct/internal/logger"
	"github.com/stemsi/exam-conduct/internal/middleware"
	"github.com/stemsi/exam-conduct/internal/repository"
	"github.com/stemsi/exam-conduct/internal/router"
	"github.com/stemsi/exam-conduct/internal/service"
	"github.com/stemsi/exam-conduct/internal/validator"
	"github.com/stemsi/exam-conduct/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg := config.Load()

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("log_level", cfg.LogLevel).
		Bool("strict_target", cfg.AssemblyStrictTarget).
		Msg("Starting exam conduct server")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to PostgreSQL ─────────────────────────────────────────
	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Initialize Repositories ───────────────────────────────────────
	definitionRepo := repository.NewExamDefinitionRepository(pool)
	studentExamRepo := repository.NewStudentExamRepository(pool)
	sessionRepo := repository.NewExamSessionRepository(pool)
	liveEventRepo := repository.NewExamLiveEventRepository(pool)
	conductRepo := repository.NewConductRepository(pool)
	bus := repository.NewConductBus(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg.JWTSecret)
	liveEventService := service.NewExamLiveEventService(liveEventRepo, studentExamRepo, bus, log)
	studentExamService := service.NewStudentExamService(
		definitionRepo,
		studentExamRepo,
		liveEventService,
		assembly.Options{StrictTargetCount: cfg.AssemblyStrictTarget},
		log,
	)
	sessionService := service.NewExamSessionService(sessionRepo, bus, log)
	suspiciousService := service.NewSuspiciousSessionService(definitionRepo, sessionRepo, cfg.AllowedIPSubnet, log)
	monitorService := service.NewMonitorService(definitionRepo, studentExamRepo, sessionRepo, liveEventRepo, bus, log)
	conductService := service.NewExamConductService(definitionRepo, conductRepo, bus, log)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		StudentExam: handler.NewStudentExamHandler(studentExamService, log),
		Session:     handler.NewSessionHandler(sessionService, log),
		LiveEvent:   handler.NewLiveEventHandler(liveEventService, log),
		Suspicious:  handler.NewSuspiciousSessionHandler(suspiciousService, log),
		Conduct:     handler.NewConductHandler(conductService, log),
		Monitor:     handler.NewMonitorHandler(bus, monitorService, log),
		WS:          handler.NewWSHandler(bus, liveEventService, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())

	integrityWorker := worker.NewIntegrityWorker(rdb, sessionService, bus, worker.IntegrityWorkerConfig{
		BatchSize:    cfg.IntegrityBatchSize,
		CheckTimeout: cfg.IntegrityCheckTimeout,
		MaxAttempts:  cfg.IntegrityMaxAttempts,
	}, log)

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		integrityWorker.Start(workerCtx)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	assemblyLimiter := middleware.NewRateLimiter(
		middleware.NewRedisWindowCounter(rdb), "assembly", cfg.AssemblyRateLimit, time.Minute, log)
	r := router.SetupRouter(authService, assemblyLimiter, handlers, cfg, log)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: r,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop the integrity worker; it requeues whatever it still buffers.
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Integrity worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
