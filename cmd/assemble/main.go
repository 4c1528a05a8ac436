package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exam-conduct/internal/assembly"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/database"
	"github.com/stemsi/exam-conduct/internal/logger"
	"github.com/stemsi/exam-conduct/internal/repository"
	"github.com/stemsi/exam-conduct/internal/service"
)

// assemble generates student exams from the command line, for proctors who
// prepare an exam before the server is reachable.
func main() {
	var (
		examFlag string
		missing  bool
		userID   int
		dryRun   bool
	)
	flag.StringVar(&examFlag, "exam", "", "Exam ID (required)")
	flag.BoolVar(&missing, "missing", false, "Only assemble for registered users without a student exam")
	flag.IntVar(&userID, "user", 0, "Assemble for a single registered user")
	flag.BoolVar(&dryRun, "dry-run", false, "Print the assembled student exams as JSON without saving them")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	examID, err := uuid.Parse(examFlag)
	if err != nil {
		log.Fatal().Err(err).Str("exam", examFlag).Msg("Invalid or missing -exam")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	definitionRepo := repository.NewExamDefinitionRepository(pool)
	studentExamRepo := repository.NewStudentExamRepository(pool)

	// Live events are only needed for working time changes, which this tool never makes.
	studentExamService := service.NewStudentExamService(
		definitionRepo,
		studentExamRepo,
		nil,
		assembly.Options{StrictTargetCount: cfg.AssemblyStrictTarget},
		log,
	)

	switch {
	case dryRun:
		users, err := definitionRepo.ListRegisteredUserIDs(ctx, examID)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list registered users")
		}
		if userID > 0 {
			users = []int{userID}
		}
		exams, err := studentExamService.Preview(ctx, examID, users)
		if err != nil {
			log.Fatal().Err(err).Msg("Assembly failed")
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(exams); err != nil {
			log.Fatal().Err(err).Msg("Failed to write preview")
		}

	case userID > 0:
		se, err := studentExamService.GenerateIndividual(ctx, examID, userID)
		if err != nil {
			log.Fatal().Err(err).Int("user_id", userID).Msg("Assembly failed")
		}
		log.Info().Int64("student_exam_id", se.ID).Int("exercises", len(se.Exercises)).Msg("Student exam assembled")

	default:
		generate := studentExamService.Generate
		if missing {
			generate = studentExamService.GenerateMissing
		}
		result, err := generate(ctx, examID)
		if err != nil {
			log.Fatal().Err(err).Msg("Assembly failed")
		}
		log.Info().
			Int("generated", result.Generated).
			Int("missing_exercises_per_student", result.MissingSlots).
			Msg("Student exams assembled")
	}
}
