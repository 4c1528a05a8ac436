package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/repository"
)

// ExamConductService runs administrative commands over an exam's conduct data.
type ExamConductService struct {
	definitions ExamDefinitionStore
	store       ConductStore
	cache       ExamCacheCleaner
	log         zerolog.Logger
}

// NewExamConductService creates a new ExamConductService.
func NewExamConductService(definitions ExamDefinitionStore, store ConductStore, cache ExamCacheCleaner, log zerolog.Logger) *ExamConductService {
	return &ExamConductService{
		definitions: definitions,
		store:       store,
		cache:       cache,
		log:         log.With().Str("component", "exam_conduct_service").Logger(),
	}
}

// Teardown deletes all sessions, live events and student exams of an exam
// and clears its cached integrity flags.
func (s *ExamConductService) Teardown(ctx context.Context, examID uuid.UUID) (*repository.TeardownResult, error) {
	exists, err := s.definitions.Exists(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("check exam: %w", err)
	}
	if !exists {
		return nil, ErrNotFound
	}

	res, err := s.store.Teardown(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("teardown exam: %w", err)
	}

	if err := s.cache.ClearExam(ctx, examID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to clear exam cache after teardown")
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int64("student_exams", res.StudentExams).
		Int64("sessions", res.Sessions).
		Int64("live_events", res.LiveEvents).
		Msg("Exam conduct data deleted")

	return &res, nil
}
