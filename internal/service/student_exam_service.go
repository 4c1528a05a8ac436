package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/assembly"
	"github.com/stemsi/exam-conduct/internal/model"
)

// StudentExamService assembles and persists individualized student exams.
type StudentExamService struct {
	definitions ExamDefinitionStore
	exams       StudentExamStore
	liveEvents  *ExamLiveEventService
	opts        assembly.Options
	newRandom   func() assembly.Random
	log         zerolog.Logger
}

// NewStudentExamService creates a new StudentExamService. Assembly draws from
// a cryptographically secure source.
func NewStudentExamService(
	definitions ExamDefinitionStore,
	exams StudentExamStore,
	liveEvents *ExamLiveEventService,
	opts assembly.Options,
	log zerolog.Logger,
) *StudentExamService {
	return &StudentExamService{
		definitions: definitions,
		exams:       exams,
		liveEvents:  liveEvents,
		opts:        opts,
		newRandom:   func() assembly.Random { return assembly.NewSecureRandom() },
		log:         log.With().Str("component", "student_exam_service").Logger(),
	}
}

// Generate assembles a student exam for every registered user, replacing the
// exam's existing non-test-run student exams. Nothing is written unless every
// user's student exam could be assembled.
func (s *StudentExamService) Generate(ctx context.Context, examID uuid.UUID) (*model.GenerateResult, error) {
	plan, err := s.plan(ctx, examID)
	if err != nil {
		return nil, err
	}

	users, err := s.definitions.ListRegisteredUserIDs(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list registered users: %w", err)
	}

	exams := s.draw(plan, users)
	if err := s.exams.ReplaceForExam(ctx, examID, exams); err != nil {
		return nil, fmt.Errorf("save student exams: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("count", len(exams)).
		Msg("Student exams generated")

	return &model.GenerateResult{ExamID: examID, Generated: len(exams), MissingSlots: plan.Shortfall()}, nil
}

// GenerateMissing assembles student exams only for registered users that do
// not have one yet.
func (s *StudentExamService) GenerateMissing(ctx context.Context, examID uuid.UUID) (*model.GenerateResult, error) {
	plan, err := s.plan(ctx, examID)
	if err != nil {
		return nil, err
	}

	users, err := s.definitions.ListUsersWithoutStudentExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list users without student exam: %w", err)
	}

	exams := s.draw(plan, users)
	if err := s.exams.CreateMany(ctx, exams); err != nil {
		return nil, fmt.Errorf("save student exams: %w", err)
	}

	s.log.Info().
		Str("exam_id", examID.String()).
		Int("count", len(exams)).
		Msg("Missing student exams generated")

	return &model.GenerateResult{ExamID: examID, Generated: len(exams), MissingSlots: plan.Shortfall()}, nil
}

// GenerateIndividual assembles the student exam of a single registered user.
func (s *StudentExamService) GenerateIndividual(ctx context.Context, examID uuid.UUID, userID int) (*model.StudentExam, error) {
	plan, err := s.plan(ctx, examID)
	if err != nil {
		return nil, err
	}

	registered, err := s.definitions.IsRegistered(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("check registration: %w", err)
	}
	if !registered {
		return nil, ErrUserNotRegistered
	}

	exists, err := s.exams.ExistsForUser(ctx, examID, userID)
	if err != nil {
		return nil, fmt.Errorf("check existing student exam: %w", err)
	}
	if exists {
		return nil, ErrStudentExamExists
	}

	exams := s.draw(plan, []int{userID})
	if err := s.exams.CreateMany(ctx, exams); err != nil {
		return nil, fmt.Errorf("save student exam: %w", err)
	}
	return &exams[0], nil
}

// CreateTestRun creates a dry run for a staff member with a hand-picked set of
// exercises. Test runs are excluded from integrity checks and live events.
func (s *StudentExamService) CreateTestRun(ctx context.Context, examID uuid.UUID, userID int, req model.CreateTestRunRequest) (*model.StudentExam, error) {
	if req.WorkingTimeSeconds <= 0 {
		return nil, ErrInvalidWorkingTime
	}

	def, err := s.definition(ctx, examID)
	if err != nil {
		return nil, err
	}

	exercises := make([]model.Exercise, 0, len(req.ExerciseIDs))
	for _, id := range req.ExerciseIDs {
		ex, ok := def.FindExercise(id)
		if !ok {
			return nil, fmt.Errorf("%w: exercise %d", ErrExerciseNotInExam, id)
		}
		exercises = append(exercises, ex)
	}

	exams := []model.StudentExam{{
		ExamID:             examID,
		UserID:             userID,
		Exercises:          exercises,
		WorkingTimeSeconds: req.WorkingTimeSeconds,
		TestRun:            true,
	}}
	if err := s.exams.CreateMany(ctx, exams); err != nil {
		return nil, fmt.Errorf("save test run: %w", err)
	}
	return &exams[0], nil
}

// UpdateWorkingTime overrides a student's working time and notifies the
// student through the live event log.
func (s *StudentExamService) UpdateWorkingTime(ctx context.Context, studentExamID int64, seconds int, authorID int) (*model.StudentExam, error) {
	if seconds <= 0 {
		return nil, ErrInvalidWorkingTime
	}

	se, err := s.exams.GetByID(ctx, studentExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get student exam: %w", err)
	}

	old, err := s.exams.UpdateWorkingTime(ctx, studentExamID, seconds)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update working time: %w", err)
	}
	se.WorkingTimeSeconds = seconds

	if !se.TestRun && old != seconds {
		if _, err := s.liveEvents.NotifyWorkingTimeUpdate(ctx, se, seconds, old, false, &authorID); err != nil {
			s.log.Warn().Err(err).
				Int64("student_exam_id", studentExamID).
				Msg("Working time updated but live event could not be stored")
		}
	}

	return se, nil
}

// Preview assembles student exams for the given users without saving them.
func (s *StudentExamService) Preview(ctx context.Context, examID uuid.UUID, userIDs []int) ([]model.StudentExam, error) {
	def, err := s.definition(ctx, examID)
	if err != nil {
		return nil, err
	}
	return assembly.Assemble(def, userIDs, s.newRandom(), s.opts)
}

func (s *StudentExamService) definition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	def, err := s.definitions.GetDefinition(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam definition: %w", err)
	}
	return def, nil
}

func (s *StudentExamService) plan(ctx context.Context, examID uuid.UUID) (*assembly.Plan, error) {
	def, err := s.definition(ctx, examID)
	if err != nil {
		return nil, err
	}

	plan, err := assembly.NewPlan(def, s.opts)
	if err != nil {
		return nil, err
	}
	if missing := plan.Shortfall(); missing > 0 {
		s.log.Warn().
			Str("exam_id", examID.String()).
			Int("target", *def.TargetExerciseCount).
			Int("missing", missing).
			Msg("Not enough optional exercise groups to reach the target exercise count")
	}
	return plan, nil
}

func (s *StudentExamService) draw(plan *assembly.Plan, users []int) []model.StudentExam {
	rng := s.newRandom()
	exams := make([]model.StudentExam, 0, len(users))
	for _, uid := range users {
		exams = append(exams, plan.Draw(uid, rng))
	}
	return exams
}
