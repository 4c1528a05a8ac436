package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/repository"
)

const recentLiveEventLimit = 20

// MonitorService builds the proctor's live view of an exam.
type MonitorService struct {
	definitions  ExamDefinitionStore
	studentExams StudentExamStore
	sessions     ExamSessionStore
	liveEvents   LiveEventStore
	flags        IntegrityFlagReader
	log          zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(
	definitions ExamDefinitionStore,
	studentExams StudentExamStore,
	sessions ExamSessionStore,
	liveEvents LiveEventStore,
	flags IntegrityFlagReader,
	log zerolog.Logger,
) *MonitorService {
	return &MonitorService{
		definitions:  definitions,
		studentExams: studentExams,
		sessions:     sessions,
		liveEvents:   liveEvents,
		flags:        flags,
		log:          log.With().Str("component", "monitor_service").Logger(),
	}
}

// EnsureExam returns ErrNotFound if the exam does not exist.
func (s *MonitorService) EnsureExam(ctx context.Context, examID uuid.UUID) error {
	exists, err := s.definitions.Exists(ctx, examID)
	if err != nil {
		return fmt.Errorf("check exam: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// Snapshot gathers progress, session totals, integrity flags and recent live
// events concurrently. Progress is required; everything else is best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*model.MonitorSnapshot, error) {
	var (
		progress      repository.ExamProgress
		totalSessions int
		flags         map[int]int64
		recent        []model.ExamLiveEvent

		progressErr, sessionsErr, flagsErr, eventsErr error
		wg                                           sync.WaitGroup
	)

	wg.Add(4)
	go func() {
		defer wg.Done()
		progress, progressErr = s.studentExams.ProgressByExam(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		totalSessions, sessionsErr = s.sessions.CountByExam(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		flags, flagsErr = s.flags.IntegrityFlagCounts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		recent, eventsErr = s.liveEvents.ListRecent(ctx, examID, recentLiveEventLimit)
	}()
	wg.Wait()

	if progressErr != nil {
		if errors.Is(progressErr, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam progress: %w", progressErr)
	}

	snapshot := &model.MonitorSnapshot{
		ExamID:           examID,
		StudentExams:     progress.Total,
		StartedExams:     progress.Started,
		SubmittedExams:   progress.Submitted,
		IntegrityFlags:   map[int]int64{},
		RecentLiveEvents: []model.ExamLiveEvent{},
	}

	if sessionsErr == nil {
		snapshot.TotalSessions = totalSessions
	} else {
		s.log.Warn().Err(sessionsErr).Msg("Failed to count sessions for monitor snapshot")
	}
	if flagsErr == nil && flags != nil {
		snapshot.IntegrityFlags = flags
	} else if flagsErr != nil {
		s.log.Warn().Err(flagsErr).Msg("Failed to read integrity flags for monitor snapshot")
	}
	if eventsErr == nil && recent != nil {
		snapshot.RecentLiveEvents = recent
	} else if eventsErr != nil {
		s.log.Warn().Err(eventsErr).Msg("Failed to list live events for monitor snapshot")
	}

	return snapshot, nil
}
