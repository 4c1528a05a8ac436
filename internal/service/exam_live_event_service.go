package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/model"
)

// ExamLiveEventService maintains the per-exam live event log shown to
// students and proctors.
type ExamLiveEventService struct {
	events       LiveEventStore
	studentExams StudentExamGetter
	publisher    LiveEventPublisher
	log          zerolog.Logger
}

// NewExamLiveEventService creates a new ExamLiveEventService.
func NewExamLiveEventService(
	events LiveEventStore,
	studentExams StudentExamGetter,
	publisher LiveEventPublisher,
	log zerolog.Logger,
) *ExamLiveEventService {
	return &ExamLiveEventService{
		events:       events,
		studentExams: studentExams,
		publisher:    publisher,
		log:          log.With().Str("component", "live_event_service").Logger(),
	}
}

// Append stores a new event. An invalid studentExamID makes the event global.
// The event is published to subscribers after it is stored; a publish failure
// does not fail the append.
func (s *ExamLiveEventService) Append(
	ctx context.Context,
	examID uuid.UUID,
	studentExamID pgtype.Int8,
	eventType model.LiveEventType,
	payload any,
	createdBy *int,
) (*model.ExamLiveEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal live event payload: %w", err)
	}

	e := &model.ExamLiveEvent{
		ExamID:        examID,
		StudentExamID: studentExamID,
		EventType:     eventType,
		Payload:       data,
		CreatedBy:     createdBy,
	}
	if err := s.events.Create(ctx, e); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create live event: %w", err)
	}

	if err := s.publisher.PublishLiveEvent(ctx, e); err != nil {
		s.log.Warn().Err(err).
			Int64("event_id", e.ID).
			Str("exam_id", examID.String()).
			Msg("Failed to publish live event")
	}

	return e, nil
}

// Fetch returns the events visible to a student exam, newest first.
func (s *ExamLiveEventService) Fetch(ctx context.Context, examID uuid.UUID, studentExamID int64) ([]model.ExamLiveEvent, error) {
	if _, err := s.loadStudentExam(ctx, examID, studentExamID, 0); err != nil {
		return nil, err
	}
	return s.list(ctx, examID, studentExamID)
}

// FetchForUser is Fetch restricted to the owner of the student exam.
func (s *ExamLiveEventService) FetchForUser(ctx context.Context, userID int, examID uuid.UUID, studentExamID int64) ([]model.ExamLiveEvent, error) {
	if _, err := s.loadStudentExam(ctx, examID, studentExamID, userID); err != nil {
		return nil, err
	}
	return s.list(ctx, examID, studentExamID)
}

// Authorize checks that a user may follow the live events of a student exam.
func (s *ExamLiveEventService) Authorize(ctx context.Context, userID int, examID uuid.UUID, studentExamID int64) error {
	_, err := s.loadStudentExam(ctx, examID, studentExamID, userID)
	return err
}

func (s *ExamLiveEventService) list(ctx context.Context, examID uuid.UUID, studentExamID int64) ([]model.ExamLiveEvent, error) {
	events, err := s.events.ListForStudentExam(ctx, examID, studentExamID)
	if err != nil {
		return nil, fmt.Errorf("list live events: %w", err)
	}
	if events == nil {
		events = []model.ExamLiveEvent{}
	}
	return events, nil
}

// DeleteAll removes every event of an exam and returns how many were removed.
func (s *ExamLiveEventService) DeleteAll(ctx context.Context, examID uuid.UUID) (int64, error) {
	n, err := s.events.DeleteByExam(ctx, examID)
	if err != nil {
		return 0, fmt.Errorf("delete live events: %w", err)
	}
	return n, nil
}

// Announce posts an exam-wide announcement.
func (s *ExamLiveEventService) Announce(ctx context.Context, examID uuid.UUID, text string, authorID int) (*model.ExamLiveEvent, error) {
	return s.Append(ctx, examID, pgtype.Int8{}, model.LiveEventExamWideAnnouncement,
		model.AnnouncementPayload{Text: text}, &authorID)
}

// NotifyWorkingTimeUpdate tells a student that their working time changed.
func (s *ExamLiveEventService) NotifyWorkingTimeUpdate(
	ctx context.Context,
	se *model.StudentExam,
	newSeconds, oldSeconds int,
	courseWide bool,
	authorID *int,
) (*model.ExamLiveEvent, error) {
	if se.TestRun {
		return nil, ErrTestRunNoLiveEvents
	}
	return s.Append(ctx, se.ExamID, pgtype.Int8{Int64: se.ID, Valid: true}, model.LiveEventWorkingTimeUpdate,
		model.WorkingTimeUpdatePayload{
			NewWorkingTime: newSeconds,
			OldWorkingTime: oldSeconds,
			CourseWide:     courseWide,
		}, authorID)
}

// AttendanceCheck asks a student to confirm their presence.
func (s *ExamLiveEventService) AttendanceCheck(
	ctx context.Context,
	examID uuid.UUID,
	studentExamID int64,
	message string,
	authorID int,
) (*model.ExamLiveEvent, error) {
	if _, err := s.loadStudentExam(ctx, examID, studentExamID, 0); err != nil {
		return nil, err
	}
	return s.Append(ctx, examID, pgtype.Int8{Int64: studentExamID, Valid: true}, model.LiveEventExamAttendanceCheck,
		model.AttendanceCheckPayload{Message: message}, &authorID)
}

// loadStudentExam resolves a student exam of examID. A non-zero userID must
// own it. Test runs are rejected since they never receive live events.
func (s *ExamLiveEventService) loadStudentExam(ctx context.Context, examID uuid.UUID, studentExamID int64, userID int) (*model.StudentExam, error) {
	se, err := s.studentExams.GetByID(ctx, studentExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get student exam: %w", err)
	}
	if se.ExamID != examID || (userID != 0 && se.UserID != userID) {
		return nil, ErrNotFound
	}
	if se.TestRun {
		return nil, ErrTestRunNoLiveEvents
	}
	return se, nil
}
