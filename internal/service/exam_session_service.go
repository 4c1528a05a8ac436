package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/model"
)

const sessionTokenLength = 16

// ExamSessionService records session starts and answers the duplicate device
// queries proctors run against them.
type ExamSessionService struct {
	sessions ExamSessionStore
	queue    IntegrityQueue
	log      zerolog.Logger
}

// NewExamSessionService creates a new ExamSessionService.
func NewExamSessionService(sessions ExamSessionStore, queue IntegrityQueue, log zerolog.Logger) *ExamSessionService {
	return &ExamSessionService{
		sessions: sessions,
		queue:    queue,
		log:      log.With().Str("component", "exam_session_service").Logger(),
	}
}

// RecordSession stores a new session for a student exam.
func (s *ExamSessionService) RecordSession(ctx context.Context, studentExamID int64, info model.SessionInfo) (*model.ExamSession, error) {
	return s.record(ctx, studentExamID, 0, info)
}

// RecordSessionForUser stores a new session for a student exam owned by userID.
// A student exam of another user is reported as ErrNotFound.
func (s *ExamSessionService) RecordSessionForUser(ctx context.Context, userID int, studentExamID int64, info model.SessionInfo) (*model.ExamSession, error) {
	return s.record(ctx, studentExamID, userID, info)
}

func (s *ExamSessionService) record(ctx context.Context, studentExamID int64, userID int, info model.SessionInfo) (*model.ExamSession, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	session, err := s.sessions.Record(ctx, studentExamID, userID, token, info)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("record session: %w", err)
	}

	s.log.Debug().
		Int64("session_id", session.ID).
		Int64("student_exam_id", studentExamID).
		Int("sequence", session.SequenceNumber).
		Msg("Exam session started")

	// Test runs are never matched against other students.
	if !session.TestRun {
		s.enqueueIntegrityCheck(ctx, session)
	}

	return session, nil
}

// enqueueIntegrityCheck hands the session to the integrity worker. A queue
// outage must never block a student from starting the exam.
func (s *ExamSessionService) enqueueIntegrityCheck(ctx context.Context, session *model.ExamSession) {
	job := &model.IntegrityCheckJob{
		SessionID:     session.ID,
		StudentExamID: session.StudentExamID,
		ExamID:        session.ExamID,
		UserID:        session.UserID,
		IPAddress:     session.IPAddress.String,
		Fingerprint:   session.FingerprintHash.String,
		EnqueuedAt:    time.Now(),
	}
	if err := s.queue.EnqueueIntegrityCheck(ctx, job); err != nil {
		s.log.Warn().Err(err).
			Int64("session_id", session.ID).
			Msg("Failed to enqueue integrity check")
	}
}

// SessionCount returns the number of sessions started for a student exam.
func (s *ExamSessionService) SessionCount(ctx context.Context, studentExamID int64) (int, error) {
	n, err := s.sessions.CountByStudentExam(ctx, studentExamID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return n, nil
}

// IsInitialSession reports whether the student exam has exactly one session.
func (s *ExamSessionService) IsInitialSession(ctx context.Context, studentExamID int64) (bool, error) {
	n, err := s.SessionCount(ctx, studentExamID)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// FindMatchingSessions returns sessions of other student exams in the same
// exam sharing the query's IP address and fingerprint.
func (s *ExamSessionService) FindMatchingSessions(ctx context.Context, q model.SessionMatchQuery) ([]model.ExamSession, error) {
	matches, err := s.sessions.FindMatching(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("find matching sessions: %w", err)
	}
	if matches == nil {
		matches = []model.ExamSession{}
	}
	return matches, nil
}

// MatchesForSession runs FindMatchingSessions for a recorded session, using
// its own IP address and fingerprint as the criteria.
func (s *ExamSessionService) MatchesForSession(ctx context.Context, examID uuid.UUID, sessionID int64) ([]model.ExamSession, error) {
	session, err := s.sessions.GetByID(ctx, examID, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return s.FindMatchingSessions(ctx, MatchQueryFor(session))
}

// MatchQueryFor builds the match query for a recorded session.
func MatchQueryFor(session *model.ExamSession) model.SessionMatchQuery {
	return model.SessionMatchQuery{
		ExamID:                 session.ExamID,
		ExcludingSessionID:     session.ID,
		ExcludingStudentExamID: session.StudentExamID,
		IPAddress:              session.IPAddress,
		FingerprintHash:        session.FingerprintHash,
	}
}

func newSessionToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b)[:sessionTokenLength], nil
}
