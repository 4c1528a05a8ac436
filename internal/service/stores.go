package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/repository"
)

// The interfaces below are satisfied by the pgx repositories and the Redis
// conduct bus in internal/repository.

// ExamDefinitionStore reads exam authoring data.
type ExamDefinitionStore interface {
	GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error)
	Exists(ctx context.Context, examID uuid.UUID) (bool, error)
	ListRegisteredUserIDs(ctx context.Context, examID uuid.UUID) ([]int, error)
	ListUsersWithoutStudentExam(ctx context.Context, examID uuid.UUID) ([]int, error)
	IsRegistered(ctx context.Context, examID uuid.UUID, userID int) (bool, error)
}

// StudentExamStore persists student exams.
type StudentExamStore interface {
	ReplaceForExam(ctx context.Context, examID uuid.UUID, exams []model.StudentExam) error
	CreateMany(ctx context.Context, exams []model.StudentExam) error
	GetByID(ctx context.Context, id int64) (*model.StudentExam, error)
	ExistsForUser(ctx context.Context, examID uuid.UUID, userID int) (bool, error)
	UpdateWorkingTime(ctx context.Context, id int64, seconds int) (int, error)
	ProgressByExam(ctx context.Context, examID uuid.UUID) (repository.ExamProgress, error)
}

// StudentExamGetter loads a single student exam.
type StudentExamGetter interface {
	GetByID(ctx context.Context, id int64) (*model.StudentExam, error)
}

// ExamSessionStore persists and queries exam sessions.
type ExamSessionStore interface {
	Record(ctx context.Context, studentExamID int64, userID int, token string, info model.SessionInfo) (*model.ExamSession, error)
	CountByStudentExam(ctx context.Context, studentExamID int64) (int, error)
	GetByID(ctx context.Context, examID uuid.UUID, sessionID int64) (*model.ExamSession, error)
	FindMatching(ctx context.Context, q model.SessionMatchQuery) ([]model.ExamSession, error)
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
}

// LiveEventStore persists the live event log.
type LiveEventStore interface {
	Create(ctx context.Context, e *model.ExamLiveEvent) error
	ListForStudentExam(ctx context.Context, examID uuid.UUID, studentExamID int64) ([]model.ExamLiveEvent, error)
	ListRecent(ctx context.Context, examID uuid.UUID, limit int) ([]model.ExamLiveEvent, error)
	DeleteByExam(ctx context.Context, examID uuid.UUID) (int64, error)
}

// LiveEventPublisher fans out appended live events.
type LiveEventPublisher interface {
	PublishLiveEvent(ctx context.Context, e *model.ExamLiveEvent) error
}

// IntegrityQueue accepts integrity check jobs.
type IntegrityQueue interface {
	EnqueueIntegrityCheck(ctx context.Context, job *model.IntegrityCheckJob) error
}

// IntegrityFlagReader reads integrity alert counters.
type IntegrityFlagReader interface {
	IntegrityFlagCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error)
}

// ExamCacheCleaner drops cached conduct state of an exam.
type ExamCacheCleaner interface {
	ClearExam(ctx context.Context, examID uuid.UUID) error
}

// ConductStore runs bulk administrative commands.
type ConductStore interface {
	Teardown(ctx context.Context, examID uuid.UUID) (repository.TeardownResult, error)
}
