package service

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/repository"
)

// memStore is an in-memory stand-in for the pgx repositories. It implements
// every store interface the services depend on.
type memStore struct {
	mu sync.Mutex

	definitions  map[uuid.UUID]*model.ExamDefinition
	registered   map[uuid.UUID][]int
	studentExams map[int64]*model.StudentExam
	sessions     []model.ExamSession
	events       []model.ExamLiveEvent

	nextStudentExamID int64
	nextSessionID     int64
	nextEventID       int64

	failSave error
}

func newMemStore() *memStore {
	return &memStore{
		definitions:  map[uuid.UUID]*model.ExamDefinition{},
		registered:   map[uuid.UUID][]int{},
		studentExams: map[int64]*model.StudentExam{},
	}
}

func (m *memStore) addExam(def *model.ExamDefinition, users ...int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID] = def
	m.registered[def.ID] = users
}

func (m *memStore) addStudentExam(se model.StudentExam) *model.StudentExam {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextStudentExamID++
	se.ID = m.nextStudentExamID
	m.studentExams[se.ID] = &se
	return &se
}

func (m *memStore) studentExamsOf(examID uuid.UUID) []model.StudentExam {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StudentExam
	for _, se := range m.studentExams {
		if se.ExamID == examID {
			out = append(out, *se)
		}
	}
	slices.SortFunc(out, func(a, b model.StudentExam) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

// ─── ExamDefinitionStore ────────────────────────────────────────────

func (m *memStore) GetDefinition(_ context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.definitions[examID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return def, nil
}

func (m *memStore) Exists(_ context.Context, examID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.definitions[examID]
	return ok, nil
}

func (m *memStore) ListRegisteredUserIDs(_ context.Context, examID uuid.UUID) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.registered[examID]), nil
}

func (m *memStore) ListUsersWithoutStudentExam(_ context.Context, examID uuid.UUID) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []int
	for _, uid := range m.registered[examID] {
		if !m.hasStudentExamLocked(examID, uid) {
			out = append(out, uid)
		}
	}
	return out, nil
}

func (m *memStore) IsRegistered(_ context.Context, examID uuid.UUID, userID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.registered[examID], userID), nil
}

// ─── StudentExamStore ───────────────────────────────────────────────

func (m *memStore) ReplaceForExam(_ context.Context, examID uuid.UUID, exams []model.StudentExam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	for id, se := range m.studentExams {
		if se.ExamID == examID && !se.TestRun {
			delete(m.studentExams, id)
		}
	}
	m.insertLocked(exams)
	return nil
}

func (m *memStore) CreateMany(_ context.Context, exams []model.StudentExam) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.insertLocked(exams)
	return nil
}

func (m *memStore) insertLocked(exams []model.StudentExam) {
	for i := range exams {
		m.nextStudentExamID++
		exams[i].ID = m.nextStudentExamID
		exams[i].CreatedAt = time.Now()
		se := exams[i]
		m.studentExams[se.ID] = &se
	}
}

func (m *memStore) GetByID(_ context.Context, id int64) (*model.StudentExam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	se, ok := m.studentExams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *se
	return &cp, nil
}

func (m *memStore) ExistsForUser(_ context.Context, examID uuid.UUID, userID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hasStudentExamLocked(examID, userID), nil
}

func (m *memStore) hasStudentExamLocked(examID uuid.UUID, userID int) bool {
	for _, se := range m.studentExams {
		if se.ExamID == examID && se.UserID == userID && !se.TestRun {
			return true
		}
	}
	return false
}

func (m *memStore) UpdateWorkingTime(_ context.Context, id int64, seconds int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	se, ok := m.studentExams[id]
	if !ok {
		return 0, pgx.ErrNoRows
	}
	old := se.WorkingTimeSeconds
	se.WorkingTimeSeconds = seconds
	return old, nil
}

func (m *memStore) ProgressByExam(_ context.Context, examID uuid.UUID) (repository.ExamProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var p repository.ExamProgress
	for _, se := range m.studentExams {
		if se.ExamID != examID || se.TestRun {
			continue
		}
		p.Total++
		if se.StartedAt != nil {
			p.Started++
		}
		if se.Submitted {
			p.Submitted++
		}
	}
	return p, nil
}

// ─── ExamSessionStore ───────────────────────────────────────────────

// sessionStore adapts memStore to ExamSessionStore, whose GetByID differs
// from StudentExamStore's.
type sessionStore struct{ *memStore }

func (s sessionStore) Record(_ context.Context, studentExamID int64, userID int, token string, info model.SessionInfo) (*model.ExamSession, error) {
	m := s.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	se, ok := m.studentExams[studentExamID]
	if !ok || (userID != 0 && se.UserID != userID) {
		return nil, pgx.ErrNoRows
	}

	seq := 0
	for _, existing := range m.sessions {
		if existing.StudentExamID == studentExamID {
			seq++
		}
	}
	m.nextSessionID++
	session := model.ExamSession{
		ID:              m.nextSessionID,
		StudentExamID:   studentExamID,
		SequenceNumber:  seq,
		SessionToken:    token,
		IPAddress:       info.IPAddress,
		FingerprintHash: info.FingerprintHash,
		UserAgent:       info.UserAgent,
		InstanceID:      info.InstanceID,
		CreatedAt:       time.Now(),
		ExamID:          se.ExamID,
		UserID:          se.UserID,
		TestRun:         se.TestRun,
	}
	m.sessions = append(m.sessions, session)
	return &session, nil
}

func (s sessionStore) CountByStudentExam(_ context.Context, studentExamID int64) (int, error) {
	m := s.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.studentExams[studentExamID]; !ok {
		return 0, pgx.ErrNoRows
	}
	n := 0
	for _, existing := range m.sessions {
		if existing.StudentExamID == studentExamID {
			n++
		}
	}
	return n, nil
}

func (s sessionStore) GetByID(_ context.Context, examID uuid.UUID, sessionID int64) (*model.ExamSession, error) {
	m := s.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions {
		if existing.ID == sessionID && existing.ExamID == examID {
			cp := existing
			return &cp, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s sessionStore) FindMatching(_ context.Context, q model.SessionMatchQuery) ([]model.ExamSession, error) {
	m := s.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, existing := range m.sessions {
		if existing.ExamID != q.ExamID || existing.TestRun ||
			existing.ID == q.ExcludingSessionID || existing.StudentExamID == q.ExcludingStudentExamID {
			continue
		}
		if q.IPAddress.Valid && existing.IPAddress != q.IPAddress {
			continue
		}
		if q.FingerprintHash.Valid && existing.FingerprintHash != q.FingerprintHash {
			continue
		}
		out = append(out, existing)
	}
	return out, nil
}

func (s sessionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	m := s.memStore
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamSession
	for _, existing := range m.sessions {
		if existing.ExamID == examID && !existing.TestRun {
			out = append(out, existing)
		}
	}
	return out, nil
}

func (s sessionStore) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	list, err := s.ListByExam(ctx, examID)
	return len(list), err
}

// ─── LiveEventStore ─────────────────────────────────────────────────

func (m *memStore) Create(_ context.Context, e *model.ExamLiveEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.definitions[e.ExamID]; !ok {
		return pgx.ErrNoRows
	}
	if e.StudentExamID.Valid {
		se, ok := m.studentExams[e.StudentExamID.Int64]
		if !ok || se.ExamID != e.ExamID {
			return pgx.ErrNoRows
		}
	}
	m.nextEventID++
	e.ID = m.nextEventID
	e.CreatedAt = time.Now()
	m.events = append(m.events, *e)
	return nil
}

func (m *memStore) ListForStudentExam(_ context.Context, examID uuid.UUID, studentExamID int64) ([]model.ExamLiveEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamLiveEvent
	for i := len(m.events) - 1; i >= 0; i-- {
		e := m.events[i]
		if e.ExamID == examID && e.VisibleTo(studentExamID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memStore) ListRecent(_ context.Context, examID uuid.UUID, limit int) ([]model.ExamLiveEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ExamLiveEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		if m.events[i].ExamID == examID {
			out = append(out, m.events[i])
		}
	}
	return out, nil
}

func (m *memStore) DeleteByExam(_ context.Context, examID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.events)
	m.events = slices.DeleteFunc(m.events, func(e model.ExamLiveEvent) bool { return e.ExamID == examID })
	return int64(before - len(m.events)), nil
}

// ─── ConductStore ───────────────────────────────────────────────────

func (m *memStore) Teardown(ctx context.Context, examID uuid.UUID) (repository.TeardownResult, error) {
	var res repository.TeardownResult
	res.LiveEvents, _ = m.DeleteByExam(ctx, examID)

	m.mu.Lock()
	defer m.mu.Unlock()
	before := len(m.sessions)
	m.sessions = slices.DeleteFunc(m.sessions, func(s model.ExamSession) bool { return s.ExamID == examID })
	res.Sessions = int64(before - len(m.sessions))
	for id, se := range m.studentExams {
		if se.ExamID == examID {
			delete(m.studentExams, id)
			res.StudentExams++
		}
	}
	return res, nil
}

// fakeBus records what the services hand to Redis.
type fakeBus struct {
	mu        sync.Mutex
	published []model.ExamLiveEvent
	jobs      []model.IntegrityCheckJob
	flags     map[int]int64
	cleared   []uuid.UUID
	err       error
}

var errBusDown = errors.New("redis: connection refused")

func (b *fakeBus) PublishLiveEvent(_ context.Context, e *model.ExamLiveEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, *e)
	return nil
}

func (b *fakeBus) EnqueueIntegrityCheck(_ context.Context, job *model.IntegrityCheckJob) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.jobs = append(b.jobs, *job)
	return nil
}

func (b *fakeBus) IntegrityFlagCounts(_ context.Context, _ uuid.UUID) (map[int]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return nil, b.err
	}
	return b.flags, nil
}

func (b *fakeBus) ClearExam(_ context.Context, examID uuid.UUID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleared = append(b.cleared, examID)
	return b.err
}
