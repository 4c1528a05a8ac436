package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exam-conduct/internal/model"
)

const sessionColumns = `es.id, es.student_exam_id, es.sequence_number, es.session_token,
	es.ip_address, es.browser_fingerprint_hash, es.user_agent, es.instance_id, es.created_at,
	se.exam_id, se.user_id, se.test_run`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

// Record appends a session to a student exam. The student exam row is locked
// while its session counter advances, so concurrent starts of the same
// student exam get distinct, gap-free sequence numbers. A userID of 0 skips
// the ownership check. Returns pgx.ErrNoRows if the student exam does not
// exist or belongs to another user.
func (r *ExamSessionRepository) Record(ctx context.Context, studentExamID int64, userID int, token string, info model.SessionInfo) (*model.ExamSession, error) {
	s := &model.ExamSession{
		StudentExamID:   studentExamID,
		SessionToken:    token,
		IPAddress:       info.IPAddress,
		FingerprintHash: info.FingerprintHash,
		UserAgent:       info.UserAgent,
		InstanceID:      info.InstanceID,
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE student_exams
			 SET session_count = session_count + 1
			 WHERE id = $1 AND ($2 = 0 OR user_id = $2)
			 RETURNING session_count - 1, exam_id, user_id, test_run`,
			studentExamID, userID,
		).Scan(&s.SequenceNumber, &s.ExamID, &s.UserID, &s.TestRun)
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx,
			`INSERT INTO exam_sessions
			   (student_exam_id, sequence_number, session_token, ip_address, browser_fingerprint_hash, user_agent, instance_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id, created_at`,
			s.StudentExamID, s.SequenceNumber, s.SessionToken, s.IPAddress, s.FingerprintHash, s.UserAgent, s.InstanceID,
		).Scan(&s.ID, &s.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountByStudentExam returns how many sessions a student exam has started.
// Returns pgx.ErrNoRows if the student exam does not exist.
func (r *ExamSessionRepository) CountByStudentExam(ctx context.Context, studentExamID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT session_count FROM student_exams WHERE id = $1`, studentExamID,
	).Scan(&count)
	return count, err
}

// GetByID retrieves a session of the given exam.
// Returns pgx.ErrNoRows if it does not exist or belongs to another exam.
func (r *ExamSessionRepository) GetByID(ctx context.Context, examID uuid.UUID, sessionID int64) (*model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 JOIN student_exams se ON se.id = es.student_exam_id
		 WHERE es.id = $1 AND se.exam_id = $2`,
		sessionID, examID,
	)
	if err != nil {
		return nil, err
	}
	sessions, err := scanSessions(rows)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &sessions[0], nil
}

// FindMatching returns sessions of other non-test-run student exams of the
// same exam that equal the query on each present IP address and fingerprint.
// An absent query field matches any value.
func (r *ExamSessionRepository) FindMatching(ctx context.Context, q model.SessionMatchQuery) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 JOIN student_exams se ON se.id = es.student_exam_id
		 WHERE se.exam_id = $1
		   AND NOT se.test_run
		   AND es.id <> $2
		   AND es.student_exam_id <> $3
		   AND ($4::text IS NULL OR es.ip_address = $4)
		   AND ($5::text IS NULL OR es.browser_fingerprint_hash = $5)
		 ORDER BY es.id`,
		q.ExamID, q.ExcludingSessionID, q.ExcludingStudentExamID, q.IPAddress, q.FingerprintHash,
	)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// ListByExam returns every session of the exam's non-test-run student exams,
// oldest first.
func (r *ExamSessionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions es
		 JOIN student_exams se ON se.id = es.student_exam_id
		 WHERE se.exam_id = $1 AND NOT se.test_run
		 ORDER BY es.id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

// CountByExam returns the number of sessions started across the exam.
func (r *ExamSessionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*)
		 FROM exam_sessions es
		 JOIN student_exams se ON se.id = es.student_exam_id
		 WHERE se.exam_id = $1 AND NOT se.test_run`, examID,
	).Scan(&count)
	return count, err
}

// DeleteByExam removes every session of the exam's student exams.
func (r *ExamSessionRepository) DeleteByExam(ctx context.Context, examID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_sessions es
		 USING student_exams se
		 WHERE se.id = es.student_exam_id AND se.exam_id = $1`, examID)
	if err != nil {
		return 0, fmt.Errorf("delete exam sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSessions(rows pgx.Rows) ([]model.ExamSession, error) {
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		var s model.ExamSession
		if err := rows.Scan(&s.ID, &s.StudentExamID, &s.SequenceNumber, &s.SessionToken,
			&s.IPAddress, &s.FingerprintHash, &s.UserAgent, &s.InstanceID, &s.CreatedAt,
			&s.ExamID, &s.UserID, &s.TestRun); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
