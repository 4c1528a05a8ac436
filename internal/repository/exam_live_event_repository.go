package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exam-conduct/internal/model"
)

// ExamLiveEventRepository handles the append-only live event log.
type ExamLiveEventRepository struct {
	pool *pgxpool.Pool
}

// NewExamLiveEventRepository creates a new ExamLiveEventRepository.
func NewExamLiveEventRepository(pool *pgxpool.Pool) *ExamLiveEventRepository {
	return &ExamLiveEventRepository{pool: pool}
}

// Create appends e to the log and fills in its id and creation time.
// Returns pgx.ErrNoRows if the exam does not exist, or if e is scoped to a
// student exam of another exam.
func (r *ExamLiveEventRepository) Create(ctx context.Context, e *model.ExamLiveEvent) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_live_events (exam_id, student_exam_id, event_type, payload, created_by)
		 SELECT $1, $2, $3, $4, $5
		 WHERE EXISTS (SELECT 1 FROM exams WHERE id = $1)
		   AND ($2::bigint IS NULL OR EXISTS (
		     SELECT 1 FROM student_exams WHERE id = $2 AND exam_id = $1
		   ))
		 RETURNING id, created_at`,
		e.ExamID, e.StudentExamID, e.EventType, e.Payload, e.CreatedBy,
	).Scan(&e.ID, &e.CreatedAt)
}

// ListForStudentExam returns the events addressed to a student exam together
// with the exam's global events, newest first.
func (r *ExamLiveEventRepository) ListForStudentExam(ctx context.Context, examID uuid.UUID, studentExamID int64) ([]model.ExamLiveEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_exam_id, event_type, payload, created_by, created_at
		 FROM exam_live_events
		 WHERE exam_id = $1 AND (student_exam_id = $2 OR student_exam_id IS NULL)
		 ORDER BY id DESC`,
		examID, studentExamID,
	)
	if err != nil {
		return nil, err
	}
	return scanLiveEvents(rows)
}

// ListRecent returns the latest events of an exam regardless of audience.
func (r *ExamLiveEventRepository) ListRecent(ctx context.Context, examID uuid.UUID, limit int) ([]model.ExamLiveEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, student_exam_id, event_type, payload, created_by, created_at
		 FROM exam_live_events
		 WHERE exam_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		examID, limit,
	)
	if err != nil {
		return nil, err
	}
	return scanLiveEvents(rows)
}

// DeleteByExam removes every live event of an exam.
func (r *ExamLiveEventRepository) DeleteByExam(ctx context.Context, examID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM exam_live_events WHERE exam_id = $1`, examID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanLiveEvents(rows pgx.Rows) ([]model.ExamLiveEvent, error) {
	defer rows.Close()

	var events []model.ExamLiveEvent
	for rows.Next() {
		var e model.ExamLiveEvent
		if err := rows.Scan(&e.ID, &e.ExamID, &e.StudentExamID, &e.EventType, &e.Payload, &e.CreatedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
