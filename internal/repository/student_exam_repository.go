package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exam-conduct/internal/model"
)

// ExamProgress counts the student exams of an exam by state.
type ExamProgress struct {
	Total     int
	Started   int
	Submitted int
}

// StudentExamRepository handles student exam data access.
type StudentExamRepository struct {
	pool *pgxpool.Pool
}

// NewStudentExamRepository creates a new StudentExamRepository.
func NewStudentExamRepository(pool *pgxpool.Pool) *StudentExamRepository {
	return &StudentExamRepository{pool: pool}
}

// ReplaceForExam deletes the exam's existing non-test-run student exams and
// inserts exams in a single transaction. IDs and creation timestamps are
// written back into exams.
func (r *StudentExamRepository) ReplaceForExam(ctx context.Context, examID uuid.UUID, exams []model.StudentExam) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM student_exams WHERE exam_id = $1 AND NOT test_run`, examID,
		); err != nil {
			return fmt.Errorf("delete existing student exams: %w", err)
		}
		return insertStudentExams(ctx, tx, exams)
	})
}

// CreateMany inserts exams in a single transaction.
func (r *StudentExamRepository) CreateMany(ctx context.Context, exams []model.StudentExam) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return insertStudentExams(ctx, tx, exams)
	})
}

func insertStudentExams(ctx context.Context, tx pgx.Tx, exams []model.StudentExam) error {
	if len(exams) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range exams {
		se := &exams[i]
		batch.Queue(
			`INSERT INTO student_exams (exam_id, user_id, working_time_seconds, submitted, test_run)
			 VALUES ($1, $2, $3, $4, $5)
			 RETURNING id, created_at`,
			se.ExamID, se.UserID, se.WorkingTimeSeconds, se.Submitted, se.TestRun,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&se.ID, &se.CreatedAt)
		})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert student exams: %w", err)
	}

	var rows [][]any
	for _, se := range exams {
		for pos, ex := range se.Exercises {
			rows = append(rows, []any{se.ID, ex.ID, pos})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	_, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"student_exam_exercises"},
		[]string{"student_exam_id", "exercise_id", "position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("insert student exam exercises: %w", err)
	}
	return nil
}

// GetByID retrieves a student exam with its exercises in order.
// Returns pgx.ErrNoRows if it does not exist.
func (r *StudentExamRepository) GetByID(ctx context.Context, id int64) (*model.StudentExam, error) {
	se := &model.StudentExam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, user_id, working_time_seconds, submitted, test_run, started_at, submitted_at, created_at
		 FROM student_exams WHERE id = $1`, id,
	).Scan(&se.ID, &se.ExamID, &se.UserID, &se.WorkingTimeSeconds, &se.Submitted, &se.TestRun,
		&se.StartedAt, &se.SubmittedAt, &se.CreatedAt)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.exercise_group_id, e.title
		 FROM student_exam_exercises see
		 JOIN exercises e ON e.id = see.exercise_id
		 WHERE see.student_exam_id = $1
		 ORDER BY see.position`, id,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ex model.Exercise
		if err := rows.Scan(&ex.ID, &ex.GroupID, &ex.Title); err != nil {
			return nil, err
		}
		se.Exercises = append(se.Exercises, ex)
	}
	return se, rows.Err()
}

// ExistsForUser reports whether the user already has a non-test-run student
// exam for the exam.
func (r *StudentExamRepository) ExistsForUser(ctx context.Context, examID uuid.UUID, userID int) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM student_exams WHERE exam_id = $1 AND user_id = $2 AND NOT test_run)`,
		examID, userID,
	).Scan(&exists)
	return exists, err
}

// UpdateWorkingTime sets a new working time and returns the previous one.
// Returns pgx.ErrNoRows if the student exam does not exist.
func (r *StudentExamRepository) UpdateWorkingTime(ctx context.Context, id int64, seconds int) (int, error) {
	var old int
	err := r.pool.QueryRow(ctx,
		`UPDATE student_exams se
		 SET working_time_seconds = $2
		 FROM (SELECT id, working_time_seconds FROM student_exams WHERE id = $1 FOR UPDATE) prev
		 WHERE se.id = prev.id
		 RETURNING prev.working_time_seconds`,
		id, seconds,
	).Scan(&old)
	return old, err
}

// ProgressByExam counts the non-test-run student exams of an exam.
func (r *StudentExamRepository) ProgressByExam(ctx context.Context, examID uuid.UUID) (ExamProgress, error) {
	var p ExamProgress
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE started_at IS NOT NULL),
		        COUNT(*) FILTER (WHERE submitted)
		 FROM student_exams
		 WHERE exam_id = $1 AND NOT test_run`, examID,
	).Scan(&p.Total, &p.Started, &p.Submitted)
	return p, err
}

// DeleteByExam removes every student exam of an exam, test runs included.
// Exercises and sessions are removed by cascade.
func (r *StudentExamRepository) DeleteByExam(ctx context.Context, examID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM student_exams WHERE exam_id = $1`, examID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
