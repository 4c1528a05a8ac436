package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TeardownResult reports how many rows an exam teardown removed.
type TeardownResult struct {
	LiveEvents   int64 `json:"live_events"`
	Sessions     int64 `json:"sessions"`
	StudentExams int64 `json:"student_exams"`
}

// ConductRepository runs administrative commands spanning every conduct table.
type ConductRepository struct {
	pool *pgxpool.Pool
}

// NewConductRepository creates a new ConductRepository.
func NewConductRepository(pool *pgxpool.Pool) *ConductRepository {
	return &ConductRepository{pool: pool}
}

// Teardown deletes the live events, sessions and student exams of an exam in
// one transaction. The exam definition is left untouched.
func (r *ConductRepository) Teardown(ctx context.Context, examID uuid.UUID) (TeardownResult, error) {
	var res TeardownResult
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM exam_live_events WHERE exam_id = $1`, examID)
		if err != nil {
			return fmt.Errorf("delete live events: %w", err)
		}
		res.LiveEvents = tag.RowsAffected()

		tag, err = tx.Exec(ctx,
			`DELETE FROM exam_sessions es
			 USING student_exams se
			 WHERE se.id = es.student_exam_id AND se.exam_id = $1`, examID)
		if err != nil {
			return fmt.Errorf("delete sessions: %w", err)
		}
		res.Sessions = tag.RowsAffected()

		tag, err = tx.Exec(ctx, `DELETE FROM student_exams WHERE exam_id = $1`, examID)
		if err != nil {
			return fmt.Errorf("delete student exams: %w", err)
		}
		res.StudentExams = tag.RowsAffected()
		return nil
	})
	return res, err
}
