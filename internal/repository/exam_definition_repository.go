package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exam-conduct/internal/model"
)

// ExamDefinitionRepository reads the authoring configuration of exams.
// The engine never writes to these tables.
type ExamDefinitionRepository struct {
	pool *pgxpool.Pool
}

// NewExamDefinitionRepository creates a new ExamDefinitionRepository.
func NewExamDefinitionRepository(pool *pgxpool.Pool) *ExamDefinitionRepository {
	return &ExamDefinitionRepository{pool: pool}
}

// GetDefinition loads an exam with its exercise groups in position order.
// Returns pgx.ErrNoRows if the exam does not exist.
func (r *ExamDefinitionRepository) GetDefinition(ctx context.Context, examID uuid.UUID) (*model.ExamDefinition, error) {
	def := &model.ExamDefinition{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, number_of_exercises_in_exam, working_time_seconds, randomize_exercise_order
		 FROM exams WHERE id = $1`, examID,
	).Scan(&def.ID, &def.Title, &def.TargetExerciseCount, &def.DefaultWorkingTimeSeconds, &def.RandomizeExerciseOrder)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT g.id, g.title, g.position, g.mandatory, e.id, e.title
		 FROM exercise_groups g
		 LEFT JOIN exercises e ON e.exercise_group_id = g.id
		 WHERE g.exam_id = $1
		 ORDER BY g.position, e.id`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			g       model.ExerciseGroup
			exID    *int64
			exTitle *string
		)
		if err := rows.Scan(&g.ID, &g.Title, &g.Position, &g.Mandatory, &exID, &exTitle); err != nil {
			return nil, err
		}

		n := len(def.ExerciseGroups)
		if n == 0 || def.ExerciseGroups[n-1].ID != g.ID {
			def.ExerciseGroups = append(def.ExerciseGroups, g)
			n++
		}
		// Groups without exercises come back as a single row with NULL exercise columns.
		if exID != nil {
			ex := model.Exercise{ID: *exID, GroupID: g.ID}
			if exTitle != nil {
				ex.Title = *exTitle
			}
			def.ExerciseGroups[n-1].Candidates = append(def.ExerciseGroups[n-1].Candidates, ex)
		}
	}
	return def, rows.Err()
}

// Exists reports whether an exam with the given id exists.
func (r *ExamDefinitionRepository) Exists(ctx context.Context, examID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM exams WHERE id = $1)`, examID,
	).Scan(&exists)
	return exists, err
}

// ListRegisteredUserIDs returns the ids of all users registered for the exam.
func (r *ExamDefinitionRepository) ListRegisteredUserIDs(ctx context.Context, examID uuid.UUID) ([]int, error) {
	return r.queryUserIDs(ctx,
		`SELECT user_id FROM exam_registered_users
		 WHERE exam_id = $1
		 ORDER BY user_id`, examID)
}

// ListUsersWithoutStudentExam returns registered users that have no
// non-test-run student exam yet.
func (r *ExamDefinitionRepository) ListUsersWithoutStudentExam(ctx context.Context, examID uuid.UUID) ([]int, error) {
	return r.queryUserIDs(ctx,
		`SELECT ru.user_id FROM exam_registered_users ru
		 WHERE ru.exam_id = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM student_exams se
		     WHERE se.exam_id = ru.exam_id AND se.user_id = ru.user_id AND NOT se.test_run
		   )
		 ORDER BY ru.user_id`, examID)
}

// IsRegistered reports whether a user is registered for the exam.
func (r *ExamDefinitionRepository) IsRegistered(ctx context.Context, examID uuid.UUID, userID int) (bool, error) {
	var registered bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM exam_registered_users WHERE exam_id = $1 AND user_id = $2)`,
		examID, userID,
	).Scan(&registered)
	return registered, err
}

func (r *ExamDefinitionRepository) queryUserIDs(ctx context.Context, query string, args ...any) ([]int, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
