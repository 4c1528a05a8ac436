package model

import (
	"time"

	"github.com/google/uuid"
)

// StudentExam is one student's individualized exam instance.
type StudentExam struct {
	ID                 int64      `json:"id"`
	ExamID             uuid.UUID  `json:"exam_id"`
	UserID             int        `json:"user_id"`
	Exercises          []Exercise `json:"exercises"`
	WorkingTimeSeconds int        `json:"working_time_seconds"`
	Submitted          bool       `json:"submitted"`
	TestRun            bool       `json:"test_run"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// CreateTestRunRequest is the payload for creating a staff dry run.
type CreateTestRunRequest struct {
	ExerciseIDs        []int64 `json:"exercise_ids" binding:"required,min=1,dive,gt=0"`
	WorkingTimeSeconds int     `json:"working_time_seconds" binding:"required,min=1,max=86400"`
}

// UpdateWorkingTimeRequest is the payload for overriding a student's working time.
type UpdateWorkingTimeRequest struct {
	WorkingTimeSeconds int `json:"working_time_seconds" binding:"required,min=1,max=86400"`
}

// GenerateResult summarizes an assembly run for the administrator.
type GenerateResult struct {
	ExamID       uuid.UUID `json:"exam_id"`
	Generated    int       `json:"generated"`
	MissingSlots int       `json:"missing_exercises_per_student"`
}
