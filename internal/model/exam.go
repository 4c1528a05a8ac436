package model

import (
	"github.com/google/uuid"
)

// Exercise is one candidate exercise inside an exercise group.
type Exercise struct {
	ID      int64  `json:"id"`
	GroupID int64  `json:"exercise_group_id"`
	Title   string `json:"title"`
}

// ExerciseGroup is an ordered slot of an exam. Every student exam receives at
// most one exercise per group, drawn from Candidates.
type ExerciseGroup struct {
	ID         int64      `json:"id"`
	Title      string     `json:"title"`
	Position   int        `json:"position"`
	Mandatory  bool       `json:"mandatory"`
	Candidates []Exercise `json:"exercises"`
}

// ExamDefinition is the read-only authoring configuration of an exam.
// ExerciseGroups are ordered by Position.
type ExamDefinition struct {
	ID                        uuid.UUID       `json:"id"`
	Title                     string          `json:"title"`
	TargetExerciseCount       *int            `json:"number_of_exercises_in_exam,omitempty"`
	DefaultWorkingTimeSeconds int             `json:"working_time_seconds"`
	RandomizeExerciseOrder    bool            `json:"randomize_exercise_order"`
	ExerciseGroups            []ExerciseGroup `json:"exercise_groups"`
}

// FindExercise returns the exercise with the given id if it belongs to any
// group of the exam.
func (d *ExamDefinition) FindExercise(id int64) (Exercise, bool) {
	for _, g := range d.ExerciseGroups {
		for _, ex := range g.Candidates {
			if ex.ID == id {
				return ex, true
			}
		}
	}
	return Exercise{}, false
}
