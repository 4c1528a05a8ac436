package service

import (
	"errors"

	"github.com/stemsi/exam-conduct/internal/assembly"
)

// Conduct errors surfaced to the request layer.
var (
	ErrConfiguration       = assembly.ErrConfiguration
	ErrNotFound            = errors.New("not found")
	ErrTestRunNoLiveEvents = errors.New("test runs do not have live events")
	ErrInvalidWorkingTime  = errors.New("working time must be positive")
	ErrExerciseNotInExam   = errors.New("exercise does not belong to this exam")
	ErrUserNotRegistered   = errors.New("user is not registered for this exam")
	ErrStudentExamExists   = errors.New("user already has a student exam for this exam")
	ErrInvalidSubnet       = errors.New("invalid or missing ip subnet")
)
