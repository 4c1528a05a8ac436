// Package assembly builds individualized student exams from an exam's
// exercise groups.
//
// Every student receives exactly one exercise from each mandatory group and
// one exercise from each of a uniformly sampled subset of the optional groups,
// so that the number of groups represented reaches the exam's target count.
// Selected groups keep their authoring order unless the exam randomizes it.
package assembly

import (
	"errors"
	"fmt"
	"slices"

	"github.com/stemsi/exam-conduct/internal/model"
)

// ErrConfiguration is returned when the exam definition cannot produce valid
// student exams. Nothing is assembled in that case.
var ErrConfiguration = errors.New("invalid exam configuration")

// Options tunes assembly behavior.
type Options struct {
	// StrictTargetCount rejects exams that have fewer optional groups than
	// needed to reach the target count instead of assembling short exams.
	StrictTargetCount bool
}

// Plan is a validated exam definition ready to draw student exams from.
type Plan struct {
	def            *model.ExamDefinition
	mandatory      []int
	optional       []int
	optionalNeeded int
}

// NewPlan validates def and partitions its groups. It never consumes
// randomness.
func NewPlan(def *model.ExamDefinition, opts Options) (*Plan, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: exam definition is missing", ErrConfiguration)
	}
	for _, g := range def.ExerciseGroups {
		if len(g.Candidates) == 0 {
			return nil, fmt.Errorf("%w: exercise group %d has no exercises", ErrConfiguration, g.ID)
		}
	}
	if def.TargetExerciseCount == nil {
		return nil, fmt.Errorf("%w: number of exercises in exam is not set", ErrConfiguration)
	}
	target := *def.TargetExerciseCount

	p := &Plan{def: def}
	for i, g := range def.ExerciseGroups {
		if g.Mandatory {
			p.mandatory = append(p.mandatory, i)
		} else {
			p.optional = append(p.optional, i)
		}
	}

	if len(p.mandatory) > target {
		return nil, fmt.Errorf("%w: %d mandatory exercise groups exceed the target of %d exercises",
			ErrConfiguration, len(p.mandatory), target)
	}

	p.optionalNeeded = target - len(p.mandatory)
	if opts.StrictTargetCount && p.optionalNeeded > len(p.optional) {
		return nil, fmt.Errorf("%w: %d optional exercise groups needed but only %d exist",
			ErrConfiguration, p.optionalNeeded, len(p.optional))
	}

	return p, nil
}

// Shortfall is the number of exercises every student exam will be missing
// from the target because the exam has too few optional groups.
func (p *Plan) Shortfall() int {
	return max(0, p.optionalNeeded-len(p.optional))
}

// ExercisesPerStudent is the number of exercises each drawn student exam holds.
func (p *Plan) ExercisesPerStudent() int {
	return len(p.mandatory) + min(p.optionalNeeded, len(p.optional))
}

// Draw assembles one student exam for userID.
func (p *Plan) Draw(userID int, rng Random) model.StudentExam {
	k := min(p.optionalNeeded, len(p.optional))

	// Partial Fisher-Yates: the first k entries are a uniform sample.
	pool := slices.Clone(p.optional)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	selected := make([]int, 0, len(p.mandatory)+k)
	selected = append(selected, p.mandatory...)
	selected = append(selected, pool[:k]...)
	slices.Sort(selected)

	exercises := make([]model.Exercise, 0, len(selected))
	for _, gi := range selected {
		candidates := p.def.ExerciseGroups[gi].Candidates
		exercises = append(exercises, candidates[rng.IntN(len(candidates))])
	}

	if p.def.RandomizeExerciseOrder {
		rng.Shuffle(len(exercises), func(i, j int) {
			exercises[i], exercises[j] = exercises[j], exercises[i]
		})
	}

	return model.StudentExam{
		ExamID:             p.def.ID,
		UserID:             userID,
		Exercises:          exercises,
		WorkingTimeSeconds: p.def.DefaultWorkingTimeSeconds,
	}
}

// Assemble draws one student exam per user. Either every user gets a student
// exam or an error is returned.
func Assemble(def *model.ExamDefinition, userIDs []int, rng Random, opts Options) ([]model.StudentExam, error) {
	plan, err := NewPlan(def, opts)
	if err != nil {
		return nil, err
	}

	exams := make([]model.StudentExam, 0, len(userIDs))
	for _, uid := range userIDs {
		exams = append(exams, plan.Draw(uid, rng))
	}
	return exams, nil
}
