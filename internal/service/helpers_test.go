package service

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/assembly"
	"github.com/stemsi/exam-conduct/internal/model"
)

type testEnv struct {
	store        *memStore
	bus          *fakeBus
	liveEvents   *ExamLiveEventService
	studentExams *StudentExamService
	sessions     *ExamSessionService
	suspicious   *SuspiciousSessionService
	monitor      *MonitorService
	conduct      *ExamConductService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := zerolog.Nop()
	store := newMemStore()
	bus := &fakeBus{}

	env := &testEnv{store: store, bus: bus}
	env.liveEvents = NewExamLiveEventService(store, store, bus, log)
	env.studentExams = NewStudentExamService(store, store, env.liveEvents, assembly.Options{}, log)
	env.studentExams.newRandom = func() assembly.Random {
		return rand.New(rand.NewPCG(11, 13))
	}
	env.sessions = NewExamSessionService(sessionStore{store}, bus, log)
	env.suspicious = NewSuspiciousSessionService(store, sessionStore{store}, "10.0.0.0/8", log)
	env.monitor = NewMonitorService(store, store, sessionStore{store}, store, bus, log)
	env.conduct = NewExamConductService(store, store, bus, log)
	return env
}

func intPtr(v int) *int { return &v }

// newDefinition builds an exam whose group i holds exercises i*10+1..i*10+n.
func newDefinition(target *int, mandatory ...bool) *model.ExamDefinition {
	def := &model.ExamDefinition{
		ID:                        uuid.New(),
		Title:                     "Algorithms Final",
		TargetExerciseCount:       target,
		DefaultWorkingTimeSeconds: 3600,
	}
	for i, m := range mandatory {
		gid := int64(i + 1)
		def.ExerciseGroups = append(def.ExerciseGroups, model.ExerciseGroup{
			ID:        gid,
			Position:  i,
			Mandatory: m,
			Candidates: []model.Exercise{
				{ID: gid*10 + 1, GroupID: gid},
				{ID: gid*10 + 2, GroupID: gid},
			},
		})
	}
	return def
}
