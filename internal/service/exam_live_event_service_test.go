package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stemsi/exam-conduct/internal/model"
)

func TestFetchReturnsOwnAndGlobalEventsNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := newDefinition(intPtr(1), true)
	other := newDefinition(intPtr(1), true)
	env.store.addExam(def, 1, 2)
	env.store.addExam(other, 1)
	seA := env.store.addStudentExam(model.StudentExam{ExamID: def.ID, UserID: 1})
	seB := env.store.addStudentExam(model.StudentExam{ExamID: def.ID, UserID: 2})

	mustAppend := func(examID uuid.UUID, seID pgtype.Int8, kind model.LiveEventType) *model.ExamLiveEvent {
		t.Helper()
		e, err := env.liveEvents.Append(ctx, examID, seID, kind, map[string]string{"k": "v"}, nil)
		if err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		return e
	}

	global1 := mustAppend(def.ID, pgtype.Int8{}, model.LiveEventExamWideAnnouncement)
	ownA := mustAppend(def.ID, pgtype.Int8{Int64: seA.ID, Valid: true}, model.LiveEventExamAttendanceCheck)
	mustAppend(def.ID, pgtype.Int8{Int64: seB.ID, Valid: true}, model.LiveEventExamAttendanceCheck)
	mustAppend(other.ID, pgtype.Int8{}, model.LiveEventExamWideAnnouncement)
	global2 := mustAppend(def.ID, pgtype.Int8{}, model.LiveEventExamWideAnnouncement)

	events, err := env.liveEvents.Fetch(ctx, def.ID, seA.ID)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	want := []int64{global2.ID, ownA.ID, global1.ID}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, e := range events {
		if e.ID != want[i] {
			t.Fatalf("event %d has id %d, want %d", i, e.ID, want[i])
		}
		if i > 0 && events[i-1].ID <= e.ID {
			t.Fatalf("events not strictly descending: %d then %d", events[i-1].ID, e.ID)
		}
	}

	if len(env.bus.published) != 5 {
		t.Fatalf("published %d events, want 5", len(env.bus.published))
	}
}

func TestFetchErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := newDefinition(intPtr(1), true)
	other := newDefinition(intPtr(1), true)
	env.store.addExam(def, 1)
	env.store.addExam(other)
	se := env.store.addStudentExam(model.StudentExam{ExamID: def.ID, UserID: 1})
	run := env.store.addStudentExam(model.StudentExam{ExamID: def.ID, UserID: 1, TestRun: true})

	tests := []struct {
		name    string
		fetch   func() error
		wantErr error
	}{
		{"unknown student exam", func() error {
			_, err := env.liveEvents.Fetch(ctx, def.ID, 999)
			return err
		}, ErrNotFound},
		{"student exam of another exam", func() error {
			_, err := env.liveEvents.Fetch(ctx, other.ID, se.ID)
			return err
		}, ErrNotFound},
		{"test run", func() error {
			_, err := env.liveEvents.Fetch(ctx, def.ID, run.ID)
			return err
		}, ErrTestRunNoLiveEvents},
		{"other user", func() error {
			_, err := env.liveEvents.FetchForUser(ctx, 2, def.ID, se.ID)
			return err
		}, ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fetch(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppendUnknownExam(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.liveEvents.Announce(context.Background(), uuid.New(), "hello", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Announce() error = %v, want ErrNotFound", err)
	}
}

func TestAppendSucceedsWhenPublishFails(t *testing.T) {
	env := newTestEnv(t)
	env.bus.err = errBusDown

	def := newDefinition(intPtr(1), true)
	env.store.addExam(def)

	e, err := env.liveEvents.Announce(context.Background(), def.ID, "Ten minutes left", 3)
	if err != nil {
		t.Fatalf("Announce() error = %v", err)
	}
	if !e.IsGlobal() || e.EventType != model.LiveEventExamWideAnnouncement || *e.CreatedBy != 3 {
		t.Fatalf("unexpected event %+v", e)
	}
}

func TestAttendanceCheck(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := newDefinition(intPtr(1), true)
	env.store.addExam(def, 1)
	se := env.store.addStudentExam(model.StudentExam{ExamID: def.ID, UserID: 1})
	run := env.store.addStudentExam(model.StudentExam{ExamID: def.ID, UserID: 1, TestRun: true})

	e, err := env.liveEvents.AttendanceCheck(ctx, def.ID, se.ID, "Please show your ID", 8)
	if err != nil {
		t.Fatalf("AttendanceCheck() error = %v", err)
	}
	if !e.VisibleTo(se.ID) || e.IsGlobal() {
		t.Fatalf("attendance check not scoped to the student exam: %+v", e)
	}

	if _, err := env.liveEvents.AttendanceCheck(ctx, def.ID, run.ID, "", 8); !errors.Is(err, ErrTestRunNoLiveEvents) {
		t.Fatalf("AttendanceCheck() on test run error = %v, want ErrTestRunNoLiveEvents", err)
	}
}

func TestDeleteAll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	def := newDefinition(intPtr(1), true)
	env.store.addExam(def)
	for i := 0; i < 3; i++ {
		if _, err := env.liveEvents.Announce(ctx, def.ID, "notice", 1); err != nil {
			t.Fatalf("Announce() error = %v", err)
		}
	}

	n, err := env.liveEvents.DeleteAll(ctx, def.ID)
	if err != nil || n != 3 {
		t.Fatalf("DeleteAll() = %d, %v; want 3", n, err)
	}
}
