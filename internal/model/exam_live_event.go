package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// LiveEventType enumerates the kinds of live events shown to students.
type LiveEventType string

const (
	LiveEventExamWideAnnouncement LiveEventType = "examWideAnnouncement"
	LiveEventWorkingTimeUpdate    LiveEventType = "workingTimeUpdate"
	LiveEventExamAttendanceCheck  LiveEventType = "examAttendanceCheck"
)

// ExamLiveEvent is an immutable entry of an exam's live event log.
// An invalid StudentExamID marks the event as global for the whole exam.
type ExamLiveEvent struct {
	ID            int64           `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	StudentExamID pgtype.Int8     `json:"student_exam_id"`
	EventType     LiveEventType   `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	CreatedBy     *int            `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// IsGlobal reports whether the event is broadcast to every student exam.
func (e *ExamLiveEvent) IsGlobal() bool {
	return !e.StudentExamID.Valid
}

// VisibleTo reports whether a student exam should receive the event.
func (e *ExamLiveEvent) VisibleTo(studentExamID int64) bool {
	return e.IsGlobal() || e.StudentExamID.Int64 == studentExamID
}

// AnnouncementPayload is the payload of an exam-wide announcement.
type AnnouncementPayload struct {
	Text string `json:"text"`
}

// WorkingTimeUpdatePayload is the payload of a working time change.
type WorkingTimeUpdatePayload struct {
	NewWorkingTime int  `json:"new_working_time"`
	OldWorkingTime int  `json:"old_working_time"`
	CourseWide     bool `json:"course_wide"`
}

// AttendanceCheckPayload is the payload of a proctor's attendance check.
type AttendanceCheckPayload struct {
	Message string `json:"message"`
}

// AnnouncementRequest is the payload for posting an exam-wide announcement.
type AnnouncementRequest struct {
	Text string `json:"text" binding:"required,min=1,max=2000"`
}

// AttendanceCheckRequest is the payload for an attendance check.
type AttendanceCheckRequest struct {
	Message string `json:"message" binding:"omitempty,max=500"`
}
