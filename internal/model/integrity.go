package model

import (
	"time"

	"github.com/google/uuid"
)

// IntegrityCheckJob is queued after a session start so the cross-student
// match lookup runs outside the request path.
type IntegrityCheckJob struct {
	SessionID     int64     `json:"session_id"`
	StudentExamID int64     `json:"student_exam_id"`
	ExamID        uuid.UUID `json:"exam_id"`
	UserID        int       `json:"user_id"`
	IPAddress     string    `json:"ip_address,omitempty"`
	Fingerprint   string    `json:"browser_fingerprint_hash,omitempty"`
	TestRun       bool      `json:"test_run,omitempty"`
	Attempts      int       `json:"attempts"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// IntegrityAlert is pushed to the monitor channel when a session shares its
// network fingerprint with sessions of other students.
type IntegrityAlert struct {
	ExamID        uuid.UUID `json:"exam_id"`
	SessionID     int64     `json:"session_id"`
	StudentExamID int64     `json:"student_exam_id"`
	UserID        int       `json:"user_id"`
	MatchedUsers  []int     `json:"matched_user_ids"`
	MatchCount    int       `json:"match_count"`
	DetectedAt    time.Time `json:"detected_at"`
}

// MonitorSnapshot is the proctor's view of an exam in progress.
type MonitorSnapshot struct {
	ExamID           uuid.UUID       `json:"exam_id"`
	StudentExams     int             `json:"student_exams"`
	StartedExams     int             `json:"started_exams"`
	SubmittedExams   int             `json:"submitted_exams"`
	TotalSessions    int             `json:"total_sessions"`
	IntegrityFlags   map[int]int64   `json:"integrity_flags"`
	RecentLiveEvents []ExamLiveEvent `json:"recent_live_events"`
}
