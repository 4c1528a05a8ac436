package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// ExamSession is one session start of a student exam. Sessions are write-once.
// IP address, fingerprint, user agent and instance id are optional; an invalid
// pgtype.Text means the client did not provide the value.
type ExamSession struct {
	ID              int64       `json:"id"`
	StudentExamID   int64       `json:"student_exam_id"`
	SequenceNumber  int         `json:"sequence_number"`
	SessionToken    string      `json:"session_token,omitempty"`
	IPAddress       pgtype.Text `json:"ip_address"`
	FingerprintHash pgtype.Text `json:"browser_fingerprint_hash"`
	UserAgent       pgtype.Text `json:"user_agent"`
	InstanceID      pgtype.Text `json:"instance_id"`
	CreatedAt       time.Time   `json:"created_at"`

	// Resolved through the owning student exam; not stored on the session row.
	ExamID  uuid.UUID `json:"exam_id"`
	UserID  int       `json:"user_id"`
	TestRun bool      `json:"test_run,omitempty"`
}

// SessionMatchQuery selects sessions of other student exams in the same exam
// that share a network fingerprint. An invalid IPAddress or FingerprintHash
// does not restrict the match.
type SessionMatchQuery struct {
	ExamID                 uuid.UUID
	ExcludingSessionID     int64
	ExcludingStudentExamID int64
	IPAddress              pgtype.Text
	FingerprintHash        pgtype.Text
}

// SessionInfo carries what the request layer knows about the client that
// started a session.
type SessionInfo struct {
	IPAddress       pgtype.Text
	FingerprintHash pgtype.Text
	UserAgent       pgtype.Text
	InstanceID      pgtype.Text
}

// StartSessionRequest is sent by the student client on every exam (re)start.
type StartSessionRequest struct {
	FingerprintHash string `json:"browser_fingerprint_hash" binding:"omitempty,max=255"`
	InstanceID      string `json:"instance_id" binding:"omitempty,max=255"`
}

// Text wraps s as an optional text value; the empty string is absent.
func Text(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
