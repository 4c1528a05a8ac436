package websocket

import "github.com/stemsi/exam-conduct/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError     Event = "error"
	EventLiveEvent Event = "live_event"
	EventPong      Event = "pong"
)

// LiveEventMessage pushes one live event to the student.
type LiveEventMessage struct {
	Event     Event                `json:"event"`
	LiveEvent *model.ExamLiveEvent `json:"live_event"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
