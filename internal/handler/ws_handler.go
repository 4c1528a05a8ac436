package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/middleware"
	"github.com/stemsi/exam-conduct/internal/model"
	"github.com/stemsi/exam-conduct/internal/repository"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
	ws "github.com/stemsi/exam-conduct/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live events to students over WebSocket.
type WSHandler struct {
	bus              *repository.ConductBus
	liveEventService *service.ExamLiveEventService
	log              zerolog.Logger
	upgrader         websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(bus *repository.ConductBus, liveEventService *service.ExamLiveEventService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		bus:              bus,
		liveEventService: liveEventService,
		log:              log.With().Str("component", "ws_handler").Logger(),
		upgrader:         buildUpgrader(allowedOrigins),
	}
}

// LiveEventStream godoc
// WS /ws/v1/student/exams/:exam_id/student-exams/:id/live-events
// Pushes every live event visible to the student exam as it is appended.
// Events appended before the connection are fetched through the REST endpoint.
func (h *WSHandler) LiveEventStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, ok := examIDParam(c)
	if !ok {
		return
	}
	studentExamID, ok := int64Param(c, "id")
	if !ok {
		return
	}

	// Reject before upgrading so the client gets a proper HTTP status.
	if err := h.liveEventService.Authorize(c.Request.Context(), claims.UserID, examID, studentExamID); err != nil {
		failService(c, h.log, err, "Failed to authorize live event stream")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", examID.String()).
		Int64("student_exam_id", studentExamID).
		Logger()

	ctx := c.Request.Context()
	pubsub := h.bus.SubscribeLiveEvents(ctx, examID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	// The reader goroutine owns reads; every write happens on this goroutine.
	pings := make(chan struct{}, 1)
	closed := make(chan struct{})
	go h.readLoop(conn, wsLog, pings, closed)

	wsLog.Info().Msg("Student attached to live events")

	for {
		select {
		case <-ctx.Done():
			return

		case <-closed:
			wsLog.Debug().Msg("Connection closed")
			return

		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}

		case msg, ok := <-ch:
			if !ok {
				return
			}
			event, err := decodeLiveEvent(msg.Payload)
			if err != nil {
				wsLog.Warn().Err(err).Msg("Dropping malformed live event message")
				continue
			}
			if event == nil || !event.VisibleTo(studentExamID) {
				continue
			}
			if err := ws.WriteTyped(conn, ws.LiveEventMessage{Event: ws.EventLiveEvent, LiveEvent: event}); err != nil {
				wsLog.Warn().Err(err).Msg("Failed to push live event")
				return
			}
		}
	}
}

func (h *WSHandler) readLoop(conn *websocket.Conn, log zerolog.Logger, pings chan<- struct{}, closed chan<- struct{}) {
	defer close(closed)

	for {
		var msg ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		switch msg.Action {
		case ws.ActionPing:
			select {
			case pings <- struct{}{}:
			default:
			}
		default:
			log.Debug().Str("action", string(msg.Action)).Msg("Ignoring unknown action")
		}
	}
}

// decodeLiveEvent unwraps a channel message. It returns nil for messages
// that do not carry a live event.
func decodeLiveEvent(payload string) (*model.ExamLiveEvent, error) {
	var msg repository.ChannelMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		return nil, err
	}
	if msg.Type != repository.MessageLiveEvent {
		return nil, nil
	}

	var event model.ExamLiveEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return nil, err
	}
	if event.ID == 0 {
		return nil, errors.New("live event without id")
	}
	return &event, nil
}
