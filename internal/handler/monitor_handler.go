package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/repository"
	"github.com/stemsi/exam-conduct/internal/response"
	"github.com/stemsi/exam-conduct/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams conduct activity of an exam to proctors.
type MonitorHandler struct {
	bus            *repository.ConductBus
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(bus *repository.ConductBus, monitorService *service.MonitorService, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		bus:            bus,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
// Sends a snapshot, then forwards live events and integrity alerts as they
// are published. The snapshot is refreshed periodically while activity flows.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	reqCtx := c.Request.Context()
	if err := h.monitorService.EnsureExam(reqCtx, examID); err != nil {
		failService(c, h.log, err, "Failed to open exam monitor")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, examID)

	pubsub := h.bus.SubscribeMonitor(reqCtx, examID)
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()

	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until something happens on the exam.
	active := false

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Forward raw JSON directly, the envelope already names the type.
			c.Writer.Write([]byte("data: "))
			c.Writer.Write([]byte(msg.Payload))
			c.Writer.Write([]byte("\n\n"))
			c.Writer.Flush()
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendSnapshot(c, reqCtx, examID)
			active = false

		case <-keepAliveTicker.C:
			c.SSEvent("ping", gin.H{"type": "ping"})
			c.Writer.Flush()
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, ctx context.Context, examID uuid.UUID) {
	fetchCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	snapshot, err := h.monitorService.Snapshot(fetchCtx, examID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to build monitor snapshot")
		return
	}

	c.SSEvent("snapshot", gin.H{"type": "snapshot", "data": snapshot})
	c.Writer.Flush()
}

// Snapshot godoc
// GET /api/v1/admin/exams/:exam_id/monitor/snapshot
// One-off snapshot for clients that poll instead of streaming.
func (h *MonitorHandler) Snapshot(c *gin.Context) {
	examID, ok := examIDParam(c)
	if !ok {
		return
	}

	snapshot, err := h.monitorService.Snapshot(c.Request.Context(), examID)
	if err != nil {
		failService(c, h.log, err, "Failed to build monitor snapshot")
		return
	}

	response.Success(c, http.StatusOK, snapshot)
}
