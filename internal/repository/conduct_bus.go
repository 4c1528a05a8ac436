package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/model"
)

// Message types carried on the exam channels.
const (
	MessageLiveEvent      = "live_event"
	MessageIntegrityAlert = "integrity_alert"
)

// ChannelMessage is the envelope published on every exam channel.
type ChannelMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ConductBus fans out conduct activity through Redis: the integrity check
// queue, live event and monitor Pub/Sub channels, and per-exam flag counters.
type ConductBus struct {
	rdb *redis.Client
}

// NewConductBus creates a new ConductBus.
func NewConductBus(rdb *redis.Client) *ConductBus {
	return &ConductBus{rdb: rdb}
}

// PublishLiveEvent announces a newly appended live event to the exam's
// live event channel and to its monitor channel.
func (b *ConductBus) PublishLiveEvent(ctx context.Context, e *model.ExamLiveEvent) error {
	msg, err := envelope(MessageLiveEvent, e)
	if err != nil {
		return err
	}

	examID := e.ExamID.String()
	pipe := b.rdb.Pipeline()
	pipe.Publish(ctx, config.CacheKey.ExamLiveEventChannel(examID), msg)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), msg)
	_, err = pipe.Exec(ctx)
	return err
}

// EnqueueIntegrityCheck pushes a job for the integrity worker.
func (b *ConductBus) EnqueueIntegrityCheck(ctx context.Context, job *model.IntegrityCheckJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return b.rdb.RPush(ctx, config.WorkerKey.IntegrityCheckQueue, data).Err()
}

// RequeueIntegrityChecks pushes jobs back onto the queue in one round trip.
func (b *ConductBus) RequeueIntegrityChecks(ctx context.Context, jobs []*model.IntegrityCheckJob) error {
	pipe := b.rdb.Pipeline()
	for _, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return err
		}
		pipe.RPush(ctx, config.WorkerKey.IntegrityCheckQueue, data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// PublishIntegrityAlert sends an alert to the exam's monitor channel and
// bumps the user's flag counter.
func (b *ConductBus) PublishIntegrityAlert(ctx context.Context, alert *model.IntegrityAlert) error {
	msg, err := envelope(MessageIntegrityAlert, alert)
	if err != nil {
		return err
	}

	examID := alert.ExamID.String()
	pipe := b.rdb.Pipeline()
	pipe.HIncrBy(ctx, config.CacheKey.ExamIntegrityFlagsKey(examID), strconv.Itoa(alert.UserID), 1)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), msg)
	_, err = pipe.Exec(ctx)
	return err
}

// IntegrityFlagCounts returns the number of alerts raised per user.
func (b *ConductBus) IntegrityFlagCounts(ctx context.Context, examID uuid.UUID) (map[int]int64, error) {
	raw, err := b.rdb.HGetAll(ctx, config.CacheKey.ExamIntegrityFlagsKey(examID.String())).Result()
	if err != nil {
		return nil, err
	}

	counts := make(map[int]int64, len(raw))
	for field, value := range raw {
		uid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			continue
		}
		counts[uid] = n
	}
	return counts, nil
}

// ClearExam drops the exam's flag counters.
func (b *ConductBus) ClearExam(ctx context.Context, examID uuid.UUID) error {
	return b.rdb.Del(ctx, config.CacheKey.ExamIntegrityFlagsKey(examID.String())).Err()
}

// SubscribeLiveEvents subscribes to the exam's live event channel.
func (b *ConductBus) SubscribeLiveEvents(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return b.rdb.Subscribe(ctx, config.CacheKey.ExamLiveEventChannel(examID.String()))
}

// SubscribeMonitor subscribes to the exam's monitor channel.
func (b *ConductBus) SubscribeMonitor(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return b.rdb.Subscribe(ctx, config.CacheKey.ExamMonitorChannel(examID.String()))
}

func envelope(kind string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", kind, err)
	}
	return json.Marshal(ChannelMessage{Type: kind, Data: data})
}
