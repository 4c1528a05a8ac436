package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/model"
)

const (
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// SessionMatcher looks up sessions of other students with the same client
// details.
type SessionMatcher interface {
	FindMatchingSessions(ctx context.Context, q model.SessionMatchQuery) ([]model.ExamSession, error)
}

// AlertSink receives integrity alerts and failed jobs.
type AlertSink interface {
	PublishIntegrityAlert(ctx context.Context, alert *model.IntegrityAlert) error
	RequeueIntegrityChecks(ctx context.Context, jobs []*model.IntegrityCheckJob) error
}

// IntegrityWorkerConfig tunes batching and retries.
type IntegrityWorkerConfig struct {
	BatchSize    int
	CheckTimeout time.Duration
	MaxAttempts  int
}

// IntegrityWorker drains the integrity check queue and raises an alert on the
// exam monitor whenever a new session matches sessions of other students on
// each client detail it carries (IP address, browser fingerprint). A detail
// the session lacks does not restrict the match. Lookups are advisory: a
// failed lookup is retried a bounded number of times and then dropped.
type IntegrityWorker struct {
	rdb     *redis.Client
	matcher SessionMatcher
	sink    AlertSink
	cfg     IntegrityWorkerConfig
	log     zerolog.Logger
}

// NewIntegrityWorker creates a new IntegrityWorker. Zero config values fall back
// to a batch of 50, a 2s lookup timeout and 3 attempts.
func NewIntegrityWorker(rdb *redis.Client, matcher SessionMatcher, sink AlertSink, cfg IntegrityWorkerConfig, log zerolog.Logger) *IntegrityWorker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = 2 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &IntegrityWorker{
		rdb:     rdb,
		matcher: matcher,
		sink:    sink,
		cfg:     cfg,
		log:     log.With().Str("component", "integrity_worker").Logger(),
	}
}

// Start pops check jobs off the queue in batches until ctx is cancelled. It
// blocks, so run it in its own goroutine.
func (w *IntegrityWorker) Start(ctx context.Context) {
	w.log.Info().Int("batch_size", w.cfg.BatchSize).Msg("IntegrityWorker started")

	buffer := make([]*model.IntegrityCheckJob, 0, w.cfg.BatchSize)
	lastFlushTime := time.Now()

	for {
		// 1. Check Flush Conditions (Time or Size)
		if len(buffer) > 0 {
			if len(buffer) >= w.cfg.BatchSize || time.Since(lastFlushTime) >= BatchTimeout {
				w.processBatch(ctx, buffer)
				buffer = buffer[:0]
				lastFlushTime = time.Now()
			}
		}

		// 2. Check Context (Graceful Shutdown)
		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		// 3. Fetch from Redis
		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.IntegrityCheckQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				w.shutdown(buffer)
				return
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			time.Sleep(3 * time.Second)
			continue
		}

		// 4. Decode
		if len(result) < 2 {
			continue
		}
		job, err := decodeJob(result[1])
		if err != nil {
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed integrity check")
			continue
		}
		buffer = append(buffer, job)
	}
}

func decodeJob(raw string) (*model.IntegrityCheckJob, error) {
	var job model.IntegrityCheckJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, err
	}
	if job.SessionID == 0 || job.ExamID == uuid.Nil {
		return nil, errors.New("integrity check is missing session or exam id")
	}
	return &job, nil
}

// processBatch checks every job and requeues the ones whose lookup failed.
func (w *IntegrityWorker) processBatch(ctx context.Context, batch []*model.IntegrityCheckJob) {
	var retry []*model.IntegrityCheckJob

	for _, job := range batch {
		if err := w.check(ctx, job); err != nil {
			job.Attempts++
			if job.Attempts >= w.cfg.MaxAttempts {
				w.log.Warn().Err(err).
					Int64("session_id", job.SessionID).
					Int("attempts", job.Attempts).
					Msg("Dropping integrity check after repeated failures")
				continue
			}
			w.log.Warn().Err(err).Int64("session_id", job.SessionID).Msg("Integrity check failed, requeueing")
			retry = append(retry, job)
		}
	}

	if len(retry) > 0 {
		if err := w.sink.RequeueIntegrityChecks(ctx, retry); err != nil {
			w.log.Error().Err(err).Int("count", len(retry)).Msg("Failed to requeue integrity checks")
		}
	}
}

// check runs the match lookup for one session and publishes an alert if other
// students' sessions equal it on every detail it has. An absent IP address or
// fingerprint matches any value. Sessions with neither are skipped.
func (w *IntegrityWorker) check(ctx context.Context, job *model.IntegrityCheckJob) error {
	if job.TestRun || (job.IPAddress == "" && job.Fingerprint == "") {
		return nil
	}

	lookupCtx, cancel := context.WithTimeout(ctx, w.cfg.CheckTimeout)
	defer cancel()

	matches, err := w.matcher.FindMatchingSessions(lookupCtx, model.SessionMatchQuery{
		ExamID:                 job.ExamID,
		ExcludingSessionID:     job.SessionID,
		ExcludingStudentExamID: job.StudentExamID,
		IPAddress:              model.Text(job.IPAddress),
		FingerprintHash:        model.Text(job.Fingerprint),
	})
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return nil
	}

	alert := &model.IntegrityAlert{
		ExamID:        job.ExamID,
		SessionID:     job.SessionID,
		StudentExamID: job.StudentExamID,
		UserID:        job.UserID,
		MatchedUsers:  matchedUsers(matches),
		MatchCount:    len(matches),
		DetectedAt:    time.Now(),
	}
	if err := w.sink.PublishIntegrityAlert(ctx, alert); err != nil {
		// The lookup is done; losing the notification is not worth a retry.
		w.log.Error().Err(err).Int64("session_id", job.SessionID).Msg("Failed to publish integrity alert")
		return nil
	}

	w.log.Info().
		Str("exam_id", job.ExamID.String()).
		Int64("session_id", job.SessionID).
		Int("matches", len(matches)).
		Msg("Shared device detected")
	return nil
}

func matchedUsers(matches []model.ExamSession) []int {
	seen := make(map[int]bool, len(matches))
	users := make([]int, 0, len(matches))
	for _, m := range matches {
		if !seen[m.UserID] {
			seen[m.UserID] = true
			users = append(users, m.UserID)
		}
	}
	return users
}

func (w *IntegrityWorker) shutdown(buffer []*model.IntegrityCheckJob) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if len(buffer) > 0 {
		w.processBatch(shutdownCtx, buffer)
	}
}
