package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-conduct/internal/config"
	"github.com/stemsi/exam-conduct/internal/response"
)

// WindowCounter counts hits of a key within a fixed time window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisWindowCounter is a fixed-window counter shared by every server instance.
type RedisWindowCounter struct {
	rdb *redis.Client
}

// NewRedisWindowCounter creates a new RedisWindowCounter.
func NewRedisWindowCounter(rdb *redis.Client) *RedisWindowCounter {
	return &RedisWindowCounter{rdb: rdb}
}

// Hit increments the key and starts its window if the key has none. Both
// commands run in one MULTI/EXEC so a key can never be left without a TTL.
// EXPIRE NX needs Redis 7 or newer.
func (r *RedisWindowCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter limits how often a user may hit a route, for example to stop
// an admin from re-running a full exam assembly in a tight loop.
type RateLimiter struct {
	counter  WindowCounter
	name     string
	rate     int // Requests per interval
	interval time.Duration
	log      zerolog.Logger
}

// NewRateLimiter creates a RateLimiter (e.g., 10 requests per minute).
func NewRateLimiter(counter WindowCounter, name string, rate int, interval time.Duration, log zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		counter:  counter,
		name:     name,
		rate:     rate,
		interval: interval,
		log:      log.With().Str("component", "rate_limiter").Str("limit", name).Logger(),
	}
}

// Middleware returns a Gin middleware that rate-limits requests per user,
// falling back to the client IP when no claims are present. A counter
// failure lets the request through.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		subject := c.ClientIP()
		if claims := GetClaims(c); claims != nil {
			subject = "user:" + strconv.Itoa(claims.UserID)
		}

		n, err := rl.counter.Hit(c.Request.Context(), config.CacheKey.RateLimitKey(rl.name, subject), rl.interval)
		if err != nil {
			rl.log.Warn().Err(err).Str("subject", subject).Msg("Rate limit counter unavailable")
			c.Next()
			return
		}

		if n > int64(rl.rate) {
			c.Header("Retry-After", strconv.Itoa(int(rl.interval.Seconds())))
			response.AbortFail(c, http.StatusTooManyRequests, response.ErrRateLimitExceeded)
			return
		}
		c.Next()
	}
}
