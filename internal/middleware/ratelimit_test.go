package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// testRedis connects to REDIS_URL and skips the test when no server answers.
func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse REDIS_URL: %v", err)
	}
	rdb := redis.NewClient(opt)
	t.Cleanup(func() { _ = rdb.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	return rdb
}

func testKey(t *testing.T, rdb *redis.Client) string {
	key := fmt.Sprintf("ratelimit:test:%s:%d", t.Name(), time.Now().UnixNano())
	t.Cleanup(func() { rdb.Del(context.Background(), key) })
	return key
}

func TestRedisWindowCounter(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	counter := NewRedisWindowCounter(rdb)
	const window = 300 * time.Millisecond

	t.Run("window resets", func(t *testing.T) {
		key := testKey(t, rdb)
		for want := int64(1); want <= 3; want++ {
			n, err := counter.Hit(ctx, key, window)
			if err != nil {
				t.Fatalf("Hit() error = %v", err)
			}
			if n != want {
				t.Fatalf("Hit() = %d, want %d", n, want)
			}
		}

		time.Sleep(window + 200*time.Millisecond)
		if n, err := counter.Hit(ctx, key, window); err != nil || n != 1 {
			t.Fatalf("Hit() after window = %d, %v; want 1", n, err)
		}
	})

	t.Run("key without ttl gets one", func(t *testing.T) {
		key := testKey(t, rdb)
		if err := rdb.Set(ctx, key, 100, 0).Err(); err != nil {
			t.Fatalf("seed key: %v", err)
		}

		n, err := counter.Hit(ctx, key, window)
		if err != nil {
			t.Fatalf("Hit() error = %v", err)
		}
		if n != 101 {
			t.Fatalf("Hit() = %d, want 101", n)
		}
		if ttl := rdb.PTTL(ctx, key).Val(); ttl <= 0 || ttl > window {
			t.Fatalf("ttl = %v, want within (0, %v]", ttl, window)
		}

		time.Sleep(window + 200*time.Millisecond)
		if n, err := counter.Hit(ctx, key, window); err != nil || n != 1 {
			t.Fatalf("Hit() after window = %d, %v; want 1", n, err)
		}
	})

	t.Run("later hits keep the window", func(t *testing.T) {
		key := testKey(t, rdb)
		if _, err := counter.Hit(ctx, key, time.Minute); err != nil {
			t.Fatalf("Hit() error = %v", err)
		}
		if _, err := counter.Hit(ctx, key, time.Hour); err != nil {
			t.Fatalf("Hit() error = %v", err)
		}
		if ttl := rdb.PTTL(ctx, key).Val(); ttl > time.Minute {
			t.Fatalf("ttl = %v, second hit must not extend the window", ttl)
		}
	})
}

// flakyCounter fails the first call and defers to next afterwards.
type flakyCounter struct {
	next   WindowCounter
	failed bool
}

func (f *flakyCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	if !f.failed {
		f.failed = true
		return 0, errors.New("connection reset")
	}
	return f.next.Hit(ctx, key, window)
}

func TestRateLimiterRecoversAfterCounterFailure(t *testing.T) {
	rdb := testRedis(t)
	const window = time.Second
	rdb.Del(context.Background(), "ratelimit:recover:user:1")
	t.Cleanup(func() { rdb.Del(context.Background(), "ratelimit:recover:user:1") })

	limiter := NewRateLimiter(&flakyCounter{next: NewRedisWindowCounter(rdb)}, "recover", 1, window, zerolog.Nop())
	handlers := []gin.HandlerFunc{RequireAdminJWT(tokens), limiter.Middleware()}

	steps := []struct {
		name string
		want int
	}{
		{"counter failure fails open", http.StatusOK},
		{"first counted hit", http.StatusOK},
		{"over the limit", http.StatusTooManyRequests},
	}
	for _, s := range steps {
		if w := serve(t, handlers, "/x", "Bearer proctor"); w.Code != s.want {
			t.Fatalf("%s: status = %d, want %d", s.name, w.Code, s.want)
		}
	}

	time.Sleep(window + 200*time.Millisecond)
	if w := serve(t, handlers, "/x", "Bearer proctor"); w.Code != http.StatusOK {
		t.Fatalf("after window: status = %d, want 200", w.Code)
	}
}
