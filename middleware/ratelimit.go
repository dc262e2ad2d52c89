package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hiveboard/hiveboard/apierr"
)

// Limiter decides whether a key may proceed, returning the usual
// rate-limit-header triple.
type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, remaining int, resetAt time.Time)
}

// RateLimiter is the HTTP middleware wrapping a Limiter. The key is the
// authenticated key id, falling back to remote address for unauthenticated
// requests (health checks, etc).
type RateLimiter struct {
	logger  zerolog.Logger
	enabled bool
	rpm     int
	limiter Limiter
}

// NewRateLimiter wires the in-memory backend.
func NewRateLimiter(logger zerolog.Logger, enabled bool, rpm, burst int) *RateLimiter {
	return &RateLimiter{
		logger:  logger,
		enabled: enabled,
		rpm:     rpm,
		limiter: newMemoryLimiter(rpm),
	}
}

// NewRedisRateLimiter wires a Redis-backed distributed backend, for
// deployments running more than one HiveBoard instance behind a load
// balancer where per-process in-memory counting would under-enforce.
func NewRedisRateLimiter(logger zerolog.Logger, enabled bool, rpm int, client *redis.Client) *RateLimiter {
	return &RateLimiter{
		logger:  logger,
		enabled: enabled,
		rpm:     rpm,
		limiter: &redisLimiter{client: client, rpm: rpm},
	}
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.enabled {
			next.ServeHTTP(w, r)
			return
		}

		key := KeyID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		allowed, remaining, resetAt := rl.limiter.Allow(r.Context(), key)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.rpm))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			apierr.Write(w, apierr.RateLimited(retryAfter))
			rl.logger.Warn().Str("key_id", key).Int("limit", rl.rpm).Msg("rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// memoryLimiter is a per-key sliding window over the last minute, kept
// in-process. It loses its state across restarts and doesn't share counts
// across replicas, which is fine for a single HiveBoard instance.
type memoryLimiter struct {
	rpm int
	mu  sync.Mutex
	win map[string]*slidingWindow
}

type slidingWindow struct {
	tokens    []time.Time
	lastClean time.Time
}

func newMemoryLimiter(rpm int) *memoryLimiter {
	return &memoryLimiter{rpm: rpm, win: make(map[string]*slidingWindow)}
}

func (m *memoryLimiter) Allow(_ context.Context, key string) (bool, int, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-1 * time.Minute)
	resetAt := now.Add(1 * time.Minute)

	sw, ok := m.win[key]
	if !ok {
		sw = &slidingWindow{tokens: make([]time.Time, 0, m.rpm), lastClean: now}
		m.win[key] = sw
	}

	if now.Sub(sw.lastClean) > 10*time.Second {
		valid := sw.tokens[:0]
		for _, t := range sw.tokens {
			if t.After(windowStart) {
				valid = append(valid, t)
			}
		}
		sw.tokens = valid
		sw.lastClean = now
	}

	count := 0
	for _, t := range sw.tokens {
		if t.After(windowStart) {
			count++
		}
	}

	remaining := m.rpm - count
	if remaining <= 0 {
		if len(sw.tokens) > 0 {
			resetAt = sw.tokens[0].Add(1 * time.Minute)
		}
		return false, 0, resetAt
	}

	sw.tokens = append(sw.tokens, now)
	return true, remaining - 1, resetAt
}

// Cleanup evicts keys with no recent activity. Call periodically from a
// background loop; unbounded growth otherwise since keys are never removed
// on their own.
func (m *memoryLimiter) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-2 * time.Minute)
	for key, sw := range m.win {
		if len(sw.tokens) == 0 || sw.tokens[len(sw.tokens)-1].Before(cutoff) {
			delete(m.win, key)
		}
	}
}

// redisLimiter implements a fixed-window counter in Redis via INCR+EXPIRE,
// shared across every HiveBoard replica. Simpler than a sliding window and
// sufficient for the coarse per-minute budgets HiveBoard enforces.
type redisLimiter struct {
	client *redis.Client
	rpm    int
}

func (r *redisLimiter) Allow(ctx context.Context, key string) (bool, int, time.Time) {
	now := time.Now()
	bucket := now.Truncate(time.Minute)
	resetAt := bucket.Add(time.Minute)
	redisKey := fmt.Sprintf("hiveboard:ratelimit:%s:%d", key, bucket.Unix())

	count, err := r.client.Incr(ctx, redisKey).Result()
	if err != nil {
		// Redis unavailable: fail open rather than block every request.
		return true, r.rpm, resetAt
	}
	if count == 1 {
		r.client.Expire(ctx, redisKey, time.Minute+5*time.Second)
	}

	remaining := r.rpm - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return int(count) <= r.rpm, remaining, resetAt
}
