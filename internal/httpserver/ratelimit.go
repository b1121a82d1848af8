package httpserver

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

// userLimiter pairs a limiter with its last use, for cleanup.
type userLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// rateLimiter is a per-user token bucket. A non-positive perMinute disables it.
type rateLimiter struct {
	limit rate.Limit
	burst int
	ttl   time.Duration

	mu       sync.Mutex
	limiters map[string]*userLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newRateLimiter(perMinute int, cleanupInterval time.Duration) *rateLimiter {
	rl := &rateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60.0),
		burst:    perMinute,
		ttl:      2 * cleanupInterval,
		limiters: make(map[string]*userLimiter),
		stopCh:   make(chan struct{}),
	}
	if perMinute > 0 {
		go rl.cleanupLoop(cleanupInterval)
	}
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

func (rl *rateLimiter) enabled() bool { return rl.burst > 0 }

func (rl *rateLimiter) allow(userID string) bool {
	if !rl.enabled() {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	ul, ok := rl.limiters[userID]
	if !ok {
		ul = &userLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[userID] = ul
	}
	ul.lastAccess = time.Now()
	return ul.limiter.Allow()
}

func (rl *rateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup drops limiters idle for longer than twice the cleanup interval.
func (rl *rateLimiter) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, ul := range rl.limiters {
		if now.Sub(ul.lastAccess) > rl.ttl {
			delete(rl.limiters, id)
		}
	}
}

// middleware rejects over-limit users with 429. It runs after requireAuth.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := userIDFrom(r.Context())
		if rl.allow(uid) {
			next.ServeHTTP(w, r)
			return
		}
		retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
		if retryAfter < 1 {
			retryAfter = 1
		}
		hlog.FromRequest(r).Warn().Str("userId", uid).Msg("guess rate limit exceeded")
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "RATE_LIMITED", Details: "too many guesses, slow down"})
	})
}
