package middleware

import (
	"context"
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTTL       = 10 * time.Minute
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet holds one bucket per client address.
type limiterSet struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*bucket
}

func newLimiterSet(cfg RateLimitConfig) *limiterSet {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &limiterSet{cfg: cfg, buckets: make(map[string]*bucket)}
}

func (s *limiterSet) get(client string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[client]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSecond), s.cfg.Burst)}
		s.buckets[client] = b
	}
	b.lastSeen = now
	return b.limiter
}

// sweep drops buckets idle for longer than ttl and returns how many remain.
func (s *limiterSet) sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, b := range s.buckets {
		if now.Sub(b.lastSeen) > ttl {
			delete(s.buckets, k)
		}
	}
	return len(s.buckets)
}

// RateLimiter limits each client address to cfg. Rejected requests get 429
// with a Retry-After header, which the dbadmin HTTP client honours on
// retry. Idle buckets are swept until ctx is done.
func RateLimiter(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	set := newLimiterSet(cfg)

	go func() {
		ticker := time.NewTicker(limiterSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				set.sweep(now, limiterIdleTTL)
			}
		}
	}()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			limiter := set.get(clientIP(r), now)

			res := limiter.ReserveN(now, 1)
			if !res.OK() {
				writeTooManyRequests(w, 0)
				return
			}
			if delay := res.DelayFrom(now); delay > 0 {
				res.CancelAt(now)
				writeTooManyRequests(w, int(math.Ceil(delay.Seconds())))
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(set.cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.TokensAt(now))))
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP is the remote address without its port. Forwarding headers are
// not trusted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"code":    code,
		"message": msg,
	})
}
