package httpadapter

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/mkarpushin/jarvis-rag/internal/observability/metrics"
)

// SlidingWindowLimiter allows at most limit events per key within a trailing
// window. The clock is injectable so tests can drive it deterministically.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	seen   map[string][]time.Time
}

func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		now:    time.Now,
		seen:   make(map[string][]time.Time),
	}
}

// WithClock replaces the time source. Test hook.
func (l *SlidingWindowLimiter) WithClock(now func() time.Time) *SlidingWindowLimiter {
	l.now = now
	return l
}

// Allow reports whether one more event for key fits into the current window
// and records it if so. A rejected event is not recorded, so a client that
// keeps retrying does not push its own window forward.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.seen[key][:0]
	for _, ts := range l.seen[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.seen[key] = kept
		return false
	}

	l.seen[key] = append(kept, now)
	return true
}

// RetryAfter returns how long the caller of key should wait before the next
// event can be admitted. Zero means the next call would be allowed already.
func (l *SlidingWindowLimiter) RetryAfter(key string) time.Duration {
	if l.limit <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.seen[key][:0]
	for _, ts := range l.seen[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.seen[key] = kept

	if len(kept) < l.limit {
		return 0
	}
	return kept[0].Add(l.window).Sub(now)
}

// globalRateLimitMiddleware applies a server-wide requests-per-second ceiling
// on top of the per-client window. Disabled when limiter is nil.
func globalRateLimitMiddleware(limiter *rate.Limiter, m *metrics.HTTPServerMetrics, next http.Handler) http.Handler {
	if limiter == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			if m != nil {
				m.ObserveRateLimited()
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "server is busy, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware caps concurrent in-flight requests. Disabled when
// maxInFlight is zero or negative.
func backpressureMiddleware(maxInFlight int, next http.Handler) http.Handler {
	if maxInFlight <= 0 {
		return next
	}
	slots := make(chan struct{}, maxInFlight)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case slots <- struct{}{}:
			defer func() { <-slots }()
			next.ServeHTTP(w, r)
		default:
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "server is overloaded, retry later")
		}
	})
}

func retryAfterHeader(d time.Duration) string {
	secs := int(d.Seconds())
	if d > time.Duration(secs)*time.Second {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
