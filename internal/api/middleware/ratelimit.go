package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kiranshivaraju/pixgen/internal/api/response"
	"github.com/kiranshivaraju/pixgen/internal/cache"
)

const (
	defaultRequestsPerMinute = 30
	rateWindow               = time.Minute
)

// RateLimit caps how many requests one API key may make per clock minute.
// Triggering a run is the expensive call, so every authenticated route counts.
type RateLimit struct {
	counter cache.Cache
	limit   int64
	now     func() time.Time
}

// NewRateLimit allows requestsPerMin requests per key, or the default when
// requestsPerMin is not positive.
func NewRateLimit(c cache.Cache, requestsPerMin int) *RateLimit {
	if requestsPerMin <= 0 {
		requestsPerMin = defaultRequestsPerMinute
	}
	return &RateLimit{counter: c, limit: int64(requestsPerMin), now: time.Now}
}

// Limit counts the request against the key prefix that Authenticate stored.
// Requests without one pass through, and so do requests when Redis fails.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix, ok := getKeyPrefix(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, reset, err := rl.counter.CountRequest(r.Context(), prefix, rateWindow)
		if err != nil {
			slog.Warn("rate limit check failed", "key_prefix", prefix, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		h.Set("X-RateLimit-Remaining", strconv.FormatInt(max(rl.limit-count, 0), 10))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > rl.limit {
			h.Set("Retry-After", strconv.Itoa(rl.retryAfter(reset)))
			slog.Info("rate limited", "key_prefix", prefix, "count", count, "limit", rl.limit)
			response.Error(w, http.StatusTooManyRequests,
				response.CodeRateLimited, "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter is the whole number of seconds until reset, at least one.
func (rl *RateLimit) retryAfter(reset time.Time) int {
	secs := int(math.Ceil(reset.Sub(rl.now()).Seconds()))
	return max(secs, 1)
}
