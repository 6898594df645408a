package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nikhilbhutani/pagegate/internal/logging"
)

// WindowCounter counts hits per key inside a fixed window.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, resetIn time.Duration, err error)
}

type RateLimiter struct {
	counter WindowCounter
	limit   int64
	window  time.Duration
	logger  logging.Logger
}

func NewRateLimiter(counter WindowCounter, limit int64, window time.Duration, logger logging.Logger) *RateLimiter {
	return &RateLimiter{
		counter: counter,
		limit:   limit,
		window:  window,
		logger:  logging.OrDefault(logger),
	}
}

// Limit rejects clients over the window budget with 429. Counter failures
// let the request through.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		count, resetIn, err := rl.counter.Hit(r.Context(), ip, rl.window)
		if err != nil {
			rl.logger.Warn(map[string]any{"error": err}, "rate limiter unavailable")
			next.ServeHTTP(w, r)
			return
		}

		if count > rl.limit {
			secs := int(resetIn.Round(time.Second) / time.Second)
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RemoteAddr has already been rewritten by chi's RealIP when it is mounted.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
