package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/vendormitra/server/internal/ratelimit"
)

// KeyFunc derives the rate-limit key for a request.
type KeyFunc func(*http.Request) string

// IPKey keys the limiter by client IP. chi's RealIP middleware has already
// resolved X-Forwarded-For into RemoteAddr by the time this runs.
func IPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ClientIP extracts the client IP from the request.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}

// RateLimit rejects requests over the limiter's ceiling with a 429 carrying
// Retry-After. When bypass is set (development escape hatch) every request
// passes, loudly logged so a deployed environment cannot silently run open.
// Limiter errors fail open: an unreachable shared store must not take auth
// down with it.
func RateLimit(limiter ratelimit.Limiter, keyFn KeyFunc, bypass bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass {
				logger.Warn("rate limiting bypassed", "path", r.URL.Path, "ip", ClientIP(r))
				next.ServeHTTP(w, r)
				return
			}

			result, err := limiter.Allow(r.Context(), keyFn(r))
			if err != nil {
				logger.Error("rate limiter unavailable, failing open", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !result.OK {
				retryAfter := int(result.RetryAfter.Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"success":    false,
					"message":    "too many requests, please try again later",
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
