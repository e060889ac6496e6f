package ratelimit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/addispay/wallet-server/internal/auth"
	"github.com/addispay/wallet-server/internal/metrics"
	"github.com/go-chi/httprate"
)

// Config holds rate limiting configuration.
type Config struct {
	// Global rate limiting (across all users)
	GlobalEnabled bool
	GlobalLimit   int
	GlobalWindow  time.Duration

	// Per-user rate limiting, keyed by the authenticated principal
	PerUserEnabled bool
	PerUserLimit   int
	PerUserWindow  time.Duration
	PerUserScope   string // metrics/response label, e.g. "gifts_send"

	// Per-IP rate limiting (fallback when no principal is present)
	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	// Metrics collector (optional)
	Metrics *metrics.Metrics
}

// rateLimitResponse represents the JSON error response for rate limit exceeded.
type rateLimitResponse struct {
	Error             string `json:"error"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

// DefaultConfig returns sensible default rate limits from spec.md §6.4/§4.11.
func DefaultConfig() Config {
	return Config{
		GlobalEnabled: true,
		GlobalLimit:   1000,
		GlobalWindow:  time.Minute,

		PerUserEnabled: true,
		PerUserLimit:   10,
		PerUserWindow:  time.Minute,
		PerUserScope:   "gifts_send",

		PerIPEnabled: true,
		PerIPLimit:   120,
		PerIPWindow:  time.Minute,
	}
}

// createRateLimitHandler builds a standardized 429 handler for one limiter scope.
func createRateLimitHandler(scope string, windowSeconds int, m *metrics.Metrics) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		identifier := "all"
		if p, ok := auth.FromContext(r.Context()); ok {
			identifier = p.UserRef
		}
		if m != nil {
			m.ObserveRateLimit(scope, identifier)
		}

		response := rateLimitResponse{
			Error:             "rate_limit_exceeded",
			Message:           fmt.Sprintf("rate limit exceeded for %s, please try again later", scope),
			RetryAfterSeconds: windowSeconds,
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", windowSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(response)
	}
}

// GlobalLimiter creates a global rate limiter middleware, applied across all requests.
func GlobalLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.GlobalEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		cfg.GlobalLimit,
		cfg.GlobalWindow,
		httprate.WithLimitHandler(createRateLimitHandler("global", int(cfg.GlobalWindow.Seconds()), cfg.Metrics)),
	)
}

// UserLimiter creates a per-user leaky-bucket rate limiter keyed by the
// authenticated principal (spec.md §4.11: "gifts_send scope, user-scoped
// leaky bucket, default 10 events/minute"). Falls back to per-IP keying if
// no principal is present (should not occur — this middleware must run
// after auth.RequireUser).
func UserLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerUserEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	scope := cfg.PerUserScope
	if scope == "" {
		scope = "per_user"
	}

	return httprate.Limit(
		cfg.PerUserLimit,
		cfg.PerUserWindow,
		httprate.WithKeyFuncs(principalKeyExtractor),
		httprate.WithLimitHandler(createRateLimitHandler(scope, int(cfg.PerUserWindow.Seconds()), cfg.Metrics)),
	)
}

// IPLimiter creates a per-IP rate limiter middleware (fallback for unauthenticated routes).
func IPLimiter(cfg Config) func(http.Handler) http.Handler {
	if !cfg.PerIPEnabled {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		cfg.PerIPLimit,
		cfg.PerIPWindow,
		httprate.WithKeyByIP(),
		httprate.WithLimitHandler(createRateLimitHandler("per_ip", int(cfg.PerIPWindow.Seconds()), cfg.Metrics)),
	)
}

// principalKeyExtractor is an httprate.KeyFunc keying by the authenticated
// user, falling back to client IP for requests with no principal.
func principalKeyExtractor(r *http.Request) (string, error) {
	if p, ok := auth.FromContext(r.Context()); ok && p.UserRef != "" {
		return "user:" + p.UserRef, nil
	}
	return httprate.KeyByIP(r)
}
