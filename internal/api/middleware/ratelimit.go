package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/livetransit/livetransit/internal/api/models"
)

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// Requests per window
	RequestLimit int
	// Window duration
	WindowLength time.Duration
}

// Default rate limit configurations.
var (
	// ExpensiveRateLimit applies to endpoints that call the trip planner (30 req/min).
	ExpensiveRateLimit = RateLimitConfig{
		RequestLimit: 30,
		WindowLength: time.Minute,
	}

	// StandardRateLimit applies to standard endpoints (100 req/min).
	StandardRateLimit = RateLimitConfig{
		RequestLimit: 100,
		WindowLength: time.Minute,
	}

	// SampleRateLimit applies to location samples of one traveler (120 req/min).
	SampleRateLimit = RateLimitConfig{
		RequestLimit: 120,
		WindowLength: time.Minute,
	}
)

// RateLimitByIP creates a rate limiter middleware using client IP address.
// Uses X-Forwarded-For header if present (extracted by chi's RealIP middleware).
func RateLimitByIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(rateLimitExceededHandler(cfg)),
	)
}

// RateLimitByTraveler creates a rate limiter keyed on the {travelerId} route
// parameter. Falls back to the client IP outside a traveler route.
func RateLimitByTraveler(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.RequestLimit,
		cfg.WindowLength,
		httprate.WithKeyFuncs(keyByTravelerOrIP),
		httprate.WithLimitHandler(rateLimitExceededHandler(cfg)),
	)
}

func keyByTravelerOrIP(r *http.Request) (string, error) {
	if travelerID := chi.URLParam(r, "travelerId"); travelerID != "" {
		return "traveler:" + travelerID, nil
	}
	return httprate.KeyByRealIP(r)
}

// rateLimitExceededHandler writes an RFC7807 Problem response when rate limit is exceeded.
// httprate does not expose the reset time, so Retry-After is the window length.
func rateLimitExceededHandler(cfg RateLimitConfig) http.HandlerFunc {
	window := int(cfg.WindowLength.Seconds())
	retryAfter := strconv.Itoa(window)
	detail := fmt.Sprintf("Rate limit of %d requests per %d seconds exceeded.", cfg.RequestLimit, window)
	return func(w http.ResponseWriter, r *http.Request) {
		problem := models.NewTooManyRequests(GetRequestID(r.Context()), detail)
		problem.Instance = r.URL.Path

		w.Header().Set("Retry-After", retryAfter)
		problem.Write(w)
	}
}
