package middleware

import (
	"net/http"

	"github.com/livetransit/livetransit/internal/api/models"
)

// securityHeaders are set on every response. Realtime answers go stale
// within seconds, so nothing is cacheable.
var securityHeaders = [][2]string{
	{"X-Content-Type-Options", "nosniff"},
	{"X-Frame-Options", "DENY"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
	{"Referrer-Policy", "strict-origin-when-cross-origin"},
	{"Cache-Control", "no-store"},
}

// SecurityHeaders adds the standard security headers to all HTTP responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range securityHeaders {
			w.Header().Set(h[0], h[1])
		}
		next.ServeHTTP(w, r)
	})
}

// probePaths are reached by load balancer health checks over plain HTTP.
var probePaths = map[string]bool{
	"/health": true,
	"/ready":  true,
}

// RequireTLS returns a middleware that rejects plain HTTP requests when enabled.
// A request is plain when it was not served over TLS and the load balancer's
// X-Forwarded-Proto says so; requests without the header are let through, as
// are the probe endpoints.
func RequireTLS(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			proto := r.Header.Get("X-Forwarded-Proto")
			if r.TLS == nil && proto != "" && proto != "https" && !probePaths[r.URL.Path] {
				models.NewProblem(
					models.ProblemTypeTLSRequired,
					"TLS required",
					http.StatusForbidden,
					GetRequestID(r.Context()),
				).WithDetail("This endpoint requires HTTPS").
					WithInstance(r.URL.Path).
					Write(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
