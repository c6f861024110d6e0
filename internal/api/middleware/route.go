package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// routePattern returns the matched chi route pattern, e.g. "/v1/tracking/{travelerId}",
// falling back to the raw path outside a chi router. Only complete after routing.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// transitParams maps the route parameters worth correlating across logs and
// traces to the key they are reported under.
var transitParams = map[string]string{
	"stopId":     "stop_id",
	"travelerId": "traveler_id",
}

// routeParams returns the transit route parameters matched for r as
// (report name, value) pairs in path order. Only complete after routing.
func routeParams(r *http.Request) [][2]string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return nil
	}
	var out [][2]string
	for i, key := range rctx.URLParams.Keys {
		if name, ok := transitParams[key]; ok && rctx.URLParams.Values[i] != "" {
			out = append(out, [2]string{name, rctx.URLParams.Values[i]})
		}
	}
	return out
}
