// Package response writes JSON and problem responses for the API handlers.
package response

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/livetransit/livetransit/internal/api/middleware"
	"github.com/livetransit/livetransit/internal/api/models"
)

func setRequestID(w http.ResponseWriter, r *http.Request) {
	if requestID := middleware.GetRequestID(r.Context()); requestID != "" {
		w.Header().Set(middleware.RequestIDHeader, requestID)
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	setRequestID(w, r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// JSON writes data with the given status code.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	writeJSON(w, r, status, data)
}

// Created writes a 201 response, with a Location header when location is set.
func Created(w http.ResponseWriter, r *http.Request, location string, data interface{}) {
	if location != "" {
		w.Header().Set("Location", location)
	}
	writeJSON(w, r, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(w http.ResponseWriter, r *http.Request) {
	setRequestID(w, r)
	w.WriteHeader(http.StatusNoContent)
}

// Error writes problem as application/problem+json with the request path as instance.
func Error(w http.ResponseWriter, r *http.Request, problem *models.Problem) {
	problem.Instance = r.URL.Path
	problem.Write(w)
}

func traceID(r *http.Request) string {
	return middleware.GetRequestID(r.Context())
}

// BadRequest writes a 400 response. An empty code is reported as VALIDATION_ERROR.
func BadRequest(w http.ResponseWriter, r *http.Request, code, detail string, errors []models.FieldError) {
	Error(w, r, models.NewBadRequest(traceID(r), code, detail, errors))
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, r *http.Request, code, detail string) {
	Error(w, r, models.NewNotFound(traceID(r), code, detail))
}

// InternalError writes a 500 response.
func InternalError(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewInternalError(traceID(r), detail))
}

// BadGateway writes a 502 response for a failed upstream call.
func BadGateway(w http.ResponseWriter, r *http.Request, code, detail string) {
	Error(w, r, models.NewBadGateway(traceID(r), code, detail))
}

// ServiceUnavailable writes a 503 response.
func ServiceUnavailable(w http.ResponseWriter, r *http.Request, detail string) {
	Error(w, r, models.NewServiceUnavailable(traceID(r), detail))
}

// RetryLater writes a 503 response telling the client when to try again.
// The delay is rounded up to whole seconds.
func RetryLater(w http.ResponseWriter, r *http.Request, detail string, after time.Duration) {
	secs := int((after + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	ServiceUnavailable(w, r, detail)
}
