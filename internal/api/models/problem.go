package models

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 error response.
// This is used for all API error responses with Content-Type: application/problem+json.
type Problem struct {
	// Type is a URI reference that identifies the problem type.
	Type string `json:"type"`

	// Title is a short, human-readable summary of the problem type.
	Title string `json:"title"`

	// Status is the HTTP status code for this occurrence of the problem.
	Status int `json:"status"`

	// Code is the machine readable error code, e.g. PLANNING_FAILED.
	Code string `json:"code,omitempty"`

	// Detail is a human-readable explanation specific to this occurrence.
	Detail string `json:"detail,omitempty"`

	// Instance is a URI reference that identifies the specific occurrence.
	Instance string `json:"instance,omitempty"`

	// TraceID is the request trace identifier for debugging.
	TraceID string `json:"traceId"`

	// Errors contains structured field validation errors.
	Errors []FieldError `json:"errors,omitempty"`
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ProblemType constants for standard error types.
const (
	ProblemTypeValidation      = "https://api.livetransit.dev/problems/validation-error"
	ProblemTypeNotFound        = "https://api.livetransit.dev/problems/not-found"
	ProblemTypeTooManyRequests = "https://api.livetransit.dev/problems/too-many-requests"
	ProblemTypeInternal        = "https://api.livetransit.dev/problems/internal-error"
	ProblemTypeUpstream        = "https://api.livetransit.dev/problems/upstream-error"
	ProblemTypeUnavailable     = "https://api.livetransit.dev/problems/service-unavailable"
	ProblemTypeTLSRequired     = "https://api.livetransit.dev/problems/tls-required"
)

// Error codes.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidTime     = "INVALID_TIME"
	CodeInvalidStrategy = "INVALID_STRATEGY"
	CodeNotFound        = "NOT_FOUND"
	CodeNoActiveSession = "NO_ACTIVE_SESSION"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// problemKind is the fixed part of a problem for one status code.
type problemKind struct {
	typ   string
	title string
	code  string
}

var problemKinds = map[int]problemKind{
	http.StatusBadRequest:          {ProblemTypeValidation, "Validation error", CodeValidation},
	http.StatusNotFound:            {ProblemTypeNotFound, "Not found", CodeNotFound},
	http.StatusTooManyRequests:     {ProblemTypeTooManyRequests, "Too many requests", CodeRateLimited},
	http.StatusInternalServerError: {ProblemTypeInternal, "Internal server error", CodeInternal},
	http.StatusBadGateway:          {ProblemTypeUpstream, "Upstream error", ""},
	http.StatusServiceUnavailable:  {ProblemTypeUnavailable, "Service unavailable", CodeUnavailable},
}

// NewProblem creates a new Problem with the given parameters.
func NewProblem(problemType, title string, status int, traceID string) *Problem {
	return &Problem{
		Type:    problemType,
		Title:   title,
		Status:  status,
		TraceID: traceID,
	}
}

// newKind builds the problem registered for status. An empty code takes the
// kind's default.
func newKind(status int, traceID, code, detail string) *Problem {
	kind := problemKinds[status]
	if code == "" {
		code = kind.code
	}
	p := NewProblem(kind.typ, kind.title, status, traceID)
	p.Code = code
	p.Detail = detail
	return p
}

// WithCode sets the machine readable error code.
func (p *Problem) WithCode(code string) *Problem {
	p.Code = code
	return p
}

// WithDetail adds a detail message to the Problem.
func (p *Problem) WithDetail(detail string) *Problem {
	p.Detail = detail
	return p
}

// WithInstance adds the request instance URI to the Problem.
func (p *Problem) WithInstance(instance string) *Problem {
	p.Instance = instance
	return p
}

// WithErrors adds field errors to the Problem.
func (p *Problem) WithErrors(errors []FieldError) *Problem {
	p.Errors = errors
	return p
}

// Error makes a Problem usable as an error, e.g. "NOT_FOUND: unknown stop 200060".
func (p *Problem) Error() string {
	code := p.Code
	if code == "" {
		code = http.StatusText(p.Status)
	}
	if p.Detail == "" {
		return code
	}
	return code + ": " + p.Detail
}

// Write writes the Problem as JSON to the ResponseWriter. The trace ID is
// echoed as X-Request-Id when present.
func (p *Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/problem+json")
	if p.TraceID != "" {
		w.Header().Set("X-Request-Id", p.TraceID)
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// NewBadRequest creates a 400 Bad Request problem. An empty code defaults to VALIDATION_ERROR.
func NewBadRequest(traceID, code, detail string, errors []FieldError) *Problem {
	return newKind(http.StatusBadRequest, traceID, code, detail).WithErrors(errors)
}

// NewNotFound creates a 404 Not Found problem. An empty code defaults to NOT_FOUND.
func NewNotFound(traceID, code, detail string) *Problem {
	return newKind(http.StatusNotFound, traceID, code, detail)
}

// NewTooManyRequests creates a 429 Too Many Requests problem.
func NewTooManyRequests(traceID, detail string) *Problem {
	return newKind(http.StatusTooManyRequests, traceID, "", detail)
}

// NewInternalError creates a 500 Internal Server Error problem.
func NewInternalError(traceID, detail string) *Problem {
	return newKind(http.StatusInternalServerError, traceID, "", detail)
}

// NewBadGateway creates a 502 Bad Gateway problem for upstream planner failures.
func NewBadGateway(traceID, code, detail string) *Problem {
	return newKind(http.StatusBadGateway, traceID, code, detail)
}

// NewServiceUnavailable creates a 503 Service Unavailable problem.
func NewServiceUnavailable(traceID, detail string) *Problem {
	return newKind(http.StatusServiceUnavailable, traceID, "", detail)
}
