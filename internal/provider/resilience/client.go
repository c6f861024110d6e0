package resilience

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the upstream while its breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ClientConfig holds configuration for the resilient HTTP client.
type ClientConfig struct {
	// Name identifies the provider in the breaker, logs and the registry.
	Name string

	// Timeout bounds each HTTP attempt. Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the number of retries after the first attempt. Zero disables retries.
	MaxRetries uint64

	// InitialInterval is the first retry backoff. Default: 100ms
	InitialInterval time.Duration

	// MaxInterval caps the retry backoff. Default: 5 seconds
	MaxInterval time.Duration

	// CircuitBreaker is the circuit breaker configuration.
	// If nil, uses PlannerBreakerConfig.
	CircuitBreaker *CircuitBreakerConfig

	// Registry, when set, registers the client under Name and receives the
	// outcome of every call.
	Registry *Registry

	// Logger receives circuit breaker state changes.
	Logger zerolog.Logger
}

// PlannerClientConfig is tuned for the trip planner: a traveler is waiting, so
// attempts are short and retried quickly.
func PlannerClientConfig(name string) ClientConfig {
	cbConfig := PlannerBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// FeedClientConfig is tuned for realtime feed polling. A late feed is soon
// superseded by the next poll, so it retries once.
func FeedClientConfig(name string) ClientConfig {
	cbConfig := FeedBreakerConfig(name)
	return ClientConfig{
		Name:            name,
		Timeout:         8 * time.Second,
		MaxRetries:      1,
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     time.Second,
		CircuitBreaker:  &cbConfig,
	}
}

// Client is a resilient HTTP client with circuit breaker and retry logic.
type Client struct {
	httpClient     *http.Client
	circuitBreaker *gobreaker.CircuitBreaker[*http.Response]
	config         ClientConfig
}

// NewClient creates a new resilient HTTP client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 100 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	cbConfig := PlannerBreakerConfig(cfg.Name)
	if cfg.CircuitBreaker != nil {
		cbConfig = *cfg.CircuitBreaker
	}
	if cbConfig.OnStateChange == nil {
		logger := cfg.Logger.With().Str("component", "resilience").Str("provider", cfg.Name).Logger()
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		}
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		circuitBreaker: NewCircuitBreaker[*http.Response](cbConfig), //nolint:bodyclose // type param, not response
		config:         cfg,
	}
	if cfg.Registry != nil {
		cfg.Registry.Register(cfg.Name, c)
	}
	return c
}

// Name returns the client name.
func (c *Client) Name() string {
	return c.config.Name
}

// Do executes req through the breaker. Network errors, 5xx and 429 are retried
// with exponential backoff. ErrCircuitOpen is returned at once while the breaker is open.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes an HTTP request with the given context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.do(ctx, req)
	c.record(time.Since(start), resp, err)
	return resp, err
}

// record reports the call outcome to the registry. An unavailable status that
// survived the retries counts as a failure. A call canceled by its caller is not reported.
func (c *Client) record(latency time.Duration, resp *http.Response, err error) {
	if c.config.Registry == nil {
		return
	}
	switch {
	case err != nil && errors.Is(err, context.Canceled):
		return
	case err != nil:
		c.config.Registry.Record(c.config.Name, latency, err)
	case unavailable(resp.StatusCode):
		c.config.Registry.Record(c.config.Name, latency, &ServerError{StatusCode: resp.StatusCode})
	default:
		c.config.Registry.Record(c.config.Name, latency, nil)
	}
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0 // bounded by MaxRetries

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	var last *http.Response
	attempt := func() error {
		resp, err := c.circuitBreaker.Execute(func() (*http.Response, error) { //nolint:bodyclose // caller closes
			r, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return nil, err
			}
			if unavailable(r.StatusCode) {
				return r, &ServerError{StatusCode: r.StatusCode}
			}
			return r, nil
		})

		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return backoff.Permanent(ErrCircuitOpen)
		case errors.Is(err, context.Canceled):
			return backoff.Permanent(err)
		case err != nil:
			if resp != nil {
				if last != nil {
					last.Body.Close()
				}
				last = resp
			}
			return err
		}

		// 2xx and 4xx other than 429 are final.
		if last != nil {
			last.Body.Close()
		}
		last = resp
		return nil
	}

	if err := backoff.Retry(attempt, policy); err != nil {
		// An upstream that answered 5xx or 429 on every attempt: hand back its
		// last response so the caller can classify it.
		if last != nil && !errors.Is(err, ErrCircuitOpen) {
			return last, nil
		}
		if last != nil {
			last.Body.Close()
		}
		return nil, err
	}
	return last, nil
}

// unavailable reports statuses that are retried and count against the breaker.
func unavailable(status int) bool {
	return status >= 500 || status == http.StatusTooManyRequests
}

// ServerError is an upstream response with a 5xx or 429 status.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return "upstream unavailable: " + http.StatusText(e.StatusCode)
}

// CircuitBreakerState returns the current state of the circuit breaker.
func (c *Client) CircuitBreakerState() gobreaker.State {
	return c.circuitBreaker.State()
}

// CircuitBreakerCounts returns the current counts of the circuit breaker.
func (c *Client) CircuitBreakerCounts() gobreaker.Counts {
	return c.circuitBreaker.Counts()
}
