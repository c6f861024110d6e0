// Package notify delivers live-activity updates to traveler devices.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/livetransit/livetransit/internal/tracking"
)

const meterName = "github.com/livetransit/livetransit/internal/notify"

// DefaultSubjectPrefix is the subject prefix used when none is configured.
const DefaultSubjectPrefix = "livetransit.activity"

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
}

// NATSConfig holds configuration for the NATS publisher.
type NATSConfig struct {
	// Conn publishes messages. Use Connect to dial a server.
	Conn Conn

	// SubjectPrefix is prepended to the traveler id (default: "livetransit.activity").
	SubjectPrefix string

	// Logger for publisher operations.
	Logger zerolog.Logger
}

// NATSPublisher publishes updates as JSON on "<prefix>.<travelerID>".
type NATSPublisher struct {
	conn   Conn
	prefix string
	logger zerolog.Logger

	published metric.Int64Counter
	duration  metric.Float64Histogram
}

var _ tracking.Publisher = (*NATSPublisher)(nil)

// NewNATSPublisher creates a publisher on an existing connection.
func NewNATSPublisher(cfg NATSConfig) (*NATSPublisher, error) {
	prefix := strings.Trim(cfg.SubjectPrefix, ". ")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}

	meter := otel.Meter(meterName)
	published, err := meter.Int64Counter(
		"live_activity.updates",
		metric.WithDescription("Live activity updates published"),
		metric.WithUnit("{update}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"live_activity.publish.duration",
		metric.WithDescription("Duration of live activity publishes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &NATSPublisher{
		conn:      cfg.Conn,
		prefix:    prefix,
		logger:    cfg.Logger.With().Str("component", "notify").Logger(),
		published: published,
		duration:  duration,
	}, nil
}

// Connect dials a NATS server with reconnect logging.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name("livetransit"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return nc, nil
}

// Subject returns the subject updates for a traveler are published on.
func (p *NATSPublisher) Subject(travelerID string) string {
	return p.prefix + "." + subjectToken(travelerID)
}

// Publish sends one update.
func (p *NATSPublisher) Publish(ctx context.Context, u tracking.Update) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode update: %w", err)
	}

	subject := p.Subject(u.TravelerID)
	start := time.Now()
	err = p.conn.Publish(subject, body)

	attrs := metric.WithAttributes(
		attribute.String("phase", string(u.State.Phase)),
		attribute.Bool("final", u.Final),
		attribute.Bool("success", err == nil),
	)
	p.published.Add(ctx, 1, attrs)
	p.duration.Record(ctx, time.Since(start).Seconds(), attrs)

	if err != nil {
		return fmt.Errorf("publish to %s: %w", subject, err)
	}

	p.logger.Debug().
		Str("subject", subject).
		Str("activity_id", u.ActivityID.String()).
		Int("bytes", len(body)).
		Msg("update published")
	return nil
}

// subjectToken makes s safe to use as a single NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
