// Package database opens the PostgreSQL pool backing the shared feed cache.
package database

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/livetransit/livetransit/internal/config"
)

// Config holds database connection configuration.
type Config struct {
	// URL, when set, is used instead of the individual connection fields.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// ApplicationName is reported to the server and shows in pg_stat_activity.
	ApplicationName string

	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
}

// ConfigFromEnv creates a Config from environment variables. The API and the
// worker pass their service name as the application name.
func ConfigFromEnv(applicationName string) Config {
	return Config{
		URL:               config.String("DATABASE_URL", ""),
		Host:              config.String("DB_HOST", "localhost"),
		Port:              config.Int("DB_PORT", 5432),
		User:              config.String("DB_USER", "livetransit"),
		Password:          config.String("DB_PASSWORD", "localdev"),
		Database:          config.String("DB_NAME", "livetransit"),
		SSLMode:           config.String("DB_SSL_MODE", "disable"),
		ApplicationName:   applicationName,
		MaxConns:          int32(config.Int("DB_MAX_CONNS", 10)), //nolint:gosec // small operator-set value
		MinConns:          int32(config.Int("DB_MIN_CONNS", 2)),  //nolint:gosec // small operator-set value
		MaxConnLifetime:   config.Duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		HealthCheckPeriod: config.Duration("DB_HEALTH_CHECK_PERIOD", 30*time.Second),
	}
}

func (c Config) connURL() *url.URL {
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + strconv.Itoa(c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
}

// ConnectionString returns the PostgreSQL connection URL. Credentials are escaped.
func (c Config) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	return c.connURL().String()
}

// Redacted returns the connection URL with the password masked, for logs.
func (c Config) Redacted() string {
	if c.URL == "" {
		return c.connURL().Redacted()
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return "invalid DATABASE_URL"
	}
	return u.Redacted()
}

// Connect creates a connection pool and pings the server.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	}
	if cfg.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
