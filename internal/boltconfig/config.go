// Package boltconfig builds the single immutable configuration value every
// other package reads from: pool sizing and lifetime, timeouts, the user
// agent string, fetch-size default, and notification filtering. It is
// constructed once, via functional options, and never mutated afterwards.
package boltconfig

import (
	"math"
	"time"

	"github.com/corvid-graph/bolt-go-driver/internal/dbtype"
)

// FetchAll turns off batched fetching: every record for a stream is pulled
// in one request.
const FetchAll = -1

// FetchDefault lets the connection pick an appropriate batch size.
const FetchDefault = 0

// DefaultUserAgent is sent in HELLO unless overridden by WithUserAgent.
const DefaultUserAgent = "bolt-go-driver/1.0"

// DefaultConnectionLivenessCheckTimeout matches the teacher's own
// "essentially never probe unless explicitly asked" default: a negative
// value disables the liveness probe entirely.
const DefaultConnectionLivenessCheckTimeout = -1 * time.Second

// Config is the fully-resolved, immutable set of options a pool, a
// connection, and a retry engine are built from. Build one with New; there
// is no exported way to mutate a Config after construction.
type Config struct {
	MaxConnectionPoolSize          int
	MaxIdleConnectionPoolSize      int
	MaxConnectionLifetime          time.Duration
	ConnectionIdleTimeout          time.Duration
	ConnectionAcquisitionTimeout   time.Duration
	ConnectionLivenessCheckTimeout time.Duration
	SocketConnectTimeout           time.Duration
	SocketKeepalive                bool
	MaxTransactionRetryTime        time.Duration
	FetchSize                      int
	UserAgent                      string
	Ipv6Enabled                    bool
	TelemetryDisabled               bool
	NotificationConfig             dbtype.NotificationConfig
	AddressResolver                func(address string) []string

	// maxIdleSet records whether WithMaxIdleConnectionPoolSize was called,
	// so New knows whether to default it to MaxConnectionPoolSize.
	maxIdleSet bool
}

// Option mutates a Config under construction. Each Option is applied in
// the order passed to New, then the result is validated and normalised.
type Option func(*Config)

// WithMaxConnectionPoolSize overrides the maximum number of connections per
// address. Negative values are clamped to math.MaxInt32 (effectively
// unbounded); zero is rejected by New.
func WithMaxConnectionPoolSize(n int) Option {
	return func(c *Config) { c.MaxConnectionPoolSize = n }
}

// WithMaxIdleConnectionPoolSize overrides how many idle connections per
// address the pool keeps around; connections returned beyond this count are
// closed rather than kept idle. Defaults to MaxConnectionPoolSize.
func WithMaxIdleConnectionPoolSize(n int) Option {
	return func(c *Config) { c.MaxIdleConnectionPoolSize = n; c.maxIdleSet = true }
}

// WithConnectionIdleTimeout overrides how long a connection may sit idle in
// the pool before it is closed instead of reused. Values <= 0 disable the
// check (a connection never expires from idling alone).
func WithConnectionIdleTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionIdleTimeout = d }
}

// WithMaxConnectionLifetime overrides how long a pooled connection may live
// before it is retired on its next acquisition. Values <= 0 disable the
// lifetime check.
func WithMaxConnectionLifetime(d time.Duration) Option {
	return func(c *Config) { c.MaxConnectionLifetime = d }
}

// WithConnectionAcquisitionTimeout overrides how long Acquire waits for an
// idle connection or pool headroom before failing. Negative values mean
// wait forever; zero means fail immediately if nothing is available.
func WithConnectionAcquisitionTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionAcquisitionTimeout = d }
}

// WithConnectionLivenessCheckTimeout overrides the idle duration past which
// a pooled connection is RESET-probed before being handed out. Zero probes
// on every acquisition. DefaultConnectionLivenessCheckTimeout disables the
// probe; New rejects any other negative value.
func WithConnectionLivenessCheckTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectionLivenessCheckTimeout = d }
}

// WithSocketConnectTimeout overrides the TCP dial timeout. Values <= 0
// disable the timeout.
func WithSocketConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.SocketConnectTimeout = d }
}

// WithSocketKeepalive toggles TCP keepalive on dialed sockets.
func WithSocketKeepalive(enabled bool) Option {
	return func(c *Config) { c.SocketKeepalive = enabled }
}

// WithMaxTransactionRetryTime overrides the retry engine's total backoff
// budget. Negative values are rejected by New.
func WithMaxTransactionRetryTime(d time.Duration) Option {
	return func(c *Config) { c.MaxTransactionRetryTime = d }
}

// WithFetchSize overrides the default PULL batch size. Use FetchAll to
// always pull everything, or FetchDefault to defer to the connection.
func WithFetchSize(n int) Option {
	return func(c *Config) { c.FetchSize = n }
}

// WithUserAgent overrides the user agent string sent in HELLO.
func WithUserAgent(agent string) Option {
	return func(c *Config) { c.UserAgent = agent }
}

// WithIpv6Enabled toggles whether address resolution considers AAAA
// records.
func WithIpv6Enabled(enabled bool) Option {
	return func(c *Config) { c.Ipv6Enabled = enabled }
}

// WithTelemetryDisabled suppresses the anonymous per-API-first-use
// telemetry frame the connection would otherwise send when the server
// advertises support for it.
func WithTelemetryDisabled(disabled bool) Option {
	return func(c *Config) { c.TelemetryDisabled = disabled }
}

// WithNotificationConfig sets the minimum severity and disabled
// categories/classifications sent in HELLO/BEGIN/RUN.
func WithNotificationConfig(cfg dbtype.NotificationConfig) Option {
	return func(c *Config) { c.NotificationConfig = cfg }
}

// WithAddressResolver overrides how the initial router address is
// expanded before the first routing-table refresh.
func WithAddressResolver(resolver func(address string) []string) Option {
	return func(c *Config) { c.AddressResolver = resolver }
}

func defaultConfig() *Config {
	return &Config{
		MaxConnectionPoolSize:          100,
		MaxConnectionLifetime:          1 * time.Hour,
		ConnectionAcquisitionTimeout:   1 * time.Minute,
		ConnectionLivenessCheckTimeout: DefaultConnectionLivenessCheckTimeout,
		SocketConnectTimeout:           5 * time.Second,
		SocketKeepalive:                true,
		MaxTransactionRetryTime:        30 * time.Second,
		FetchSize:                      FetchDefault,
		UserAgent:                      DefaultUserAgent,
	}
}

// New builds a Config from the given options, applying the teacher's own
// mixed validate/clamp discipline: values with no sane extreme (a zero
// pool size, a negative retry budget, a negative liveness timeout) return
// a *dbtype.UsageError, while values with an obvious extreme (a negative
// pool size, a non-positive lifetime, a negative acquisition or socket
// timeout) are silently normalised to that extreme rather than rejected.
func New(opts ...Option) (*Config, error) {
	c := defaultConfig()
	for _, opt := range opts {
		opt(c)
	}

	if c.MaxTransactionRetryTime < 0 {
		return nil, &dbtype.UsageError{Message: "maximum transaction retry time cannot be smaller than 0"}
	}

	if c.MaxConnectionPoolSize == 0 {
		return nil, &dbtype.UsageError{Message: "maximum connection pool size cannot be 0"}
	}
	if c.MaxConnectionPoolSize < 0 {
		c.MaxConnectionPoolSize = math.MaxInt32
	}

	if !c.maxIdleSet {
		c.MaxIdleConnectionPoolSize = c.MaxConnectionPoolSize
	} else if c.MaxIdleConnectionPoolSize < 0 {
		c.MaxIdleConnectionPoolSize = math.MaxInt32
	}

	if c.MaxConnectionLifetime <= 0 {
		c.MaxConnectionLifetime = 1<<63 - 1
	}

	if c.ConnectionAcquisitionTimeout < 0 {
		c.ConnectionAcquisitionTimeout = -1
	}

	if c.SocketConnectTimeout < 0 {
		c.SocketConnectTimeout = 0
	}

	if c.ConnectionLivenessCheckTimeout < 0 && c.ConnectionLivenessCheckTimeout != DefaultConnectionLivenessCheckTimeout {
		return nil, &dbtype.UsageError{Message: "connection liveness check timeout cannot be negative"}
	}

	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}

	return c, nil
}
