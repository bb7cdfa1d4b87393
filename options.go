package tripwire

import (
	"time"

	"github.com/zoobzio/clockz"
)

// DefaultQueueSize is the default capacity of the engine's task queue.
const DefaultQueueSize = 64

// config holds configuration options for an Engine.
type config struct {
	clock        clockz.Clock
	liveExpiry   time.Duration
	diagExpiry   time.Duration
	metrics      MetricsProvider
	errorHistory int
	queueSize    int
	decoder      *Decoder
}

// Option configures an Engine.
type Option func(*config)

// WithClock sets a custom clock for timestamps, expiry timers and the
// synthetic driver's schedule.
// Use this with clockz.FakeClock for deterministic expiry testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) {
		c.clock = clock
	}
}

// WithLiveExpiry sets how long a channel updated from the transport keeps
// its value without a refresh. Default: 10s.
func WithLiveExpiry(d time.Duration) Option {
	return func(c *config) {
		c.liveExpiry = d
	}
}

// WithDiagnosticExpiry sets the expiry window for updates injected by the
// synthetic driver. Default: 5s.
func WithDiagnosticExpiry(d time.Duration) Option {
	return func(c *config) {
		c.diagExpiry = d
	}
}

// WithMetrics sets a metrics provider for observability integration.
func WithMetrics(provider MetricsProvider) Option {
	return func(c *config) {
		c.metrics = provider
	}
}

// WithErrorHistory enables retention of the last n decode failures,
// available through RecentErrors. Default: 0 (disabled).
func WithErrorHistory(n int) Option {
	return func(c *config) {
		c.errorHistory = n
	}
}

// WithQueueSize sets the capacity of the task queue between producers
// (transport, timers, synthetic driver) and the engine loop.
func WithQueueSize(n int) Option {
	return func(c *config) {
		c.queueSize = n
	}
}

// WithDecoder replaces the frame decoder.
func WithDecoder(d *Decoder) Option {
	return func(c *config) {
		c.decoder = d
	}
}
