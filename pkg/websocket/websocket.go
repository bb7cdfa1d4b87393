// Package websocket provides the live tripwire.Transport: a reconnecting
// WebSocket client that delivers every text frame from the sensor hub.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/tripwire-iot/tripwire"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"golang.org/x/net/websocket"
)

// DefaultOrigin is sent as the Origin header when none is configured.
const DefaultOrigin = "http://localhost/"

// ErrInvalidEndpoint is returned by Connect when the endpoint is not a
// ws:// or wss:// URL.
var ErrInvalidEndpoint = errors.New("invalid websocket endpoint")

// backoffSteps is the reconnect schedule. Attempts past the end of the list
// keep using the last step.
var backoffSteps = [...]time.Duration{
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	5 * time.Second,
	11 * time.Second,
	23 * time.Second,
	47 * time.Second,
	61 * time.Second,
}

// Backoff returns the delay before reconnect attempt n (zero based), capped
// at limit when limit is positive.
func Backoff(n int, limit time.Duration) time.Duration {
	if n < 0 {
		n = 0
	}
	if n >= len(backoffSteps) {
		n = len(backoffSteps) - 1
	}
	d := backoffSteps[n]
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

// Transport is a WebSocket connector. Dial and read failures are never
// surfaced to the caller; the connection is re-established in the
// background until Close is called.
type Transport struct {
	endpoint   string
	origin     string
	maxBackoff time.Duration
	clock      clockz.Clock

	mu      sync.Mutex
	handler func([]byte)
	conn    *websocket.Conn
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Option configures a Transport.
type Option func(*Transport)

// WithOrigin sets the Origin header sent during the handshake.
func WithOrigin(origin string) Option {
	return func(t *Transport) {
		t.origin = origin
	}
}

// WithMaxBackoff caps the delay between reconnect attempts.
func WithMaxBackoff(d time.Duration) Option {
	return func(t *Transport) {
		t.maxBackoff = d
	}
}

// WithClock sets the clock used to wait between reconnect attempts.
func WithClock(clock clockz.Clock) Option {
	return func(t *Transport) {
		t.clock = clock
	}
}

// New creates a Transport for endpoint, e.g. "wss://sensors.local:6789".
func New(endpoint string, opts ...Option) *Transport {
	t := &Transport{
		endpoint: endpoint,
		origin:   DefaultOrigin,
		clock:    clockz.RealClock,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Endpoint returns the configured endpoint.
func (t *Transport) Endpoint() string {
	return t.endpoint
}

// OnMessage registers the inbound frame handler. It must be called before
// Connect.
func (t *Transport) OnMessage(handler func([]byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Connect validates the endpoint and starts the connection loop. It returns
// without waiting for the first dial to complete.
func (t *Transport) Connect(ctx context.Context) error {
	cfg, err := t.config()
	if err != nil {
		return err
	}

	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return tripwire.ErrAlreadyConnected
	}
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.mu.Unlock()

	go t.run(ctx, cfg)
	return nil
}

// Connected reports whether a connection is currently open.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn != nil
}

// Send writes frame as a text message. It returns false, without retrying,
// when no connection is open or the write fails.
func (t *Transport) Send(frame []byte) bool {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		t.dropped(frame, nil)
		return false
	}
	if err := websocket.Message.Send(conn, string(frame)); err != nil {
		t.dropped(frame, err)
		return false
	}
	return true
}

// Close stops the connection loop and closes any open connection. It is
// idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, done, conn := t.cancel, t.done, t.conn
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	<-done
	return err
}

func (t *Transport) config() (*websocket.Config, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	cfg, err := websocket.NewConfig(t.endpoint, t.origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	return cfg, nil
}

func (t *Transport) run(ctx context.Context, cfg *websocket.Config) {
	defer close(t.done)

	attempt := 0
	for {
		conn, err := cfg.DialContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			delay := Backoff(attempt, t.maxBackoff)
			attempt++
			capitan.Emit(ctx, tripwire.TransportDialFailed,
				tripwire.KeyEndpoint.Field(t.endpoint),
				tripwire.KeyBackoff.Field(delay),
				tripwire.KeyError.Field(err.Error()),
			)
			if !t.wait(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		if !t.attach(conn) {
			_ = conn.Close()
			return
		}
		capitan.Emit(ctx, tripwire.TransportConnected,
			tripwire.KeyEndpoint.Field(t.endpoint),
		)

		readErr := t.read(conn)

		t.detach()
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}

		delay := Backoff(attempt, t.maxBackoff)
		attempt++
		capitan.Emit(ctx, tripwire.TransportDisconnected,
			tripwire.KeyEndpoint.Field(t.endpoint),
			tripwire.KeyBackoff.Field(delay),
			tripwire.KeyError.Field(readErr.Error()),
		)
		if !t.wait(ctx, delay) {
			return
		}
	}
}

// read delivers frames until the connection fails.
func (t *Transport) read(conn *websocket.Conn) error {
	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()

	for {
		var frame []byte
		if err := websocket.Message.Receive(conn, &frame); err != nil {
			return err
		}
		if handler != nil {
			handler(frame)
		}
	}
}

func (t *Transport) attach(conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return false
	}
	t.conn = conn
	return true
}

func (t *Transport) detach() {
	t.mu.Lock()
	t.conn = nil
	t.mu.Unlock()
}

func (t *Transport) wait(ctx context.Context, d time.Duration) bool {
	timer := t.clock.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C():
		return true
	}
}

func (t *Transport) dropped(frame []byte, err error) {
	reason := "not connected"
	if err != nil {
		reason = err.Error()
	}
	capitan.Emit(context.Background(), tripwire.TransportSendDropped,
		tripwire.KeyEndpoint.Field(t.endpoint),
		tripwire.KeyFrame.Field(string(frame)),
		tripwire.KeyError.Field(reason),
	)
}

// Ensure Transport implements tripwire.Transport.
var _ tripwire.Transport = (*Transport)(nil)
