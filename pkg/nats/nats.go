// Package nats provides a tripwire.Transport over core NATS subjects.
package nats

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/tripwire-iot/tripwire"
	"github.com/zoobzio/capitan"
)

// DefaultReconnectWait is the pause between reconnect attempts.
const DefaultReconnectWait = 2 * time.Second

// ErrNoSubject is returned by Connect when no inbound subject is configured.
var ErrNoSubject = errors.New("nats inbound subject is required")

// Transport subscribes to an inbound subject and publishes sent frames to an
// outbound subject. Reconnects are unbounded and handled by the client.
type Transport struct {
	url           string
	inbound       string
	outbound      string
	name          string
	reconnectWait time.Duration

	mu      sync.Mutex
	handler func([]byte)
	conn    *nats.Conn
	sub     *nats.Subscription
	started bool
	closed  bool
}

// Option configures a Transport.
type Option func(*Transport)

// WithName sets the client name reported to the server.
func WithName(name string) Option {
	return func(t *Transport) {
		t.name = name
	}
}

// WithReconnectWait sets the pause between reconnect attempts.
func WithReconnectWait(d time.Duration) Option {
	return func(t *Transport) {
		t.reconnectWait = d
	}
}

// New creates a Transport for the server at url.
func New(url, inbound, outbound string, opts ...Option) *Transport {
	t := &Transport{
		url:           url,
		inbound:       inbound,
		outbound:      outbound,
		name:          "tripwire",
		reconnectWait: DefaultReconnectWait,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnMessage registers the inbound frame handler. It must be called before
// Connect.
func (t *Transport) OnMessage(handler func([]byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Connect dials the server and subscribes to the inbound subject. A server
// that is not yet reachable is retried in the background.
func (t *Transport) Connect(_ context.Context) error {
	if t.inbound == "" {
		return ErrNoSubject
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.closed {
		return tripwire.ErrAlreadyConnected
	}
	t.started = true

	conn, err := nats.Connect(t.url,
		nats.Name(t.name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(t.reconnectWait),
		nats.RetryOnFailedConnect(true),
		nats.ConnectHandler(t.onConnect),
		nats.ReconnectHandler(t.onConnect),
		nats.DisconnectErrHandler(t.onDisconnect),
	)
	if err != nil {
		return fmt.Errorf("failed to create nats connection: %w", err)
	}

	handler := t.handler
	sub, err := conn.Subscribe(t.inbound, func(m *nats.Msg) {
		if handler != nil {
			handler(m.Data)
		}
	})
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", t.inbound, err)
	}

	t.conn = conn
	t.sub = sub
	return nil
}

// Connected reports whether the client currently has a server connection.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	return conn != nil && conn.IsConnected()
}

// Send publishes frame to the outbound subject while connected.
func (t *Transport) Send(frame []byte) bool {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil || !conn.IsConnected() || t.outbound == "" {
		t.dropped(frame, "not connected")
		return false
	}
	if err := conn.Publish(t.outbound, frame); err != nil {
		t.dropped(frame, err.Error())
		return false
	}
	return true
}

// Close unsubscribes and closes the connection. It is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	conn, sub := t.conn, t.sub
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	var err error
	if sub != nil {
		err = sub.Unsubscribe()
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
			err = nil
		}
	}
	conn.Close()
	return err
}

func (t *Transport) onConnect(conn *nats.Conn) {
	capitan.Emit(context.Background(), tripwire.TransportConnected,
		tripwire.KeyEndpoint.Field(conn.ConnectedUrl()),
	)
}

func (t *Transport) onDisconnect(_ *nats.Conn, err error) {
	reason := "disconnected"
	if err != nil {
		reason = err.Error()
	}
	capitan.Emit(context.Background(), tripwire.TransportDisconnected,
		tripwire.KeyEndpoint.Field(t.url),
		tripwire.KeyBackoff.Field(t.reconnectWait),
		tripwire.KeyError.Field(reason),
	)
}

func (t *Transport) dropped(frame []byte, reason string) {
	capitan.Emit(context.Background(), tripwire.TransportSendDropped,
		tripwire.KeyEndpoint.Field(t.url+"/"+t.outbound),
		tripwire.KeyFrame.Field(string(frame)),
		tripwire.KeyError.Field(reason),
	)
}

// Ensure Transport implements tripwire.Transport.
var _ tripwire.Transport = (*Transport)(nil)
