// Package redis provides a tripwire.Transport over Redis pub/sub. Frames are
// read from an inbound channel and sent frames are published to an
// outbound channel.
package redis

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tripwire-iot/tripwire"
	"github.com/zoobzio/capitan"
)

// DefaultSendTimeout bounds a single PUBLISH issued by Send.
const DefaultSendTimeout = time.Second

// ErrNoChannel is returned by Connect when no inbound channel is configured.
var ErrNoChannel = errors.New("redis inbound channel is required")

// Transport subscribes to a Redis pub/sub channel. The go-redis client
// re-establishes the subscription after a connection loss; frames published
// while it is down are lost.
type Transport struct {
	client      *redis.Client
	inbound     string
	outbound    string
	sendTimeout time.Duration

	mu        sync.Mutex
	handler   func([]byte)
	pubsub    *redis.PubSub
	connected bool
	started   bool
	closed    bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// Option configures a Transport.
type Option func(*Transport)

// WithSendTimeout sets how long Send waits for a PUBLISH to complete.
func WithSendTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.sendTimeout = d
	}
}

// New creates a Transport reading from inbound and publishing to outbound.
// An empty outbound channel makes every Send a drop.
func New(client *redis.Client, inbound, outbound string, opts ...Option) *Transport {
	t := &Transport{
		client:      client,
		inbound:     inbound,
		outbound:    outbound,
		sendTimeout: DefaultSendTimeout,
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

// Connect subscribes to the inbound channel. The subscription is confirmed
// in the background; an unreachable server is retried, not reported.
func (t *Transport) Connect(ctx context.Context) error {
	if t.inbound == "" {
		return ErrNoChannel
	}

	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return tripwire.ErrAlreadyConnected
	}
	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.pubsub = t.client.Subscribe(ctx, t.inbound)
	pubsub, handler := t.pubsub, t.handler
	t.mu.Unlock()

	go t.run(ctx, pubsub, handler)
	return nil
}

// Connected reports whether the inbound subscription is currently active.
func (t *Transport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Transport) run(ctx context.Context, pubsub *redis.PubSub, handler func([]byte)) {
	defer close(t.done)

	ch := pubsub.ChannelWithSubscriptions()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch m := msg.(type) {
			case *redis.Subscription:
				if m.Kind != "subscribe" {
					continue
				}
				t.setConnected(true)
				capitan.Emit(ctx, tripwire.TransportConnected,
					tripwire.KeyEndpoint.Field(t.endpoint()),
				)
			case *redis.Message:
				if handler != nil {
					handler([]byte(m.Payload))
				}
			}
		}
	}
}

// Send publishes frame to the outbound channel.
func (t *Transport) Send(frame []byte) bool {
	t.mu.Lock()
	open := t.started && !t.closed
	t.mu.Unlock()

	if !open || t.outbound == "" {
		t.dropped(frame, "not connected")
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.sendTimeout)
	defer cancel()
	if err := t.client.Publish(ctx, t.outbound, frame).Err(); err != nil {
		t.setConnected(false)
		t.dropped(frame, err.Error())
		return false
	}
	return true
}

// Close unsubscribes and stops delivery. The client itself is left open.
// It is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	cancel, done, pubsub := t.cancel, t.done, t.pubsub
	t.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	err := pubsub.Close()
	<-done
	return err
}

func (t *Transport) setConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}

func (t *Transport) endpoint() string {
	return t.client.Options().Addr + "/" + t.inbound
}

func (t *Transport) dropped(frame []byte, reason string) {
	capitan.Emit(context.Background(), tripwire.TransportSendDropped,
		tripwire.KeyEndpoint.Field(t.client.Options().Addr+"/"+t.outbound),
		tripwire.KeyFrame.Field(string(frame)),
		tripwire.KeyError.Field(reason),
	)
}

// Ensure Transport implements tripwire.Transport.
var _ tripwire.Transport = (*Transport)(nil)
