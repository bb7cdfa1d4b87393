package tripwire

import (
	"context"
	"errors"
	"sync"

	"github.com/zoobzio/capitan"
)

// ErrAlreadyConnected is returned by Connect on a transport that has already
// been connected or closed.
var ErrAlreadyConnected = errors.New("transport already connected")

// ChannelTransport is an in-process Transport fed from a byte channel.
// Outbound frames are recorded rather than transmitted. Useful for testing,
// examples and embedding the engine behind a custom source.
type ChannelTransport struct {
	source <-chan []byte

	mu      sync.Mutex
	handler func([]byte)
	open    bool
	used    bool
	closed  bool
	sent    [][]byte
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewChannelTransport creates a ChannelTransport that delivers every value
// received from source. A nil source delivers nothing. The transport
// reports itself open once connected.
func NewChannelTransport(source <-chan []byte) *ChannelTransport {
	return &ChannelTransport{source: source}
}

// OnMessage registers the inbound frame handler.
func (t *ChannelTransport) OnMessage(handler func([]byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Connect starts forwarding frames from the source channel until the
// channel closes, ctx is cancelled or Close is called.
func (t *ChannelTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.used {
		t.mu.Unlock()
		return ErrAlreadyConnected
	}
	t.used = true
	t.open = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	handler := t.handler
	t.mu.Unlock()

	go func() {
		defer close(t.done)
		if t.source == nil {
			<-ctx.Done()
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case frame, ok := <-t.source:
				if !ok {
					return
				}
				if handler != nil {
					handler(frame)
				}
			}
		}
	}()

	return nil
}

// SetOpen simulates connectivity changes for Send.
func (t *ChannelTransport) SetOpen(open bool) {
	t.mu.Lock()
	t.open = open
	t.mu.Unlock()
}

// Send records frame if the transport is open.
func (t *ChannelTransport) Send(frame []byte) bool {
	t.mu.Lock()
	if !t.open || t.closed {
		t.mu.Unlock()
		capitan.Emit(context.Background(), TransportSendDropped,
			KeyEndpoint.Field("channel"),
			KeyFrame.Field(string(frame)),
		)
		return false
	}
	cp := make([]byte, len(frame))
	copy(cp, frame)
	t.sent = append(t.sent, cp)
	t.mu.Unlock()
	return true
}

// Sent returns a copy of every frame accepted by Send.
func (t *ChannelTransport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// Close stops forwarding. It is idempotent.
func (t *ChannelTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.used = true
	t.open = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Ensure ChannelTransport implements Transport.
var _ Transport = (*ChannelTransport)(nil)
