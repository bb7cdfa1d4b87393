package tripwire

import "context"

// Transport is a resilient bidirectional message channel.
//
// Implementations own exactly one logical connection to their endpoint,
// which is fixed at construction. Connectivity loss is handled internally
// by reconnecting, without limit and without caller involvement; callers
// only notice it through the absence of inbound frames.
type Transport interface {
	// Connect starts the connection and returns without waiting for it to
	// be established. It fails only for a misconfigured connector or when
	// called more than once; dial failures are retried, never returned.
	Connect(ctx context.Context) error

	// OnMessage registers the handler invoked once per inbound frame, in
	// arrival order. Frames in flight during a disconnect may be lost.
	// It must be called before Connect.
	OnMessage(handler func(frame []byte))

	// Send transmits a frame if the connection is open. Otherwise it emits
	// TransportSendDropped and returns false; the frame is neither queued
	// nor retried.
	Send(frame []byte) bool

	// Close tears the connection down. It is idempotent.
	Close() error
}
