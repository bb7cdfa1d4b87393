// Package testing provides test utilities and helpers for tripwire engines.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/tripwire-iot/tripwire"
	"github.com/zoobzio/clockz"
)

// Frames is a convenience for building inbound frames in tests.
var Frames = struct {
	Motion     []byte
	Recording  []byte
	Alarm      []byte
	Distance42 []byte
	Garbage    []byte
}{
	Motion:     []byte(`{'pir': true}`),
	Recording:  []byte(`{"camera": true}`),
	Alarm:      []byte(`{"buzzer": true, "led": true}`),
	Distance42: []byte(`{"ultrasonic": 42}`),
	Garbage:    []byte(`{pir: yes`),
}

// WaitFor polls a condition until it returns true or timeout is reached.
// Returns true if the condition was met, false if timeout occurred.
func WaitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// WaitForState waits until the engine reaches the expected state or timeout occurs.
func WaitForState(t *testing.T, e *tripwire.Engine, expected tripwire.State, timeout time.Duration) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return e.State() == expected
	})
}

// WaitForSnapshot waits until the engine's current snapshot satisfies check.
func WaitForSnapshot(t *testing.T, e *tripwire.Engine, timeout time.Duration, check func(tripwire.Snapshot) bool) bool {
	t.Helper()
	return WaitFor(t, timeout, func() bool {
		return check(e.Snapshot())
	})
}

// RequireState fails the test immediately if the engine is not in the expected state.
func RequireState(t *testing.T, e *tripwire.Engine, expected tripwire.State) {
	t.Helper()
	if got := e.State(); got != expected {
		t.Fatalf("expected state %s, got %s", expected, got)
	}
}

// RequireSnapshot fails the test if the current snapshot does not pass check.
func RequireSnapshot(t *testing.T, e *tripwire.Engine, check func(tripwire.Snapshot) bool) {
	t.Helper()
	if s := e.Snapshot(); !check(s) {
		t.Fatalf("snapshot check failed: %+v", s)
	}
}

// Advance moves a fake clock forward and lets armed timers observe it.
func Advance(clock *clockz.FakeClock, d time.Duration) {
	clock.Advance(d)
	clock.BlockUntilReady()
}

// TestEngine bundles a started engine with the handles a test drives it by.
type TestEngine struct {
	*tripwire.Engine
	Clock     *clockz.FakeClock
	Transport *tripwire.ChannelTransport
	Source    chan<- []byte
}

// NewTestEngine starts an engine on a ChannelTransport and a fake clock.
// The engine is stopped when the test finishes.
func NewTestEngine(t *testing.T, opts ...tripwire.Option) *TestEngine {
	t.Helper()
	ch := make(chan []byte, 16)
	clock := clockz.NewFakeClock()
	transport := tripwire.NewChannelTransport(ch)

	opts = append([]tripwire.Option{tripwire.WithClock(clock)}, opts...)
	e := tripwire.New(transport, opts...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })

	return &TestEngine{Engine: e, Clock: clock, Transport: transport, Source: ch}
}

// Feed sends frames to the engine's transport in order.
func (te *TestEngine) Feed(frames ...[]byte) {
	for _, f := range frames {
		te.Source <- f
	}
}
