package tripwire

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Step is one scripted event fired at Offset after the script starts.
type Step struct {
	Offset time.Duration
	Event  Event
}

// Script is an ordered list of steps.
type Script []Step

// DefaultScript returns the diagnostic sequence that exercises every channel:
//
//	+0s  pir
//	+1s  camera, ultrasonic (random integer in [0, 100))
//	+2s  buzzer, led
//
// intn supplies the random distance; nil uses math/rand/v2.
func DefaultScript(intn func(n int) int) Script {
	if intn == nil {
		intn = rand.IntN
	}
	return Script{
		{
			Offset: 0,
			Event:  NewEvent().With(ChannelPIR, BoolValue(true)),
		},
		{
			Offset: time.Second,
			Event: NewEvent().
				With(ChannelCamera, BoolValue(true)).
				With(ChannelUltrasonic, NumberValue(float64(intn(100)))),
		},
		{
			Offset: 2 * time.Second,
			Event: NewEvent().
				With(ChannelBuzzer, BoolValue(true)).
				With(ChannelLED, BoolValue(true)),
		},
	}
}

// Driver plays a Script into an Engine for end-to-end verification without
// a live backend. Each step is stamped with the current time, sent out over
// the engine's transport and applied through the engine's reconciler with
// the diagnostic expiry window.
type Driver struct {
	engine *Engine
	script Script
	clock  clockz.Clock
	ttl    time.Duration
}

// NewDriver creates a Driver for engine. Steps are fired in offset order.
func NewDriver(engine *Engine, script Script) *Driver {
	sorted := make(Script, len(script))
	copy(sorted, script)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	return &Driver{
		engine: engine,
		script: sorted,
		clock:  engine.clock,
		ttl:    engine.diagExpiry,
	}
}

// Run fires every step and returns once the last one has been applied.
// All step timers are armed before the first step fires. A refused send is
// reported but does not stop the script; cancelling ctx does.
func (d *Driver) Run(ctx context.Context) error {
	timers := make([]clockz.Timer, len(d.script))
	for i, step := range d.script {
		if step.Offset > 0 {
			timers[i] = d.clock.NewTimer(step.Offset)
		}
	}
	defer func() {
		for _, t := range timers {
			if t != nil {
				t.Stop()
			}
		}
	}()

	for i, step := range d.script {
		if t := timers[i]; t != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C():
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := d.fire(ctx, i, step.Event); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) fire(ctx context.Context, i int, ev Event) error {
	ev = ev.WithTimestamp(FormatTimestamp(d.clock.Now()))

	sent := d.engine.Send(ev)

	names := make([]string, 0, numChannels)
	for _, c := range ev.Channels() {
		names = append(names, c.String())
	}
	capitan.Emit(ctx, SyntheticStep,
		KeyEngine.Field(d.engine.ID()),
		KeyStep.Field(i),
		KeyChannels.Field(strings.Join(names, ",")),
		KeyState.Field(sendState(sent)),
	)

	return d.engine.Inject(ev, d.ttl)
}

func sendState(sent bool) string {
	if sent {
		return "sent"
	}
	return "dropped"
}
