/*
Package tripwire reconciles a live stream of partial sensor updates into a
consistent, self-expiring snapshot for real-time display.

An intrusion-detection appliance pushes frames such as

	{"pir": true, "timestamp": "2024-01-01T00:00:00Z"}

over an unreliable socket. Each frame mentions only some of the five
channels (pir, camera, buzzer, led, ultrasonic). The Engine merges every
frame into a Snapshot that always holds a value for every channel, and
reverts each channel to its default when it has not been refreshed within
its expiry window.

# Pipeline

	Transport → Decoder → Reconciler → Publisher

  - Transport: a resilient connection that reconnects on its own. The core
    package provides ChannelTransport; connectors live in pkg/ (websocket,
    redis, nats, file).
  - Decoder: parses one frame into an Event, tolerating single-quoted
    pseudo-JSON. Malformed frames are dropped and reported.
  - Reconciler: merges events, arms one expiry timer per channel and
    commits a new Snapshot.
  - Publisher: calls every subscriber synchronously with each commit.

All of it runs on one loop goroutine per Engine, so events are applied
strictly in arrival order and the last write to a channel wins.

# Basic Usage

	engine := tripwire.New(websocket.New("wss://sensors.local:6789"))

	engine.Subscribe(func(s tripwire.Snapshot) {
	    fmt.Println(s.Bool(tripwire.ChannelPIR), s.Timestamp(tripwire.ChannelPIR))
	})

	if err := engine.Start(ctx); err != nil {
	    return err
	}
	defer engine.Stop()

# Synthetic Events

Driver plays a fixed script into the engine, sending each event out over the
transport and applying it locally with the diagnostic expiry window:

	err := tripwire.NewDriver(engine, tripwire.DefaultScript(nil)).Run(ctx)

# Observability

The package emits capitan signals (EngineStarted, FrameDecodeFailed,
SnapshotCommitted, ChannelExpired, TransportSendDropped, ...) carrying the
field keys in fields.go. Hook them to route events to logs:

	capitan.Hook(tripwire.FrameDecodeFailed, func(_ context.Context, e *capitan.Event) {
	    msg, _ := tripwire.KeyError.From(e)
	    log.Printf("dropped frame: %s", msg)
	})

For counters and gauges, pass a MetricsProvider via WithMetrics; pkg/prometheus
provides one.
*/
package tripwire
