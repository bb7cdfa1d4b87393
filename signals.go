package tripwire

import "github.com/zoobzio/capitan"

// Engine lifecycle signals.
var (
	// EngineStarted is emitted when an Engine begins processing.
	EngineStarted = capitan.NewSignal(
		"tripwire.engine.started",
		"Engine processing started",
	)

	// EngineStopped is emitted once an Engine has been torn down.
	EngineStopped = capitan.NewSignal(
		"tripwire.engine.stopped",
		"Engine processing stopped",
	)
)

// Frame and snapshot signals.
var (
	// FrameReceived is emitted for every raw inbound frame.
	FrameReceived = capitan.NewSignal(
		"tripwire.frame.received",
		"Raw frame received from transport",
	)

	// FrameDecodeFailed is emitted when a frame cannot be decoded. The frame
	// is dropped and the snapshot is left untouched.
	FrameDecodeFailed = capitan.NewSignal(
		"tripwire.frame.decode.failed",
		"Frame decode failed",
	)

	// FrameFieldsIgnored is emitted when a decoded frame carries keys that are
	// not channels.
	FrameFieldsIgnored = capitan.NewSignal(
		"tripwire.frame.fields.ignored",
		"Unrecognised frame fields ignored",
	)

	// SnapshotCommitted is emitted after a new snapshot is published.
	SnapshotCommitted = capitan.NewSignal(
		"tripwire.snapshot.committed",
		"Snapshot committed",
	)

	// ChannelExpired is emitted when an expiry timer reverts a channel to its
	// default value.
	ChannelExpired = capitan.NewSignal(
		"tripwire.channel.expired",
		"Channel reverted to default after expiry",
	)
)

// Transport signals. Connectors in pkg/ emit these.
var (
	// TransportConnected is emitted when a connection is established.
	TransportConnected = capitan.NewSignal(
		"tripwire.transport.connected",
		"Transport connected",
	)

	// TransportDisconnected is emitted when an established connection drops.
	TransportDisconnected = capitan.NewSignal(
		"tripwire.transport.disconnected",
		"Transport disconnected",
	)

	// TransportDialFailed is emitted when a connection attempt fails and a
	// retry has been scheduled.
	TransportDialFailed = capitan.NewSignal(
		"tripwire.transport.dial.failed",
		"Transport dial failed, retry scheduled",
	)

	// TransportSendDropped is emitted when a frame is sent while the
	// connection is not open. The frame is not retried.
	TransportSendDropped = capitan.NewSignal(
		"tripwire.transport.send.dropped",
		"Outbound frame dropped, transport not open",
	)
)

// SyntheticStep is emitted each time the synthetic driver fires a step.
var SyntheticStep = capitan.NewSignal(
	"tripwire.synthetic.step",
	"Synthetic event fired",
)
