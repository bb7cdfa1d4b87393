package tripwire

import "github.com/zoobzio/capitan"

// Field keys for tripwire events.
var (
	// KeyEngine is the instance ID of the emitting Engine.
	KeyEngine = capitan.NewStringKey("engine")

	// KeyState is the lifecycle state of the Engine.
	KeyState = capitan.NewStringKey("state")

	// KeyChannel is a single channel name.
	KeyChannel = capitan.NewStringKey("channel")

	// KeyChannels is a comma-separated list of channel names.
	KeyChannels = capitan.NewStringKey("channels")

	// KeyFields is a comma-separated list of ignored frame keys.
	KeyFields = capitan.NewStringKey("fields")

	// KeyFrame is the raw frame text.
	KeyFrame = capitan.NewStringKey("frame")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyEndpoint is the address a transport connects to.
	KeyEndpoint = capitan.NewStringKey("endpoint")

	// KeyBackoff is the delay before the next connection attempt.
	KeyBackoff = capitan.NewDurationKey("backoff")

	// KeyTTL is the expiry duration armed for a channel.
	KeyTTL = capitan.NewDurationKey("ttl")

	// KeyStep is the index of a synthetic script step.
	KeyStep = capitan.NewIntKey("step")
)
