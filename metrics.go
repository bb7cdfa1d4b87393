package tripwire

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key engine events.
// Callbacks run on the engine's loop and must not block.
type MetricsProvider interface {
	// OnFrameReceived is called for every raw inbound frame.
	OnFrameReceived()

	// OnDecodeFailure is called when a frame is dropped because it could not
	// be decoded.
	OnDecodeFailure()

	// OnSnapshotCommitted is called after every commit with the new snapshot.
	OnSnapshotCommitted(s Snapshot)

	// OnChannelExpired is called when a channel reverts to its default.
	OnChannelExpired(c Channel)

	// OnSendDropped is called when an outbound frame is refused by the
	// transport.
	OnSendDropped()
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnFrameReceived()             {}
func (NoOpMetricsProvider) OnDecodeFailure()             {}
func (NoOpMetricsProvider) OnSnapshotCommitted(Snapshot) {}
func (NoOpMetricsProvider) OnChannelExpired(Channel)     {}
func (NoOpMetricsProvider) OnSendDropped()               {}
