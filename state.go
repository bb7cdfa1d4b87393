package tripwire

// State represents the lifecycle state of an Engine.
type State int32

const (
	// StateIdle indicates the Engine has been created but not started.
	// The initial snapshot is already readable.
	StateIdle State = iota

	// StateRunning indicates the Engine is consuming frames and timers.
	StateRunning

	// StateStopped indicates the Engine has been torn down. Its transport is
	// closed, its timers cancelled and its subscribers cleared. A stopped
	// Engine cannot be restarted.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
