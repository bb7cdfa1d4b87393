package tripwire

import (
	"fmt"
	"sync"
	"time"
)

// FrameError records a frame that was dropped because it failed to decode.
type FrameError struct {
	Frame string
	At    time.Time
	Err   error
}

// Error implements error.
func (e FrameError) Error() string {
	return fmt.Sprintf("frame %q: %v", e.Frame, e.Err)
}

// Unwrap returns the decode error.
func (e FrameError) Unwrap() error {
	return e.Err
}

// errorRing is a thread-safe ring buffer for storing recent decode failures.
type errorRing struct {
	mu     sync.RWMutex
	errors []FrameError
	size   int
	head   int
	count  int
}

// newErrorRing creates a new ring buffer with the given capacity.
// If size is 0, the ring buffer is disabled.
func newErrorRing(size int) *errorRing {
	if size <= 0 {
		return nil
	}
	return &errorRing{
		errors: make([]FrameError, size),
		size:   size,
	}
}

// push adds a failure to the ring buffer, evicting the oldest when full.
func (r *errorRing) push(err FrameError) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.errors[r.head] = err
	r.head = (r.head + 1) % r.size
	if r.count < r.size {
		r.count++
	}
}

// all returns all failures in the ring buffer, oldest first.
func (r *errorRing) all() []FrameError {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.count == 0 {
		return nil
	}

	result := make([]FrameError, r.count)
	start := (r.head - r.count + r.size) % r.size
	for i := 0; i < r.count; i++ {
		result[i] = r.errors[(start+i)%r.size]
	}
	return result
}
