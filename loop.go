package tripwire

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned when work is handed to a loop that has stopped.
var ErrLoopStopped = errors.New("event loop stopped")

// loop runs tasks one at a time, in the order they were posted. Everything
// that reads or writes reconciler state runs here, so none of it needs locks.
type loop struct {
	tasks    chan func()
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newLoop(size int) *loop {
	return &loop{
		tasks:  make(chan func(), size),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

// run executes tasks until stop is called. It must be started exactly once.
func (l *loop) run() {
	defer close(l.exited)
	for {
		select {
		case <-l.done:
			return
		case fn := <-l.tasks:
			select {
			case <-l.done:
				return
			default:
			}
			fn()
		}
	}
}

// post queues fn. It returns false, without queueing, once the loop is
// stopping. It must not be called from inside a task.
func (l *loop) post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.done:
		return false
	}
}

// call posts fn and waits for it to finish.
func (l *loop) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.exited:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stop rejects further posts and waits for run to return if it was started.
func (l *loop) stop(started bool) {
	l.stopOnce.Do(func() {
		close(l.done)
	})
	if started {
		<-l.exited
	}
}
