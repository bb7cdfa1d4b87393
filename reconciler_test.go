package tripwire

import (
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

// taskQueue stands in for the engine loop: fired timers land here and the
// test decides when they run.
type taskQueue struct {
	tasks chan func()
}

func newTaskQueue() *taskQueue {
	return &taskQueue{tasks: make(chan func(), 16)}
}

func (q *taskQueue) post(fn func()) bool {
	q.tasks <- fn
	return true
}

// runNext runs the next posted task, waiting up to timeout for one to arrive.
func (q *taskQueue) runNext(timeout time.Duration) bool {
	select {
	case fn := <-q.tasks:
		fn()
		return true
	case <-time.After(timeout):
		return false
	}
}

type commitLog struct {
	snapshots []Snapshot
}

func (l *commitLog) commit(s Snapshot) {
	l.snapshots = append(l.snapshots, s)
}

func newTestReconciler(clock clockz.Clock) (*Reconciler, *taskQueue, *commitLog) {
	q := newTaskQueue()
	log := &commitLog{}
	return NewReconciler(clock, q.post, log.commit), q, log
}

func TestReconciler_InitialSnapshotIsDefault(t *testing.T) {
	r, _, log := newTestReconciler(clockz.NewFakeClock())

	if r.Current() != NewSnapshot() {
		t.Errorf("expected default snapshot, got %+v", r.Current())
	}
	if len(log.snapshots) != 0 {
		t.Errorf("expected no commits, got %d", len(log.snapshots))
	}
}

func TestReconciler_ApplyOverwritesPresentAndKeepsAbsent(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, _, log := newTestReconciler(clock)

	first := NewEvent().
		With(ChannelPIR, BoolValue(true)).
		With(ChannelUltrasonic, NumberValue(37)).
		WithTimestamp("2024-01-01T00:00:00Z")
	r.Apply(first, DefaultLiveExpiry)
	before := r.Current()

	second := NewEvent().
		With(ChannelCamera, BoolValue(true)).
		WithTimestamp("2024-01-01T00:00:05Z")
	if !r.Apply(second, DefaultLiveExpiry) {
		t.Fatal("expected Apply to commit")
	}
	after := r.Current()

	want := before.with(ChannelCamera, BoolValue(true), "2024-01-01T00:00:05Z")
	if after != want {
		t.Errorf("expected %+v, got %+v", want, after)
	}
	for _, c := range []Channel{ChannelPIR, ChannelBuzzer, ChannelLED, ChannelUltrasonic} {
		if after.Value(c) != before.Value(c) {
			t.Errorf("%s value changed: %v -> %v", c, before.Value(c), after.Value(c))
		}
		if after.Timestamp(c) != before.Timestamp(c) {
			t.Errorf("%s timestamp changed: %q -> %q", c, before.Timestamp(c), after.Timestamp(c))
		}
	}

	if len(log.snapshots) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(log.snapshots))
	}
	if log.snapshots[1] != after {
		t.Error("expected last commit to be the current snapshot")
	}
}

func TestReconciler_UsesClockWhenTimestampMissing(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, _, _ := newTestReconciler(clock)

	r.Apply(NewEvent().With(ChannelLED, BoolValue(true)), DefaultLiveExpiry)

	want := FormatTimestamp(clock.Now())
	if got := r.Current().Timestamp(ChannelLED); got != want {
		t.Errorf("expected timestamp %q, got %q", want, got)
	}
}

func TestReconciler_ApplyTwiceIsIdempotent(t *testing.T) {
	clock := clockz.NewFakeClock()
	once, _, _ := newTestReconciler(clock)
	twice, _, _ := newTestReconciler(clock)

	ev := NewEvent().
		With(ChannelBuzzer, BoolValue(true)).
		With(ChannelUltrasonic, NumberValue(12.5))

	once.Apply(ev, DefaultLiveExpiry)
	twice.Apply(ev, DefaultLiveExpiry)
	clock.Advance(250 * time.Millisecond)
	twice.Apply(ev, DefaultLiveExpiry)

	for _, c := range Channels() {
		if once.Current().Value(c) != twice.Current().Value(c) {
			t.Errorf("%s: expected %v, got %v", c, once.Current().Value(c), twice.Current().Value(c))
		}
	}
	if got, want := twice.Current().Timestamp(ChannelBuzzer), FormatTimestamp(clock.Now()); got != want {
		t.Errorf("expected second application timestamp %q, got %q", want, got)
	}
	if pending := twice.Pending(); len(pending) != 2 {
		t.Errorf("expected 2 armed timers, got %v", pending)
	}
}

func TestReconciler_EmptyEventCommitsNothing(t *testing.T) {
	r, _, log := newTestReconciler(clockz.NewFakeClock())

	if r.Apply(NewEvent().WithTimestamp("2024-01-01T00:00:00Z"), DefaultLiveExpiry) {
		t.Error("expected Apply to report no commit")
	}
	if len(log.snapshots) != 0 {
		t.Errorf("expected no commits, got %d", len(log.snapshots))
	}
}

func TestReconciler_ExpiresExactlyAtTTL(t *testing.T) {
	tests := []struct {
		name string
		ttl  time.Duration
	}{
		{"live", DefaultLiveExpiry},
		{"diagnostic", DefaultDiagnosticExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockz.NewFakeClock()
			r, q, log := newTestReconciler(clock)

			r.Apply(NewEvent().
				With(ChannelPIR, BoolValue(true)).
				WithTimestamp("2024-01-01T00:00:00Z"), tt.ttl)

			clock.Advance(tt.ttl - time.Millisecond)
			clock.BlockUntilReady()
			if q.runNext(50 * time.Millisecond) {
				t.Fatal("expiry fired before ttl elapsed")
			}
			if !r.Current().Bool(ChannelPIR) {
				t.Fatal("expected pir still true before ttl")
			}

			clock.Advance(time.Millisecond)
			clock.BlockUntilReady()
			if !q.runNext(time.Second) {
				t.Fatal("expected expiry to fire at ttl")
			}

			if r.Current().Bool(ChannelPIR) {
				t.Error("expected pir reverted to false")
			}
			if got := r.Current().Timestamp(ChannelPIR); got != "2024-01-01T00:00:00Z" {
				t.Errorf("expected timestamp kept after expiry, got %q", got)
			}
			if len(log.snapshots) != 2 {
				t.Errorf("expected expiry to commit, got %d commits", len(log.snapshots))
			}
			if len(r.Pending()) != 0 {
				t.Errorf("expected no armed timers, got %v", r.Pending())
			}
		})
	}
}

func TestReconciler_NumericChannelExpiresToZero(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, q, _ := newTestReconciler(clock)

	r.Apply(NewEvent().With(ChannelUltrasonic, NumberValue(88)), time.Second)

	clock.Advance(time.Second)
	clock.BlockUntilReady()
	if !q.runNext(time.Second) {
		t.Fatal("expected expiry to fire")
	}
	if got := r.Current().Number(ChannelUltrasonic); got != 0 {
		t.Errorf("expected ultrasonic 0, got %v", got)
	}
}

func TestReconciler_UpdateReplacesTimer(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, q, _ := newTestReconciler(clock)
	ttl := DefaultLiveExpiry

	r.Apply(NewEvent().With(ChannelCamera, BoolValue(true)), ttl)
	clock.Advance(500 * time.Millisecond)
	r.Apply(NewEvent().With(ChannelCamera, BoolValue(true)), ttl)

	if pending := r.Pending(); len(pending) != 1 || pending[0] != ChannelCamera {
		t.Fatalf("expected exactly one armed timer for camera, got %v", pending)
	}

	// t + ttl: the first timer would have fired here
	clock.Advance(ttl - 500*time.Millisecond)
	clock.BlockUntilReady()
	if q.runNext(50 * time.Millisecond) {
		t.Fatal("replaced timer fired")
	}
	if !r.Current().Bool(ChannelCamera) {
		t.Fatal("camera reverted at the first update's deadline")
	}

	// t + 500ms + ttl: anchored to the second update
	clock.Advance(500 * time.Millisecond)
	clock.BlockUntilReady()
	if !q.runNext(time.Second) {
		t.Fatal("expected the second timer to fire")
	}
	if r.Current().Bool(ChannelCamera) {
		t.Error("expected camera reverted after the second deadline")
	}
}

func TestReconciler_StaleFiringIsNoOp(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, _, log := newTestReconciler(clock)

	r.Apply(NewEvent().With(ChannelBuzzer, BoolValue(true)), DefaultLiveExpiry)
	stale := r.timers[ChannelBuzzer]
	r.Apply(NewEvent().With(ChannelBuzzer, BoolValue(true)), DefaultLiveExpiry)

	r.expire(ChannelBuzzer, stale)

	if !r.Current().Bool(ChannelBuzzer) {
		t.Error("stale firing reverted the channel")
	}
	if len(log.snapshots) != 2 {
		t.Errorf("stale firing committed, got %d commits", len(log.snapshots))
	}
}

func TestReconciler_ShutdownCancelsTimers(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, q, log := newTestReconciler(clock)

	r.Apply(NewEvent().
		With(ChannelPIR, BoolValue(true)).
		With(ChannelLED, BoolValue(true)), time.Second)
	armed := r.timers[ChannelPIR]

	r.Shutdown()
	r.Shutdown()

	if len(r.Pending()) != 0 {
		t.Errorf("expected no armed timers, got %v", r.Pending())
	}

	clock.Advance(2 * time.Second)
	clock.BlockUntilReady()
	if q.runNext(50 * time.Millisecond) {
		t.Error("cancelled timer posted an expiry")
	}

	r.expire(ChannelPIR, armed)
	if r.Apply(NewEvent().With(ChannelCamera, BoolValue(true)), time.Second) {
		t.Error("expected Apply after Shutdown to be a no-op")
	}
	if len(log.snapshots) != 1 {
		t.Errorf("expected no commits after shutdown, got %d total", len(log.snapshots))
	}
}

func TestReconciler_NonPositiveTTLArmsNothing(t *testing.T) {
	r, _, _ := newTestReconciler(clockz.NewFakeClock())

	r.Apply(NewEvent().With(ChannelPIR, BoolValue(true)), time.Second)
	r.Apply(NewEvent().With(ChannelPIR, BoolValue(true)), 0)

	if len(r.Pending()) != 0 {
		t.Errorf("expected the earlier timer cancelled and none armed, got %v", r.Pending())
	}
}

func TestReconciler_OnExpireCalledBeforeCommit(t *testing.T) {
	clock := clockz.NewFakeClock()
	r, q, log := newTestReconciler(clock)

	var expired []Channel
	var commitsAtExpire int
	r.OnExpire(func(c Channel) {
		expired = append(expired, c)
		commitsAtExpire = len(log.snapshots)
	})

	r.Apply(NewEvent().With(ChannelLED, BoolValue(true)), time.Second)
	clock.Advance(time.Second)
	clock.BlockUntilReady()
	if !q.runNext(time.Second) {
		t.Fatal("expected expiry to fire")
	}

	if len(expired) != 1 || expired[0] != ChannelLED {
		t.Errorf("expected led expiry, got %v", expired)
	}
	if commitsAtExpire != 1 {
		t.Errorf("expected hook before the expiry commit, saw %d commits", commitsAtExpire)
	}
}
