package tripwire

import (
	"time"

	"github.com/zoobzio/clockz"
)

// Default expiry durations. The live stream and the synthetic driver use
// different windows and are configured independently.
const (
	DefaultLiveExpiry       = 10 * time.Second
	DefaultDiagnosticExpiry = 5 * time.Second
)

// TimestampLayout is the ISO-8601 form used when an update carries no
// timestamp of its own: UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// expiry is the armed timer for one channel. The handle's identity is what
// marks it current: a firing whose handle is no longer registered is stale.
type expiry struct {
	timer  clockz.Timer
	cancel chan struct{}
}

// Reconciler merges partial updates into the current Snapshot and reverts
// channels that go quiet for longer than their expiry window.
//
// A Reconciler is not safe for concurrent use. Apply, Shutdown and the
// expiry tasks handed to post must all run on the same goroutine; post is
// how a fired timer gets back onto that goroutine.
type Reconciler struct {
	clock   clockz.Clock
	post    func(func()) bool
	commit  func(Snapshot)
	expired func(Channel)

	current Snapshot
	timers  map[Channel]*expiry
	stopped bool
}

// NewReconciler creates a Reconciler starting from the all-default snapshot.
// commit is called with every new snapshot. post must schedule its argument
// on the goroutine that owns the Reconciler.
func NewReconciler(clock clockz.Clock, post func(func()) bool, commit func(Snapshot)) *Reconciler {
	return &Reconciler{
		clock:   clock,
		post:    post,
		commit:  commit,
		current: NewSnapshot(),
		timers:  make(map[Channel]*expiry, numChannels),
	}
}

// OnExpire registers fn to be called, before the commit, whenever a channel
// reverts to its default after expiry.
func (r *Reconciler) OnExpire(fn func(Channel)) {
	r.expired = fn
}

// Current returns the last committed snapshot.
func (r *Reconciler) Current() Snapshot {
	return r.current
}

// Apply merges ev into the snapshot and commits the result. For every
// channel present in ev the previous expiry timer is cancelled and a new one
// armed for ttl; a ttl of zero or less leaves the channel without a timer.
// Channels absent from ev are carried over unchanged.
//
// Apply reports whether a snapshot was committed. Events without channel
// readings and calls after Shutdown commit nothing.
func (r *Reconciler) Apply(ev Event, ttl time.Duration) bool {
	if r.stopped || ev.Empty() {
		return false
	}

	ts, ok := ev.Timestamp()
	if !ok {
		ts = FormatTimestamp(r.clock.Now())
	}

	next := r.current
	for _, c := range ev.Channels() {
		v, _ := ev.Get(c)
		r.cancel(c)
		if ttl > 0 {
			r.arm(c, ttl)
		}
		next = next.with(c, v, ts)
	}

	r.current = next
	r.commit(next)
	return true
}

// Pending returns the channels that currently have an armed expiry timer,
// in display order.
func (r *Reconciler) Pending() []Channel {
	var out []Channel
	for _, c := range channelOrder {
		if _, ok := r.timers[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Shutdown cancels every armed timer and makes all later Apply calls and
// timer firings no-ops. It is safe to call more than once.
func (r *Reconciler) Shutdown() {
	r.stopped = true
	for c := range r.timers {
		r.cancel(c)
	}
}

func (r *Reconciler) arm(c Channel, ttl time.Duration) {
	x := &expiry{
		timer:  r.clock.NewTimer(ttl),
		cancel: make(chan struct{}),
	}
	r.timers[c] = x

	go func() {
		select {
		case <-x.timer.C():
			r.post(func() { r.expire(c, x) })
		case <-x.cancel:
		}
	}()
}

func (r *Reconciler) cancel(c Channel) {
	x, ok := r.timers[c]
	if !ok {
		return
	}
	x.timer.Stop()
	close(x.cancel)
	delete(r.timers, c)
}

// expire reverts c to its default. The timestamp is left as it was so the
// last real update stays visible.
func (r *Reconciler) expire(c Channel, x *expiry) {
	if r.stopped || r.timers[c] != x {
		return
	}
	delete(r.timers, c)

	next := r.current.with(c, Default(c), "")
	r.current = next
	if r.expired != nil {
		r.expired(c)
	}
	r.commit(next)
}
