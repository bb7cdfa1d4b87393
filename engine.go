package tripwire

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
)

// Lifecycle errors.
var (
	// ErrAlreadyStarted is returned by Start on a running Engine.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrEngineStopped is returned by Start on an Engine that has been stopped.
	ErrEngineStopped = errors.New("engine stopped")

	// ErrNotRunning is returned by operations that need a running Engine.
	ErrNotRunning = errors.New("engine not running")
)

// Engine owns one Transport and reconciles its frames into a Snapshot.
//
// Frames, expiry timers and injected events are all executed as tasks on a
// single loop goroutine, in the order they become ready. The current
// snapshot can be read from any goroutine at any time, including before
// Start, when it holds the all-default initial state.
type Engine struct {
	id         string
	transport  Transport
	decoder    *Decoder
	publisher  *Publisher
	reconciler *Reconciler
	loop       *loop
	clock      clockz.Clock
	liveExpiry time.Duration
	diagExpiry time.Duration
	metrics    MetricsProvider
	errors     *errorRing

	state   atomic.Int32
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	emitCtx context.Context
}

// New creates an Engine reading from transport.
//
// Example:
//
//	engine := tripwire.New(
//	    websocket.New("wss://sensors.local:6789"),
//	    tripwire.WithLiveExpiry(10*time.Second),
//	)
//	unsubscribe := engine.Subscribe(func(s tripwire.Snapshot) {
//	    render.Text(os.Stdout, s, time.Local)
//	})
//	defer unsubscribe()
//
//	if err := engine.Start(ctx); err != nil {
//	    return err
//	}
//	defer engine.Stop()
func New(transport Transport, opts ...Option) *Engine {
	cfg := &config{
		clock:      clockz.RealClock,
		liveExpiry: DefaultLiveExpiry,
		diagExpiry: DefaultDiagnosticExpiry,
		metrics:    NoOpMetricsProvider{},
		queueSize:  DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.decoder == nil {
		cfg.decoder = NewDecoder()
	}
	if cfg.queueSize <= 0 {
		cfg.queueSize = DefaultQueueSize
	}

	e := &Engine{
		id:         uuid.NewString(),
		transport:  transport,
		decoder:    cfg.decoder,
		publisher:  NewPublisher(),
		loop:       newLoop(cfg.queueSize),
		clock:      cfg.clock,
		liveExpiry: cfg.liveExpiry,
		diagExpiry: cfg.diagExpiry,
		metrics:    cfg.metrics,
		errors:     newErrorRing(cfg.errorHistory),
		emitCtx:    context.Background(),
	}
	e.reconciler = NewReconciler(e.clock, e.post, e.commit)
	e.reconciler.OnExpire(e.onExpire)

	initial := e.reconciler.Current()
	e.current.Store(&initial)
	e.state.Store(int32(StateIdle))

	return e
}

// ID returns the unique instance ID carried on every signal the Engine emits.
func (e *Engine) ID() string {
	return e.id
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Snapshot returns the most recently committed snapshot.
func (e *Engine) Snapshot() Snapshot {
	return *e.current.Load()
}

// Subscribe registers fn to be called synchronously, on the engine loop,
// with every committed snapshot. fn must not block and must not call Stop.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return e.publisher.Subscribe(fn)
}

// RecentErrors returns the retained decode failures, oldest first. It is
// empty unless WithErrorHistory was set.
func (e *Engine) RecentErrors() []FrameError {
	return e.errors.all()
}

// LiveExpiry returns the expiry window applied to transport updates.
func (e *Engine) LiveExpiry() time.Duration {
	return e.liveExpiry
}

// DiagnosticExpiry returns the expiry window applied to synthetic updates.
func (e *Engine) DiagnosticExpiry() time.Duration {
	return e.diagExpiry
}

// Start connects the transport and begins processing. Cancelling ctx stops
// the Engine as if Stop had been called.
//
// Start can only be called once. Subsequent calls return an error.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case StateRunning:
		return ErrAlreadyStarted
	case StateStopped:
		return ErrEngineStopped
	}

	e.emitCtx = context.WithoutCancel(ctx)
	e.transport.OnMessage(e.receive)

	go e.loop.run()
	e.state.Store(int32(StateRunning))

	if err := e.transport.Connect(ctx); err != nil {
		e.state.Store(int32(StateStopped))
		e.loop.stop(true)
		return fmt.Errorf("failed to connect transport: %w", err)
	}

	capitan.Emit(e.emitCtx, EngineStarted,
		KeyEngine.Field(e.id),
		KeyTTL.Field(e.liveExpiry),
	)

	go func() {
		select {
		case <-ctx.Done():
			_ = e.Stop() //nolint:errcheck // Close errors are reported via signals
		case <-e.loop.done:
		}
	}()

	return nil
}

// Stop tears the Engine down: it closes the transport, cancels every expiry
// timer, clears the subscribers and stops the loop, in that order. Once Stop
// has begun no further snapshot is committed or published.
//
// Stop is safe to call more than once and before Start. It returns the
// error from closing the transport, if any.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.State()
	if prev == StateStopped {
		return nil
	}
	e.state.Store(int32(StateStopped))

	closeErr := e.transport.Close()

	if prev == StateRunning {
		if err := e.loop.call(context.Background(), e.reconciler.Shutdown); err != nil {
			// the loop is gone, nothing else can touch the reconciler
			e.reconciler.Shutdown()
		}
	} else {
		e.reconciler.Shutdown()
	}

	e.publisher.Clear()
	e.loop.stop(prev == StateRunning)

	capitan.Emit(e.emitCtx, EngineStopped,
		KeyEngine.Field(e.id),
		KeyState.Field(prev.String()),
	)

	if closeErr != nil {
		return fmt.Errorf("failed to close transport: %w", closeErr)
	}
	return nil
}

// Inject applies ev through the same merge and expiry path as transport
// frames, using ttl as the expiry window. The synthetic driver uses this
// with DiagnosticExpiry.
func (e *Engine) Inject(ev Event, ttl time.Duration) error {
	if e.State() != StateRunning {
		return ErrNotRunning
	}
	if !e.post(func() { e.reconciler.Apply(ev, ttl) }) {
		return ErrNotRunning
	}
	return nil
}

// Send encodes ev and hands it to the transport. It reports whether the
// transport accepted the frame.
func (e *Engine) Send(ev Event) bool {
	frame, err := ev.MarshalJSON()
	if err != nil {
		return false
	}
	if !e.transport.Send(frame) {
		e.metrics.OnSendDropped()
		return false
	}
	return true
}

// Settle waits until every task queued before the call has been executed.
func (e *Engine) Settle(ctx context.Context) error {
	if e.State() != StateRunning {
		return ErrNotRunning
	}
	if err := e.loop.call(ctx, func() {}); err != nil {
		if errors.Is(err, ErrLoopStopped) {
			return ErrNotRunning
		}
		return err
	}
	return nil
}

// post queues fn on the loop. Tasks that start running after Stop has begun
// do nothing.
func (e *Engine) post(fn func()) bool {
	return e.loop.post(func() {
		if e.State() != StateRunning {
			return
		}
		fn()
	})
}

// receive is the transport's message handler.
func (e *Engine) receive(frame []byte) {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	e.post(func() { e.handleFrame(cp) })
}

// handleFrame decodes one frame and applies it with the live expiry window.
func (e *Engine) handleFrame(frame []byte) {
	e.metrics.OnFrameReceived()
	capitan.Emit(e.emitCtx, FrameReceived,
		KeyEngine.Field(e.id),
		KeyFrame.Field(string(frame)),
	)

	ev, err := e.decoder.Decode(frame)
	if err != nil {
		e.metrics.OnDecodeFailure()
		e.errors.push(FrameError{Frame: string(frame), At: e.clock.Now(), Err: err})
		capitan.Emit(e.emitCtx, FrameDecodeFailed,
			KeyEngine.Field(e.id),
			KeyFrame.Field(string(frame)),
			KeyError.Field(err.Error()),
		)
		return
	}

	if ignored := ev.Ignored(); len(ignored) > 0 {
		capitan.Emit(e.emitCtx, FrameFieldsIgnored,
			KeyEngine.Field(e.id),
			KeyFields.Field(strings.Join(ignored, ",")),
		)
	}

	e.reconciler.Apply(ev, e.liveExpiry)
}

// commit stores and publishes a new snapshot. It only ever runs on the loop.
func (e *Engine) commit(s Snapshot) {
	e.current.Store(&s)
	e.metrics.OnSnapshotCommitted(s)
	e.publisher.Publish(s)
	capitan.Emit(e.emitCtx, SnapshotCommitted,
		KeyEngine.Field(e.id),
		KeyChannels.Field(describe(s)),
	)
}

func (e *Engine) onExpire(c Channel) {
	e.metrics.OnChannelExpired(c)
	capitan.Emit(e.emitCtx, ChannelExpired,
		KeyEngine.Field(e.id),
		KeyChannel.Field(c.String()),
	)
}

// describe renders the snapshot values as "pir=true,camera=false,...".
func describe(s Snapshot) string {
	var b strings.Builder
	for i, c := range channelOrder {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(c.String())
		b.WriteByte('=')
		b.WriteString(s.values[i].String())
	}
	return b.String()
}
