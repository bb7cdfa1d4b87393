// Package file provides a tripwire.Transport backed by newline-delimited
// spool files. Frames already in the inbound file are replayed on Connect
// and lines appended later are delivered as they are written. Sent frames
// are appended to an outbound capture file.
package file

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/tripwire-iot/tripwire"
	"github.com/zoobzio/capitan"
)

// Transport tails an inbound spool file.
type Transport struct {
	path    string
	capture string

	mu      sync.Mutex
	handler func([]byte)
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	sendMu sync.Mutex
}

// Option configures a Transport.
type Option func(*Transport)

// WithCapture sets the file that sent frames are appended to. Without it
// every Send is a drop.
func WithCapture(path string) Option {
	return func(t *Transport) {
		t.capture = path
	}
}

// New creates a Transport that tails path.
func New(path string, opts ...Option) *Transport {
	t := &Transport{path: filepath.Clean(path)}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnMessage registers the inbound frame handler. It must be called before
// Connect.
func (t *Transport) OnMessage(handler func([]byte)) {
	t.mu.Lock()
	t.handler = handler
	t.mu.Unlock()
}

// Connect watches the spool file's directory and starts delivering frames.
// The file itself does not need to exist yet; the directory does.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.started || t.closed {
		t.mu.Unlock()
		return tripwire.ErrAlreadyConnected
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		t.mu.Unlock()
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(t.path)); err != nil {
		watcher.Close()
		t.mu.Unlock()
		return fmt.Errorf("failed to watch directory of %s: %w", t.path, err)
	}

	t.started = true
	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	handler := t.handler
	t.mu.Unlock()

	capitan.Emit(ctx, tripwire.TransportConnected,
		tripwire.KeyEndpoint.Field(t.path),
	)

	go t.run(ctx, watcher, handler)
	return nil
}

func (t *Transport) run(ctx context.Context, watcher *fsnotify.Watcher, handler func([]byte)) {
	defer close(t.done)
	defer watcher.Close()

	tail := &tailer{path: t.path, deliver: handler}
	tail.poll()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != t.path {
				continue
			}
			switch {
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				tail.reset()
			case event.Op&(fsnotify.Write|fsnotify.Create) != 0:
				tail.poll()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			// Continue watching despite errors
			capitan.Emit(ctx, tripwire.TransportDisconnected,
				tripwire.KeyEndpoint.Field(t.path),
				tripwire.KeyError.Field(err.Error()),
			)
		}
	}
}

// Send appends frame as one line to the capture file.
func (t *Transport) Send(frame []byte) bool {
	t.mu.Lock()
	open := t.started && !t.closed
	t.mu.Unlock()

	if !open || t.capture == "" {
		t.dropped(frame, "not connected")
		return false
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	f, err := os.OpenFile(t.capture, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.dropped(frame, err.Error())
		return false
	}
	line := make([]byte, 0, len(frame)+1)
	line = append(append(line, frame...), '\n')
	_, err = f.Write(line)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		t.dropped(frame, err.Error())
		return false
	}
	return true
}

// Close stops tailing. It is idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

func (t *Transport) dropped(frame []byte, reason string) {
	capitan.Emit(context.Background(), tripwire.TransportSendDropped,
		tripwire.KeyEndpoint.Field(t.capture),
		tripwire.KeyFrame.Field(string(frame)),
		tripwire.KeyError.Field(reason),
	)
}

// tailer tracks how far into the spool file frames have been delivered.
// A trailing line without a newline is held back until it is completed.
type tailer struct {
	path    string
	offset  int64
	deliver func([]byte)
}

func (tl *tailer) reset() {
	tl.offset = 0
}

func (tl *tailer) poll() {
	f, err := os.Open(tl.path)
	if err != nil {
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return
	}
	if info.Size() < tl.offset {
		// truncated in place
		tl.offset = 0
	}
	if _, err := f.Seek(tl.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return
	}

	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			return
		}
		line := bytes.TrimSpace(data[:i])
		data = data[i+1:]
		tl.offset += int64(i + 1)
		if len(line) > 0 && tl.deliver != nil {
			tl.deliver(line)
		}
	}
}

// Ensure Transport implements tripwire.Transport.
var _ tripwire.Transport = (*Transport)(nil)
