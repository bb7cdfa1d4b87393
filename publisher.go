package tripwire

import "sync"

// Publisher fans committed snapshots out to subscribers.
//
// Publish invokes every current subscriber synchronously, once, in the order
// they subscribed. There is no coalescing: each commit is one call. The
// subscriber list is copied before dispatch, so a callback may subscribe or
// unsubscribe (itself included) without deadlocking.
type Publisher struct {
	mu   sync.Mutex
	subs []subscription
	next uint64
}

type subscription struct {
	id uint64
	fn func(Snapshot)
}

// NewPublisher creates a Publisher with no subscribers.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers fn and returns a function that removes it. The
// returned function is safe to call more than once.
func (p *Publisher) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	p.mu.Lock()
	p.next++
	id := p.next
	p.subs = append(p.subs, subscription{id: id, fn: fn})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { p.remove(id) })
	}
}

// Publish delivers s to every subscriber.
func (p *Publisher) Publish(s Snapshot) {
	p.mu.Lock()
	subs := make([]subscription, len(p.subs))
	copy(subs, p.subs)
	p.mu.Unlock()

	for _, sub := range subs {
		if !p.active(sub.id) {
			continue
		}
		sub.fn(s)
	}
}

// Clear removes every subscriber.
func (p *Publisher) Clear() {
	p.mu.Lock()
	p.subs = nil
	p.mu.Unlock()
}

// Len returns the number of subscribers.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

func (p *Publisher) remove(id uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, sub := range p.subs {
		if sub.id == id {
			p.subs = append(p.subs[:i:i], p.subs[i+1:]...)
			return
		}
	}
}

// active reports whether id is still subscribed. A subscriber removed by an
// earlier callback in the same dispatch is skipped.
func (p *Publisher) active(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sub := range p.subs {
		if sub.id == id {
			return true
		}
	}
	return false
}
