package events

import (
	"fmt"
	"sync"
)

// Observer receives every published notification.
type Observer func(Notification)

// Subscription identifies an observer for Unsubscribe.
type Subscription uint64

type entry struct {
	id Subscription
	fn Observer
}

// Bus delivers notifications synchronously to its observers, in
// subscription order. A panicking observer is isolated from the rest.
// The zero value is ready to use, and a nil *Bus drops everything.
type Bus struct {
	mu        sync.RWMutex
	next      Subscription
	observers []entry

	// OnPanic, if set, is told about a recovered observer panic.
	OnPanic func(recovered any)
}

func NewBus() *Bus {
	return &Bus{}
}

func (b *Bus) Subscribe(o Observer) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.observers = append(b.observers, entry{id: b.next, fn: o})
	return b.next
}

func (b *Bus) Unsubscribe(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.observers {
		if e.id == id {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

// Publish calls every observer with n in the caller's goroutine, so a single
// publisher's notifications arrive in the order they were emitted.
func (b *Bus) Publish(n Notification) {
	if b == nil {
		return
	}
	b.mu.RLock()
	observers := make([]entry, len(b.observers))
	copy(observers, b.observers)
	b.mu.RUnlock()

	for _, e := range observers {
		b.deliver(e.fn, n)
	}
}

func (b *Bus) deliver(fn Observer, n Notification) {
	defer func() {
		if r := recover(); r != nil && b.OnPanic != nil {
			b.OnPanic(fmt.Sprintf("observer panic: %v", r))
		}
	}()
	fn(n)
}

// Emitter returns a publisher bound to subject and component.
func (b *Bus) Emitter(subject, component string) *Emitter {
	return &Emitter{bus: b, subject: subject, component: component}
}
