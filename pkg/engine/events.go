package engine

import (
	"sync"
	"sync/atomic"

	"github.com/dougsko/fmd/pkg/fm"
	"github.com/dougsko/fmd/pkg/protocol"
)

// EventBus fans controller notifications out to subscribers. Publish never
// blocks: a subscriber whose buffer is full misses the event.
type EventBus struct {
	mutex   sync.RWMutex
	subs    map[int]chan protocol.Event
	nextID  int
	closed  bool
	dropped atomic.Int64
}

// NewEventBus creates an empty bus
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[int]chan protocol.Event)}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel.
func (b *EventBus) Subscribe(buffer int) (<-chan protocol.Event, func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	ch := make(chan protocol.Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mutex.Lock()
			defer b.mutex.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers ev to every subscriber with room for it
func (b *EventBus) Publish(ev protocol.Event) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of registered subscribers
func (b *EventBus) Subscribers() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.subs)
}

// Dropped returns how many deliveries were skipped on full buffers
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel
func (b *EventBus) Close() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}

// notificationEvent converts a controller notification for publishing
func notificationEvent(n fm.Notification) protocol.Event {
	return protocol.Event{
		Type:      "radio",
		Name:      n.Name,
		State:     n.StateName,
		Frequency: n.Frequency,
		Time:      n.Time,
	}
}
