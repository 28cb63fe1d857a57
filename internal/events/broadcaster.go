// Package events is the in-process fan-out for pool change notifications.
// Publishers never block: a subscriber whose buffer is full misses the event
// instead of stalling the write path. There is no cross-instance bus; each
// process only sees its own events.
package events

import (
	"sync"
	"time"

	"github.com/pirate-baby/ATC/internal/metrics"
)

// Type enumerates pool event kinds.
type Type string

const (
	TypeTokenCreated       Type = "token:created"
	TypeTokenUpdated       Type = "token:updated"
	TypeTokenDeleted       Type = "token:deleted"
	TypeTokenStatusChanged Type = "token:status_changed"
)

// Event is one pool change notification. Data carries the secret-free token
// view, never credential material.
type Event struct {
	Type Type        `json:"type"`
	Time time.Time   `json:"time"`
	Data interface{} `json:"data,omitempty"`
}

// subscriberBufferSize bounds how far a consumer may lag before it starts
// missing events.
const subscriberBufferSize = 16

// Broadcaster fans events out to all current subscribers.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBroadcaster creates an empty broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
	}
}

// Subscribe registers a new subscriber and returns its channel. Callers must
// Unsubscribe when done or the channel is never reclaimed.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, subscriberBufferSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Publish delivers an event to every subscriber without blocking. Publish
// holds the read lock while sending, so a channel is never closed mid-send.
func (b *Broadcaster) Publish(eventType Type, data interface{}) {
	event := Event{
		Type: eventType,
		Time: time.Now().UTC(),
		Data: data,
	}
	metrics.RecordEventPublished(string(eventType))

	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber buffer full. Drop the event for this consumer.
		}
	}
}

// SubscriberCount returns the number of active subscribers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
