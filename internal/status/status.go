// Package status provides the typed pipeline status channel that UI layers
// subscribe to. Events for one cycle are delivered in emission order.
package status

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a pipeline status value. A successful cycle emits listening,
// understanding, responding, speaking in that order; idle is terminal between
// cycles.
type Status string

const (
	StatusListening     Status = "listening"
	StatusUnderstanding Status = "understanding"
	StatusResponding    Status = "responding"
	StatusSpeaking      Status = "speaking"
	StatusIdle          Status = "idle"
)

// Event is one status emission. Err is set on the degraded path so observers
// can log mediation failures; the user-facing output still completes.
type Event struct {
	Cycle     uuid.UUID `json:"cycle"`
	Status    Status    `json:"status"`
	Scenario  string    `json:"scenario,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Err       string    `json:"error,omitempty"`
}

// Subscription is a handle to a status event stream. Unsubscribe is
// idempotent and safe mid-cycle.
type Subscription struct {
	b    *Broadcaster
	ch   chan Event
	once sync.Once
}

// Events returns the subscription's event channel. The channel closes after
// Unsubscribe.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Unsubscribe removes the subscription and closes its channel.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.b.remove(s)
		close(s.ch)
	})
}

// Broadcaster fans status events out to subscribers. Publish is synchronous
// and ordered; a subscriber that stops draining loses events rather than
// stalling the pipeline.
type Broadcaster struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new subscriber. The channel is buffered generously
// relative to the four emissions per cycle.
func (b *Broadcaster) Subscribe() *Subscription {
	sub := &Subscription{
		b:  b,
		ch: make(chan Event, 64),
	}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers an event to every current subscriber in registration-set
// order. Sends never block: a full subscriber buffer drops the event for that
// subscriber only.
func (b *Broadcaster) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, sub)
}
