// Package realtime fans out "something changed" notifications so that
// cached task views can re-fetch.
package realtime

import (
	"context"
	"sync"
	"time"
)

// Entity names the collection a change touched
type Entity string

const (
	EntityTasks       Entity = "tasks"
	EntityGroups      Entity = "family_groups"
	EntityMembers     Entity = "memberships"
	EntityInvitations Entity = "invitations"
	EntityAssignments Entity = "task_assignments"

	// EntityResync tells a subscriber that it missed changes and must treat
	// everything it caches as stale.
	EntityResync Entity = "resync"
)

// Change is a notification that rows of an entity changed. It carries no
// row data; receivers re-fetch.
type Change struct {
	Entity  Entity    `json:"entity"`
	GroupID string    `json:"group_id,omitempty"`
	UserID  string    `json:"user_id,omitempty"`
	At      time.Time `json:"at"`
}

// Filter selects changes. Empty fields match anything.
type Filter struct {
	Entity  Entity
	GroupID string
}

// Matches reports whether c passes the filter
func (f Filter) Matches(c Change) bool {
	if f.Entity != "" && f.Entity != c.Entity {
		return false
	}
	if f.GroupID != "" && f.GroupID != c.GroupID {
		return false
	}
	return true
}

// Hub publishes changes and delivers them to subscribers
type Hub interface {
	Publish(ctx context.Context, change Change) error
	// Subscribe returns a channel of matching changes and a function that
	// ends the subscription and closes the channel.
	Subscribe(filter Filter) (<-chan Change, func())
	Close() error
}

const subscriberBuffer = 16

type subscription struct {
	filter Filter
	mu     sync.Mutex // serializes sends so the reserved slot stays free
	ch     chan Change
}

// MemoryHub delivers changes to subscribers in the same process
type MemoryHub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
	closed bool
}

// NewMemoryHub creates an in-process hub
func NewMemoryHub() *MemoryHub {
	return &MemoryHub{subs: make(map[int]*subscription)}
}

// Publish delivers change to every matching subscriber. A subscriber whose
// buffer is full misses the change and receives an EntityResync instead.
func (h *MemoryHub) Publish(_ context.Context, change Change) error {
	if change.At.IsZero() {
		change.At = time.Now().UTC()
	}
	h.deliver(change)
	return nil
}

func (h *MemoryHub) deliver(change Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if !sub.filter.Matches(change) {
			continue
		}
		sub.send(change)
	}
}

// send queues change, or a resync once the buffer is full. The channel has
// one slot beyond subscriberBuffer, so every dropped change is followed by
// an unread resync.
func (s *subscription) send(change Change) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.ch) < subscriberBuffer {
		s.ch <- change
		return
	}
	select {
	case s.ch <- Change{Entity: EntityResync, At: change.At}:
	default:
		// Full: the last queued item is already a resync.
	}
}

// Subscribe registers a subscriber
func (h *MemoryHub) Subscribe(filter Filter) (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Change, subscriberBuffer+1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = &subscription{filter: filter, ch: ch}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if sub, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(sub.ch)
			}
		})
	}
}

// Close ends every subscription
func (h *MemoryHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		close(sub.ch)
	}
	return nil
}
