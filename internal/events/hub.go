// Package events fans operator-facing events out to live followers and keeps
// a short backlog so a reconnecting follower can resume by event ID.
package events

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one published message. Data is the JSON-encoded payload.
type Event struct {
	ID   int64           `json:"id"`
	Type string          `json:"type"`
	At   time.Time       `json:"at"`
	Data json.RawMessage `json:"data"`
}

const (
	defaultBacklog      = 100
	defaultFollowBuffer = 128
)

// Option configures a Hub.
type Option func(*Hub)

// WithFollowBuffer sets how many undelivered events each follower may queue
// before further deliveries to it are dropped.
func WithFollowBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.followBuffer = n
		}
	}
}

// Hub publishes events to followers. Publishing never blocks.
type Hub struct {
	followBuffer int
	dropped      atomic.Int64

	mu        sync.Mutex
	lastID    int64
	backlog   *backlog
	followers map[*Follower]struct{}
}

// NewHub creates a hub retaining the last size events for resumption.
func NewHub(size int, opts ...Option) *Hub {
	if size <= 0 {
		size = defaultBacklog
	}
	h := &Hub{
		followBuffer: defaultFollowBuffer,
		backlog:      newBacklog(size),
		followers:    make(map[*Follower]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Follower is a live subscription returned by Hub.Follow.
type Follower struct {
	// Backlog holds retained events newer than the requested ID, oldest
	// first. Events on C always follow them without overlap.
	Backlog []Event
	// Resumed is false when the follower asked to resume but the backlog
	// could not cover everything it missed.
	Resumed bool

	c       chan Event
	hub     *Hub
	dropped atomic.Int64
	once    sync.Once
}

// C delivers events published after Follow returned.
func (f *Follower) C() <-chan Event { return f.c }

// Dropped reports deliveries skipped because this follower fell behind.
func (f *Follower) Dropped() int64 { return f.dropped.Load() }

// Close unsubscribes and closes C. It is safe to call more than once.
func (f *Follower) Close() {
	f.once.Do(func() {
		f.hub.mu.Lock()
		delete(f.hub.followers, f)
		close(f.c)
		f.hub.mu.Unlock()
	})
}

// Publish stamps, retains and fans out an event and returns it. A nil hub
// discards the event.
func (h *Hub) Publish(eventType string, data any) Event {
	if h == nil {
		return Event{}
	}
	payload := json.RawMessage("{}")
	if data != nil {
		if b, err := json.Marshal(data); err == nil {
			payload = b
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	ev := Event{ID: h.lastID, Type: eventType, At: time.Now().UTC(), Data: payload}
	h.backlog.add(ev)
	for f := range h.followers {
		select {
		case f.c <- ev:
		default:
			f.dropped.Add(1)
			h.dropped.Add(1)
		}
	}
	return ev
}

// Follow subscribes to new events and returns, in the same step, the
// retained events after lastID. lastID 0 means a fresh follower.
func (h *Hub) Follow(lastID int64) *Follower {
	h.mu.Lock()
	defer h.mu.Unlock()

	f := &Follower{c: make(chan Event, h.followBuffer), hub: h}
	f.Backlog, f.Resumed = h.backlog.after(lastID, h.lastID)
	h.followers[f] = struct{}{}
	return f
}

// Followers reports the number of live followers.
func (h *Hub) Followers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.followers)
}

// Dropped reports deliveries skipped across all followers.
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}
