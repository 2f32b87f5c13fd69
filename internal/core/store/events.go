package store

import (
	"sync"

	"Jimo/internal/core/posts"
)

// EventType identifies what changed in the store
type EventType int

const (
	// EventPostUpserted is emitted when a post is inserted or its value changes
	EventPostUpserted EventType = iota + 1
	// EventPostRemoved is emitted by RemoveAndNotify
	EventPostRemoved
	// EventFeedChanged is emitted when the feed id list changes
	EventFeedChanged
	// EventUserPostsChanged is emitted when the user-posts id list changes
	EventUserPostsChanged
	// EventReset is emitted when the whole store is cleared
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventPostUpserted:
		return "post_upserted"
	case EventPostRemoved:
		return "post_removed"
	case EventFeedChanged:
		return "feed_changed"
	case EventUserPostsChanged:
		return "user_posts_changed"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Event is a single store change. PostID is set for upsert and remove events.
type Event struct {
	PostID posts.PostID
	Type   EventType
}

// Subscription receives store events in the order the changes were applied.
// Delivery never blocks the store: events queue per subscriber until read.
type Subscription struct {
	store  *Store
	events chan Event
	notify chan struct{}
	done   chan struct{}
	queue  []Event
	mu     sync.Mutex
	once   sync.Once
}

func newSubscription(s *Store) *Subscription {
	sub := &Subscription{
		store:  s,
		events: make(chan Event),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go sub.pump()
	return sub
}

// Events returns the delivery channel. It is closed after Close.
func (sub *Subscription) Events() <-chan Event {
	return sub.events
}

// Close stops delivery and drops any undelivered events
func (sub *Subscription) Close() {
	sub.once.Do(func() {
		sub.store.unsubscribe(sub)
		close(sub.done)
	})
}

func (sub *Subscription) enqueue(evs []Event) {
	sub.mu.Lock()
	sub.queue = append(sub.queue, evs...)
	sub.mu.Unlock()

	select {
	case sub.notify <- struct{}{}:
	default:
	}
}

func (sub *Subscription) pump() {
	defer close(sub.events)

	for {
		sub.mu.Lock()
		if len(sub.queue) == 0 {
			sub.mu.Unlock()
			select {
			case <-sub.notify:
				continue
			case <-sub.done:
				return
			}
		}
		ev := sub.queue[0]
		sub.queue[0] = Event{}
		sub.queue = sub.queue[1:]
		sub.mu.Unlock()

		select {
		case sub.events <- ev:
		case <-sub.done:
			return
		}
	}
}
