// Package store holds the normalized post table and the id-only views built
// on top of it (the home feed and the signed-in user's posts).
//
// Every write happens under one mutex, so a view never references a post the
// table does not hold and a multi-post write is observed all at once or not
// at all.
package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"Jimo/internal/core/posts"
)

// Store is the entity table plus derived views
type Store struct {
	logger      *slog.Logger
	posts       map[posts.PostID]posts.Post
	subscribers map[*Subscription]struct{}
	feed        []posts.PostID
	userPosts   []posts.PostID
	mu          sync.Mutex
}

// New creates an empty store
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:      logger,
		posts:       make(map[posts.PostID]posts.Post),
		subscribers: make(map[*Subscription]struct{}),
	}
}

// Subscribe registers for change events. Call Close when done.
func (s *Store) Subscribe() *Subscription {
	sub := newSubscription(s)

	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	return sub
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.mu.Lock()
	delete(s.subscribers, sub)
	s.mu.Unlock()
}

// publishLocked hands events to every subscriber. Must hold s.mu so all
// subscribers see changes in the order they were applied.
func (s *Store) publishLocked(evs []Event) {
	if len(evs) == 0 {
		return
	}
	for sub := range s.subscribers {
		sub.enqueue(evs)
	}
}

// upsertLocked stores p unless an equal value is already present
func (s *Store) upsertLocked(p posts.Post, evs []Event) []Event {
	if existing, ok := s.posts[p.PostID]; ok && existing.Equal(p) {
		return evs
	}
	s.posts[p.PostID] = p
	return append(evs, Event{Type: EventPostUpserted, PostID: p.PostID})
}

// Upsert stores post, replacing a different value under the same id.
// Reports whether anything changed.
func (s *Store) Upsert(post posts.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.upsertLocked(post, nil)
	s.publishLocked(evs)
	return len(evs) > 0
}

// UpsertMany stores every post and returns their ids in input order.
// Posts equal to the stored value are skipped and emit no event.
func (s *Store) UpsertMany(batch []posts.Post) []posts.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, evs := s.upsertAllLocked(batch)
	s.publishLocked(evs)

	s.logger.Debug("posts upserted", "count", len(batch), "changed", len(evs))
	return ids
}

func (s *Store) upsertAllLocked(batch []posts.Post) ([]posts.PostID, []Event) {
	ids := make([]posts.PostID, 0, len(batch))
	var evs []Event
	for _, p := range batch {
		evs = s.upsertLocked(p, evs)
		ids = append(ids, p.PostID)
	}
	return ids, evs
}

// Get returns the stored post
func (s *Store) Get(id posts.PostID) (posts.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.posts[id]
	return p, ok
}

// Resolve returns the stored posts for ids, in order, skipping unknown ids
func (s *Store) Resolve(ids []posts.PostID) []posts.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]posts.Post, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Len returns the number of stored posts
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// Mutate applies transform to the stored post and writes the result back in
// one step. Mutating an unknown id is a logged no-op.
func (s *Store) Mutate(id posts.PostID, transform func(posts.Post) posts.Post) (posts.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.posts[id]
	if !ok {
		s.logger.Info("mutate skipped, post not in store", "post_id", id)
		return posts.Post{}, false
	}

	next := transform(current)
	// The transform may not move a post to another id
	next.PostID = id

	s.publishLocked(s.upsertLocked(next, nil))
	return next, true
}

// RemoveAndNotify drops the post from the table and both views and tells
// subscribers. Reports whether the post was present.
func (s *Store) RemoveAndNotify(id posts.PostID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.posts[id]
	delete(s.posts, id)

	var evs []Event
	if next, removed := without(s.feed, id); removed {
		s.feed = next
		evs = append(evs, Event{Type: EventFeedChanged})
	}
	if next, removed := without(s.userPosts, id); removed {
		s.userPosts = next
		evs = append(evs, Event{Type: EventUserPostsChanged})
	}
	if ok {
		evs = append(evs, Event{Type: EventPostRemoved, PostID: id})
		s.logger.Debug("post removed", "post_id", id)
	}
	s.publishLocked(evs)
	return ok
}

// Reset clears the table and both views
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.posts = make(map[posts.PostID]posts.Post)
	s.feed = nil
	s.userPosts = nil
	s.publishLocked([]Event{{Type: EventReset}})
}

// CheckIntegrity verifies that every view id resolves to a stored post and
// that no view lists an id twice.
func (s *Store) CheckIntegrity() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	check := func(view string, ids []posts.PostID) {
		seen := make(map[posts.PostID]bool, len(ids))
		for _, id := range ids {
			if _, ok := s.posts[id]; !ok {
				errs = append(errs, fmt.Errorf("%s references missing post %q", view, id))
			}
			if seen[id] {
				errs = append(errs, fmt.Errorf("%s lists post %q twice", view, id))
			}
			seen[id] = true
		}
	}
	check("feed", s.feed)
	check("user posts", s.userPosts)
	return errors.Join(errs...)
}

func without(ids []posts.PostID, id posts.PostID) ([]posts.PostID, bool) {
	for i, existing := range ids {
		if existing == id {
			next := make([]posts.PostID, 0, len(ids)-1)
			next = append(next, ids[:i]...)
			return append(next, ids[i+1:]...), true
		}
	}
	return ids, false
}
