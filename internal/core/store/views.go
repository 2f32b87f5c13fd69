package store

import (
	"slices"

	"Jimo/internal/core/posts"
)

// Feed returns the feed ids, newest first
func (s *Store) Feed() []posts.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.feed)
}

// UserPosts returns the signed-in user's post ids
func (s *Store) UserPosts() []posts.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.userPosts)
}

// ReplaceFeed upserts page and makes it the whole feed, in server order
func (s *Store) ReplaceFeed(page []posts.Post) []posts.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, evs := s.upsertAllLocked(page)
	next := dedupe(ids)
	if !slices.Equal(next, s.feed) {
		s.feed = next
		evs = append(evs, Event{Type: EventFeedChanged})
	}
	s.publishLocked(evs)
	return ids
}

// AppendFeed upserts an older page and adds its ids to the end of the feed.
// Ids already in the feed keep their position.
func (s *Store) AppendFeed(page []posts.Post) []posts.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, evs := s.upsertAllLocked(page)
	next, changed := appendMissing(s.feed, ids)
	if changed {
		s.feed = next
		evs = append(evs, Event{Type: EventFeedChanged})
	}
	s.publishLocked(evs)
	return ids
}

// PrependFeed upserts post and puts it at the front of the feed
func (s *Store) PrependFeed(post posts.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.upsertLocked(post, nil)
	s.publishLocked(s.prependFeedLocked(post.PostID, evs))
}

func (s *Store) prependFeedLocked(id posts.PostID, evs []Event) []Event {
	if len(s.feed) > 0 && s.feed[0] == id {
		return evs
	}
	rest, _ := without(s.feed, id)
	s.feed = append([]posts.PostID{id}, rest...)
	return append(evs, Event{Type: EventFeedChanged})
}

// ReplaceUserPosts upserts list and makes it the whole user-posts view
func (s *Store) ReplaceUserPosts(list []posts.Post) []posts.PostID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, evs := s.upsertAllLocked(list)
	next := dedupe(ids)
	if !slices.Equal(next, s.userPosts) {
		s.userPosts = next
		evs = append(evs, Event{Type: EventUserPostsChanged})
	}
	s.publishLocked(evs)
	return ids
}

// AppendUserPost upserts post and adds it to the end of the user-posts view
func (s *Store) AppendUserPost(post posts.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.upsertLocked(post, nil)
	s.publishLocked(s.appendUserPostLocked(post.PostID, evs))
}

func (s *Store) appendUserPostLocked(id posts.PostID, evs []Event) []Event {
	next, changed := appendMissing(s.userPosts, []posts.PostID{id})
	if !changed {
		return evs
	}
	s.userPosts = next
	return append(evs, Event{Type: EventUserPostsChanged})
}

// InsertCreated places a just-created post at the front of the feed and the
// end of the user-posts view in a single step.
func (s *Store) InsertCreated(post posts.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	evs := s.upsertLocked(post, nil)
	evs = s.prependFeedLocked(post.PostID, evs)
	s.publishLocked(s.appendUserPostLocked(post.PostID, evs))
}

func dedupe(ids []posts.PostID) []posts.PostID {
	out := make([]posts.PostID, 0, len(ids))
	seen := make(map[posts.PostID]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func appendMissing(view, ids []posts.PostID) ([]posts.PostID, bool) {
	seen := make(map[posts.PostID]bool, len(view)+len(ids))
	for _, id := range view {
		seen[id] = true
	}
	next := view
	changed := false
	for _, id := range ids {
		if seen[id] {
			continue
		}
		if !changed {
			next = slices.Clone(view)
			changed = true
		}
		seen[id] = true
		next = append(next, id)
	}
	return next, changed
}
