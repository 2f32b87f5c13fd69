package store

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makePost(id string, likes int) posts.Post {
	return posts.Post{
		PostID:    id,
		User:      users.User{UserID: "user-1", Username: "gautam"},
		Place:     posts.Place{PlaceID: "place-1", Name: "Tartine"},
		Content:   "post " + id,
		CreatedAt: time.Date(2021, 1, 13, 10, 30, 0, 0, time.UTC),
		LikeCount: likes,
	}
}

func nextEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for store event")
		return Event{}
	}
}

func TestStore_UpsertManyIsIdempotent(t *testing.T) {
	s := New(nil)
	sub := s.Subscribe()
	defer sub.Close()

	batch := []posts.Post{makePost("a", 1), makePost("b", 2), makePost("c", 3)}

	ids := s.UpsertMany(batch)
	assert.Equal(t, []posts.PostID{"a", "b", "c"}, ids)
	for _, want := range batch {
		got, ok := s.Get(want.PostID)
		require.True(t, ok)
		assert.True(t, want.Equal(got))
	}
	for _, id := range ids {
		assert.Equal(t, Event{Type: EventPostUpserted, PostID: id}, nextEvent(t, sub))
	}

	// Same snapshot again: nothing may be emitted before the marker event
	s.UpsertMany(batch)
	s.Upsert(makePost("marker", 0))
	assert.Equal(t, Event{Type: EventPostUpserted, PostID: "marker"}, nextEvent(t, sub))
}

func TestStore_UpsertReplacesChangedValue(t *testing.T) {
	s := New(nil)

	assert.True(t, s.Upsert(makePost("a", 1)))
	assert.False(t, s.Upsert(makePost("a", 1)))
	assert.True(t, s.Upsert(makePost("a", 2)))

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, got.LikeCount)
	assert.Equal(t, 1, s.Len())
}

func TestStore_Mutate(t *testing.T) {
	s := New(nil)
	s.Upsert(makePost("a", 1))

	updated, ok := s.Mutate("a", func(p posts.Post) posts.Post {
		return p.WithLikes(true, 5)
	})
	require.True(t, ok)
	assert.True(t, updated.Liked)
	assert.Equal(t, 5, updated.LikeCount)

	got, _ := s.Get("a")
	assert.Equal(t, updated, got)

	t.Run("absent id is a no-op", func(t *testing.T) {
		called := false
		_, ok := s.Mutate("missing", func(p posts.Post) posts.Post {
			called = true
			return p
		})
		assert.False(t, ok)
		assert.False(t, called)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("transform cannot change the id", func(t *testing.T) {
		next, ok := s.Mutate("a", func(p posts.Post) posts.Post {
			p.PostID = "b"
			return p
		})
		require.True(t, ok)
		assert.Equal(t, "a", next.PostID)
		_, exists := s.Get("b")
		assert.False(t, exists)
	})
}

func TestStore_MutateSerializes(t *testing.T) {
	s := New(nil)
	s.Upsert(makePost("a", 0))

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Mutate("a", func(p posts.Post) posts.Post {
				return p.WithLikes(p.Liked, p.LikeCount+1)
			})
		}()
	}
	wg.Wait()

	got, _ := s.Get("a")
	assert.Equal(t, workers, got.LikeCount)
}

func TestStore_FeedViews(t *testing.T) {
	s := New(nil)

	s.ReplaceFeed([]posts.Post{makePost("c", 0), makePost("b", 0)})
	assert.Equal(t, []posts.PostID{"c", "b"}, s.Feed())

	// Older page overlapping the current tail
	ids := s.AppendFeed([]posts.Post{makePost("b", 1), makePost("a", 0)})
	assert.Equal(t, []posts.PostID{"b", "a"}, ids)
	assert.Equal(t, []posts.PostID{"c", "b", "a"}, s.Feed())

	// Content change visible through the table without touching the view
	got, _ := s.Get("b")
	assert.Equal(t, 1, got.LikeCount)

	s.PrependFeed(makePost("d", 0))
	assert.Equal(t, []posts.PostID{"d", "c", "b", "a"}, s.Feed())

	s.ReplaceFeed([]posts.Post{makePost("x", 0)})
	assert.Equal(t, []posts.PostID{"x"}, s.Feed())
	// Posts that fell out of the feed stay in the table
	_, ok := s.Get("d")
	assert.True(t, ok)

	assert.Equal(t, []posts.Post{makePost("x", 0)}, s.Resolve(s.Feed()))
	require.NoError(t, s.CheckIntegrity())
}

func TestStore_UserPostsView(t *testing.T) {
	s := New(nil)

	s.ReplaceUserPosts([]posts.Post{makePost("a", 0), makePost("b", 0)})
	s.AppendUserPost(makePost("c", 0))
	s.AppendUserPost(makePost("c", 0))
	assert.Equal(t, []posts.PostID{"a", "b", "c"}, s.UserPosts())
	require.NoError(t, s.CheckIntegrity())
}

func TestStore_InsertCreated(t *testing.T) {
	s := New(nil)
	s.ReplaceFeed([]posts.Post{makePost("old", 0)})
	s.ReplaceUserPosts([]posts.Post{makePost("mine", 0)})

	created := makePost("new", 0)
	s.InsertCreated(created)

	feed := s.Feed()
	mine := s.UserPosts()
	assert.Equal(t, posts.PostID("new"), feed[0])
	assert.Equal(t, posts.PostID("new"), mine[len(mine)-1])
	got, ok := s.Get("new")
	require.True(t, ok)
	assert.True(t, created.Equal(got))
}

func TestStore_RemoveAndNotify(t *testing.T) {
	s := New(nil)
	s.ReplaceFeed([]posts.Post{makePost("a", 0), makePost("b", 0)})
	s.AppendUserPost(makePost("a", 0))

	sub := s.Subscribe()
	defer sub.Close()

	assert.True(t, s.RemoveAndNotify("a"))

	assert.Equal(t, Event{Type: EventFeedChanged}, nextEvent(t, sub))
	assert.Equal(t, Event{Type: EventUserPostsChanged}, nextEvent(t, sub))
	assert.Equal(t, Event{Type: EventPostRemoved, PostID: "a"}, nextEvent(t, sub))

	_, ok := s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, []posts.PostID{"b"}, s.Feed())
	assert.Empty(t, s.UserPosts())

	assert.False(t, s.RemoveAndNotify("a"))
	require.NoError(t, s.CheckIntegrity())
}

func TestStore_Reset(t *testing.T) {
	s := New(nil)
	s.ReplaceFeed([]posts.Post{makePost("a", 0)})
	s.AppendUserPost(makePost("b", 0))

	sub := s.Subscribe()
	defer sub.Close()

	s.Reset()
	assert.Equal(t, Event{Type: EventReset}, nextEvent(t, sub))
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Feed())
	assert.Empty(t, s.UserPosts())
}

func TestSubscription_SlowReaderLosesNothing(t *testing.T) {
	s := New(nil)
	sub := s.Subscribe()
	defer sub.Close()

	const n = 500
	for i := 0; i < n; i++ {
		s.Upsert(makePost(fmt.Sprintf("p%d", i), 0))
	}

	for i := 0; i < n; i++ {
		assert.Equal(t, fmt.Sprintf("p%d", i), nextEvent(t, sub).PostID)
	}
}

func TestSubscription_Close(t *testing.T) {
	s := New(nil)
	sub := s.Subscribe()
	sub.Close()
	sub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}

	// Writes after close must not block or panic
	s.Upsert(makePost("a", 0))
}

// TestStore_ReferentialCompleteness runs random operation sequences and checks
// after every step that each view id resolves to a stored post.
func TestStore_ReferentialCompleteness(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	s := New(nil)

	randomPost := func() posts.Post {
		return makePost(fmt.Sprintf("p%d", rng.Intn(20)), rng.Intn(5))
	}
	randomPage := func() []posts.Post {
		page := make([]posts.Post, rng.Intn(6))
		for i := range page {
			page[i] = randomPost()
		}
		return page
	}

	ops := []struct {
		name string
		run  func()
	}{
		{"upsert", func() { s.Upsert(randomPost()) }},
		{"upsertMany", func() { s.UpsertMany(randomPage()) }},
		{"replaceFeed", func() { s.ReplaceFeed(randomPage()) }},
		{"appendFeed", func() { s.AppendFeed(randomPage()) }},
		{"prependFeed", func() { s.PrependFeed(randomPost()) }},
		{"replaceUserPosts", func() { s.ReplaceUserPosts(randomPage()) }},
		{"appendUserPost", func() { s.AppendUserPost(randomPost()) }},
		{"insertCreated", func() { s.InsertCreated(randomPost()) }},
		{"remove", func() { s.RemoveAndNotify(randomPost().PostID) }},
		{"mutate", func() {
			s.Mutate(randomPost().PostID, func(p posts.Post) posts.Post {
				return p.WithLikes(!p.Liked, p.LikeCount+1)
			})
		}},
		{"reset", func() {
			if rng.Intn(10) == 0 {
				s.Reset()
			}
		}},
	}

	for step := 0; step < 2000; step++ {
		op := ops[rng.Intn(len(ops))]
		op.run()
		require.NoError(t, s.CheckIntegrity(), "step %d (%s)", step, op.name)
	}
}
