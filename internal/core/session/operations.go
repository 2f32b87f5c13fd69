package session

import (
	"context"
	"fmt"

	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"
)

// CreatePost publishes draft. On success the post is stored, put at the
// front of the feed and at the end of the user's posts.
func (o *Orchestrator) CreatePost(ctx context.Context, draft posts.CreatePostRequest) (posts.Post, error) {
	_, epoch, err := o.session()
	if err != nil {
		return posts.Post{}, err
	}

	post, err := o.api.CreatePost(ctx, draft)
	if err != nil {
		return posts.Post{}, err
	}

	if err := o.apply(ctx, epoch, func() { o.store.InsertCreated(post) }); err != nil {
		return posts.Post{}, err
	}
	o.logger.Info("post created", "post_id", post.PostID)
	return post, nil
}

// LikePost likes id. The stored post is only updated once the server
// confirms, with the server's like count.
func (o *Orchestrator) LikePost(ctx context.Context, id posts.PostID) error {
	return o.setLiked(ctx, id, true)
}

// UnlikePost removes the like on id, see LikePost
func (o *Orchestrator) UnlikePost(ctx context.Context, id posts.PostID) error {
	return o.setLiked(ctx, id, false)
}

func (o *Orchestrator) setLiked(ctx context.Context, id posts.PostID, liked bool) error {
	_, epoch, err := o.session()
	if err != nil {
		return err
	}

	var resp posts.LikePostResponse
	if liked {
		resp, err = o.api.LikePost(ctx, id)
	} else {
		resp, err = o.api.UnlikePost(ctx, id)
	}
	if err != nil {
		return err
	}

	return o.apply(ctx, epoch, func() {
		o.store.Mutate(id, func(p posts.Post) posts.Post {
			return p.WithLikes(liked, resp.Likes)
		})
	})
}

// FetchFeed loads a feed page. An empty before reloads the feed from the
// top; otherwise the older page is appended.
func (o *Orchestrator) FetchFeed(ctx context.Context, before posts.PostID) ([]posts.PostID, error) {
	username, epoch, err := o.session()
	if err != nil {
		return nil, err
	}

	page, err := o.api.GetFeed(ctx, username, before)
	if err != nil {
		return nil, err
	}

	var ids []posts.PostID
	err = o.apply(ctx, epoch, func() {
		if before == "" {
			ids = o.store.ReplaceFeed(page)
		} else {
			ids = o.store.AppendFeed(page)
		}
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// RefreshUserPosts reloads the signed-in user's posts view
func (o *Orchestrator) RefreshUserPosts(ctx context.Context) ([]posts.PostID, error) {
	username, epoch, err := o.session()
	if err != nil {
		return nil, err
	}

	list, err := o.api.GetPosts(ctx, username)
	if err != nil {
		return nil, err
	}

	var ids []posts.PostID
	if err := o.apply(ctx, epoch, func() { ids = o.store.ReplaceUserPosts(list) }); err != nil {
		return nil, err
	}
	return ids, nil
}

// GetPosts loads another user's posts into the store and returns their ids
func (o *Orchestrator) GetPosts(ctx context.Context, username string) ([]posts.PostID, error) {
	_, epoch, err := o.session()
	if err != nil {
		return nil, err
	}
	list, err := o.api.GetPosts(ctx, username)
	if err != nil {
		return nil, err
	}
	return o.upsertAll(ctx, epoch, list)
}

// GetDiscover loads the discover page for the signed-in user
func (o *Orchestrator) GetDiscover(ctx context.Context) ([]posts.PostID, error) {
	username, epoch, err := o.session()
	if err != nil {
		return nil, err
	}
	list, err := o.api.GetDiscover(ctx, username)
	if err != nil {
		return nil, err
	}
	return o.upsertAll(ctx, epoch, list)
}

// GetMap loads the posts pinned on the map
func (o *Orchestrator) GetMap(ctx context.Context) ([]posts.PostID, error) {
	_, epoch, err := o.session()
	if err != nil {
		return nil, err
	}
	list, err := o.api.GetMap(ctx)
	if err != nil {
		return nil, err
	}
	return o.upsertAll(ctx, epoch, list)
}

func (o *Orchestrator) upsertAll(ctx context.Context, epoch uint64, list []posts.Post) ([]posts.PostID, error) {
	var ids []posts.PostID
	if err := o.apply(ctx, epoch, func() { ids = o.store.UpsertMany(list) }); err != nil {
		return nil, err
	}
	return ids, nil
}

// DeletePost deletes id on the server and, once confirmed, removes it locally
// and notifies store subscribers.
func (o *Orchestrator) DeletePost(ctx context.Context, id posts.PostID) (bool, error) {
	_, epoch, err := o.session()
	if err != nil {
		return false, err
	}

	resp, err := o.api.DeletePost(ctx, id)
	if err != nil {
		return false, err
	}
	if !resp.Deleted {
		o.logger.Warn("server did not delete post", "post_id", id)
		return false, nil
	}

	if err := o.apply(ctx, epoch, func() { o.store.RemoveAndNotify(id) }); err != nil {
		return false, err
	}
	return true, nil
}

// ReportPost flags id for moderation
func (o *Orchestrator) ReportPost(ctx context.Context, id posts.PostID, details string) (bool, error) {
	if _, _, err := o.session(); err != nil {
		return false, err
	}
	resp, err := o.api.ReportPost(ctx, id, details)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// CreateUser creates the profile for the signed-in identity. On success the
// profile becomes present without another fetch.
func (o *Orchestrator) CreateUser(ctx context.Context, req users.CreateUserRequest) (users.CreateUserResponse, error) {
	o.mu.Lock()
	_, authenticated := o.state.Auth.(Authenticated)
	epoch := o.epoch
	o.mu.Unlock()
	if !authenticated {
		return users.CreateUserResponse{}, fmt.Errorf("%w: not signed in", ErrNoProfile)
	}

	resp, err := o.api.CreateUser(ctx, req)
	if err != nil {
		return users.CreateUserResponse{}, err
	}
	if resp.Created != nil {
		if err := o.setProfile(ctx, epoch, *resp.Created); err != nil {
			return users.CreateUserResponse{}, err
		}
	}
	return resp, nil
}

// UpdateProfile edits the signed-in user's profile
func (o *Orchestrator) UpdateProfile(ctx context.Context, req users.UpdateProfileRequest) (users.UpdateProfileResponse, error) {
	username, epoch, err := o.session()
	if err != nil {
		return users.UpdateProfileResponse{}, err
	}

	resp, err := o.api.UpdateProfile(ctx, username, req)
	if err != nil {
		return users.UpdateProfileResponse{}, err
	}
	if resp.User != nil {
		if err := o.setProfile(ctx, epoch, *resp.User); err != nil {
			return users.UpdateProfileResponse{}, err
		}
	}
	return resp, nil
}

// setProfile makes user the present profile and supersedes any in-flight fetch
func (o *Orchestrator) setProfile(ctx context.Context, epoch uint64, user users.User) error {
	if ctx.Err() != nil {
		return abandoned(ctx)
	}

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		return fmt.Errorf("%w: session changed", ErrNoProfile)
	}
	o.profileGen++
	state := o.state
	state.Profile = ProfilePresent{User: user}
	o.commitLocked(state)
	return nil
}

// GetUser loads another user's profile
func (o *Orchestrator) GetUser(ctx context.Context, username string) (users.User, error) {
	return o.api.GetUser(ctx, username)
}

// SearchUsers finds users matching query
func (o *Orchestrator) SearchUsers(ctx context.Context, query string) ([]users.User, error) {
	return o.api.SearchUsers(ctx, query)
}

func (o *Orchestrator) Follow(ctx context.Context, username string) (bool, error) {
	if _, _, err := o.session(); err != nil {
		return false, err
	}
	resp, err := o.api.Follow(ctx, username)
	return resp.Followed, err
}

func (o *Orchestrator) Unfollow(ctx context.Context, username string) (bool, error) {
	if _, _, err := o.session(); err != nil {
		return false, err
	}
	resp, err := o.api.Unfollow(ctx, username)
	return resp.Followed, err
}

// IsFollowing reports whether the signed-in user follows username
func (o *Orchestrator) IsFollowing(ctx context.Context, username string) (bool, error) {
	if _, _, err := o.session(); err != nil {
		return false, err
	}
	resp, err := o.api.IsFollowing(ctx, username)
	return resp.Followed, err
}

// Preferences returns the signed-in user's settings
func (o *Orchestrator) Preferences(ctx context.Context) (users.Preferences, error) {
	username, _, err := o.session()
	if err != nil {
		return users.Preferences{}, err
	}
	return o.api.GetPreferences(ctx, username)
}

// UpdatePreferences replaces the signed-in user's settings
func (o *Orchestrator) UpdatePreferences(ctx context.Context, prefs users.Preferences) (users.Preferences, error) {
	username, _, err := o.session()
	if err != nil {
		return users.Preferences{}, err
	}
	return o.api.UpdatePreferences(ctx, username, prefs)
}
