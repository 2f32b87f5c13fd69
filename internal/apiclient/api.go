package apiclient

import (
	"context"
	"net/http"

	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"
)

// API is the typed endpoint catalog. *Client implements it; the session
// orchestrator depends on this interface so it can be mocked in tests.
type API interface {
	// Users
	GetMe(ctx context.Context) (users.User, error)
	CreateUser(ctx context.Context, req users.CreateUserRequest) (users.CreateUserResponse, error)
	UpdateProfile(ctx context.Context, username string, req users.UpdateProfileRequest) (users.UpdateProfileResponse, error)
	GetUser(ctx context.Context, username string) (users.User, error)
	GetPreferences(ctx context.Context, username string) (users.Preferences, error)
	UpdatePreferences(ctx context.Context, username string, prefs users.Preferences) (users.Preferences, error)
	SearchUsers(ctx context.Context, query string) ([]users.User, error)
	Follow(ctx context.Context, username string) (users.FollowResponse, error)
	Unfollow(ctx context.Context, username string) (users.FollowResponse, error)
	IsFollowing(ctx context.Context, username string) (users.FollowResponse, error)

	// Posts
	GetFeed(ctx context.Context, username, before string) ([]posts.Post, error)
	GetPosts(ctx context.Context, username string) ([]posts.Post, error)
	GetDiscover(ctx context.Context, username string) ([]posts.Post, error)
	GetMap(ctx context.Context) ([]posts.Post, error)
	CreatePost(ctx context.Context, req posts.CreatePostRequest) (posts.Post, error)
	DeletePost(ctx context.Context, postID posts.PostID) (posts.DeletePostResponse, error)
	LikePost(ctx context.Context, postID posts.PostID) (posts.LikePostResponse, error)
	UnlikePost(ctx context.Context, postID posts.PostID) (posts.LikePostResponse, error)
	ReportPost(ctx context.Context, postID posts.PostID, details string) (posts.SimpleResponse, error)

	// Images
	UploadImage(ctx context.Context, image Upload) (posts.ImageUploadResponse, error)
	UploadProfilePicture(ctx context.Context, image Upload) (users.User, error)

	// Onboarding and account
	GetWaitlistStatus(ctx context.Context) (users.WaitlistStatus, error)
	JoinWaitlist(ctx context.Context) (users.WaitlistStatus, error)
	InviteUser(ctx context.Context, phoneNumber string) (users.InviteStatus, error)
	GetUsersInContacts(ctx context.Context, username string, phoneNumbers []string) ([]users.User, error)
	RegisterNotificationToken(ctx context.Context, token string) (posts.SimpleResponse, error)
	RemoveNotificationToken(ctx context.Context, token string) (posts.SimpleResponse, error)
	SubmitFeedback(ctx context.Context, req users.FeedbackRequest) (posts.SimpleResponse, error)
}

var _ API = (*Client)(nil)

func (c *Client) GetMe(ctx context.Context) (users.User, error) {
	return Execute[users.User](ctx, c, MeEndpoint(), http.MethodGet, nil)
}

func (c *Client) CreateUser(ctx context.Context, req users.CreateUserRequest) (users.CreateUserResponse, error) {
	return Execute[users.CreateUserResponse](ctx, c, CreateUserEndpoint(), http.MethodPost, req)
}

func (c *Client) UpdateProfile(ctx context.Context, username string, req users.UpdateProfileRequest) (users.UpdateProfileResponse, error) {
	return Execute[users.UpdateProfileResponse](ctx, c, UserEndpoint(username), http.MethodPost, req)
}

func (c *Client) GetUser(ctx context.Context, username string) (users.User, error) {
	return Execute[users.User](ctx, c, UserEndpoint(username), http.MethodGet, nil)
}

func (c *Client) GetPreferences(ctx context.Context, username string) (users.Preferences, error) {
	return Execute[users.Preferences](ctx, c, PreferencesEndpoint(username), http.MethodGet, nil)
}

func (c *Client) UpdatePreferences(ctx context.Context, username string, prefs users.Preferences) (users.Preferences, error) {
	return Execute[users.Preferences](ctx, c, PreferencesEndpoint(username), http.MethodPost, prefs)
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]users.User, error) {
	return Execute[[]users.User](ctx, c, SearchUsersEndpoint(query), http.MethodGet, nil)
}

func (c *Client) Follow(ctx context.Context, username string) (users.FollowResponse, error) {
	return Execute[users.FollowResponse](ctx, c, FollowEndpoint(username), http.MethodPost, nil)
}

func (c *Client) Unfollow(ctx context.Context, username string) (users.FollowResponse, error) {
	return Execute[users.FollowResponse](ctx, c, UnfollowEndpoint(username), http.MethodPost, nil)
}

func (c *Client) IsFollowing(ctx context.Context, username string) (users.FollowResponse, error) {
	return Execute[users.FollowResponse](ctx, c, FollowStatusEndpoint(username), http.MethodGet, nil)
}

// GetFeed returns a page of username's feed, newest first. An empty before
// returns the first page.
func (c *Client) GetFeed(ctx context.Context, username, before string) ([]posts.Post, error) {
	return Execute[[]posts.Post](ctx, c, FeedEndpoint(username, before), http.MethodGet, nil)
}

func (c *Client) GetPosts(ctx context.Context, username string) ([]posts.Post, error) {
	return Execute[[]posts.Post](ctx, c, UserPostsEndpoint(username), http.MethodGet, nil)
}

func (c *Client) GetDiscover(ctx context.Context, username string) ([]posts.Post, error) {
	return Execute[[]posts.Post](ctx, c, DiscoverEndpoint(username), http.MethodGet, nil)
}

func (c *Client) GetMap(ctx context.Context) ([]posts.Post, error) {
	return Execute[[]posts.Post](ctx, c, MapEndpoint(), http.MethodGet, nil)
}

func (c *Client) CreatePost(ctx context.Context, req posts.CreatePostRequest) (posts.Post, error) {
	return Execute[posts.Post](ctx, c, CreatePostEndpoint(), http.MethodPost, req)
}

func (c *Client) DeletePost(ctx context.Context, postID posts.PostID) (posts.DeletePostResponse, error) {
	return Execute[posts.DeletePostResponse](ctx, c, PostEndpoint(postID), http.MethodDelete, nil)
}

// LikePost likes postID and returns the server's like count
func (c *Client) LikePost(ctx context.Context, postID posts.PostID) (posts.LikePostResponse, error) {
	return Execute[posts.LikePostResponse](ctx, c, PostLikesEndpoint(postID), http.MethodPost, nil)
}

// UnlikePost removes the like on postID and returns the server's like count
func (c *Client) UnlikePost(ctx context.Context, postID posts.PostID) (posts.LikePostResponse, error) {
	return Execute[posts.LikePostResponse](ctx, c, PostLikesEndpoint(postID), http.MethodDelete, nil)
}

func (c *Client) ReportPost(ctx context.Context, postID posts.PostID, details string) (posts.SimpleResponse, error) {
	return Execute[posts.SimpleResponse](ctx, c, ReportPostEndpoint(postID), http.MethodPost, posts.ReportPostRequest{Details: details})
}

// UploadImage stores an image for a later CreatePost
func (c *Client) UploadImage(ctx context.Context, image Upload) (posts.ImageUploadResponse, error) {
	return Execute[posts.ImageUploadResponse](ctx, c, UploadImageEndpoint(), http.MethodPost, image)
}

// UploadProfilePicture replaces the signed-in user's picture and returns the
// updated profile
func (c *Client) UploadProfilePicture(ctx context.Context, image Upload) (users.User, error) {
	return Execute[users.User](ctx, c, ProfilePictureEndpoint(), http.MethodPost, image)
}

func (c *Client) GetWaitlistStatus(ctx context.Context) (users.WaitlistStatus, error) {
	return Execute[users.WaitlistStatus](ctx, c, WaitlistStatusEndpoint(), http.MethodGet, nil)
}

func (c *Client) JoinWaitlist(ctx context.Context) (users.WaitlistStatus, error) {
	return Execute[users.WaitlistStatus](ctx, c, JoinWaitlistEndpoint(), http.MethodPost, nil)
}

func (c *Client) InviteUser(ctx context.Context, phoneNumber string) (users.InviteStatus, error) {
	return Execute[users.InviteStatus](ctx, c, InviteUserEndpoint(), http.MethodPost,
		users.InviteUserRequest{PhoneNumber: phoneNumber})
}

// GetUsersInContacts returns the users whose phone numbers are among phoneNumbers
func (c *Client) GetUsersInContacts(ctx context.Context, username string, phoneNumbers []string) ([]users.User, error) {
	return Execute[[]users.User](ctx, c, ContactsEndpoint(username), http.MethodPost,
		users.PhoneNumbersRequest{PhoneNumbers: phoneNumbers})
}

func (c *Client) RegisterNotificationToken(ctx context.Context, token string) (posts.SimpleResponse, error) {
	return Execute[posts.SimpleResponse](ctx, c, NotificationTokenEndpoint(), http.MethodPost,
		users.NotificationTokenRequest{Token: token})
}

func (c *Client) RemoveNotificationToken(ctx context.Context, token string) (posts.SimpleResponse, error) {
	return Execute[posts.SimpleResponse](ctx, c, NotificationTokenEndpoint(), http.MethodDelete,
		users.NotificationTokenRequest{Token: token})
}

func (c *Client) SubmitFeedback(ctx context.Context, req users.FeedbackRequest) (posts.SimpleResponse, error) {
	return Execute[posts.SimpleResponse](ctx, c, FeedbackEndpoint(), http.MethodPost, req)
}
