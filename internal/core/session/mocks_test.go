package session

import (
	"context"

	"Jimo/internal/apiclient"
	"Jimo/internal/core/auth"
	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"

	"github.com/stretchr/testify/mock"
)

// MockAPI is a mock implementation of apiclient.API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetMe(ctx context.Context) (users.User, error) {
	args := m.Called(ctx)
	return args.Get(0).(users.User), args.Error(1)
}

func (m *MockAPI) CreateUser(ctx context.Context, req users.CreateUserRequest) (users.CreateUserResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(users.CreateUserResponse), args.Error(1)
}

func (m *MockAPI) UpdateProfile(ctx context.Context, username string, req users.UpdateProfileRequest) (users.UpdateProfileResponse, error) {
	args := m.Called(ctx, username, req)
	return args.Get(0).(users.UpdateProfileResponse), args.Error(1)
}

func (m *MockAPI) GetUser(ctx context.Context, username string) (users.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(users.User), args.Error(1)
}

func (m *MockAPI) GetPreferences(ctx context.Context, username string) (users.Preferences, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(users.Preferences), args.Error(1)
}

func (m *MockAPI) UpdatePreferences(ctx context.Context, username string, prefs users.Preferences) (users.Preferences, error) {
	args := m.Called(ctx, username, prefs)
	return args.Get(0).(users.Preferences), args.Error(1)
}

func (m *MockAPI) SearchUsers(ctx context.Context, query string) ([]users.User, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]users.User), args.Error(1)
}

func (m *MockAPI) Follow(ctx context.Context, username string) (users.FollowResponse, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(users.FollowResponse), args.Error(1)
}

func (m *MockAPI) Unfollow(ctx context.Context, username string) (users.FollowResponse, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(users.FollowResponse), args.Error(1)
}

func (m *MockAPI) IsFollowing(ctx context.Context, username string) (users.FollowResponse, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(users.FollowResponse), args.Error(1)
}

func (m *MockAPI) GetFeed(ctx context.Context, username, before string) ([]posts.Post, error) {
	args := m.Called(ctx, username, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]posts.Post), args.Error(1)
}

func (m *MockAPI) GetPosts(ctx context.Context, username string) ([]posts.Post, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]posts.Post), args.Error(1)
}

func (m *MockAPI) GetDiscover(ctx context.Context, username string) ([]posts.Post, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]posts.Post), args.Error(1)
}

func (m *MockAPI) GetMap(ctx context.Context) ([]posts.Post, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]posts.Post), args.Error(1)
}

func (m *MockAPI) CreatePost(ctx context.Context, req posts.CreatePostRequest) (posts.Post, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(posts.Post), args.Error(1)
}

func (m *MockAPI) DeletePost(ctx context.Context, postID posts.PostID) (posts.DeletePostResponse, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(posts.DeletePostResponse), args.Error(1)
}

func (m *MockAPI) LikePost(ctx context.Context, postID posts.PostID) (posts.LikePostResponse, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(posts.LikePostResponse), args.Error(1)
}

func (m *MockAPI) UnlikePost(ctx context.Context, postID posts.PostID) (posts.LikePostResponse, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(posts.LikePostResponse), args.Error(1)
}

func (m *MockAPI) ReportPost(ctx context.Context, postID posts.PostID, details string) (posts.SimpleResponse, error) {
	args := m.Called(ctx, postID, details)
	return args.Get(0).(posts.SimpleResponse), args.Error(1)
}

func (m *MockAPI) UploadImage(ctx context.Context, image apiclient.Upload) (posts.ImageUploadResponse, error) {
	args := m.Called(ctx, image)
	return args.Get(0).(posts.ImageUploadResponse), args.Error(1)
}

func (m *MockAPI) UploadProfilePicture(ctx context.Context, image apiclient.Upload) (users.User, error) {
	args := m.Called(ctx, image)
	return args.Get(0).(users.User), args.Error(1)
}

func (m *MockAPI) GetWaitlistStatus(ctx context.Context) (users.WaitlistStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(users.WaitlistStatus), args.Error(1)
}

func (m *MockAPI) JoinWaitlist(ctx context.Context) (users.WaitlistStatus, error) {
	args := m.Called(ctx)
	return args.Get(0).(users.WaitlistStatus), args.Error(1)
}

func (m *MockAPI) InviteUser(ctx context.Context, phoneNumber string) (users.InviteStatus, error) {
	args := m.Called(ctx, phoneNumber)
	return args.Get(0).(users.InviteStatus), args.Error(1)
}

func (m *MockAPI) GetUsersInContacts(ctx context.Context, username string, phoneNumbers []string) ([]users.User, error) {
	args := m.Called(ctx, username, phoneNumbers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]users.User), args.Error(1)
}

func (m *MockAPI) RegisterNotificationToken(ctx context.Context, token string) (posts.SimpleResponse, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(posts.SimpleResponse), args.Error(1)
}

func (m *MockAPI) RemoveNotificationToken(ctx context.Context, token string) (posts.SimpleResponse, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(posts.SimpleResponse), args.Error(1)
}

func (m *MockAPI) SubmitFeedback(ctx context.Context, req users.FeedbackRequest) (posts.SimpleResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(posts.SimpleResponse), args.Error(1)
}

// MockAuthenticator is a mock implementation of Authenticator.
// Listen is recorded rather than mocked so tests can fire events.
type MockAuthenticator struct {
	mock.Mock
	listeners []func(auth.Event)
	identity  *auth.Identity
}

func (m *MockAuthenticator) CurrentIdentity() (auth.Identity, bool) {
	if m.identity == nil {
		return auth.Identity{}, false
	}
	return *m.identity, true
}

func (m *MockAuthenticator) Listen(fn func(auth.Event)) {
	m.listeners = append(m.listeners, fn)
}

func (m *MockAuthenticator) emit(ev auth.Event) {
	m.identity = ev.Identity
	for _, fn := range m.listeners {
		fn(ev)
	}
}

func (m *MockAuthenticator) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(auth.Identity), args.Error(1)
}

func (m *MockAuthenticator) SignIn(ctx context.Context, email, password string) (auth.Identity, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(auth.Identity), args.Error(1)
}

func (m *MockAuthenticator) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	m.emit(auth.Event{})
	return args.Error(0)
}

func (m *MockAuthenticator) SendPasswordReset(ctx context.Context, email string) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}
