package session

import (
	"context"
	"testing"

	"Jimo/internal/apiclient"
	"Jimo/internal/core/posts"
	"Jimo/internal/core/users"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestOrchestrator_UploadProfilePicture(t *testing.T) {
	o, api, _ := signedIn(t)
	image := apiclient.Upload{Data: []byte("\xff\xd8\xff\xe0")}

	picture := "https://images.jimoapp.com/pic-1"
	updated := testUser
	updated.ProfilePictureURL = &picture
	api.On("UploadProfilePicture", mock.Anything, image).Return(updated, nil).Once()

	var states []State
	o.Subscribe(func(s State) { states = append(states, s) })

	user, err := o.UploadProfilePicture(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, updated, user)
	assert.Equal(t, ProfilePresent{User: updated}, o.State().Profile)
	require.Len(t, states, 1)
}

func TestOrchestrator_UploadImage(t *testing.T) {
	o, api, _ := signedIn(t)
	image := apiclient.Upload{Data: []byte("\xff\xd8\xff\xe0"), FileName: "bun.jpg"}
	api.On("UploadImage", mock.Anything, image).Return(posts.ImageUploadResponse{ImageID: "img-1"}, nil).Once()

	id, err := o.UploadImage(context.Background(), image)
	require.NoError(t, err)
	assert.Equal(t, "img-1", id)
}

func TestOrchestrator_AccountCallsNeedIdentityOnly(t *testing.T) {
	o, api, _ := newOrchestrator()
	ctx := context.Background()

	_, err := o.WaitlistStatus(ctx)
	assert.ErrorIs(t, err, apiclient.ErrAuth)
	_, err = o.RegisterNotificationToken(ctx, "push-token")
	assert.ErrorIs(t, err, apiclient.ErrAuth)
	_, err = o.SubmitFeedback(ctx, users.FeedbackRequest{Contents: "hi"})
	assert.ErrorIs(t, err, apiclient.ErrAuth)
	api.AssertNotCalled(t, "GetWaitlistStatus", mock.Anything)

	// Signed in without a profile yet
	api.On("GetMe", mock.Anything).Return(users.User{}, apiclient.ErrNotFound).Once()
	_ = o.HandleAuthChange(ctx, present())
	require.Equal(t, ProfileAbsent{}, o.State().Profile)

	api.On("GetWaitlistStatus", mock.Anything).Return(users.WaitlistStatus{Invited: true}, nil).Once()
	api.On("JoinWaitlist", mock.Anything).Return(users.WaitlistStatus{Invited: true, Joined: true}, nil).Once()
	api.On("RegisterNotificationToken", mock.Anything, "push-token").Return(posts.SimpleResponse{Success: true}, nil).Once()
	api.On("RemoveNotificationToken", mock.Anything, "push-token").Return(posts.SimpleResponse{Success: true}, nil).Once()
	feedback := users.FeedbackRequest{Contents: "hi", FollowUp: true}
	api.On("SubmitFeedback", mock.Anything, feedback).Return(posts.SimpleResponse{Success: true}, nil).Once()

	status, err := o.WaitlistStatus(ctx)
	require.NoError(t, err)
	assert.True(t, status.Invited)
	status, err = o.JoinWaitlist(ctx)
	require.NoError(t, err)
	assert.True(t, status.Joined)

	ok, err := o.RegisterNotificationToken(ctx, "push-token")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = o.RemoveNotificationToken(ctx, "push-token")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = o.SubmitFeedback(ctx, feedback)
	require.NoError(t, err)
	assert.True(t, ok)

	// Invites and contacts need the profile
	_, err = o.InviteUser(ctx, "+14155550100")
	assert.ErrorIs(t, err, ErrNoProfile)
	_, err = o.UsersInContacts(ctx, []string{"+14155550100"})
	assert.ErrorIs(t, err, ErrNoProfile)

	api.AssertExpectations(t)
}

func TestOrchestrator_InviteAndContacts(t *testing.T) {
	o, api, _ := signedIn(t)
	phones := []string{"+14155550100", "+14155550101"}
	kevin := users.User{UserID: "user-2", Username: "kevin"}

	api.On("InviteUser", mock.Anything, "+14155550100").Return(users.InviteStatus{Invited: true}, nil).Once()
	api.On("GetUsersInContacts", mock.Anything, testUser.Username, phones).Return([]users.User{kevin}, nil).Once()

	invited, err := o.InviteUser(context.Background(), "+14155550100")
	require.NoError(t, err)
	assert.True(t, invited)

	found, err := o.UsersInContacts(context.Background(), phones)
	require.NoError(t, err)
	assert.Equal(t, []users.User{kevin}, found)
	api.AssertExpectations(t)
}
