package session

import (
	"context"
	"fmt"

	"Jimo/internal/apiclient"
	"Jimo/internal/core/users"
)

// identity fails unless an identity is signed in. Waitlist, notification and
// feedback calls work before a profile exists.
func (o *Orchestrator) identity() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.state.Auth.(Authenticated); !ok {
		return fmt.Errorf("%w: not signed in", apiclient.ErrAuth)
	}
	return nil
}

// UploadImage stores image on the server and returns the id to put in
// CreatePostRequest.ImageID
func (o *Orchestrator) UploadImage(ctx context.Context, image apiclient.Upload) (string, error) {
	if _, _, err := o.session(); err != nil {
		return "", err
	}
	resp, err := o.api.UploadImage(ctx, image)
	if err != nil {
		return "", err
	}
	return resp.ImageID, nil
}

// UploadProfilePicture replaces the signed-in user's picture. The returned
// profile becomes the present one.
func (o *Orchestrator) UploadProfilePicture(ctx context.Context, image apiclient.Upload) (users.User, error) {
	_, epoch, err := o.session()
	if err != nil {
		return users.User{}, err
	}
	user, err := o.api.UploadProfilePicture(ctx, image)
	if err != nil {
		return users.User{}, err
	}
	if err := o.setProfile(ctx, epoch, user); err != nil {
		return users.User{}, err
	}
	return user, nil
}

func (o *Orchestrator) WaitlistStatus(ctx context.Context) (users.WaitlistStatus, error) {
	if err := o.identity(); err != nil {
		return users.WaitlistStatus{}, err
	}
	return o.api.GetWaitlistStatus(ctx)
}

func (o *Orchestrator) JoinWaitlist(ctx context.Context) (users.WaitlistStatus, error) {
	if err := o.identity(); err != nil {
		return users.WaitlistStatus{}, err
	}
	return o.api.JoinWaitlist(ctx)
}

// InviteUser invites the owner of phoneNumber (E.164) to Jimo
func (o *Orchestrator) InviteUser(ctx context.Context, phoneNumber string) (bool, error) {
	if _, _, err := o.session(); err != nil {
		return false, err
	}
	resp, err := o.api.InviteUser(ctx, phoneNumber)
	if err != nil {
		return false, err
	}
	return resp.Invited, nil
}

// UsersInContacts returns the Jimo users among phoneNumbers who allow being
// found by phone number
func (o *Orchestrator) UsersInContacts(ctx context.Context, phoneNumbers []string) ([]users.User, error) {
	username, _, err := o.session()
	if err != nil {
		return nil, err
	}
	return o.api.GetUsersInContacts(ctx, username, phoneNumbers)
}

func (o *Orchestrator) RegisterNotificationToken(ctx context.Context, token string) (bool, error) {
	if err := o.identity(); err != nil {
		return false, err
	}
	resp, err := o.api.RegisterNotificationToken(ctx, token)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (o *Orchestrator) RemoveNotificationToken(ctx context.Context, token string) (bool, error) {
	if err := o.identity(); err != nil {
		return false, err
	}
	resp, err := o.api.RemoveNotificationToken(ctx, token)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

func (o *Orchestrator) SubmitFeedback(ctx context.Context, req users.FeedbackRequest) (bool, error) {
	if err := o.identity(); err != nil {
		return false, err
	}
	resp, err := o.api.SubmitFeedback(ctx, req)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}
