package users

// User is a public profile as returned by the Jimo API.
// The client never patches a User field by field; a fresher copy from the
// server replaces the old one wholesale.
type User struct {
	ProfilePictureURL *string `json:"profilePictureUrl"`
	UserID            string  `json:"userId" validate:"required"`
	Username          string  `json:"username" validate:"required"`
	FirstName         string  `json:"firstName"`
	LastName          string  `json:"lastName"`
	PostCount         int     `json:"postCount"`
	FollowerCount     int     `json:"followerCount"`
	FollowingCount    int     `json:"followingCount"`
}

// DisplayName returns "First Last", falling back to the username
func (u User) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	default:
		return u.Username
	}
}

// Equal reports whether two users carry identical profile data.
func (u User) Equal(o User) bool {
	return u.UserID == o.UserID &&
		u.Username == o.Username &&
		u.FirstName == o.FirstName &&
		u.LastName == o.LastName &&
		u.PostCount == o.PostCount &&
		u.FollowerCount == o.FollowerCount &&
		u.FollowingCount == o.FollowingCount &&
		equalStringPtr(u.ProfilePictureURL, o.ProfilePictureURL)
}

// CreateUserRequest is the body of POST /users/
type CreateUserRequest struct {
	Username  string `json:"username" validate:"required,min=3,max=20,alphanum"`
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
}

// CreateUserResponse is returned by POST /users/.
// Created is set on success; Error carries per-field messages otherwise.
type CreateUserResponse struct {
	Created *User             `json:"created"`
	Error   map[string]string `json:"error"`
}

// UpdateProfileRequest is the body of POST /users/{username}
type UpdateProfileRequest struct {
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=20,alphanum"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
}

// UpdateProfileResponse mirrors CreateUserResponse for profile edits
type UpdateProfileResponse struct {
	User  *User             `json:"user"`
	Error map[string]string `json:"error"`
}

// FollowResponse reports the follow relationship after follow/unfollow/status calls
type FollowResponse struct {
	Followed bool `json:"followed"`
}

// Preferences holds the per-user notification and privacy settings
type Preferences struct {
	FollowNotifications     bool `json:"followNotifications"`
	PostLikedNotifications  bool `json:"postLikedNotifications"`
	SearchableByPhoneNumber bool `json:"searchableByPhoneNumber"`
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// WaitlistStatus reports where the signed-in account stands on the waitlist
type WaitlistStatus struct {
	Invited bool `json:"invited"`
	Joined  bool `json:"joined"`
}

// InviteUserRequest is the body of POST /waitlist/invites
type InviteUserRequest struct {
	PhoneNumber string `json:"phoneNumber" validate:"required,e164"`
}

// InviteStatus is returned by POST /waitlist/invites
type InviteStatus struct {
	Invited bool `json:"invited"`
}

// PhoneNumbersRequest is the body of POST /users/{username}/contacts
type PhoneNumbersRequest struct {
	PhoneNumbers []string `json:"phoneNumbers" validate:"max=1000,dive,e164"`
}

// NotificationTokenRequest registers or removes a push notification token
type NotificationTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// FeedbackRequest is the body of POST /feedback/
type FeedbackRequest struct {
	Contents string `json:"contents" validate:"required,max=5000"`
	FollowUp bool   `json:"followUp"`
}
