package session

import (
	"fmt"

	"Jimo/internal/core/auth"
	"Jimo/internal/core/users"
)

// AuthState is one of AuthPending, AuthAbsent or Authenticated
type AuthState interface {
	isAuthState()
}

// AuthPending means the credential provider has not reported yet
type AuthPending struct{}

// AuthAbsent means nobody is signed in
type AuthAbsent struct{}

// Authenticated carries the signed-in identity
type Authenticated struct {
	Identity auth.Identity
}

func (AuthPending) isAuthState()   {}
func (AuthAbsent) isAuthState()    {}
func (Authenticated) isAuthState() {}

// ProfileState is one of ProfileEmpty, ProfilePending, ProfileAbsent,
// ProfileFailed or ProfilePresent
type ProfileState interface {
	isProfileState()
}

// ProfileEmpty is the signed-out resting state
type ProfileEmpty struct{}

// ProfilePending means the own-profile fetch is in flight
type ProfilePending struct{}

// ProfileAbsent means the identity has no profile yet (mid-registration)
type ProfileAbsent struct{}

// ProfileFailed means the own-profile fetch failed. It is left as is until
// RefreshCurrentUser is called.
type ProfileFailed struct {
	Err error
}

// ProfilePresent carries the signed-in user's profile
type ProfilePresent struct {
	User users.User
}

func (ProfileEmpty) isProfileState()   {}
func (ProfilePending) isProfileState() {}
func (ProfileAbsent) isProfileState()  {}
func (ProfileFailed) isProfileState()  {}
func (ProfilePresent) isProfileState() {}

// State is a snapshot of both session halves
type State struct {
	Auth    AuthState
	Profile ProfileState
}

func (s State) String() string {
	return fmt.Sprintf("auth=%s profile=%s", DescribeAuth(s.Auth), DescribeProfile(s.Profile))
}

// DescribeAuth renders s for logs. Panics on a type outside the set above.
func DescribeAuth(s AuthState) string {
	switch v := s.(type) {
	case AuthPending:
		return "pending"
	case AuthAbsent:
		return "absent"
	case Authenticated:
		return "authenticated(" + v.Identity.UID + ")"
	default:
		panic(fmt.Sprintf("session: unhandled auth state %T", s))
	}
}

// DescribeProfile renders s for logs. Panics on a type outside the set above.
func DescribeProfile(s ProfileState) string {
	switch v := s.(type) {
	case ProfileEmpty:
		return "empty"
	case ProfilePending:
		return "pending"
	case ProfileAbsent:
		return "absent"
	case ProfileFailed:
		return "failed"
	case ProfilePresent:
		return "present(" + v.User.Username + ")"
	default:
		panic(fmt.Sprintf("session: unhandled profile state %T", s))
	}
}
