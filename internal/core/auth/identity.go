package auth

import (
	"context"
	"time"
)

// Identity is the authenticated account as known to the identity backend.
// It says nothing about whether a Jimo profile exists for the account.
type Identity struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}

// TokenSet holds the credentials for one identity
type TokenSet struct {
	ExpiresAt    time.Time
	AccessToken  string
	RefreshToken string
}

// Session is the result of signing in or up
type Session struct {
	Identity Identity
	Tokens   TokenSet
}

// Event is emitted on every identity change. Identity is nil when nobody is
// signed in.
type Event struct {
	Identity *Identity
}

// Backend is the remote identity service
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)

	// Refresh exchanges a refresh token for a new token set.
	// Returns ErrRefreshRejected when the refresh token is no longer valid.
	Refresh(ctx context.Context, refreshToken string) (*TokenSet, error)

	// SignOut revokes the refresh token server side
	SignOut(ctx context.Context, refreshToken string) error

	SendPasswordReset(ctx context.Context, email string) error
}

// TokenSource is what the request pipeline needs from the provider
type TokenSource interface {
	CurrentIdentity() (Identity, bool)
	Token(ctx context.Context, identity Identity) (string, error)
}
