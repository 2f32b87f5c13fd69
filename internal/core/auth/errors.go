package auth

import "errors"

var (
	// ErrAuthUnavailable is returned by Token when no identity is signed in,
	// or when the requested identity is no longer the current one.
	ErrAuthUnavailable = errors.New("no authenticated identity")

	// ErrTokenRefresh wraps any failure to obtain a fresh access token
	ErrTokenRefresh = errors.New("token refresh failed")

	// ErrInvalidCredentials indicates the backend rejected an email/password pair
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrRefreshRejected indicates the refresh token was revoked or expired.
	// The provider signs the identity out locally when it sees this.
	ErrRefreshRejected = errors.New("refresh token rejected")
)
