package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultRefreshBuffer is how long before expiry a token is considered stale
const DefaultRefreshBuffer = 5 * time.Minute

// parseTokenExpiration extracts the exp claim from a JWT access token.
// The signature is NOT verified; the client only needs to know when to refresh.
func parseTokenExpiration(token string) (time.Time, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return time.Time{}, fmt.Errorf("access token is empty")
	}

	parsed, err := jwt.ParseString(token, jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	exp := parsed.Expiration()
	if exp.IsZero() {
		return time.Time{}, fmt.Errorf("access token missing 'exp' claim")
	}
	return exp, nil
}

// expiresAt resolves the effective expiry of a token set: the JWT exp claim
// when the token is a JWT, otherwise whatever the backend reported.
func expiresAt(tokens TokenSet) time.Time {
	if exp, err := parseTokenExpiration(tokens.AccessToken); err == nil {
		return exp
	}
	return tokens.ExpiresAt
}

// needsRefresh reports whether the token expires within buffer of now.
// Tokens with no known expiry are used as-is until the server rejects them.
func needsRefresh(tokens TokenSet, now time.Time, buffer time.Duration) bool {
	if tokens.AccessToken == "" {
		return true
	}
	exp := expiresAt(tokens)
	if exp.IsZero() {
		return false
	}
	return now.Add(buffer).After(exp)
}
