package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const tokenIssuer = "jimo-devserver"

var errInvalidToken = errors.New("invalid token")

// signer issues and verifies HS256 access tokens
type signer struct {
	now    func() time.Time
	secret []byte
	ttl    time.Duration
}

func (s *signer) issue(uid, email string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)

	tok, err := jwt.NewBuilder().
		Issuer(tokenIssuer).
		Subject(uid).
		IssuedAt(now).
		Expiration(exp).
		Claim("email", email).
		Build()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to build token: %w", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.secret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), exp, nil
}

// verify checks signature, issuer and expiry and returns the subject
func (s *signer) verify(token string) (string, error) {
	parsed, err := jwt.ParseString(token,
		jwt.WithKey(jwa.HS256, s.secret),
		jwt.WithValidate(true),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithClock(jwt.ClockFunc(s.now)),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if parsed.Subject() == "" {
		return "", fmt.Errorf("%w: missing subject", errInvalidToken)
	}
	return parsed.Subject(), nil
}
