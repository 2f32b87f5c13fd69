package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPBackend talks to the JSON identity service
//
//	POST /auth/signup   {email, password}             -> session
//	POST /auth/signin   {email, password}             -> session
//	POST /auth/token    {grantType, refreshToken}     -> session
//	POST /auth/signout  {refreshToken}                -> {}
//	POST /auth/reset    {email}                       -> {}
type HTTPBackend struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ Backend = (*HTTPBackend)(nil)

// NewHTTPBackend creates a backend rooted at baseURL. apiKey, when set, is
// sent as X-Api-Key on every call.
func NewHTTPBackend(baseURL, apiKey string, client *http.Client) (*HTTPBackend, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("identity base URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPBackend{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}, nil
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenRequest struct {
	GrantType    string `json:"grantType"`
	RefreshToken string `json:"refreshToken"`
}

type sessionResponse struct {
	UID          string `json:"uid"`
	Email        string `json:"email"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

func (r *sessionResponse) tokens(now time.Time) TokenSet {
	set := TokenSet{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
	if r.ExpiresIn > 0 {
		set.ExpiresAt = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return set
}

// SignUp creates a new account
func (b *HTTPBackend) SignUp(ctx context.Context, email, password string) (*Session, error) {
	return b.credentialsCall(ctx, "/auth/signup", email, password)
}

// SignIn authenticates an existing account
func (b *HTTPBackend) SignIn(ctx context.Context, email, password string) (*Session, error) {
	return b.credentialsCall(ctx, "/auth/signin", email, password)
}

func (b *HTTPBackend) credentialsCall(ctx context.Context, path, email, password string) (*Session, error) {
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrInvalidCredentials)
	}
	if password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidCredentials)
	}

	var out sessionResponse
	status, err := b.post(ctx, path, credentialsRequest{Email: email, Password: password}, &out)
	if err != nil {
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}
	if out.UID == "" || out.AccessToken == "" {
		return nil, fmt.Errorf("%s response missing uid or access token", path)
	}

	return &Session{
		Identity: Identity{UID: out.UID, Email: out.Email},
		Tokens:   out.tokens(time.Now()),
	}, nil
}

// Refresh exchanges a refresh token for new tokens
func (b *HTTPBackend) Refresh(ctx context.Context, refreshToken string) (*TokenSet, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}

	var out sessionResponse
	status, err := b.post(ctx, "/auth/token", tokenRequest{GrantType: "refresh_token", RefreshToken: refreshToken}, &out)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %w", ErrRefreshRejected, err)
		}
		return nil, err
	}

	tokens := out.tokens(time.Now())
	return &tokens, nil
}

// SignOut revokes the refresh token
func (b *HTTPBackend) SignOut(ctx context.Context, refreshToken string) error {
	_, err := b.post(ctx, "/auth/signout", map[string]string{"refreshToken": refreshToken}, nil)
	return err
}

// SendPasswordReset triggers a reset email
func (b *HTTPBackend) SendPasswordReset(ctx context.Context, email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	_, err := b.post(ctx, "/auth/reset", map[string]string{"email": email}, nil)
	return err
}

// post sends body as JSON and decodes a 2xx response into out.
// The status code is returned alongside errors so callers can classify them.
func (b *HTTPBackend) post(ctx context.Context, path string, body, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		req.Header.Set("X-Api-Key", b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s request failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &errBody) == nil && (errBody.Message != "" || errBody.Error != "") {
			msg = errBody.Message
			if msg == "" {
				msg = errBody.Error
			}
		}
		return resp.StatusCode, fmt.Errorf("identity backend %s returned %d: %s", path, resp.StatusCode, msg)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}
