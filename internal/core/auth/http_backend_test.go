package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPBackend_SignIn(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantErr      bool
		wantInvalid  bool
		wantUID      string
		wantExpiring bool
	}{
		{
			name:         "success",
			status:       http.StatusOK,
			body:         `{"uid":"uid-1","email":"a@b.c","accessToken":"access","refreshToken":"refresh","expiresIn":3600}`,
			wantUID:      "uid-1",
			wantExpiring: true,
		},
		{
			name:        "wrong password",
			status:      http.StatusUnauthorized,
			body:        `{"error":"InvalidCredentials","message":"wrong password"}`,
			wantErr:     true,
			wantInvalid: true,
		},
		{
			name:    "server error",
			status:  http.StatusInternalServerError,
			body:    `oops`,
			wantErr: true,
		},
		{
			name:    "missing access token",
			status:  http.StatusOK,
			body:    `{"uid":"uid-1"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/signin", r.URL.Path)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))

				var req credentialsRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "a@b.c", req.Email)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			backend, err := NewHTTPBackend(server.URL, "key-1", nil)
			require.NoError(t, err)

			session, err := backend.SignIn(context.Background(), "a@b.c", "secret")
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.wantInvalid, isInvalidCredentials(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUID, session.Identity.UID)
			assert.Equal(t, "refresh", session.Tokens.RefreshToken)
			if tt.wantExpiring {
				assert.WithinDuration(t, time.Now().Add(time.Hour), session.Tokens.ExpiresAt, time.Minute)
			}
		})
	}
}

func isInvalidCredentials(err error) bool {
	return errors.Is(err, ErrInvalidCredentials)
}

func TestHTTPBackend_SignInRequiresCredentials(t *testing.T) {
	backend, err := NewHTTPBackend("http://127.0.0.1:0", "", nil)
	require.NoError(t, err)

	_, err = backend.SignIn(context.Background(), "", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = backend.SignUp(context.Background(), "a@b.c", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestHTTPBackend_Refresh(t *testing.T) {
	t.Run("rotates tokens", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/token", r.URL.Path)
			var req tokenRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "refresh_token", req.GrantType)
			assert.Equal(t, "refresh-1", req.RefreshToken)

			_, _ = w.Write([]byte(`{"accessToken":"access-2","refreshToken":"refresh-2"}`))
		}))
		defer server.Close()

		backend, err := NewHTTPBackend(server.URL, "", nil)
		require.NoError(t, err)

		tokens, err := backend.Refresh(context.Background(), "refresh-1")
		require.NoError(t, err)
		assert.Equal(t, "access-2", tokens.AccessToken)
		assert.Equal(t, "refresh-2", tokens.RefreshToken)
	})

	t.Run("rejected refresh token", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"InvalidToken"}`))
		}))
		defer server.Close()

		backend, err := NewHTTPBackend(server.URL, "", nil)
		require.NoError(t, err)

		_, err = backend.Refresh(context.Background(), "refresh-1")
		assert.ErrorIs(t, err, ErrRefreshRejected)
		assert.Contains(t, err.Error(), "InvalidToken")
	})

	t.Run("server unavailable is not a rejection", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		backend, err := NewHTTPBackend(server.URL, "", nil)
		require.NoError(t, err)

		_, err = backend.Refresh(context.Background(), "refresh-1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrRefreshRejected)
	})
}

func TestHTTPBackend_SignOutAndReset(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	backend, err := NewHTTPBackend(server.URL+"/", "", nil)
	require.NoError(t, err)

	require.NoError(t, backend.SignOut(context.Background(), "refresh-1"))
	require.NoError(t, backend.SendPasswordReset(context.Background(), "a@b.c"))
	assert.Error(t, backend.SendPasswordReset(context.Background(), ""))

	assert.Equal(t, []string{"/auth/signout", "/auth/reset"}, paths)
}

func TestNewHTTPBackend_RequiresURL(t *testing.T) {
	_, err := NewHTTPBackend("", "", nil)
	assert.Error(t, err)
}
