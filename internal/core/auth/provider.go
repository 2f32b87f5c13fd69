package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Provider is the single source of truth for "who is signed in" and hands out
// bearer tokens for that identity, refreshing them on demand.
//
// Concurrent Token calls that all need a refresh share one backend round-trip.
type Provider struct {
	backend       Backend
	logger        *slog.Logger
	now           func() time.Time
	identity      *Identity
	listeners     []func(Event)
	tokens        TokenSet
	refreshBuffer time.Duration
	group         singleflight.Group
	mu            sync.RWMutex
	// notifyMu keeps listener dispatch in the same order as state changes
	notifyMu sync.Mutex
}

var _ TokenSource = (*Provider)(nil)

// NewProvider creates a provider with nobody signed in
func NewProvider(backend Backend, refreshBuffer time.Duration, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if refreshBuffer <= 0 {
		refreshBuffer = DefaultRefreshBuffer
	}
	return &Provider{
		backend:       backend,
		logger:        logger,
		now:           time.Now,
		refreshBuffer: refreshBuffer,
	}
}

// Listen registers fn for identity changes. fn is called synchronously, in
// order, and must not call back into SignIn/SignUp/SignOut.
func (p *Provider) Listen(fn func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

// CurrentIdentity returns the signed-in identity, if any
func (p *Provider) CurrentIdentity() (Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.identity == nil {
		return Identity{}, false
	}
	return *p.identity, true
}

// SignUp creates an account and signs it in
func (p *Provider) SignUp(ctx context.Context, email, password string) (Identity, error) {
	session, err := p.backend.SignUp(ctx, email, password)
	if err != nil {
		return Identity{}, fmt.Errorf("sign up failed: %w", err)
	}
	p.setSession(session)
	return session.Identity, nil
}

// SignIn authenticates with email and password
func (p *Provider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	session, err := p.backend.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, fmt.Errorf("sign in failed: %w", err)
	}
	p.setSession(session)
	return session.Identity, nil
}

// Restore installs a previously obtained session without a backend call
func (p *Provider) Restore(session Session) {
	p.setSession(&session)
}

// SignOut clears the local identity. The backend revocation is best effort:
// local state is cleared and listeners are notified even when it fails, and
// the error is only returned so the caller can log it.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.RLock()
	refreshToken := p.tokens.RefreshToken
	signedIn := p.identity != nil
	p.mu.RUnlock()

	if !signedIn {
		return nil
	}

	var revokeErr error
	if refreshToken != "" {
		if err := p.backend.SignOut(ctx, refreshToken); err != nil {
			revokeErr = fmt.Errorf("failed to revoke session: %w", err)
		}
	}

	p.clear(nil)
	return revokeErr
}

// SendPasswordReset asks the backend to email a reset link
func (p *Provider) SendPasswordReset(ctx context.Context, email string) error {
	if err := p.backend.SendPasswordReset(ctx, email); err != nil {
		return fmt.Errorf("password reset failed: %w", err)
	}
	return nil
}

// Token returns a bearer token for identity, refreshing it first when it is
// about to expire. Fails with ErrAuthUnavailable when identity is not the
// current one.
func (p *Provider) Token(ctx context.Context, identity Identity) (string, error) {
	p.mu.RLock()
	current := p.identity
	tokens := p.tokens
	p.mu.RUnlock()

	if current == nil || current.UID != identity.UID {
		return "", ErrAuthUnavailable
	}

	if !needsRefresh(tokens, p.now(), p.refreshBuffer) {
		return tokens.AccessToken, nil
	}

	// The refresh outlives any single caller so an abandoned request does not
	// poison the shared result for the others waiting on it.
	ch := p.group.DoChan(identity.UID, func() (any, error) {
		return p.refresh(context.WithoutCancel(ctx), identity)
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", ErrTokenRefresh, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (p *Provider) refresh(ctx context.Context, identity Identity) (string, error) {
	p.mu.RLock()
	current := p.identity
	tokens := p.tokens
	p.mu.RUnlock()

	if current == nil || current.UID != identity.UID {
		return "", ErrAuthUnavailable
	}
	// Another flight may have finished between the caller's check and ours
	if !needsRefresh(tokens, p.now(), p.refreshBuffer) {
		return tokens.AccessToken, nil
	}
	if tokens.RefreshToken == "" {
		return "", fmt.Errorf("%w: no refresh token", ErrTokenRefresh)
	}

	p.logger.Debug("refreshing access token", "uid", identity.UID)

	fresh, err := p.backend.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshRejected) {
			p.logger.Warn("refresh token rejected, signing out", "uid", identity.UID)
			p.clear(&identity)
		} else {
			p.logger.Error("token refresh failed", "uid", identity.UID, "error", err)
		}
		return "", fmt.Errorf("%w: %w", ErrTokenRefresh, err)
	}
	if fresh.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh response missing access token", ErrTokenRefresh)
	}
	if fresh.RefreshToken == "" {
		// Some backends only rotate the access token
		fresh.RefreshToken = tokens.RefreshToken
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.identity == nil || p.identity.UID != identity.UID {
		// Signed out while the refresh was in flight
		return "", ErrAuthUnavailable
	}
	p.tokens = *fresh
	return fresh.AccessToken, nil
}

func (p *Provider) setSession(session *Session) {
	identity := session.Identity

	p.mu.Lock()
	p.identity = &identity
	p.tokens = session.Tokens
	listeners := append([]func(Event){}, p.listeners...)
	p.notifyMu.Lock()
	p.mu.Unlock()
	defer p.notifyMu.Unlock()

	p.logger.Info("identity signed in", "uid", identity.UID)
	ev := Event{Identity: &identity}
	for _, fn := range listeners {
		fn(ev)
	}
}

// clear drops the current identity. When only is non-nil the identity is
// cleared only if it is still the current one.
func (p *Provider) clear(only *Identity) {
	p.mu.Lock()
	if p.identity == nil || (only != nil && p.identity.UID != only.UID) {
		p.mu.Unlock()
		return
	}
	uid := p.identity.UID
	p.identity = nil
	p.tokens = TokenSet{}
	listeners := append([]func(Event){}, p.listeners...)
	p.notifyMu.Lock()
	p.mu.Unlock()
	defer p.notifyMu.Unlock()

	p.logger.Info("identity signed out", "uid", uid)
	for _, fn := range listeners {
		fn(Event{})
	}
}
