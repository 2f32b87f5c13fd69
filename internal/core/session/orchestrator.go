// Package session composes the credential provider, the request pipeline
// and the entity store into the signed-in session the rest of the app sees.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"Jimo/internal/apiclient"
	"Jimo/internal/core/auth"
	"Jimo/internal/core/store"
)

// ErrNoProfile is returned by operations that need a loaded profile.
// It matches apiclient.ErrAuth.
var ErrNoProfile = fmt.Errorf("%w: no profile loaded", apiclient.ErrAuth)

// Authenticator is the part of the credential provider the orchestrator drives
type Authenticator interface {
	CurrentIdentity() (auth.Identity, bool)
	Listen(fn func(auth.Event))
	SignUp(ctx context.Context, email, password string) (auth.Identity, error)
	SignIn(ctx context.Context, email, password string) (auth.Identity, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
}

type listener struct {
	fn func(State)
	id int
}

// Orchestrator owns the session state machine and the store for the lifetime
// of the process. Construct one and pass it to whatever needs it.
type Orchestrator struct {
	api       apiclient.API
	auth      Authenticator
	store     *store.Store
	logger    *slog.Logger
	state     State
	listeners []listener
	// pending holds committed states not yet delivered to listeners
	pending  []State
	draining bool
	fetches  sync.WaitGroup
	// epoch changes on every identity change; writes started in an older
	// epoch are dropped
	epoch uint64
	// profileGen changes on every profile fetch; older results are dropped
	profileGen uint64
	nextID     int
	mu         sync.Mutex
}

// New creates an orchestrator in the initial state (auth pending, profile
// empty). Call Start to begin following the credential provider.
func New(api apiclient.API, authenticator Authenticator, st *store.Store, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if st == nil {
		st = store.New(logger)
	}
	return &Orchestrator{
		api:    api,
		auth:   authenticator,
		store:  st,
		logger: logger,
		state:  State{Auth: AuthPending{}, Profile: ProfileEmpty{}},
	}
}

// Store returns the entity store the orchestrator writes to
func (o *Orchestrator) Store() *store.Store {
	return o.store
}

// State returns the current state
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Subscribe calls fn after every state change, in commit order. fn runs
// without the session lock on a goroutine that committed a change, so it may
// call any Orchestrator method. The returned func unsubscribes.
func (o *Orchestrator) Subscribe(fn func(State)) func() {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nextID++
	id := o.nextID
	o.listeners = append(o.listeners, listener{id: id, fn: fn})

	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, l := range o.listeners {
			if l.id == id {
				o.listeners = append(o.listeners[:i:i], o.listeners[i+1:]...)
				return
			}
		}
	}
}

// Start follows identity changes from the credential provider. Profile
// fetches it triggers run in the background under ctx; Wait blocks until
// they finish.
func (o *Orchestrator) Start(ctx context.Context) {
	o.auth.Listen(func(ev auth.Event) {
		gen, ok := o.applyIdentity(ev)
		if !ok {
			return
		}
		o.fetches.Add(1)
		go func() {
			defer o.fetches.Done()
			_ = o.fetchProfile(ctx, gen)
		}()
	})

	// Pick up an identity that was restored before we started listening
	ev := auth.Event{}
	if identity, ok := o.auth.CurrentIdentity(); ok {
		ev.Identity = &identity
	}
	if gen, ok := o.applyIdentity(ev); ok {
		o.fetches.Add(1)
		go func() {
			defer o.fetches.Done()
			_ = o.fetchProfile(ctx, gen)
		}()
	}
}

// Wait blocks until background profile fetches started by Start finish
func (o *Orchestrator) Wait() {
	o.fetches.Wait()
}

// HandleAuthChange applies an identity change and, when an identity is
// present, fetches the own profile before returning. The returned error is
// the fetch error, already reflected in the profile state.
func (o *Orchestrator) HandleAuthChange(ctx context.Context, ev auth.Event) error {
	gen, ok := o.applyIdentity(ev)
	if !ok {
		return nil
	}
	return o.fetchProfile(ctx, gen)
}

// RefreshCurrentUser re-fetches the own profile. Used to recover from
// ProfileFailed; never called automatically.
func (o *Orchestrator) RefreshCurrentUser(ctx context.Context) error {
	o.mu.Lock()
	if _, ok := o.state.Auth.(Authenticated); !ok {
		o.mu.Unlock()
		return fmt.Errorf("%w: not signed in", apiclient.ErrAuth)
	}
	o.profileGen++
	gen := o.profileGen
	next := o.state
	next.Profile = ProfilePending{}
	o.commitLocked(next)

	return o.fetchProfile(ctx, gen)
}

// applyIdentity performs the synchronous half of an identity change and
// returns the profile generation to fetch under, if a fetch is needed.
func (o *Orchestrator) applyIdentity(ev auth.Event) (uint64, bool) {
	o.mu.Lock()

	o.epoch++
	o.profileGen++
	gen := o.profileGen

	if ev.Identity == nil {
		o.store.Reset()
		o.logger.Info("session cleared")
		o.commitLocked(State{Auth: AuthAbsent{}, Profile: ProfileEmpty{}})
		return 0, false
	}

	if prev, ok := o.state.Auth.(Authenticated); ok && prev.Identity.UID != ev.Identity.UID {
		o.store.Reset()
	}
	o.logger.Info("identity present, loading profile", "uid", ev.Identity.UID)
	o.commitLocked(State{Auth: Authenticated{Identity: *ev.Identity}, Profile: ProfilePending{}})
	return gen, true
}

func (o *Orchestrator) fetchProfile(ctx context.Context, gen uint64) error {
	user, err := o.api.GetMe(ctx)

	var next ProfileState
	switch {
	case err == nil && ctx.Err() != nil:
		err = abandoned(ctx)
		next = ProfileFailed{Err: err}
	case err == nil:
		next = ProfilePresent{User: user}
	case errors.Is(err, apiclient.ErrNotFound):
		next = ProfileAbsent{}
	default:
		next = ProfileFailed{Err: err}
	}

	o.mu.Lock()
	if gen != o.profileGen {
		o.mu.Unlock()
		o.logger.Debug("discarding stale profile result", "generation", gen)
		return err
	}
	if _, ok := o.state.Auth.(Authenticated); !ok {
		o.mu.Unlock()
		return err
	}

	switch next.(type) {
	case ProfileFailed:
		o.logger.Warn("failed to load profile", "error", err)
	default:
		o.logger.Info("profile loaded", "profile", DescribeProfile(next))
	}

	state := o.state
	state.Profile = next
	o.commitLocked(state)
	return err
}

// SignOut ends the session. It does nothing unless a user is authenticated.
// Identity backend failures are logged and otherwise ignored; local state is
// always cleared.
func (o *Orchestrator) SignOut(ctx context.Context) {
	o.mu.Lock()
	_, authenticated := o.state.Auth.(Authenticated)
	o.mu.Unlock()

	if !authenticated {
		o.logger.Debug("sign out ignored, not signed in")
		return
	}

	if err := o.auth.SignOut(ctx); err != nil {
		o.logger.Warn("identity backend sign out failed", "error", err)
	}

	// The provider normally reports absence through Listen; apply it here too
	// so sign out completes even when Start was never called.
	o.mu.Lock()
	_, stillAuthenticated := o.state.Auth.(Authenticated)
	o.mu.Unlock()
	if stillAuthenticated {
		o.applyIdentity(auth.Event{})
	}
}

// SignUp creates an identity. The profile is created separately with CreateUser.
func (o *Orchestrator) SignUp(ctx context.Context, email, password string) (auth.Identity, error) {
	return o.auth.SignUp(ctx, email, password)
}

func (o *Orchestrator) SignIn(ctx context.Context, email, password string) (auth.Identity, error) {
	return o.auth.SignIn(ctx, email, password)
}

// ForgotPassword sends a password reset email
func (o *Orchestrator) ForgotPassword(ctx context.Context, email string) error {
	return o.auth.SendPasswordReset(ctx, email)
}

// commitLocked installs next and queues it for listeners.
// Must be called with o.mu held; returns with it released. The first
// committer to find the queue idle delivers until it is empty again, so
// states reach listeners in commit order and no caller waits on another's
// listeners while holding o.mu.
func (o *Orchestrator) commitLocked(next State) {
	o.state = next
	o.pending = append(o.pending, next)
	if o.draining {
		o.mu.Unlock()
		return
	}
	o.draining = true

	for {
		if len(o.pending) == 0 {
			o.draining = false
			o.mu.Unlock()
			return
		}
		state := o.pending[0]
		o.pending = o.pending[1:]
		listeners := make([]listener, len(o.listeners))
		copy(listeners, o.listeners)
		o.mu.Unlock()

		o.logger.Debug("session state changed", "state", state.String())
		for _, l := range listeners {
			l.fn(state)
		}

		o.mu.Lock()
	}
}

// session returns the present profile's username and the current epoch
func (o *Orchestrator) session() (string, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	p, ok := o.state.Profile.(ProfilePresent)
	if !ok {
		return "", 0, ErrNoProfile
	}
	return p.User.Username, o.epoch, nil
}

// apply runs fn unless the caller gave up or the identity changed since epoch.
// fn runs under the session lock so a sign out cannot interleave with it.
func (o *Orchestrator) apply(ctx context.Context, epoch uint64, fn func()) error {
	if err := ctx.Err(); err != nil {
		return abandoned(ctx)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if epoch != o.epoch {
		o.logger.Debug("discarding result from previous session")
		return fmt.Errorf("%w: session changed", apiclient.ErrAuth)
	}
	fn()
	return nil
}

func abandoned(ctx context.Context) error {
	return fmt.Errorf("%w: %w", apiclient.ErrNoResponse, ctx.Err())
}
