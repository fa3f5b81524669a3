// Package authstate holds the per-tab authentication state machine.
//
// A Context starts in Resolving, settles into Authenticated or
// Unauthenticated, and is mutated only through Resolve, Login, Register and
// Logout. Pages read it through Snapshot and Credential.
package authstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/shared/metrics"
	"jobcoach-web/internal/shared/telemetry"
)

// ErrNotAuthenticated is returned when an action needs a credential and the tab has none.
var ErrNotAuthenticated = errors.New("not authenticated")

type Status int

const (
	Resolving Status = iota
	Authenticated
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Resolving:
		return "resolving"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText lets snapshots render the status by name in JSON.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Snapshot is an immutable copy of the state. User is set only when Authenticated.
type Snapshot struct {
	Status Status   `json:"status"`
	User   api.User `json:"user"`
}

// SessionStore is the identity surface the context delegates to.
type SessionStore interface {
	Credential(ctx context.Context) (string, bool)
	SignIn(ctx context.Context, email, password string) (string, error)
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

// ProfileResolver maps a credential to the backend user profile.
type ProfileResolver interface {
	Me(ctx context.Context, credential string) (api.User, error)
}

type Context struct {
	base     context.Context
	session  SessionStore
	profiles ProfileResolver

	mu      sync.Mutex
	snap    Snapshot
	gen     uint64
	started bool
	settled chan struct{}
}

// New returns a context in the Resolving state. base bounds background
// resolution and is cancelled when the owning tab is torn down.
func New(base context.Context, session SessionStore, profiles ProfileResolver) *Context {
	return &Context{
		base:     base,
		session:  session,
		profiles: profiles,
		snap:     Snapshot{Status: Resolving},
		settled:  make(chan struct{}),
	}
}

func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Credential returns the tab's current access token, if any.
func (c *Context) Credential(ctx context.Context) (string, bool) {
	return c.session.Credential(ctx)
}

// RequireCredential is Credential for actions that cannot proceed without one.
func (c *Context) RequireCredential(ctx context.Context) (string, error) {
	cred, ok := c.session.Credential(ctx)
	if !ok {
		return "", ErrNotAuthenticated
	}
	return cred, nil
}

// Resolve reads the session and, when a credential exists, resolves the
// backend profile. A failed profile lookup counts as signed out. The result
// is discarded if Login or Logout changed the state in the meantime.
func (c *Context) Resolve(ctx context.Context) Snapshot {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()

	next := c.lookup(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen {
		c.setLocked(next)
	}
	return c.snap
}

// Await starts resolution in the background on first use and waits up to
// wait for the state to settle. It returns the state at that point, which is
// still Resolving when the backend is slow.
func (c *Context) Await(wait time.Duration) Snapshot {
	c.mu.Lock()
	if c.snap.Status != Resolving {
		snap := c.snap
		c.mu.Unlock()
		return snap
	}
	if !c.started {
		c.started = true
		go c.Resolve(c.base)
	}
	settled := c.settled
	c.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-settled:
	case <-timer.C:
	case <-c.base.Done():
	}
	return c.Snapshot()
}

// Revalidate re-reads the Session Store for a settled context, as a page
// reload would. A session that disappeared moves the context to
// Unauthenticated; a session that reappeared is resolved again.
func (c *Context) Revalidate(ctx context.Context) Snapshot {
	c.mu.Lock()
	snap, gen := c.snap, c.gen
	c.mu.Unlock()
	if snap.Status == Resolving {
		return snap
	}

	_, ok := c.session.Credential(ctx)
	switch {
	case snap.Status == Authenticated && !ok:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen {
			c.setLocked(Snapshot{Status: Unauthenticated})
			telemetry.Info("auth.session_lost", map[string]any{"user_id": snap.User.ID})
		}
		return c.snap
	case snap.Status == Unauthenticated && ok:
		return c.Resolve(ctx)
	default:
		return snap
	}
}

// Check is what a full page load sees: Await for the first resolution, then
// Revalidate against the Session Store.
func (c *Context) Check(ctx context.Context, wait time.Duration) Snapshot {
	snap := c.Await(wait)
	if snap.Status == Resolving {
		return snap
	}
	return c.Revalidate(ctx)
}

// Login signs in and resolves the profile. On failure the state is unchanged.
func (c *Context) Login(ctx context.Context, email, password string) (api.User, error) {
	cred, err := c.session.SignIn(ctx, email, password)
	if err != nil {
		metrics.IncLogin(false)
		return api.User{}, err
	}
	user, err := c.profiles.Me(ctx, cred)
	if err != nil {
		metrics.IncLogin(false)
		return api.User{}, fmt.Errorf("resolve profile: %w", err)
	}

	c.mu.Lock()
	c.setLocked(Snapshot{Status: Authenticated, User: user})
	c.mu.Unlock()

	metrics.IncLogin(true)
	telemetry.Info("auth.login", map[string]any{"user_id": user.ID})
	return user, nil
}

// Register creates an account without signing in or changing state.
func (c *Context) Register(ctx context.Context, email, password string) error {
	return c.session.SignUp(ctx, email, password)
}

// Logout always ends in Unauthenticated. A provider failure is logged only;
// the local session is already gone by then.
func (c *Context) Logout(ctx context.Context) {
	if err := c.session.SignOut(ctx); err != nil {
		telemetry.Warn("auth.logout_provider_failed", map[string]any{"error": err.Error()})
	}

	c.mu.Lock()
	c.setLocked(Snapshot{Status: Unauthenticated})
	c.mu.Unlock()
	metrics.IncLogout()
}

func (c *Context) lookup(ctx context.Context) Snapshot {
	cred, ok := c.session.Credential(ctx)
	if !ok {
		return Snapshot{Status: Unauthenticated}
	}
	user, err := c.profiles.Me(ctx, cred)
	if err != nil {
		telemetry.Info("auth.resolve_failed", map[string]any{"error": err.Error()})
		return Snapshot{Status: Unauthenticated}
	}
	return Snapshot{Status: Authenticated, User: user}
}

func (c *Context) setLocked(s Snapshot) {
	c.snap = s
	c.gen++
	if s.Status == Resolving {
		return
	}
	select {
	case <-c.settled:
	default:
		close(c.settled)
	}
}
