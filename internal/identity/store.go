package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"jobcoach-web/internal/shared/telemetry"
)

// DefaultRefreshWindow renews access tokens this long before they expire.
const DefaultRefreshWindow = 30 * time.Second

// DefaultRefreshTimeout bounds one refresh call. The call is detached from
// the request that triggered it, so leaving the page does not abort it.
const DefaultRefreshTimeout = 10 * time.Second

// Authenticator is the provider surface the store needs.
type Authenticator interface {
	SignInWithPassword(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	SignUp(ctx context.Context, email, password string) error
	SignOut(ctx context.Context, accessToken string) error
}

// Store owns every tab's session and keeps it fresh.
type Store struct {
	auth          Authenticator
	storage       Storage
	refreshWindow  time.Duration
	refreshTimeout time.Duration
	refreshes      singleflight.Group
}

func NewStore(auth Authenticator, storage Storage) *Store {
	return &Store{auth: auth, storage: storage, refreshWindow: DefaultRefreshWindow, refreshTimeout: DefaultRefreshTimeout}
}

// Bind returns the session handle for one tab.
func (s *Store) Bind(key string) *TabSession {
	return &TabSession{store: s, key: key}
}

// TabSession is a single tab's view of the session store.
type TabSession struct {
	store *Store
	key   string
}

// Credential returns a currently valid access token, refreshing it when it is
// about to expire. Any failure reads as "no session", but the stored session
// is only discarded when the provider rejects it; timeouts and transport
// errors leave it in place for the next attempt.
func (t *TabSession) Credential(ctx context.Context) (string, bool) {
	sess, ok, err := t.store.storage.Load(ctx, t.key)
	if err != nil {
		telemetry.Warn("identity.load_failed", map[string]any{"tab_id": t.key, "error": err.Error()})
		return "", false
	}
	if !ok || sess.AccessToken == "" {
		return "", false
	}

	src := oauth2.ReuseTokenSourceWithExpiry(sess.Token(), &refreshSource{ctx: ctx, tab: t, sess: sess}, t.store.refreshWindow)
	tok, err := src.Token()
	if err != nil {
		telemetry.Info("identity.refresh_failed", map[string]any{"tab_id": t.key, "error": err.Error()})
		if !unrecoverable(err) {
			return "", false
		}
		if delErr := t.store.storage.Delete(ctx, t.key); delErr != nil {
			telemetry.Warn("identity.clear_failed", map[string]any{"tab_id": t.key, "error": delErr.Error()})
		}
		return "", false
	}
	return tok.AccessToken, true
}

// unrecoverable reports whether a refresh error means the session can never
// be renewed: the provider rejected the refresh token, or there is none.
func unrecoverable(err error) bool {
	if errors.Is(err, ErrNoRefreshToken) {
		return true
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		return false
	}
	return authErr.Status >= 400 && authErr.Status < 500 && authErr.Status != http.StatusTooManyRequests
}

// SignIn establishes a session for the tab and returns its access token.
func (t *TabSession) SignIn(ctx context.Context, email, password string) (string, error) {
	sess, err := t.store.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return "", err
	}
	if err := t.store.storage.Save(ctx, t.key, sess); err != nil {
		return "", fmt.Errorf("persist session: %w", err)
	}
	return sess.AccessToken, nil
}

// SignUp registers an account without signing in.
func (t *TabSession) SignUp(ctx context.Context, email, password string) error {
	return t.store.auth.SignUp(ctx, email, password)
}

// SignOut clears the tab's session and then revokes it at the provider.
// The local session is gone even when revocation fails.
func (t *TabSession) SignOut(ctx context.Context) error {
	sess, ok, loadErr := t.store.storage.Load(ctx, t.key)
	if err := t.store.storage.Delete(ctx, t.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	if loadErr != nil || !ok || sess.AccessToken == "" {
		return nil
	}
	if err := t.store.auth.SignOut(ctx, sess.AccessToken); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

type refreshSource struct {
	ctx  context.Context
	tab  *TabSession
	sess Session
}

func (r *refreshSource) Token() (*oauth2.Token, error) {
	if r.sess.RefreshToken == "" {
		return nil, ErrNoRefreshToken
	}
	store := r.tab.store
	v, err, _ := store.refreshes.Do(r.tab.key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), store.refreshTimeout)
		defer cancel()
		next, err := store.auth.Refresh(ctx, r.sess.RefreshToken)
		if err != nil {
			return nil, err
		}
		if next.RefreshToken == "" {
			next.RefreshToken = r.sess.RefreshToken
		}
		if next.UserID == "" {
			next.UserID, next.Email = r.sess.UserID, r.sess.Email
		}
		if err := store.storage.Save(ctx, r.tab.key, next); err != nil {
			return nil, fmt.Errorf("persist refreshed session: %w", err)
		}
		telemetry.Debug("identity.refreshed", map[string]any{"tab_id": r.tab.key})
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	next, ok := v.(Session)
	if !ok {
		return nil, errors.New("unexpected refresh result")
	}
	return next.Token(), nil
}
