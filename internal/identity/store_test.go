package identity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	signIn     func(email, password string) (Session, error)
	refresh    func(rt string) (Session, error)
	refreshCtx func(ctx context.Context, rt string) (Session, error)
	signUpErr  error
	signOutErr error

	refreshCalls atomic.Int32
	signOutCalls atomic.Int32
	revoked      []string
	mu           sync.Mutex
}

func (f *fakeAuth) SignInWithPassword(_ context.Context, email, password string) (Session, error) {
	return f.signIn(email, password)
}

func (f *fakeAuth) Refresh(ctx context.Context, rt string) (Session, error) {
	f.refreshCalls.Add(1)
	if f.refreshCtx != nil {
		return f.refreshCtx(ctx, rt)
	}
	return f.refresh(rt)
}

func (f *fakeAuth) SignUp(context.Context, string, string) error { return f.signUpErr }

func (f *fakeAuth) SignOut(_ context.Context, at string) error {
	f.signOutCalls.Add(1)
	f.mu.Lock()
	f.revoked = append(f.revoked, at)
	f.mu.Unlock()
	return f.signOutErr
}

func future() time.Time { return time.Now().Add(time.Hour) }

func TestCredentialWithoutSessionIsAbsent(t *testing.T) {
	store := NewStore(&fakeAuth{}, NewMemoryStorage())

	cred, ok := store.Bind("tab-1").Credential(context.Background())

	assert.False(t, ok)
	assert.Empty(t, cred)
}

func TestSignInThenCredential(t *testing.T) {
	auth := &fakeAuth{signIn: func(email, password string) (Session, error) {
		return Session{AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: future()}, nil
	}}
	store := NewStore(auth, NewMemoryStorage())
	tab := store.Bind("tab-1")

	token, err := tab.SignIn(context.Background(), "a@b.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, "at-1", token)

	cred, ok := tab.Credential(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "at-1", cred)

	_, ok = store.Bind("tab-2").Credential(context.Background())
	assert.False(t, ok, "sessions are per tab")
}

func TestSignInFailurePropagatesAuthError(t *testing.T) {
	want := &AuthError{Status: 400, Code: "invalid_grant", Message: "Invalid login credentials"}
	auth := &fakeAuth{signIn: func(string, string) (Session, error) { return Session{}, want }}
	storage := NewMemoryStorage()
	tab := NewStore(auth, storage).Bind("tab-1")

	_, err := tab.SignIn(context.Background(), "a@b.test", "bad")

	assert.ErrorIs(t, err, want)
	_, ok, _ := storage.Load(context.Background(), "tab-1")
	assert.False(t, ok)
}

func TestExpiredCredentialIsRefreshedAndPersisted(t *testing.T) {
	auth := &fakeAuth{refresh: func(rt string) (Session, error) {
		assert.Equal(t, "rt-1", rt)
		return Session{AccessToken: "at-2", ExpiresAt: future()}, nil
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(-time.Minute), UserID: "u1",
	}))
	tab := NewStore(auth, storage).Bind("tab-1")

	cred, ok := tab.Credential(context.Background())

	require.True(t, ok)
	assert.Equal(t, "at-2", cred)
	saved, _, _ := storage.Load(context.Background(), "tab-1")
	assert.Equal(t, "at-2", saved.AccessToken)
	assert.Equal(t, "rt-1", saved.RefreshToken, "refresh token is kept when not rotated")
	assert.Equal(t, "u1", saved.UserID)
}

func TestCredentialNearExpiryRefreshes(t *testing.T) {
	auth := &fakeAuth{refresh: func(string) (Session, error) {
		return Session{AccessToken: "at-2", RefreshToken: "rt-2", ExpiresAt: future()}, nil
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(10 * time.Second),
	}))

	cred, ok := NewStore(auth, storage).Bind("tab-1").Credential(context.Background())

	assert.True(t, ok)
	assert.Equal(t, "at-2", cred)
}

func TestFailedRefreshFailsClosed(t *testing.T) {
	auth := &fakeAuth{refresh: func(string) (Session, error) {
		return Session{}, &AuthError{Status: 400, Code: "invalid_grant", Message: "revoked"}
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	cred, ok := NewStore(auth, storage).Bind("tab-1").Credential(context.Background())

	assert.False(t, ok)
	assert.Empty(t, cred)
	_, stored, _ := storage.Load(context.Background(), "tab-1")
	assert.False(t, stored, "unusable session is cleared")
}

func TestRefreshTimeoutKeepsSession(t *testing.T) {
	auth := &fakeAuth{refreshCtx: func(ctx context.Context, _ string) (Session, error) {
		<-ctx.Done()
		return Session{}, ctx.Err()
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	store := NewStore(auth, storage)
	store.refreshTimeout = 20 * time.Millisecond

	_, ok := store.Bind("tab-1").Credential(context.Background())

	assert.False(t, ok)
	saved, stored, _ := storage.Load(context.Background(), "tab-1")
	require.True(t, stored, "a timed-out refresh leaves the session for the next attempt")
	assert.Equal(t, "rt", saved.RefreshToken)
}

func TestRefreshSurvivesCancelledRequest(t *testing.T) {
	auth := &fakeAuth{refreshCtx: func(ctx context.Context, _ string) (Session, error) {
		if err := ctx.Err(); err != nil {
			return Session{}, err
		}
		return Session{AccessToken: "at-2", ExpiresAt: future()}, nil
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cred, ok := NewStore(auth, storage).Bind("tab-1").Credential(ctx)

	assert.True(t, ok)
	assert.Equal(t, "at-2", cred)
}

func TestRefreshTransportErrorKeepsSession(t *testing.T) {
	auth := &fakeAuth{refresh: func(string) (Session, error) {
		return Session{}, errors.New("dial tcp: connection refused")
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, ok := NewStore(auth, storage).Bind("tab-1").Credential(context.Background())

	assert.False(t, ok)
	_, stored, _ := storage.Load(context.Background(), "tab-1")
	assert.True(t, stored)
}

func TestRefreshProviderOutageKeepsSession(t *testing.T) {
	auth := &fakeAuth{refresh: func(string) (Session, error) {
		return Session{}, &AuthError{Status: 503, Code: "http_503", Message: "Authentication failed"}
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, ok := NewStore(auth, storage).Bind("tab-1").Credential(context.Background())

	assert.False(t, ok)
	_, stored, _ := storage.Load(context.Background(), "tab-1")
	assert.True(t, stored)
}

func TestExpiredWithoutRefreshTokenFailsClosed(t *testing.T) {
	auth := &fakeAuth{}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", ExpiresAt: time.Now().Add(-time.Minute),
	}))

	_, ok := NewStore(auth, storage).Bind("tab-1").Credential(context.Background())

	assert.False(t, ok)
	assert.Zero(t, auth.refreshCalls.Load())
}

func TestConcurrentRefreshesAreShared(t *testing.T) {
	release := make(chan struct{})
	auth := &fakeAuth{refresh: func(string) (Session, error) {
		<-release
		return Session{AccessToken: "at-2", ExpiresAt: future()}, nil
	}}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{
		AccessToken: "at-1", RefreshToken: "rt-1", ExpiresAt: time.Now().Add(-time.Minute),
	}))
	tab := NewStore(auth, storage).Bind("tab-1")

	var wg sync.WaitGroup
	results := make([]string, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = tab.Credential(context.Background())
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, "at-2", r)
	}
	assert.LessOrEqual(t, auth.refreshCalls.Load(), int32(4))
	assert.GreaterOrEqual(t, auth.refreshCalls.Load(), int32(1))
}

func TestSignUpDoesNotEstablishSession(t *testing.T) {
	storage := NewMemoryStorage()
	tab := NewStore(&fakeAuth{}, storage).Bind("tab-1")

	require.NoError(t, tab.SignUp(context.Background(), "a@b.test", "pw"))

	_, ok := tab.Credential(context.Background())
	assert.False(t, ok)
}

func TestSignOutClearsEvenWhenRevocationFails(t *testing.T) {
	auth := &fakeAuth{signOutErr: errors.New("provider down")}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{AccessToken: "at-1", ExpiresAt: future()}))
	tab := NewStore(auth, storage).Bind("tab-1")

	err := tab.SignOut(context.Background())

	assert.Error(t, err)
	_, ok := tab.Credential(context.Background())
	assert.False(t, ok)
	assert.Equal(t, []string{"at-1"}, auth.revoked)
}

func TestSignOutIsIdempotent(t *testing.T) {
	auth := &fakeAuth{}
	storage := NewMemoryStorage()
	require.NoError(t, storage.Save(context.Background(), "tab-1", Session{AccessToken: "at-1", ExpiresAt: future()}))
	tab := NewStore(auth, storage).Bind("tab-1")

	require.NoError(t, tab.SignOut(context.Background()))
	require.NoError(t, tab.SignOut(context.Background()))

	assert.Equal(t, int32(1), auth.signOutCalls.Load())
}
