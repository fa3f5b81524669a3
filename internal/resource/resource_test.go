package resource

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZeroResourceIsPending(t *testing.T) {
	var r Resource[int]
	assert.Equal(t, Pending, r.State())
}

func TestLoadStoresValue(t *testing.T) {
	scope := NewScope(context.Background())
	var r Resource[string]

	err := Load(context.Background(), scope, &r, func(context.Context) (string, error) { return "jobs", nil })

	require.NoError(t, err)
	state, v, rerr := r.Get()
	assert.Equal(t, Ready, state)
	assert.Equal(t, "jobs", v)
	assert.NoError(t, rerr)
}

func TestLoadStoresFailure(t *testing.T) {
	scope := NewScope(context.Background())
	var r Resource[string]
	boom := errors.New("boom")

	err := Load(context.Background(), scope, &r, func(context.Context) (string, error) { return "", boom })

	assert.ErrorIs(t, err, boom)
	state, _, rerr := r.Get()
	assert.Equal(t, Failed, state)
	assert.ErrorIs(t, rerr, boom)
}

func TestLateResultAfterUnmountIsDropped(t *testing.T) {
	scope := NewScope(context.Background())
	var r Resource[string]
	started := make(chan struct{})

	done := make(chan error)
	go func() {
		done <- Load(context.Background(), scope, &r, func(ctx context.Context) (string, error) {
			close(started)
			<-ctx.Done()
			return "late", nil
		})
	}()
	<-started
	scope.Close()

	assert.ErrorIs(t, <-done, ErrUnmounted)
	assert.Equal(t, Pending, r.State())
}

func TestBindCancelsWithRequestContext(t *testing.T) {
	scope := NewScope(context.Background())
	req, cancelReq := context.WithCancel(context.Background())

	ctx, cancel := scope.Bind(req)
	defer cancel()
	cancelReq()

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled")
	}
	assert.True(t, scope.Alive())
}

func TestCloseIsIdempotent(t *testing.T) {
	scope := NewScope(context.Background())
	scope.Close()
	scope.Close()

	assert.False(t, scope.Alive())
	assert.False(t, scope.Apply(func() { t.Fatal("ran after close") }))
}

func TestFailKeepsPreviousValue(t *testing.T) {
	var r Resource[[]int]
	r.Set([]int{1, 2})
	r.Fail(errors.New("x"))

	assert.Equal(t, Failed, r.State())
	assert.Equal(t, []int{1, 2}, r.Value())
}

func TestActionRejectsConcurrentRun(t *testing.T) {
	var a Action
	inside := make(chan struct{})
	release := make(chan struct{})

	go func() {
		_ = a.Run(func() error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside

	assert.True(t, a.Running())
	assert.ErrorIs(t, a.Run(func() error { return nil }), ErrBusy)
	close(release)
	require.Eventually(t, func() bool { return !a.Running() }, time.Second, time.Millisecond)
	assert.NoError(t, a.Run(func() error { return nil }))
}

func TestStateTextRoundTrip(t *testing.T) {
	for _, s := range []State{Pending, Ready, Failed} {
		text, err := s.MarshalText()
		require.NoError(t, err)
		var got State
		require.NoError(t, got.UnmarshalText(text))
		assert.Equal(t, s, got)
	}
	var bad State
	assert.Error(t, bad.UnmarshalText([]byte("done")))
}
