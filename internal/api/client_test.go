package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestDoSetsBearerWhenCredentialPresent(t *testing.T) {
	var gotAuth, gotType string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		_, _ = io.WriteString(w, `{"id":"u1","email":"a@b.test"}`)
	})

	var user User
	require.NoError(t, c.Do(context.Background(), "/auth/me", "tok-123", nil, &user))

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, "application/json", gotType)
	assert.Equal(t, User{ID: "u1", Email: "a@b.test"}, user)
}

func TestDoOmitsAuthorizationWithoutCredential(t *testing.T) {
	var present bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present = r.Header["Authorization"]
		_, _ = io.WriteString(w, `[]`)
	})

	require.NoError(t, c.Do(context.Background(), "/jobs", "", nil, nil))
	assert.False(t, present)
}

func TestDoMergesCallerHeaders(t *testing.T) {
	var gotType, gotExtra string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotExtra = r.Header.Get("X-Extra")
		_, _ = io.WriteString(w, `{}`)
	})

	err := c.Do(context.Background(), "/x", "", &Options{
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "text/plain", "X-Extra": "1"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "text/plain", gotType)
	assert.Equal(t, "1", gotExtra)
}

func TestDoNonSuccessCarriesBodyVerbatim(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, "Invalid company")
	})

	err := c.Do(context.Background(), "/jobs", "tok", &Options{Method: http.MethodPost, JSON: map[string]string{}}, nil)

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusBadRequest, reqErr.Status)
	assert.Equal(t, "Invalid company", err.Error())
}

func TestDoEmptyErrorBodyUsesFallback(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := c.Do(context.Background(), "/jobs", "tok", nil, nil)

	require.Error(t, err)
	assert.Equal(t, "API request failed", err.Error())
}

func TestDoTreatsUnauthorizedLikeServerError(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusInternalServerError} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, "nope")
		})
		err := c.Do(context.Background(), "/jobs", "tok", nil, nil)
		assert.True(t, IsRequestError(err), "status %d", status)
	}
}

func TestDoNeverRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_ = c.Do(context.Background(), "/jobs", "tok", nil, nil)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoInvalidJSONIsParseError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>oops</html>")
	})

	var out map[string]any
	err := c.Do(context.Background(), "/reports/overview", "tok", nil, &out)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "/reports/overview", parseErr.Path)

	err = c.Do(context.Background(), "/reports/overview", "tok", nil, nil)
	assert.True(t, errors.As(err, &parseErr))
}

func TestDoEmptySuccessWithoutTarget(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, c.Do(context.Background(), "/jobs/1", "tok", &Options{Method: http.MethodDelete}, nil))
}

func TestDoHonorsContextCancellation(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Do(ctx, "/jobs", "tok", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
