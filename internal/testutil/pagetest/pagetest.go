// Package pagetest wires a tab registry, a fake session and a fake backend
// for page handler tests.
package pagetest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"jobcoach-web/internal/api"
	"jobcoach-web/internal/authstate"
	"jobcoach-web/internal/guard"
	"jobcoach-web/internal/tabs"
)

const cookieName = "jc_tab"

// Session is an in-memory session store.
type Session struct {
	mu         sync.Mutex
	Token      string
	SignInErr  error
	SignUpErr  error
	SignOutErr error
	SignUps    int
}

func (s *Session) Credential(context.Context) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Token, s.Token != ""
}

func (s *Session) SignIn(_ context.Context, email, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SignInErr != nil {
		return "", s.SignInErr
	}
	s.Token = "tok-" + email
	return s.Token, nil
}

func (s *Session) SignUp(context.Context, string, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SignUps++
	return s.SignUpErr
}

func (s *Session) SignOut(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token = ""
	return s.SignOutErr
}

// Backend is a fake API server that counts calls per "METHOD path".
type Backend struct {
	Mux *http.ServeMux

	mu    sync.Mutex
	calls map[string]int
}

func (b *Backend) Handle(pattern string, h http.HandlerFunc) { b.Mux.HandleFunc(pattern, h) }

func (b *Backend) Calls(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func (b *Backend) TotalCalls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.calls {
		n += v
	}
	return n
}

// Env is one browser tab talking to a router.
type Env struct {
	T       *testing.T
	Router  *gin.Engine
	Public  *gin.RouterGroup
	Guarded *gin.RouterGroup
	Client  *api.Client
	Backend *Backend
	Session *Session

	cookie *http.Cookie
}

// New builds an environment. The session starts signed in when token is set;
// the backend answers /auth/me for any bearer.
func New(t *testing.T, token string) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &Backend{Mux: http.NewServeMux(), calls: make(map[string]int)}
	backend.Handle("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		email := strings.TrimPrefix(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "), "tok-")
		_, _ = io.WriteString(w, `{"id":"u1","email":"`+email+`"}`)
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		backend.mu.Lock()
		backend.calls[r.Method+" "+r.URL.Path]++
		backend.mu.Unlock()
		backend.Mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, 5*time.Second)
	session := &Session{Token: token}
	reg := tabs.NewRegistry(context.Background(), time.Hour, func(ctx context.Context, _ string) *authstate.Context {
		return authstate.New(ctx, session, client)
	})
	t.Cleanup(reg.Close)

	router := gin.New()
	router.Use(tabs.Middleware(reg, cookieName, false))
	return &Env{
		T:       t,
		Router:  router,
		Public:  router.Group(""),
		Guarded: router.Group("", guard.Middleware(time.Second)),
		Client:  client,
		Backend: backend,
		Session: session,
	}
}

// Get issues a JSON-preferring GET in this tab.
func (e *Env) Get(path string) *httptest.ResponseRecorder {
	return e.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// Post submits a form in this tab.
func (e *Env) Post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

// Send issues a prepared request in this tab.
func (e *Env) Send(req *http.Request) *httptest.ResponseRecorder {
	return e.do(req)
}

func (e *Env) do(req *http.Request) *httptest.ResponseRecorder {
	e.T.Helper()
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	resp := httptest.NewRecorder()
	e.Router.ServeHTTP(resp, req)
	for _, c := range resp.Result().Cookies() {
		if c.Name == cookieName {
			e.cookie = c
		}
	}
	return resp
}
