package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"jobcoach-web/internal/shared/telemetry"
)

// Provider talks to a GoTrue-compatible identity service under /auth/v1.
type Provider struct {
	BaseURL string
	AnonKey string
	HTTP    *http.Client
	Now     func() time.Time
}

// NewProvider builds a provider client rooted at baseURL (the project URL,
// without the /auth/v1 suffix).
func NewProvider(baseURL, anonKey string, timeout time.Duration) *Provider {
	return &Provider{
		BaseURL: strings.TrimRight(baseURL, "/") + "/auth/v1",
		AnonKey: anonKey,
		HTTP:    &http.Client{Timeout: timeout},
		Now:     time.Now,
	}
}

type credentialsBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignInWithPassword exchanges email and password for a session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (Session, error) {
	var tok tokenResponse
	if err := p.post(ctx, "/token?grant_type=password", "", credentialsBody{Email: email, Password: password}, &tok); err != nil {
		return Session{}, err
	}
	return p.toSession(tok)
}

// Refresh exchanges a refresh token for a new session.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var tok tokenResponse
	body := map[string]string{"refresh_token": refreshToken}
	if err := p.post(ctx, "/token?grant_type=refresh_token", "", body, &tok); err != nil {
		return Session{}, err
	}
	return p.toSession(tok)
}

// SignUp registers a new account. A session issued by the provider on
// signup is ignored; the user signs in explicitly afterwards.
func (p *Provider) SignUp(ctx context.Context, email, password string) error {
	return p.post(ctx, "/signup", "", credentialsBody{Email: email, Password: password}, nil)
}

// SignOut revokes accessToken at the provider.
func (p *Provider) SignOut(ctx context.Context, accessToken string) error {
	return p.post(ctx, "/logout", accessToken, nil, nil)
}

func (p *Provider) post(ctx context.Context, path, bearer string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode identity request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("build identity request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", p.AnonKey)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := p.HTTP.Do(req)
	if err != nil {
		telemetry.Warn("identity.request_failed", map[string]any{"path": path, "error": err.Error()})
		return fmt.Errorf("identity request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read identity response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		authErr := parseAuthError(resp.StatusCode, raw)
		telemetry.Info("identity.rejected", map[string]any{
			"path":   path,
			"status": resp.StatusCode,
			"code":   authErr.Code,
		})
		return authErr
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode identity response: %w", err)
	}
	return nil
}

func (p *Provider) toSession(tok tokenResponse) (Session, error) {
	if tok.AccessToken == "" {
		return Session{}, &AuthError{Status: http.StatusBadGateway, Code: "no_session", Message: defaultAuthMessage}
	}
	sess := Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		UserID:       tok.User.ID,
		Email:        tok.User.Email,
	}
	switch {
	case tok.ExpiresAt > 0:
		sess.ExpiresAt = time.Unix(tok.ExpiresAt, 0)
	case tok.ExpiresIn > 0:
		sess.ExpiresAt = p.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	}

	if sess.ExpiresAt.IsZero() || sess.UserID == "" {
		claims := jwt.RegisteredClaims{}
		if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err == nil {
			if sess.ExpiresAt.IsZero() && claims.ExpiresAt != nil {
				sess.ExpiresAt = claims.ExpiresAt.Time
			}
			if sess.UserID == "" {
				sess.UserID = claims.Subject
			}
		}
	}
	return sess, nil
}

func (p *Provider) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
