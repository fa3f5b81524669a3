package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://id.example.com/")
	t.Setenv("SESSION_STORE", "")
	t.Setenv("PRACTICE_LIMIT", "")
	t.Setenv("JOBS_PAGE_SIZE", "")
	t.Setenv("TAB_COOKIE", "")
	t.Setenv("MAX_TABS", "")
	t.Setenv("TRUSTED_PROXIES", "")

	cfg := Load()

	assert.Equal(t, "https://id.example.com", cfg.IdentityURL)
	assert.Equal(t, "memory", cfg.SessionStore)
	assert.Equal(t, 3, cfg.PracticeLimit)
	assert.Equal(t, 10, cfg.JobsPageSize)
	assert.Equal(t, "jc_tab", cfg.TabCookie)
	assert.Equal(t, 10000, cfg.MaxTabs)
	assert.Empty(t, cfg.TrustedProxies)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://id.example.com")
	t.Setenv("ENV", "prod")
	t.Setenv("SESSION_STORE", "PG")
	t.Setenv("DATABASE_URL", "postgres://localhost/jobcoach")
	t.Setenv("TAB_IDLE_TIMEOUT", "15m")
	t.Setenv("PRACTICE_LIMIT", "5")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8")

	cfg := Load()

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "postgres", cfg.SessionStore)
	assert.Equal(t, 15*time.Minute, cfg.TabIdleTimeout)
	assert.Equal(t, 5, cfg.PracticeLimit)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowOrigin)
	assert.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresStoreBackends(t *testing.T) {
	cfg := Config{APIURL: "http://api", IdentityURL: "http://id", SessionStore: "redis", PracticeLimit: 3, JobsPageSize: 10, MaxTabs: 100}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_URL")

	cfg.SessionStore = "postgres"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestInvalidNumbersFallBackToDefaults(t *testing.T) {
	t.Setenv("JOBS_PAGE_SIZE", "many")
	t.Setenv("REQUEST_TIMEOUT", "soon")

	cfg := Load()

	assert.Equal(t, 10, cfg.JobsPageSize)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}
