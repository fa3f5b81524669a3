package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string
	APIURL          string
	IdentityURL     string
	IdentityAnonKey string
	SessionStore    string
	RedisURL        string
	DatabaseURL     string
	TabCookie       string
	TabIdleTimeout  time.Duration
	MaxTabs         int
	TrustedProxies  []string
	RequestTimeout  time.Duration
	MaxUploadBytes  int64
	PracticeLimit   int
	JobsPageSize    int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	identityURL := strings.TrimRight(getEnv("IDENTITY_URL", ""), "/")

	if env == "production" && identityURL == "" {
		log.Printf("IDENTITY_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "5173"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		APIURL:          strings.TrimRight(getEnv("API_URL", "https://ai-powered-job-application-interview-uk8s.onrender.com"), "/"),
		IdentityURL:     identityURL,
		IdentityAnonKey: getEnv("IDENTITY_ANON_KEY", ""),
		SessionStore:    normalizeSessionStore(getEnv("SESSION_STORE", "memory")),
		RedisURL:        getEnv("REDIS_URL", ""),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		TabCookie:       getEnv("TAB_COOKIE", "jc_tab"),
		TabIdleTimeout:  getDuration("TAB_IDLE_TIMEOUT", 2*time.Hour),
		MaxTabs:         getInt("MAX_TABS", 10000),
		TrustedProxies:  splitAndTrim(getEnv("TRUSTED_PROXIES", "")),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxUploadBytes:  int64(getInt("MAX_UPLOAD_BYTES", 5<<20)),
		PracticeLimit:   getInt("PRACTICE_LIMIT", 3),
		JobsPageSize:    getInt("JOBS_PAGE_SIZE", 10),
	}
}

// Validate reports configuration that cannot serve requests.
func (c Config) Validate() error {
	var errs []error
	if c.APIURL == "" {
		errs = append(errs, errors.New("API_URL is required"))
	}
	if c.IdentityURL == "" {
		errs = append(errs, errors.New("IDENTITY_URL is required"))
	}
	switch c.SessionStore {
	case "redis":
		if c.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required when SESSION_STORE=redis"))
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when SESSION_STORE=postgres"))
		}
	}
	if c.PracticeLimit < 1 {
		errs = append(errs, errors.New("PRACTICE_LIMIT must be at least 1"))
	}
	if c.MaxTabs < 1 {
		errs = append(errs, errors.New("MAX_TABS must be at least 1"))
	}
	if c.JobsPageSize < 1 {
		errs = append(errs, errors.New("JOBS_PAGE_SIZE must be at least 1"))
	}
	return errors.Join(errs...)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("config %s invalid int: %v", key, err)
		return def
	}
	return val
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("config %s invalid duration: %v", key, err)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeSessionStore(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "redis":
		return "redis"
	case "postgres", "pg":
		return "postgres"
	default:
		return "memory"
	}
}
