package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobcoach-web/internal/guard"
	"jobcoach-web/internal/shared/telemetry"
	"jobcoach-web/internal/tabs"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set(tabs.TabIDKey, "tab-1")
		c.Next()
	}, Logging())
	router.GET("/jobs/:id", func(c *gin.Context) {
		c.Set(guard.UserIDKey, "u1")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodGet, "/jobs/j1", nil)
	req.Header.Set("X-Request-Id", "req-7")
	router.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &payload))

	for _, key := range []string{"request_id", "tab_id", "user_id", "duration_ms", "status", "route"} {
		assert.Contains(t, payload, key)
	}
	assert.Equal(t, "request.complete", payload["msg"])
	assert.Equal(t, "req-7", payload["request_id"])
	assert.Equal(t, "tab-1", payload["tab_id"])
	assert.Equal(t, "u1", payload["user_id"])
	assert.Equal(t, "/jobs/:id", payload["route"])
}

func TestRequestIDGeneratedWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID())
	var seen string
	router.GET("/", func(c *gin.Context) { seen = RequestIDFromContext(c) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, resp.Header().Get("X-Request-Id"))
}

func TestRecoveryReturns500(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	restore := telemetry.SetOutput(&buf)
	defer restore()

	router := gin.New()
	router.Use(RequestID(), Recovery())
	router.GET("/boom", func(c *gin.Context) { panic("boom") })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, buf.String(), `"msg":"panic"`)
}
