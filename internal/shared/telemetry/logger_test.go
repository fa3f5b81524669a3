package telemetry

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInfoWritesJSONLine(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Info("auth.login", map[string]any{"tab_id": "tab-1", "status": 200})

	var payload map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload))
	assert.Equal(t, "auth.login", payload["msg"])
	assert.Equal(t, "INFO", payload["level"])
	assert.Equal(t, "tab-1", payload["tab_id"])
	assert.EqualValues(t, 200, payload["status"])
	assert.Contains(t, payload, "ts")
}

func TestErrorAndWarnLevels(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	Warn("w", nil)
	Error("e", map[string]any{"err": "boom"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"WARN"`)
	assert.Contains(t, lines[1], `"level":"ERROR"`)
	assert.Contains(t, lines[1], `"err":"boom"`)
}

func TestLoggerBacksStdlibLogger(t *testing.T) {
	var buf bytes.Buffer
	restore := SetOutput(&buf)
	defer restore()

	slog.NewLogLogger(Logger().Handler(), slog.LevelError).Print("http: TLS handshake error")

	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), "TLS handshake error")
}
