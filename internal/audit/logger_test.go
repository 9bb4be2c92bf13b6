package audit

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	return &buf
}

func TestLog(t *testing.T) {
	buf := captureLog(t)

	Log(Event{
		Type:     EventTokenIssue,
		UserID:   "user-1",
		ClientID: "client-1",
		Details:  map[string]any{"replaced": int64(1), "digest": "0123abcd..."},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "security", entry["audit"])
	assert.Equal(t, "portal_token_issue", entry["event_type"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "client-1", entry["client_id"])
	assert.Equal(t, float64(1), entry["replaced"])
	assert.NotContains(t, entry, "token_id")
}

func TestLogFromRequest(t *testing.T) {
	buf := captureLog(t)

	req := httptest.NewRequest("POST", "/customer-portal/validate", nil)
	req.RemoteAddr = "203.0.113.7:41000"
	req.Header.Set("X-Forwarded-For", "10.9.0.1")
	req.Header.Set("User-Agent", "portal-test")

	LogFromRequest(req, Event{Type: EventTokenInvalid})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "203.0.113.7", entry["ip"])
	assert.Equal(t, "portal-test", entry["user_agent"])
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2")
	req.Header.Set("X-Real-IP", "198.51.100.3")
	assert.Equal(t, "192.0.2.1", ClientIP(req), "forwarded headers are not trusted here")

	req.RemoteAddr = "198.51.100.4"
	assert.Equal(t, "198.51.100.4", ClientIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", ClientIP(req))
}
