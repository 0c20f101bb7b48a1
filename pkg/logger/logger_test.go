package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l, flush := New(Options{Env: "production", Level: "warn", Output: &buf})
	defer flush()

	l.Info("dropped")
	l.Warn("kept", slog.String("k", "v"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestAuditLogger_MasksEmail(t *testing.T) {
	var buf bytes.Buffer
	al := NewAuditLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	al.Log(context.Background(), AuditEvent{
		EventType:     EventLogin,
		Email:         "alice@example.com",
		Success:       false,
		FailureReason: "invalid_credentials",
	})

	var rec struct {
		Level string         `json:"level"`
		Msg   string         `json:"msg"`
		Audit map[string]any `json:"audit"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "WARN", rec.Level)
	assert.Equal(t, "audit", rec.Msg)
	assert.Equal(t, "a****@*******.com", rec.Audit["email"])
	assert.NotContains(t, buf.String(), "alice@example.com")
}

func TestSanitizedEmail(t *testing.T) {
	assert.Equal(t, "u***@*******.com", SanitizedEmail("user@example.com"))
	assert.Equal(t, "a@*.io", SanitizedEmail("a@b.io"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("nope"))
	assert.Equal(t, "[invalid-email]", SanitizedEmail("@x.com"))
}

func TestSanitizeQueryString(t *testing.T) {
	assert.Equal(t, "", SanitizeQueryString(""))
	assert.Equal(t, "otp=REDACTED&page=2", SanitizeQueryString("page=2&otp=123456"))
	assert.Equal(t, "Email=REDACTED", SanitizeQueryString("Email=a%40b.com"))
	assert.Equal(t, "[REDACTED]", SanitizeQueryString("%zz"))
}
