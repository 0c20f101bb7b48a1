package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.Auth.OTPTTL)
	assert.Equal(t, 5, cfg.RateLimit.OTPRequests)
	assert.Equal(t, 10*time.Minute, cfg.RateLimit.OTPWindow)
	assert.Equal(t, int64(2<<20), cfg.Storage.MaxAvatarSize)
	assert.Equal(t, "log", cfg.Email.Provider)
	assert.False(t, cfg.Server.IsProduction())
}

func TestLoad_RequiresSecrets(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("DB_PASSWORD", "test")
	_, err := Load()
	assert.ErrorContains(t, err, "SESSION_SECRET is required")

	t.Setenv("SESSION_SECRET", "test-secret-32-characters-long!")
	t.Setenv("DB_PASSWORD", "")
	_, err = Load()
	assert.ErrorContains(t, err, "DB_PASSWORD is required")
}

func TestLoad_SessionSecretStrength(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		secret  string
		wantErr bool
	}{
		{"dev minimum", "development", "0123456789abcdef", false},
		{"dev too short", "development", "short", true},
		{"prod needs 32", "production", "0123456789abcdef0123", true},
		{"prod ok", "production", "0123456789abcdef0123456789abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSessionSecret(tt.secret, tt.env)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_ServerTimeouts(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_READ_TIMEOUT", "25s")
	t.Setenv("SERVER_IDLE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout, "invalid duration falls back to default")
}

func TestLoad_EmailProvider(t *testing.T) {
	setRequired(t)

	t.Setenv("EMAIL_PROVIDER", "Resend")
	_, err := Load()
	assert.ErrorContains(t, err, "RESEND_API_KEY")

	t.Setenv("RESEND_API_KEY", "re_test")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "resend", cfg.Email.Provider)

	t.Setenv("EMAIL_PROVIDER", "pigeon")
	_, err = Load()
	assert.Error(t, err)
}

func TestParseAllowedOrigins_Production(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, parseAllowedOrigins("production"))

	t.Setenv("ALLOWED_ORIGINS", "")
	assert.Empty(t, parseAllowedOrigins("production"))
}
