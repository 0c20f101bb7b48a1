package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
)

func TestSessionCodec_RoundTrip(t *testing.T) {
	codec := auth.NewSessionCodec("0123456789abcdef0123456789abcdef")
	now := time.Now()

	sealed, err := codec.Seal("opaque-token", now, now.Add(time.Hour))
	require.NoError(t, err)

	token, err := codec.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token)
}

func TestSessionCodec_Rejects(t *testing.T) {
	codec := auth.NewSessionCodec("0123456789abcdef0123456789abcdef")
	other := auth.NewSessionCodec("ffffffffffffffffffffffffffffffff")
	now := time.Now()

	expired, err := codec.Seal("t", now.Add(-2*time.Hour), now.Add(-time.Hour))
	require.NoError(t, err)
	_, err = codec.Open(expired)
	assert.ErrorIs(t, err, auth.ErrInvalidSessionCookie)

	forged, err := other.Seal("t", now, now.Add(time.Hour))
	require.NoError(t, err)
	_, err = codec.Open(forged)
	assert.ErrorIs(t, err, auth.ErrInvalidSessionCookie)

	_, err = codec.Open("garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidSessionCookie)
}

func TestHashToken(t *testing.T) {
	assert.Len(t, auth.HashToken("abc"), 64)
	assert.Equal(t, auth.HashToken("abc"), auth.HashToken("abc"))
	assert.NotEqual(t, auth.HashToken("abc"), auth.HashToken("abd"))
}

func TestSessionCookie(t *testing.T) {
	cfg := auth.CookieConfig{Name: "sid", Secure: true, SameSite: "lax"}

	w := httptest.NewRecorder()
	auth.SetSessionCookie(w, "sealed", time.Now().Add(48*time.Hour), cfg)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, "sid", c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.InDelta(t, 48*3600, c.MaxAge, 5)

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(c)
	value, ok := auth.GetSessionCookie(req, cfg)
	assert.True(t, ok)
	assert.Equal(t, "sealed", value)

	w = httptest.NewRecorder()
	auth.ClearSessionCookie(w, cfg)
	assert.Equal(t, -1, w.Result().Cookies()[0].MaxAge)
}
