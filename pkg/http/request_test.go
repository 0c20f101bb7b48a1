package http_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

func TestExtractClientIP(t *testing.T) {
	proxies := pkghttp.NewIPConfig([]string{"10.0.0.0/8", "fd00::/8", "not-a-cidr"})

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		config     *pkghttp.IPConfig
		want       string
	}{
		{"direct client ignores spoofed headers", "203.0.113.10:54321", "1.2.3.4", "192.168.1.1", proxies, "203.0.113.10"},
		{"trusted proxy uses first forwarded ip", "10.0.0.5:443", "203.0.113.42, 10.0.0.5", "", proxies, "203.0.113.42"},
		{"trusted proxy skips garbage entries", "10.0.0.5:443", "garbage, 198.51.100.7", "", proxies, "198.51.100.7"},
		{"trusted proxy falls back to x-real-ip", "10.0.0.5:443", "", "198.51.100.9", proxies, "198.51.100.9"},
		{"ipv6 trusted proxy", "[fd00::1]:443", "2001:db8::1", "", proxies, "2001:db8::1"},
		{"nil config never trusts headers", "203.0.113.10:1", "1.2.3.4", "", nil, "203.0.113.10"},
		{"empty config never trusts headers", "10.0.0.5:1", "1.2.3.4", "", pkghttp.NewIPConfig(nil), "10.0.0.5"},
		{"localhost claim is ignored", "203.0.113.10:1", "127.0.0.1", "", proxies, "203.0.113.10"},
		{"remote addr without port", "203.0.113.10", "", "", proxies, "203.0.113.10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, pkghttp.ExtractClientIP(req, tt.config))
		})
	}
}

func TestExtractClientIP_LiteralConfig(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.1.2.3:80"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")

	cfg := &pkghttp.IPConfig{TrustedProxies: []string{"10.0.0.0/8"}}
	assert.Equal(t, "203.0.113.1", pkghttp.ExtractClientIP(req, cfg))
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"Docs"}`))
	require.NoError(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &dst))
	assert.Equal(t, "Docs", dst.Name)

	req = httptest.NewRequest("POST", "/", strings.NewReader(""))
	assert.ErrorIs(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &dst), pkghttp.ErrEmptyBody)

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))
	assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &dst))

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
	assert.Error(t, pkghttp.DecodeJSON(httptest.NewRecorder(), req, &dst))
}
