package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

const otpLimitMessage = "Too many requests to resend OTP from this IP, please try again after 10 minutes."

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Message  string
}

// OTPRateLimit is applied to every endpoint that sends a code by email.
func OTPRateLimit(requests int, window time.Duration) RateLimitConfig {
	if requests <= 0 {
		requests = 5
	}
	if window <= 0 {
		window = 10 * time.Minute
	}
	return RateLimitConfig{Requests: requests, Window: window, Message: otpLimitMessage}
}

// LoginRateLimit guards credential checks.
func LoginRateLimit(requests int, window time.Duration) RateLimitConfig {
	if requests <= 0 {
		requests = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return RateLimitConfig{Requests: requests, Window: window, Message: "Too many login attempts, please try again later."}
}

func limitHandler(message string) http.HandlerFunc {
	if message == "" {
		message = "Too many requests"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteTooManyRequests(w, message)
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(limitHandler(config.Message)),
	)
}

// RateLimitBySession buckets authenticated requests per account, falling
// back to the client IP when no session is present.
func RateLimitBySession(config RateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if user, ok := auth.GetUserFromContext(r.Context()); ok {
				return "user:" + user.PublicID, nil
			}
			return httprate.KeyByRealIP(r)
		}),
		httprate.WithLimitHandler(limitHandler(config.Message)),
	)
}
