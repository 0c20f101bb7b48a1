package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

type contextKey string

const (
	userContextKey  contextKey = "session_user"
	tokenContextKey contextKey = "session_token"
)

// SessionResolver maps a raw session token to the identity it grants.
// Missing or expired sessions return models.ErrUnauthorized.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*models.SessionUser, error)
}

// RequireSession rejects requests without an active session with 401 and
// stores the resolved identity in the request context.
func RequireSession(codec *SessionCodec, resolver SessionResolver, cookies CookieConfig, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value, ok := GetSessionCookie(r, cookies)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			token, err := codec.Open(value)
			if err != nil {
				ClearSessionCookie(w, cookies)
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			user, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, models.ErrUnauthorized) {
					logger.Error("session lookup failed", slog.Any("error", err))
					pkghttp.WriteInternalError(w)
					return
				}
				ClearSessionCookie(w, cookies)
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			ctx := WithUser(r.Context(), user)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func WithUser(ctx context.Context, user *models.SessionUser) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func GetUserFromContext(ctx context.Context) (*models.SessionUser, bool) {
	user, ok := ctx.Value(userContextKey).(*models.SessionUser)
	return user, ok && user != nil
}

// GetSessionToken returns the raw token of the authenticated request.
func GetSessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok && token != ""
}
