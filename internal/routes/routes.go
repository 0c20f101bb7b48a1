package routes

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/config"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/handlers"
	middlewareCustom "github.com/lalithsaicharan00/cloud-storage-api/internal/middleware"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

// APIPrefix is where every resource route is mounted.
const APIPrefix = "/api/v1"

// Handlers groups the HTTP handlers of each resource.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Users   *handlers.UserHandler
	Folders *handlers.FolderHandler
	Files   *handlers.FileHandler
}

// Options carries what the router needs besides the handlers.
type Options struct {
	Env            string
	AllowedOrigins []string
	Codec          *auth.SessionCodec
	Sessions       auth.SessionResolver
	Cookies        auth.CookieConfig
	RateLimit      config.RateLimitConfig
	// Health reports whether dependencies are reachable. Nil means healthy.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

// NewRouter builds the full application router.
func NewRouter(h Handlers, opts Options) chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.Metrics())
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.CORSConfig{AllowedOrigins: opts.AllowedOrigins}))
	router.Use(middlewareCustom.SecureLogger(opts.Logger))
	router.Use(middleware.Recoverer)

	router.Get("/health", healthHandler(opts.Health))
	router.Method(http.MethodGet, "/metrics", middlewareCustom.MetricsHandler())

	router.Route(APIPrefix, func(r chi.Router) {
		RegisterRoutes(r, h, opts)
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteNotFound(w, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})
	return router
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	otpLimit := middlewareCustom.RateLimitByIP(middlewareCustom.OTPRateLimit(opts.RateLimit.OTPRequests, opts.RateLimit.OTPWindow))
	accountOTPLimit := middlewareCustom.RateLimitBySession(middlewareCustom.OTPRateLimit(opts.RateLimit.OTPRequests, opts.RateLimit.OTPWindow))
	loginLimit := middlewareCustom.RateLimitByIP(middlewareCustom.LoginRateLimit(opts.RateLimit.LoginRequests, opts.RateLimit.LoginWindow))
	requireSession := auth.RequireSession(opts.Codec, opts.Sessions, opts.Cookies, opts.Logger)

	// Public routes - no session required
	router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))

		r.With(otpLimit).Post("/auth/register", h.Auth.Register)
		r.Post("/auth/verify-email", h.Auth.VerifyEmail)
		r.With(otpLimit).Post("/auth/resend-verification", h.Auth.ResendVerification)
		r.With(otpLimit).Post("/auth/forgot-password", h.Auth.ForgotPassword)
		r.Post("/auth/reset-password", h.Auth.ResetPassword)
		r.With(loginLimit).Post("/auth/login", h.Auth.Login)
	})

	// Protected routes - active session required
	router.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Post("/auth/logout", h.Auth.Logout)
			r.Get("/auth/session", h.Auth.Session)

			r.Get("/users/me", h.Users.GetMe)
			r.Patch("/users/me", h.Users.UpdateMe)
			r.Delete("/users/me", h.Users.DeleteMe)
			r.With(accountOTPLimit).Post("/users/me/email-change", h.Users.RequestEmailChange)
			r.With(accountOTPLimit).Post("/users/me/email-change/resend", h.Users.ResendEmailChange)
			r.Post("/users/me/email-change/verify", h.Users.VerifyEmailChange)
			r.Get("/users/{userId}", h.Users.GetUser)

			r.Post("/folders", h.Folders.Create)
			r.Get("/folders", h.Folders.List)
			r.Get("/folders/{id}", h.Folders.Get)
			r.Delete("/folders/{id}", h.Folders.Delete)

			r.Get("/files/{id}", h.Files.Get)
			r.Delete("/files/{id}", h.Files.Delete)
		})

		// Transfers run as long as the server write timeout allows.
		r.Post("/files/upload", h.Files.Upload)
		r.Get("/files/{id}/download", h.Files.Download)
	})
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				pkghttp.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "down"})
				return
			}
		}
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "database": "up"})
	}
}
