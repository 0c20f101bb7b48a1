package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

// genericCodeSentMessage is returned by every enumeration-safe endpoint,
// whatever happened to the address.
const genericCodeSentMessage = "If an account exists for this email, a code has been sent."

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string, meta services.RequestMeta) (*models.User, error)
	VerifyEmail(ctx context.Context, email, code string) error
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) error
	Login(ctx context.Context, email, password string, meta services.RequestMeta) (*services.LoginResult, error)
	Logout(ctx context.Context, token, userPublicID string) error
	CurrentUser(ctx context.Context, userID int64) (*models.User, error)
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	codec    *auth.SessionCodec
	cookies  auth.CookieConfig
	ipConfig *pkghttp.IPConfig
	logger   *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthServiceInterface, codec *auth.SessionCodec, cookies auth.CookieConfig, ipConfig *pkghttp.IPConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:  service,
		codec:    codec,
		cookies:  cookies,
		ipConfig: ipConfig,
		logger:   logger,
	}
}

// Request DTOs

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type EmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,email"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// UserEnvelope wraps the owner's profile in responses.
type UserEnvelope struct {
	Message string          `json:"message,omitempty"`
	User    *models.Profile `json:"user"`
}

// decode reads and validates a JSON body into dst, answering the request
// itself on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := pkghttp.DecodeJSON(w, r, dst); err != nil {
		writeDecodeError(w, err)
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		writeDecodeError(w, err)
		return false
	}
	return true
}

func (h *AuthHandler) meta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IPAddress: pkghttp.ExtractClientIP(r, h.ipConfig),
		UserAgent: r.UserAgent(),
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password, h.meta(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	profile := user.ToProfile()
	pkghttp.WriteJSON(w, http.StatusCreated, UserEnvelope{
		Message: "Registration successful. Check your email for a verification code.",
		User:    &profile,
	})
}

// VerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyEmail(r.Context(), req.Email, req.OTP); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusOK, "Email verified successfully. You can now log in.")
}

// ResendVerification handles POST /auth/resend-verification
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusAccepted, genericCodeSentMessage)
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusAccepted, genericCodeSentMessage)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusOK, "Password reset successfully. Please log in with your new password.")
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password, h.meta(r))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	sealed, err := h.codec.Seal(result.Token, time.Now(), result.ExpiresAt)
	if err != nil {
		h.logger.Error("failed to seal session cookie", slog.Any("error", err))
		pkghttp.WriteInternalError(w)
		return
	}
	auth.SetSessionCookie(w, sealed, result.ExpiresAt, h.cookies)

	profile := result.User.ToProfile()
	pkghttp.WriteJSON(w, http.StatusOK, UserEnvelope{Message: "Login successful", User: &profile})
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.GetUserFromContext(r.Context())
	token, ok := auth.GetSessionToken(r.Context())
	if !ok || user == nil {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Logout(r.Context(), token, user.PublicID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteMessage(w, http.StatusOK, "Logged out successfully")
}

// Session handles GET /auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return
	}

	current, err := h.service.CurrentUser(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	profile := current.ToProfile()
	pkghttp.WriteJSON(w, http.StatusOK, UserEnvelope{User: &profile})
}
