package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

// multipartOverhead leaves room for boundaries and the text fields around
// the avatar part.
const multipartOverhead = 64 << 10

// AccountServiceInterface defines the interface for account business logic
type AccountServiceInterface interface {
	GetProfile(ctx context.Context, userID int64) (*models.User, error)
	PublicProfile(ctx context.Context, publicID string) (models.PublicProfile, error)
	UpdateProfile(ctx context.Context, userID int64, upd services.ProfileUpdate) (*models.User, error)
	RequestEmailChange(ctx context.Context, userID int64, newEmail, currentPassword string) error
	ResendEmailChange(ctx context.Context, userID int64) error
	VerifyEmailChange(ctx context.Context, userID int64, code string) error
	DeleteAccount(ctx context.Context, userID int64) error
}

// UserHandler handles profile, email change and account deletion requests
type UserHandler struct {
	service       AccountServiceInterface
	cookies       auth.CookieConfig
	maxAvatarSize int64
	logger        *slog.Logger
}

func NewUserHandler(service AccountServiceInterface, cookies auth.CookieConfig, maxAvatarSize int64, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		service:       service,
		cookies:       cookies,
		maxAvatarSize: maxAvatarSize,
		logger:        logger,
	}
}

type UpdateProfileRequest struct {
	Name *string `json:"name" validate:"omitempty,max=100"`
}

type EmailChangeRequest struct {
	NewEmail        string `json:"newEmail" validate:"required,email,max=254"`
	CurrentPassword string `json:"currentPassword" validate:"required"`
}

type OTPRequest struct {
	OTP string `json:"otp" validate:"required,len=6,numeric"`
}

func requireUser(w http.ResponseWriter, r *http.Request) (*models.SessionUser, bool) {
	user, ok := auth.GetUserFromContext(r.Context())
	if !ok {
		pkghttp.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return user, true
}

// GetMe handles GET /users/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	current, err := h.service.GetProfile(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	profile := current.ToProfile()
	pkghttp.WriteJSON(w, http.StatusOK, UserEnvelope{User: &profile})
}

// GetUser handles GET /users/{userId}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	profile, err := h.service.PublicProfile(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"user": profile})
}

// UpdateMe handles PATCH /users/me. It accepts either a multipart form with
// an optional profileImage part or a JSON body carrying only the name.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	var upd services.ProfileUpdate
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		cleanup, ok := h.parseProfileForm(w, r, &upd)
		if !ok {
			return
		}
		defer cleanup()
	} else {
		var req UpdateProfileRequest
		if !decode(w, r, &req) {
			return
		}
		upd.Name = req.Name
	}

	updated, err := h.service.UpdateProfile(r.Context(), user.UserID, upd)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	profile := updated.ToProfile()
	pkghttp.WriteJSON(w, http.StatusOK, UserEnvelope{Message: "Profile updated", User: &profile})
}

func (h *UserHandler) parseProfileForm(w http.ResponseWriter, r *http.Request, upd *services.ProfileUpdate) (func(), bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarSize+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxAvatarSize + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			pkghttp.WritePayloadTooLarge(w, "Profile image exceeds the maximum allowed size")
			return nil, false
		}
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return nil, false
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	if values, present := r.MultipartForm.Value["name"]; present && len(values) > 0 {
		name := values[0]
		upd.Name = &name
	}

	file, header, err := r.FormFile("profileImage")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		cleanup()
		pkghttp.WriteBadRequest(w, "Invalid profile image")
		return nil, false
	default:
		upd.Image = &services.ProfileImage{
			Body:        file,
			Size:        header.Size,
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
		}
		closeAll := cleanup
		cleanup = func() {
			_ = file.Close()
			closeAll()
		}
	}
	return cleanup, true
}

// DeleteMe handles DELETE /users/me
func (h *UserHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteAccount(r.Context(), user.UserID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteMessage(w, http.StatusOK, "Account deleted")
}

// RequestEmailChange handles POST /users/me/email-change
func (h *UserHandler) RequestEmailChange(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req EmailChangeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.RequestEmailChange(r.Context(), user.UserID, strings.TrimSpace(req.NewEmail), req.CurrentPassword); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusAccepted, "A confirmation code has been sent to the new email address.")
}

// ResendEmailChange handles POST /users/me/email-change/resend
func (h *UserHandler) ResendEmailChange(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.ResendEmailChange(r.Context(), user.UserID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusAccepted, "A new confirmation code has been sent.")
}

// VerifyEmailChange handles POST /users/me/email-change/verify
func (h *UserHandler) VerifyEmailChange(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req OTPRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.service.VerifyEmailChange(r.Context(), user.UserID, req.OTP); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	current, err := h.service.GetProfile(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	profile := current.ToProfile()
	pkghttp.WriteJSON(w, http.StatusOK, UserEnvelope{Message: "Email address updated", User: &profile})
}
