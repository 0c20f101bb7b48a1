package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkgauth "github.com/lalithsaicharan00/cloud-storage-api/pkg/auth"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

// ErrorResponse is the JSON body of an error reply.
type ErrorResponse = pkghttp.ErrorResponse

// badRequestMessage extracts the human part of a wrapped ErrBadRequest.
func badRequestMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), models.ErrBadRequest.Error()+": ")
	if msg == models.ErrBadRequest.Error() || msg == "" {
		return "Invalid request"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// writeDecodeError answers a body that could not be decoded or validated.
func writeDecodeError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		pkghttp.WriteValidationError(w, ve.Error())
	case errors.Is(err, pkghttp.ErrEmptyBody):
		pkghttp.WriteBadRequest(w, "Request body is required")
	default:
		pkghttp.WriteBadRequest(w, "Invalid request body")
	}
}

// writeServiceError maps service sentinels onto status codes. Anything
// unrecognised is logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var pv *pkgauth.PasswordValidationError
	switch {
	case errors.As(err, &pv):
		pkghttp.WriteValidationError(w, "password "+strings.Join(pv.Errors, ", "))
	case errors.Is(err, services.ErrFileTooLarge):
		pkghttp.WritePayloadTooLarge(w, "File exceeds the maximum allowed size")
	case errors.Is(err, services.ErrUnsupportedType):
		pkghttp.WriteUnsupportedMediaType(w, "File type not allowed")
	case errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteBadRequest(w, badRequestMessage(err))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, "Resource not found")
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, "Resource already exists")
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteUnauthorized(w, "Invalid email or password")
	case errors.Is(err, models.ErrUnauthorized):
		pkghttp.WriteUnauthorized(w, "Authentication required")
	case errors.Is(err, models.ErrEmailNotVerified):
		pkghttp.WriteForbidden(w, "account_not_verified", "Please verify your email address before continuing")
	case errors.Is(err, models.ErrRateLimited):
		pkghttp.WriteTooManyRequests(w, "A code was sent recently. Please wait before requesting another.")
	case errors.Is(err, models.ErrOTPExpired):
		pkghttp.WriteError(w, http.StatusBadRequest, "otp_expired", "The code has expired. Please request a new one.")
	case errors.Is(err, models.ErrOTPMismatch), errors.Is(err, models.ErrOTPNotIssued):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_otp", "The code is invalid")
	case errors.Is(err, models.ErrNoPendingEmailChange):
		pkghttp.WriteError(w, http.StatusBadRequest, "no_pending_email_change", "There is no pending email change")
	case errors.Is(err, models.ErrAlreadyVerified):
		pkghttp.WriteError(w, http.StatusBadRequest, "already_verified", "Email address is already verified")
	default:
		if !errors.Is(err, models.ErrInternalServer) && !errors.Is(err, models.ErrUpstream) {
			logger.Error("unhandled service error", slog.Any("error", err))
		}
		pkghttp.WriteInternalError(w)
	}
}
