package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailNotVerified   = errors.New("email address not verified")
	ErrAlreadyVerified    = errors.New("email address already verified")

	// OTP lifecycle
	ErrRateLimited          = errors.New("a code was issued recently, try again later")
	ErrOTPExpired           = errors.New("code has expired")
	ErrOTPMismatch          = errors.New("code does not match")
	ErrOTPNotIssued         = errors.New("no code has been issued")
	ErrNoPendingEmailChange = errors.New("no pending email change")

	// Collaborators
	ErrUpstream    = errors.New("upstream service failure")
	ErrTreeCorrupt = errors.New("folder hierarchy contains a cycle")
)
