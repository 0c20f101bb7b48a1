package models

import "time"

// OTPPurpose selects one of the three independent code slots on a user.
type OTPPurpose string

const (
	OTPVerification  OTPPurpose = "verification"
	OTPPasswordReset OTPPurpose = "password_reset"
	OTPEmailChange   OTPPurpose = "email_change"
)

func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPVerification, OTPPasswordReset, OTPEmailChange:
		return true
	}
	return false
}

// OTPSlot is the stored state of one purpose slot. A nil CodeHash means the
// slot is empty.
type OTPSlot struct {
	CodeHash     *string
	ExpiresAt    *time.Time
	PendingEmail *string // email change only
}

// Empty reports whether no code has been issued into the slot.
func (s OTPSlot) Empty() bool {
	return s.CodeHash == nil || s.ExpiresAt == nil
}

// Active reports whether the slot holds a code that has not yet expired.
func (s OTPSlot) Active(now time.Time) bool {
	return !s.Empty() && now.Before(*s.ExpiresAt)
}

// OTPVerdict is the outcome of checking a submitted code against a slot.
type OTPVerdict int

const (
	OTPValid OTPVerdict = iota
	OTPExpired
	OTPMismatch
	OTPNoneIssued
)

func (v OTPVerdict) String() string {
	switch v {
	case OTPValid:
		return "valid"
	case OTPExpired:
		return "expired"
	case OTPMismatch:
		return "mismatch"
	case OTPNoneIssued:
		return "none_issued"
	}
	return "unknown"
}

// Err converts a non-valid verdict to its sentinel error.
func (v OTPVerdict) Err() error {
	switch v {
	case OTPValid:
		return nil
	case OTPExpired:
		return ErrOTPExpired
	case OTPMismatch:
		return ErrOTPMismatch
	default:
		return ErrOTPNotIssued
	}
}

// IssuedOTP is returned from issuance. Plain is handed to the mailer and
// discarded; only Hash is persisted.
type IssuedOTP struct {
	Plain     string
	Hash      string
	ExpiresAt time.Time
}
