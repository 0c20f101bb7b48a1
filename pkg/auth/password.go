package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	SessionTokenBytes = 32 // 256 bits
	MaxPasswordLen    = 72 // bcrypt ignores input beyond 72 bytes
)

// PasswordValidationError holds validation error details (internal use only)
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "password validation failed"
	}
	return "invalid password"
}

// Hasher wraps bcrypt with a fixed work factor. It hashes both passwords
// and one-time codes.
type Hasher struct {
	cost int
}

// NewHasher clamps cost into bcrypt's accepted range.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Cost() int { return h.cost }

func (h *Hasher) Hash(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("secret cannot be empty")
	}
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hashedBytes), nil
}

// Matches runs bcrypt's comparison, which takes the same time for any
// wrong input of a given hash.
func (h *Hasher) Matches(hash, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// GenerateSessionToken returns a URL-safe random token.
func GenerateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// ValidatePassword accepts any non-empty password that bcrypt can hash
// without truncation.
func ValidatePassword(password string) error {
	switch {
	case password == "":
		return &PasswordValidationError{Errors: []string{"is required"}}
	case len(password) > MaxPasswordLen:
		return &PasswordValidationError{Errors: []string{fmt.Sprintf("must be at most %d bytes", MaxPasswordLen)}}
	}
	return nil
}
