package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
)

const (
	otpMin = 100000
	otpMax = 999999

	DefaultOTPTTL = 10 * time.Minute
)

// SecretHasher hashes and checks one-way secrets.
type SecretHasher interface {
	Hash(secret string) (string, error)
	Matches(hash, secret string) bool
}

// OTPManager issues and checks six digit one-time codes. Codes are only
// ever returned in plaintext from Issue and are stored hashed.
type OTPManager struct {
	hasher SecretHasher
	ttl    time.Duration
	now    func() time.Time
}

func NewOTPManager(hasher SecretHasher, ttl time.Duration) *OTPManager {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	return &OTPManager{hasher: hasher, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (m *OTPManager) WithClock(now func() time.Time) *OTPManager {
	m.now = now
	return m
}

func (m *OTPManager) Now() time.Time { return m.now() }

// GenerateCode draws a code uniformly from [100000, 999999].
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}

func (m *OTPManager) Issue() (models.IssuedOTP, error) {
	code, err := GenerateCode()
	if err != nil {
		return models.IssuedOTP{}, err
	}
	hash, err := m.hasher.Hash(code)
	if err != nil {
		return models.IssuedOTP{}, fmt.Errorf("failed to hash code: %w", err)
	}
	return models.IssuedOTP{
		Plain:     code,
		Hash:      hash,
		ExpiresAt: m.now().Add(m.ttl),
	}, nil
}

// Check classifies submitted against a stored slot. Expiry is decided
// before the hash comparison, so a correct code past its expiry is Expired.
func (m *OTPManager) Check(slot models.OTPSlot, submitted string) models.OTPVerdict {
	if slot.Empty() {
		return models.OTPNoneIssued
	}
	if !slot.Active(m.now()) {
		return models.OTPExpired
	}
	if !m.hasher.Matches(*slot.CodeHash, submitted) {
		return models.OTPMismatch
	}
	return models.OTPValid
}
