package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
)

// OTPStore persists the per-purpose code slots on a user row.
type OTPStore interface {
	IssueOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, code models.IssuedOTP, pendingEmail *string, now time.Time) (bool, error)
	ConsumeOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, check repositories.OTPCheck, effect repositories.OTPEffect) (models.OTPVerdict, error)
}

// OTPService drives the issue and consume lifecycle of one-time codes. The
// store enforces that an active code is never overwritten and that a
// consumed code cannot be replayed.
type OTPService struct {
	store    OTPStore
	manager  *auth.OTPManager
	notifier Notifier
	logger   *slog.Logger
}

func NewOTPService(store OTPStore, manager *auth.OTPManager, notifier Notifier, logger *slog.Logger) *OTPService {
	return &OTPService{
		store:    store,
		manager:  manager,
		notifier: notifier,
		logger:   logger,
	}
}

// Prepare draws a fresh code without persisting it, for flows where the
// slot is written as part of a larger insert.
func (s *OTPService) Prepare() (models.IssuedOTP, error) {
	return s.manager.Issue()
}

// Deliver queues the plaintext code for email delivery.
func (s *OTPService) Deliver(ctx context.Context, to string, purpose models.OTPPurpose, code models.IssuedOTP) {
	s.notifier.Notify(ctx, EmailMessage{
		To:        to,
		Kind:      EmailKindFor(purpose),
		Code:      code.Plain,
		ExpiresAt: code.ExpiresAt,
	})
}

// Issue writes a new code into the purpose slot and delivers it to `to`.
// It returns models.ErrRateLimited while a previous code is still active.
func (s *OTPService) Issue(ctx context.Context, userID int64, purpose models.OTPPurpose, to string, pendingEmail *string) error {
	code, err := s.manager.Issue()
	if err != nil {
		s.logger.Error("failed to generate otp", slog.Any("error", err))
		return models.ErrInternalServer
	}

	stored, err := s.store.IssueOTP(ctx, userID, purpose, code, pendingEmail, s.manager.Now())
	if err != nil {
		s.logger.Error("failed to store otp",
			slog.Int64("user_id", userID),
			slog.String("purpose", string(purpose)),
			slog.Any("error", err))
		return fmt.Errorf("store otp: %w", err)
	}
	if !stored {
		return models.ErrRateLimited
	}

	s.Deliver(ctx, to, purpose, code)
	return nil
}

// Verify consumes the purpose slot when submitted matches an active code
// and applies effect in the same transaction. Non-valid verdicts are
// returned as their sentinel error and leave the slot untouched.
func (s *OTPService) Verify(ctx context.Context, userID int64, purpose models.OTPPurpose, submitted string, effect repositories.OTPEffect) error {
	check := func(slot models.OTPSlot) models.OTPVerdict {
		return s.manager.Check(slot, submitted)
	}

	verdict, err := s.store.ConsumeOTP(ctx, userID, purpose, check, effect)
	if err != nil {
		return err
	}
	if verdict != models.OTPValid {
		s.logger.Info("otp rejected",
			slog.Int64("user_id", userID),
			slog.String("purpose", string(purpose)),
			slog.String("verdict", verdict.String()))
	}
	return verdict.Err()
}
