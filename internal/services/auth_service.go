package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
	pkgauth "github.com/lalithsaicharan00/cloud-storage-api/pkg/auth"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

// UserRepository defines the user persistence operations the services need
type UserRepository interface {
	OTPStore
	Create(ctx context.Context, user *models.User, verification models.IssuedOTP) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByPublicID(ctx context.Context, publicID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error)
	UpdateProfile(ctx context.Context, id int64, name *string, image *models.StoredObject) (*models.User, *string, error)
	Delete(ctx context.Context, id int64) error
}

// SessionRepository defines session persistence
type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) (*models.Session, error)
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
}

// RequestMeta describes the client behind a request, for session records
// and the audit log.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// LoginResult carries the opaque token for a new session. The token is
// only ever held in memory and in the client cookie.
type LoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

// AuthService owns registration, verification, password reset and the
// session lifecycle.
type AuthService struct {
	users       UserRepository
	sessions    SessionRepository
	otp         *OTPService
	hasher      *pkgauth.Hasher
	timing      *auth.TimingDelay
	sessionTTL  time.Duration
	dummyHash   string
	now         func() time.Time
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

// NewAuthService creates a new AuthService
func NewAuthService(
	users UserRepository,
	sessions SessionRepository,
	otp *OTPService,
	hasher *pkgauth.Hasher,
	timing *auth.TimingDelay,
	sessionTTL time.Duration,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) (*AuthService, error) {
	// Compared against when the account does not exist, so both paths pay
	// for one bcrypt comparison.
	dummy, err := hasher.Hash("timing-equalizer-not-a-password")
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		otp:         otp,
		hasher:      hasher,
		timing:      timing,
		sessionTTL:  sessionTTL,
		dummyHash:   dummy,
		now:         time.Now,
		logger:      logger,
		auditLogger: auditLogger,
	}, nil
}

// NormalizeEmail lowercases and trims an address before lookup or storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func passwordError(err error) error {
	var pv *pkgauth.PasswordValidationError
	if errors.As(err, &pv) {
		return fmt.Errorf("%w: %w", models.ErrBadRequest, pv)
	}
	return err
}

// Register creates an unverified account with its verification code
// already in place and queues the code email.
func (s *AuthService) Register(ctx context.Context, name, email, password string, meta RequestMeta) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = NormalizeEmail(email)
	if name == "" || email == "" {
		return nil, models.ErrBadRequest
	}
	if err := pkgauth.ValidatePassword(password); err != nil {
		return nil, passwordError(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	code, err := s.otp.Prepare()
	if err != nil {
		s.logger.Error("failed to generate verification code", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	created, err := s.users.Create(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
	}, code)
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			s.auditLogger.Log(ctx, pkglogger.AuditEvent{
				EventType:     pkglogger.EventRegister,
				Email:         email,
				IPAddress:     meta.IPAddress,
				FailureReason: "email_taken",
			})
			return nil, models.ErrConflict
		}
		s.logger.Error("failed to create user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.otp.Deliver(ctx, created.Email, models.OTPVerification, code)
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventRegister,
		UserID:    created.PublicID,
		Email:     created.Email,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return created, nil
}

// VerifyEmail consumes the verification code and marks the account
// verified. Unknown addresses report the same error as a wrong code.
func (s *AuthService) VerifyEmail(ctx context.Context, email, code string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrOTPMismatch
		}
		s.logger.Error("failed to load user for verification", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if user.EmailVerified {
		return models.ErrAlreadyVerified
	}

	if err := s.otp.Verify(ctx, user.ID, models.OTPVerification, code, repositories.OTPEffect{}); err != nil {
		return s.otpOutcome(err)
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventEmailVerified,
		UserID:    user.PublicID,
		Success:   true,
	})
	return nil
}

// ResendVerification issues a fresh verification code when the account
// exists, is unverified and holds no active code. The caller always gets
// the same result so that registration status is not observable.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to load user for resend", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if user.EmailVerified {
		return nil
	}

	err = s.otp.Issue(ctx, user.ID, models.OTPVerification, user.Email, nil)
	return s.silentIssue(user, models.OTPVerification, err)
}

// ForgotPassword issues a reset code for verified accounts. Like
// ResendVerification it never reveals whether the address is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		s.logger.Error("failed to load user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !user.EmailVerified {
		return nil
	}

	err = s.otp.Issue(ctx, user.ID, models.OTPPasswordReset, user.Email, nil)
	return s.silentIssue(user, models.OTPPasswordReset, err)
}

func (s *AuthService) silentIssue(user *models.User, purpose models.OTPPurpose, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrRateLimited):
		s.logger.Info("otp not reissued, active code exists",
			slog.String("user_id", user.PublicID),
			slog.String("purpose", string(purpose)))
		return nil
	default:
		return models.ErrInternalServer
	}
}

// ResetPassword replaces the password when code matches the active reset
// code. Every session of the account is revoked in the same transaction.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return passwordError(err)
	}

	user, err := s.users.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrOTPMismatch
		}
		s.logger.Error("failed to load user for password reset", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !user.EmailVerified {
		return models.ErrOTPMismatch
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}

	err = s.otp.Verify(ctx, user.ID, models.OTPPasswordReset, code, repositories.OTPEffect{NewPasswordHash: hash})
	if err != nil {
		return s.otpOutcome(err)
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventPasswordReset,
		UserID:    user.PublicID,
		Success:   true,
	})
	return nil
}

// otpOutcome passes verdict sentinels through and hides storage errors.
func (s *AuthService) otpOutcome(err error) error {
	switch {
	case errors.Is(err, models.ErrOTPExpired),
		errors.Is(err, models.ErrOTPMismatch),
		errors.Is(err, models.ErrOTPNotIssued):
		return err
	case errors.Is(err, models.ErrNotFound):
		return models.ErrOTPMismatch
	default:
		s.logger.Error("failed to consume otp", slog.Any("error", err))
		return models.ErrInternalServer
	}
}

// Login checks credentials and opens a session. Unknown accounts and wrong
// passwords are indistinguishable. A correct password on an unverified
// account returns models.ErrEmailNotVerified.
func (s *AuthService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	start := time.Now()
	email = NormalizeEmail(email)

	fail := func(reason string, err error) (*LoginResult, error) {
		s.timing.WaitFrom(start, false)
		s.auditLogger.Log(ctx, pkglogger.AuditEvent{
			EventType:     pkglogger.EventLogin,
			Email:         email,
			IPAddress:     meta.IPAddress,
			UserAgent:     meta.UserAgent,
			FailureReason: reason,
		})
		return nil, err
	}

	if email == "" || password == "" {
		return fail("missing_credentials", models.ErrInvalidCredentials)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		s.logger.Error("failed to load user for login", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	hash := s.dummyHash
	if user != nil {
		hash = user.PasswordHash
	}
	if !s.hasher.Matches(hash, password) || user == nil {
		return fail("invalid_credentials", models.ErrInvalidCredentials)
	}
	if !user.EmailVerified {
		return fail("email_not_verified", models.ErrEmailNotVerified)
	}

	token, err := pkgauth.GenerateSessionToken()
	if err != nil {
		s.logger.Error("failed to generate session token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	expiresAt := s.now().Add(s.sessionTTL)
	_, err = s.sessions.Create(ctx, &models.Session{
		TokenHash:    auth.HashToken(token),
		UserID:       user.ID,
		UserPublicID: user.PublicID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		ExpiresAt:    expiresAt,
	})
	if err != nil {
		s.logger.Error("failed to create session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.timing.WaitFrom(start, true)
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogin,
		UserID:    user.PublicID,
		Email:     user.Email,
		IPAddress: meta.IPAddress,
		UserAgent: meta.UserAgent,
		Success:   true,
	})
	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Logout destroys the session bound to token. Unknown tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string, userPublicID string) error {
	if err := s.sessions.DeleteByTokenHash(ctx, auth.HashToken(token)); err != nil {
		s.logger.Error("failed to delete session", slog.Any("error", err))
		return models.ErrInternalServer
	}
	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventLogout,
		UserID:    userPublicID,
		Success:   true,
	})
	return nil
}

// Resolve maps a session token to its user. Missing and expired sessions
// both return models.ErrUnauthorized; an expired row is removed on sight.
func (s *AuthService) Resolve(ctx context.Context, token string) (*models.SessionUser, error) {
	hash := auth.HashToken(token)
	session, err := s.sessions.GetByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	if session.IsExpired(s.now()) {
		if err := s.sessions.DeleteByTokenHash(ctx, hash); err != nil {
			s.logger.Warn("failed to delete expired session", slog.Any("error", err))
		}
		return nil, models.ErrUnauthorized
	}

	return &models.SessionUser{
		UserID:    session.UserID,
		PublicID:  session.UserPublicID,
		SessionID: session.ID,
	}, nil
}

// CurrentUser loads the account behind an authenticated session.
func (s *AuthService) CurrentUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load session user", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}
