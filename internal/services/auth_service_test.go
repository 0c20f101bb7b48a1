package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/auth"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	pkgauth "github.com/lalithsaicharan00/cloud-storage-api/pkg/auth"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

type authFixture struct {
	svc      *AuthService
	users    *memoryUsers
	sessions *memorySessions
	notifier *CapturingNotifier
	clock    *fakeClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	users := newMemoryUsers()
	sessions := newMemorySessions()
	notifier := &CapturingNotifier{}
	clock := newFakeClock()
	logger := quietLogger()

	svc, err := NewAuthService(users, sessions, newTestOTP(users, clock, notifier), testHasher, nil,
		48*time.Hour, logger, pkglogger.NewAuditLogger(logger))
	require.NoError(t, err)
	svc.now = clock.Now

	return &authFixture{svc: svc, users: users, sessions: sessions, notifier: notifier, clock: clock}
}

func (f *authFixture) registerVerified(t *testing.T, email, password string) *models.User {
	t.Helper()
	ctx := context.Background()
	user, err := f.svc.Register(ctx, "Test User", email, password, RequestMeta{})
	require.NoError(t, err)
	msg, ok := f.notifier.Last()
	require.True(t, ok)
	require.NoError(t, f.svc.VerifyEmail(ctx, email, msg.Code))
	return user
}

// ============================================================================
// Register
// ============================================================================

func TestAuthService_Register_Success(t *testing.T) {
	f := newAuthFixture(t)

	user, err := f.svc.Register(context.Background(), "  Ada  ", "  Ada@Example.COM ", "correct9horse", RequestMeta{IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	assert.Equal(t, "Ada", user.Name)
	assert.Equal(t, "ada@example.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, models.AccountUnverified, user.State())
	assert.NotEqual(t, "correct9horse", user.PasswordHash)

	msg, ok := f.notifier.Last()
	require.True(t, ok)
	assert.Equal(t, EmailVerifyAccount, msg.Kind)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.False(t, f.users.slot(user.ID, models.OTPVerification).Empty())
}

func TestAuthService_ShortPasswordLifecycle(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "A", "a@x.com", "pw", RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.AccountUnverified, user.State())

	_, err = f.svc.Login(ctx, "a@x.com", "pw", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrEmailNotVerified)

	msg, ok := f.notifier.Last()
	require.True(t, ok)
	require.NoError(t, f.svc.VerifyEmail(ctx, "a@x.com", msg.Code))

	result, err := f.svc.Login(ctx, "a@x.com", "pw", RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, models.AccountVerified, result.User.State())
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "A", "dup@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "B", "DUP@example.com", "correct9horse", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, 1, f.notifier.Count())
}

func TestAuthService_Register_RejectedPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), "A", "a@example.com", strings.Repeat("x", pkgauth.MaxPasswordLen+1), RequestMeta{})
	assert.ErrorIs(t, err, models.ErrBadRequest)

	var pv *pkgauth.PasswordValidationError
	require.True(t, errors.As(err, &pv))
	assert.NotEmpty(t, pv.Errors)
	assert.Equal(t, 0, f.notifier.Count())
}

func TestAuthService_Register_MissingFields(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Register(context.Background(), "   ", "a@example.com", "correct9horse", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

// ============================================================================
// Email verification
// ============================================================================

func TestAuthService_VerifyEmail(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "A", "a@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)
	msg, _ := f.notifier.Last()

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "a@example.com", flipDigit(msg.Code)), models.ErrOTPMismatch)
	require.NoError(t, f.svc.VerifyEmail(ctx, "A@example.com", msg.Code))

	stored, err := f.users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.EmailVerified)
	assert.True(t, f.users.slot(user.ID, models.OTPVerification).Empty())

	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "a@example.com", msg.Code), models.ErrAlreadyVerified)
}

func TestAuthService_VerifyEmail_UnknownAddressLooksLikeMismatch(t *testing.T) {
	f := newAuthFixture(t)

	err := f.svc.VerifyEmail(context.Background(), "nobody@example.com", "123456")
	assert.ErrorIs(t, err, models.ErrOTPMismatch)
}

func TestAuthService_VerifyEmail_Expired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "A", "a@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)
	msg, _ := f.notifier.Last()

	f.clock.Advance(11 * time.Minute)
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, "a@example.com", msg.Code), models.ErrOTPExpired)
}

func TestAuthService_ResendVerification(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "A", "a@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)

	// Active code: silently not reissued.
	require.NoError(t, f.svc.ResendVerification(ctx, "a@example.com"))
	assert.Equal(t, 1, f.notifier.Count())

	f.clock.Advance(10 * time.Minute)
	require.NoError(t, f.svc.ResendVerification(ctx, "a@example.com"))
	assert.Equal(t, 2, f.notifier.Count())

	// Unknown address answers the same way and sends nothing.
	require.NoError(t, f.svc.ResendVerification(ctx, "ghost@example.com"))
	assert.Equal(t, 2, f.notifier.Count())
}

// ============================================================================
// Password reset
// ============================================================================

func TestAuthService_ForgotPassword_DoesNotRevealAccounts(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "A", "unverified@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)
	sent := f.notifier.Count()

	errUnknown := f.svc.ForgotPassword(ctx, "ghost@example.com")
	errUnverified := f.svc.ForgotPassword(ctx, "unverified@example.com")

	assert.NoError(t, errUnknown)
	assert.NoError(t, errUnverified)
	assert.Equal(t, sent, f.notifier.Count())
}

func TestAuthService_ResetPassword_RevokesSessions(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerVerified(t, "a@example.com", "correct9horse")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@example.com"))
	msg, _ := f.notifier.Last()
	assert.Equal(t, EmailPasswordReset, msg.Kind)

	require.NoError(t, f.svc.ResetPassword(ctx, "a@example.com", msg.Code, "brand9new9pass"))
	assert.Equal(t, 1, f.users.revokedSessions[user.ID])

	_, err := f.svc.Login(ctx, "a@example.com", "correct9horse", RequestMeta{})
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "a@example.com", "brand9new9pass", RequestMeta{})
	assert.NoError(t, err)

	err = f.svc.ResetPassword(ctx, "a@example.com", msg.Code, "another9pass")
	assert.ErrorIs(t, err, models.ErrOTPNotIssued)
}

func TestAuthService_ResetPassword_Rejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@example.com", "correct9horse")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "a@example.com", "123456", ""), models.ErrBadRequest)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "ghost@example.com", "123456", "brand9new9pass"), models.ErrOTPMismatch)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "a@example.com", "123456", "brand9new9pass"), models.ErrOTPNotIssued)
}

// ============================================================================
// Login and sessions
// ============================================================================

func TestAuthService_Login(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@example.com", "correct9horse")
	_, err := f.svc.Register(ctx, "B", "b@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"success", "A@example.com", "correct9horse", nil},
		{"wrong password", "a@example.com", "wrong9horse", models.ErrInvalidCredentials},
		{"unknown account", "ghost@example.com", "correct9horse", models.ErrInvalidCredentials},
		{"empty email", "", "correct9horse", models.ErrInvalidCredentials},
		{"unverified", "b@example.com", "correct9horse", models.ErrEmailNotVerified},
		{"unverified wrong password", "b@example.com", "wrong9horse", models.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.svc.Login(ctx, tt.email, tt.password, RequestMeta{IPAddress: "10.0.0.1", UserAgent: "test"})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, result)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, result.Token)
			assert.Equal(t, f.clock.Now().Add(48*time.Hour), result.ExpiresAt)

			stored, err := f.sessions.GetByTokenHash(ctx, auth.HashToken(result.Token))
			require.NoError(t, err)
			assert.Equal(t, result.User.ID, stored.UserID)
			assert.Equal(t, "10.0.0.1", stored.IPAddress)
		})
	}
}

func TestAuthService_ResolveAndLogout(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	user := f.registerVerified(t, "a@example.com", "correct9horse")

	result, err := f.svc.Login(ctx, "a@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)

	su, err := f.svc.Resolve(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, su.UserID)
	assert.Equal(t, user.PublicID, su.PublicID)

	require.NoError(t, f.svc.Logout(ctx, result.Token, su.PublicID))
	_, err = f.svc.Resolve(ctx, result.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_Resolve_ExpiredSessionRemoved(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.registerVerified(t, "a@example.com", "correct9horse")

	result, err := f.svc.Login(ctx, "a@example.com", "correct9horse", RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, 1, f.sessions.Len())

	f.clock.Advance(48 * time.Hour)
	_, err = f.svc.Resolve(ctx, result.Token)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.Equal(t, 0, f.sessions.Len())
}

func TestAuthService_Resolve_UnknownToken(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.Resolve(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, models.ErrUnauthorized)
}

func TestAuthService_Resolve_StoreError(t *testing.T) {
	logger := quietLogger()
	sessions := &MockSessionRepository{
		GetByTokenHashFunc: func(ctx context.Context, tokenHash string) (*models.Session, error) {
			return nil, assert.AnError
		},
	}
	svc, err := NewAuthService(&MockUserRepository{}, sessions, nil, testHasher, nil, time.Hour, logger, pkglogger.NewAuditLogger(logger))
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), "token")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrUnauthorized)
}
