package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/storage"
	pkgauth "github.com/lalithsaicharan00/cloud-storage-api/pkg/auth"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

const maxNameLength = 100

// FileObjectLister lists the storage objects of every file a user owns.
type FileObjectLister interface {
	ObjectIDsByUser(ctx context.Context, userID int64) ([]string, error)
}

// ProfileImage is an avatar upload.
type ProfileImage struct {
	Body        io.Reader
	Size        int64
	Name        string
	ContentType string
}

// ProfileUpdate holds the optional fields of a profile edit. Nil fields are
// left unchanged.
type ProfileUpdate struct {
	Name  *string
	Image *ProfileImage
}

// AccountService manages a verified account: profile edits, the email
// change flow and deletion.
type AccountService struct {
	users         UserRepository
	files         FileObjectLister
	otp           *OTPService
	hasher        *pkgauth.Hasher
	store         storage.Provider
	maxAvatarSize int64
	logger        *slog.Logger
	auditLogger   *pkglogger.AuditLogger
}

func NewAccountService(
	users UserRepository,
	files FileObjectLister,
	otp *OTPService,
	hasher *pkgauth.Hasher,
	store storage.Provider,
	maxAvatarSize int64,
	logger *slog.Logger,
	auditLogger *pkglogger.AuditLogger,
) *AccountService {
	return &AccountService{
		users:         users,
		files:         files,
		otp:           otp,
		hasher:        hasher,
		store:         store,
		maxAvatarSize: maxAvatarSize,
		logger:        logger,
		auditLogger:   auditLogger,
	}
}

func (s *AccountService) load(ctx context.Context, userID int64) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load user", slog.Int64("user_id", userID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return user, nil
}

// GetProfile returns the owner's own account.
func (s *AccountService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	return s.load(ctx, userID)
}

// PublicProfile looks up another user by public id. Only the public
// projection ever leaves this method.
func (s *AccountService) PublicProfile(ctx context.Context, publicID string) (models.PublicProfile, error) {
	user, err := s.users.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.PublicProfile{}, models.ErrNotFound
		}
		s.logger.Error("failed to load public profile", slog.Any("error", err))
		return models.PublicProfile{}, models.ErrInternalServer
	}
	return user.ToPublicProfile(), nil
}

// UpdateProfile applies a name and/or avatar change. A new avatar is
// uploaded before the row is updated; the replaced object is removed after
// the update commits.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, upd ProfileUpdate) (*models.User, error) {
	if upd.Name == nil && upd.Image == nil {
		return nil, fmt.Errorf("%w: nothing to update", models.ErrBadRequest)
	}

	var name *string
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" || len(trimmed) > maxNameLength {
			return nil, fmt.Errorf("%w: name must be 1-%d characters", models.ErrBadRequest, maxNameLength)
		}
		name = &trimmed
	}

	current, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var image *models.StoredObject
	if upd.Image != nil {
		image, err = s.uploadAvatar(ctx, current.PublicID, upd.Image)
		if err != nil {
			return nil, err
		}
	}

	updated, replaced, err := s.users.UpdateProfile(ctx, userID, name, image)
	if err != nil {
		if image != nil {
			s.deleteObject(ctx, image.ObjectID)
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to update profile", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if replaced != nil {
		s.deleteObject(ctx, *replaced)
	}
	return updated, nil
}

func (s *AccountService) uploadAvatar(ctx context.Context, ownerPublicID string, img *ProfileImage) (*models.StoredObject, error) {
	if img.Size > s.maxAvatarSize {
		return nil, ErrFileTooLarge
	}

	contentType, body, err := sniffContentType(img.Body, img.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable image", models.ErrBadRequest)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, ErrUnsupportedType
	}

	stored, err := s.store.Upload(ctx, storage.Object{
		Body:        body,
		Size:        img.Size,
		Name:        img.Name,
		ContentType: contentType,
		FolderHint:  "avatars/" + ownerPublicID,
	})
	if err != nil {
		s.logger.Error("failed to upload avatar", slog.Any("error", err))
		return nil, models.ErrUpstream
	}
	return &models.StoredObject{
		URL:       stored.URL,
		ObjectID:  stored.ObjectID,
		SizeBytes: stored.SizeBytes,
		MimeType:  stored.MimeType,
	}, nil
}

func (s *AccountService) deleteObject(ctx context.Context, objectID string) {
	if err := s.store.Delete(ctx, objectID); err != nil {
		s.logger.Warn("failed to delete stored object",
			slog.String("object_id", objectID),
			slog.Any("error", err))
	}
}

// RequestEmailChange starts an email change after re-checking the current
// password. The code goes to the new address, which is held as pending
// until confirmed.
func (s *AccountService) RequestEmailChange(ctx context.Context, userID int64, newEmail, currentPassword string) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !user.EmailVerified {
		return models.ErrEmailNotVerified
	}
	if !s.hasher.Matches(user.PasswordHash, currentPassword) {
		return models.ErrInvalidCredentials
	}

	newEmail = NormalizeEmail(newEmail)
	if newEmail == "" {
		return models.ErrBadRequest
	}
	if newEmail == user.Email {
		return fmt.Errorf("%w: new email matches the current one", models.ErrBadRequest)
	}

	taken, err := s.users.EmailTaken(ctx, newEmail, user.ID)
	if err != nil {
		s.logger.Error("failed to check email availability", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if taken {
		return models.ErrConflict
	}

	if err := s.otp.Issue(ctx, user.ID, models.OTPEmailChange, newEmail, &newEmail); err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			return err
		}
		return models.ErrInternalServer
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventEmailChangeStart,
		UserID:    user.PublicID,
		Email:     newEmail,
		Success:   true,
	})
	return nil
}

// ResendEmailChange re-issues the code for the pending address once the
// previous one expired.
func (s *AccountService) ResendEmailChange(ctx context.Context, userID int64) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if user.PendingEmail == nil {
		return models.ErrNoPendingEmailChange
	}

	if err := s.otp.Issue(ctx, user.ID, models.OTPEmailChange, *user.PendingEmail, nil); err != nil {
		if errors.Is(err, models.ErrRateLimited) {
			return err
		}
		return models.ErrInternalServer
	}
	return nil
}

// VerifyEmailChange commits the pending address. If another account took
// the address in the meantime the change is rejected with
// models.ErrConflict and nothing is modified.
func (s *AccountService) VerifyEmailChange(ctx context.Context, userID int64, code string) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if user.PendingEmail == nil {
		return models.ErrNoPendingEmailChange
	}

	err = s.otp.Verify(ctx, user.ID, models.OTPEmailChange, code, repositories.OTPEffect{})
	switch {
	case err == nil:
	case errors.Is(err, models.ErrOTPNotIssued):
		return models.ErrNoPendingEmailChange
	case errors.Is(err, models.ErrOTPExpired), errors.Is(err, models.ErrOTPMismatch), errors.Is(err, models.ErrConflict):
		return err
	default:
		s.logger.Error("failed to commit email change", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventEmailChangeCommit,
		UserID:    user.PublicID,
		Email:     *user.PendingEmail,
		Success:   true,
	})
	return nil
}

// DeleteAccount removes the user and everything it owns. Stored objects are
// purged first on a best-effort basis. The row delete that follows is
// authoritative and cascades to folders, files and sessions.
func (s *AccountService) DeleteAccount(ctx context.Context, userID int64) error {
	user, err := s.load(ctx, userID)
	if err != nil {
		return err
	}

	objectIDs, err := s.files.ObjectIDsByUser(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to list user objects", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if user.ProfileImageObjectID != nil {
		objectIDs = append(objectIDs, *user.ProfileImageObjectID)
	}

	if len(objectIDs) > 0 {
		if err := s.store.BulkDelete(ctx, objectIDs); err != nil {
			s.logger.Warn("failed to purge stored objects for deleted account",
				slog.String("user_id", user.PublicID),
				slog.Int("objects", len(objectIDs)),
				slog.Any("error", err))
		}
	}

	if err := s.users.Delete(ctx, user.ID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete user", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventAccountDeleted,
		UserID:    user.PublicID,
		Email:     user.Email,
		Success:   true,
		Metadata:  map[string]string{"objects": fmt.Sprint(len(objectIDs))},
	})
	return nil
}
