package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/database"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
)

type UserRepository struct {
	db *database.DB
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

// rowScanner interface for scanning rows (supports both single row and multiple rows)
type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, public_id, name, email, password_hash, email_verified,
	profile_image_url, profile_image_object_id, pending_email, created_at, updated_at`

func scanUserRow(scanner rowScanner) (*models.User, error) {
	var user models.User
	var publicID uuid.UUID

	err := scanner.Scan(
		&user.ID, &publicID, &user.Name, &user.Email, &user.PasswordHash, &user.EmailVerified,
		&user.ProfileImageURL, &user.ProfileImageObjectID, &user.PendingEmail,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	user.PublicID = publicID.String()
	return &user, nil
}

// Create inserts an unverified user with its verification code already
// occupying the verification slot.
func (r *UserRepository) Create(ctx context.Context, user *models.User, verification models.IssuedOTP) (*models.User, error) {
	query := `
		INSERT INTO users (public_id, name, email, password_hash, verification_code_hash, verification_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	created, err := scanUserRow(r.db.Pool.QueryRow(ctx, query,
		uuid.New(), user.Name, user.Email, user.PasswordHash, verification.Hash, verification.ExpiresAt,
	))
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	id, err := uuid.Parse(publicID)
	if err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE public_id = $1`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return scanUserRow(r.db.Pool.QueryRow(ctx, query, email))
}

// EmailTaken reports whether email is bound to any account other than excludeID.
func (r *UserRepository) EmailTaken(ctx context.Context, email string, excludeID int64) (bool, error) {
	var taken bool
	err := r.db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`,
		email, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return taken, nil
}

// UpdateProfile sets the name and, when image is non-nil, the profile
// image. It returns the object id of the image that was replaced.
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, name *string, image *models.StoredObject) (*models.User, *string, error) {
	var (
		updated  *models.User
		replaced *string
	)

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var previous *string
		err := tx.QueryRow(ctx,
			`SELECT profile_image_object_id FROM users WHERE id = $1 FOR UPDATE`, id,
		).Scan(&previous)
		if err != nil {
			return database.MapPostgresError(err)
		}

		var url, objectID *string
		if image != nil {
			url, objectID = &image.URL, &image.ObjectID
			replaced = previous
		}

		query := `
			UPDATE users SET
				name = COALESCE($2, name),
				profile_image_url = CASE WHEN $3::text IS NULL THEN profile_image_url ELSE $3 END,
				profile_image_object_id = CASE WHEN $4::text IS NULL THEN profile_image_object_id ELSE $4 END,
				updated_at = now()
			WHERE id = $1
			RETURNING ` + userColumns

		updated, err = scanUserRow(tx.QueryRow(ctx, query, id, name, url, objectID))
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, replaced, nil
}

// Delete removes the user row. Folders, files and sessions cascade.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

type slotColumns struct {
	hash    string
	expires string
}

var otpSlots = map[models.OTPPurpose]slotColumns{
	models.OTPVerification:  {"verification_code_hash", "verification_expires_at"},
	models.OTPPasswordReset: {"password_reset_code_hash", "password_reset_expires_at"},
	models.OTPEmailChange:   {"email_change_code_hash", "email_change_expires_at"},
}

func slotFor(purpose models.OTPPurpose) (slotColumns, error) {
	if !purpose.Valid() {
		return slotColumns{}, fmt.Errorf("unknown otp purpose %q", purpose)
	}
	return otpSlots[purpose], nil
}

// IssueOTP stores code in the purpose slot only if the slot is empty or its
// previous code expired at or before now. It reports false when an active
// code blocked the write. For email change a non-nil pendingEmail replaces
// the stored one.
func (r *UserRepository) IssueOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, code models.IssuedOTP, pendingEmail *string, now time.Time) (bool, error) {
	cols, err := slotFor(purpose)
	if err != nil {
		return false, err
	}

	set := fmt.Sprintf("%s = $2, %s = $3", cols.hash, cols.expires)
	args := []any{userID, code.Hash, code.ExpiresAt, now}
	if purpose == models.OTPEmailChange {
		set += ", pending_email = COALESCE($5, pending_email)"
		args = append(args, pendingEmail)
	}

	query := fmt.Sprintf(`
		UPDATE users SET %s, updated_at = now()
		WHERE id = $1 AND (%s IS NULL OR %s <= $4)`,
		set, cols.hash, cols.expires)

	tag, err := r.db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return tag.RowsAffected() == 1, nil
}

// OTPCheck decides the verdict for the locked slot contents.
type OTPCheck func(slot models.OTPSlot) models.OTPVerdict

// OTPEffect carries purpose-specific inputs for a successful consume.
type OTPEffect struct {
	NewPasswordHash string // password reset only
}

// ConsumeOTP locks the user row, runs check against the slot and, on a
// valid verdict, applies the purpose side effect and clears the slot in the
// same transaction. Non-valid verdicts change nothing.
func (r *UserRepository) ConsumeOTP(ctx context.Context, userID int64, purpose models.OTPPurpose, check OTPCheck, effect OTPEffect) (models.OTPVerdict, error) {
	cols, err := slotFor(purpose)
	if err != nil {
		return models.OTPNoneIssued, err
	}
	if purpose == models.OTPPasswordReset && effect.NewPasswordHash == "" {
		return models.OTPNoneIssued, errors.New("password reset requires a new password hash")
	}

	verdict := models.OTPNoneIssued
	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		var slot models.OTPSlot
		query := fmt.Sprintf(`SELECT %s, %s, pending_email FROM users WHERE id = $1 FOR UPDATE`, cols.hash, cols.expires)
		if err := tx.QueryRow(ctx, query, userID).Scan(&slot.CodeHash, &slot.ExpiresAt, &slot.PendingEmail); err != nil {
			return database.MapPostgresError(err)
		}

		verdict = check(slot)
		if verdict != models.OTPValid {
			return nil
		}

		clear := fmt.Sprintf("%s = NULL, %s = NULL, updated_at = now()", cols.hash, cols.expires)
		switch purpose {
		case models.OTPVerification:
			_, err = tx.Exec(ctx, `UPDATE users SET email_verified = TRUE, `+clear+` WHERE id = $1`, userID)
		case models.OTPPasswordReset:
			_, err = tx.Exec(ctx, `UPDATE users SET password_hash = $2, `+clear+` WHERE id = $1`, userID, effect.NewPasswordHash)
			if err == nil {
				_, err = tx.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
			}
		case models.OTPEmailChange:
			if slot.PendingEmail == nil {
				verdict = models.OTPNoneIssued
				return nil
			}
			_, err = tx.Exec(ctx,
				`UPDATE users SET email = pending_email, pending_email = NULL, `+clear+` WHERE id = $1`, userID)
		}
		return database.MapPostgresError(err)
	})
	if err != nil {
		return models.OTPNoneIssued, err
	}
	return verdict, nil
}
