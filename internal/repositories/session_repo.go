package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/database"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
)

type SessionRepository struct {
	db *database.DB
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *models.Session) (*models.Session, error) {
	publicID, err := uuid.Parse(s.UserPublicID)
	if err != nil {
		return nil, fmt.Errorf("invalid user public id: %w", err)
	}

	query := `
		INSERT INTO sessions (token_hash, user_id, user_public_id, ip_address, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	created := *s
	err = r.db.Pool.QueryRow(ctx, query,
		s.TokenHash, s.UserID, publicID, s.IPAddress, s.UserAgent, s.ExpiresAt,
	).Scan(&created.ID, &created.CreatedAt)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &created, nil
}

// GetByTokenHash returns the session regardless of expiry.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT id, token_hash, user_id, user_public_id, ip_address, user_agent, expires_at, created_at
		FROM sessions WHERE token_hash = $1
	`
	var s models.Session
	var publicID uuid.UUID
	err := r.db.Pool.QueryRow(ctx, query, tokenHash).Scan(
		&s.ID, &s.TokenHash, &s.UserID, &publicID, &s.IPAddress, &s.UserAgent, &s.ExpiresAt, &s.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	s.UserPublicID = publicID.String()
	return &s, nil
}

func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SessionRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
