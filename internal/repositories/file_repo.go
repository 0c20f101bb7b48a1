package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/database"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
)

type FileRepository struct {
	db *database.DB
}

func NewFileRepository(db *database.DB) *FileRepository {
	return &FileRepository{db: db}
}

const fileColumns = `f.id, f.public_id, f.name, f.user_id, f.parent_folder_id, f.url, f.object_id,
	f.mime_type, f.size_bytes, f.is_deleted, f.deleted_at, f.uploaded_at, p.public_id`

func scanFileRow(scanner rowScanner) (*models.File, error) {
	var f models.File
	var publicID uuid.UUID
	var parentPublicID *uuid.UUID

	err := scanner.Scan(
		&f.ID, &publicID, &f.Name, &f.UserID, &f.ParentFolderID, &f.URL, &f.ObjectID,
		&f.MimeType, &f.SizeBytes, &f.IsDeleted, &f.DeletedAt, &f.UploadedAt, &parentPublicID,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	f.PublicID = publicID.String()
	if parentPublicID != nil {
		s := parentPublicID.String()
		f.ParentPublicID = &s
	}
	return &f, nil
}

// ResolveParent returns the internal id of a live folder owned by userID.
func (r *FileRepository) ResolveParent(ctx context.Context, publicID string, userID int64) (int64, error) {
	pid, err := uuid.Parse(publicID)
	if err != nil {
		return 0, models.ErrNotFound
	}
	var id int64
	err = r.db.Pool.QueryRow(ctx,
		`SELECT id FROM folders WHERE public_id = $1 AND user_id = $2 AND NOT is_deleted`,
		pid, userID,
	).Scan(&id)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return id, nil
}

// Create records an uploaded blob. When a parent is set it is re-checked
// for liveness inside the insert transaction, so a file never lands in a
// folder trashed concurrently.
func (r *FileRepository) Create(ctx context.Context, file *models.File) (*models.File, error) {
	var created *models.File

	err := r.db.WithSerializable(ctx, func(tx pgx.Tx) error {
		if file.ParentFolderID != nil {
			var live bool
			err := tx.QueryRow(ctx,
				`SELECT NOT is_deleted FROM folders WHERE id = $1 AND user_id = $2 FOR SHARE`,
				*file.ParentFolderID, file.UserID,
			).Scan(&live)
			if err != nil {
				return database.MapPostgresError(err)
			}
			if !live {
				return models.ErrNotFound
			}
		}

		query := `
			WITH ins AS (
				INSERT INTO files (public_id, name, user_id, parent_folder_id, url, object_id, mime_type, size_bytes)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING *
			)
			SELECT ` + fileColumns + ` FROM ins f LEFT JOIN folders p ON p.id = f.parent_folder_id`

		f, err := scanFileRow(tx.QueryRow(ctx, query,
			uuid.New(), file.Name, file.UserID, file.ParentFolderID,
			file.URL, file.ObjectID, file.MimeType, file.SizeBytes,
		))
		if err != nil {
			return err
		}
		created = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetLive returns a file owned by userID that is not deleted.
func (r *FileRepository) GetLive(ctx context.Context, publicID string, userID int64) (*models.File, error) {
	pid, err := uuid.Parse(publicID)
	if err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + fileColumns + `
		FROM files f LEFT JOIN folders p ON p.id = f.parent_folder_id
		WHERE f.public_id = $1 AND f.user_id = $2 AND NOT f.is_deleted`
	return scanFileRow(r.db.Pool.QueryRow(ctx, query, pid, userID))
}

// ListLive returns live files directly inside folderID, or at the root when nil.
func (r *FileRepository) ListLive(ctx context.Context, folderID *int64, userID int64) ([]*models.File, error) {
	query := `SELECT ` + fileColumns + `
		FROM files f LEFT JOIN folders p ON p.id = f.parent_folder_id
		WHERE f.user_id = $1 AND f.parent_folder_id IS NOT DISTINCT FROM $2 AND NOT f.is_deleted
		ORDER BY f.name, f.id`
	rows, err := r.db.Pool.Query(ctx, query, userID, folderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	files := make([]*models.File, 0)
	for rows.Next() {
		f, err := scanFileRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return files, nil
}

// SoftDelete trashes one live file. A missing, foreign or already deleted
// file yields ErrNotFound.
func (r *FileRepository) SoftDelete(ctx context.Context, publicID string, userID int64, at time.Time) error {
	pid, err := uuid.Parse(publicID)
	if err != nil {
		return models.ErrNotFound
	}
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE files SET is_deleted = TRUE, deleted_at = $3
		WHERE public_id = $1 AND user_id = $2 AND NOT is_deleted`,
		pid, userID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ObjectIDsByUser lists the storage object of every file the user owns,
// trashed ones included.
func (r *FileRepository) ObjectIDsByUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT object_id FROM files WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query file objects: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan file objects: %w", err)
	}
	return ids, nil
}
