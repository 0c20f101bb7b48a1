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

// FolderTree is the set of row-level operations a trash traversal needs.
// All calls made through one FolderTree share a single transaction.
type FolderTree interface {
	// ResolveLive locks and returns the internal id of a live folder owned by userID.
	ResolveLive(ctx context.Context, publicID string, userID int64) (int64, error)
	// ChildFolders locks and returns the live direct subfolders of folderID.
	ChildFolders(ctx context.Context, folderID, userID int64) ([]int64, error)
	// TrashFiles marks every live file directly inside folderID as deleted.
	TrashFiles(ctx context.Context, folderID, userID int64, at time.Time) (int64, error)
	// TrashFolder marks a single folder as deleted.
	TrashFolder(ctx context.Context, folderID, userID int64, at time.Time) error
}

type FolderRepository struct {
	db *database.DB
}

func NewFolderRepository(db *database.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

const folderColumns = `f.id, f.public_id, f.name, f.user_id, f.parent_folder_id,
	f.is_deleted, f.deleted_at, f.created_at, f.updated_at, p.public_id`

const folderFrom = ` FROM folders f LEFT JOIN folders p ON p.id = f.parent_folder_id`

func scanFolderRow(scanner rowScanner) (*models.Folder, error) {
	var f models.Folder
	var publicID uuid.UUID
	var parentPublicID *uuid.UUID

	err := scanner.Scan(
		&f.ID, &publicID, &f.Name, &f.UserID, &f.ParentFolderID,
		&f.IsDeleted, &f.DeletedAt, &f.CreatedAt, &f.UpdatedAt, &parentPublicID,
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

func scanFolderRows(rows pgx.Rows) ([]*models.Folder, error) {
	defer rows.Close()

	folders := make([]*models.Folder, 0)
	for rows.Next() {
		f, err := scanFolderRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan folder: %w", err)
		}
		folders = append(folders, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return folders, nil
}

// Create inserts a folder under an optional parent. The parent must be a
// live folder of the same owner; otherwise ErrNotFound. A live sibling with
// the same name yields ErrConflict.
func (r *FolderRepository) Create(ctx context.Context, name string, userID int64, parentPublicID *string) (*models.Folder, error) {
	var created *models.Folder

	err := r.db.WithSerializable(ctx, func(tx pgx.Tx) error {
		var parentID *int64
		if parentPublicID != nil {
			id, err := resolveLive(ctx, tx, *parentPublicID, userID, "FOR SHARE")
			if err != nil {
				return err
			}
			parentID = &id
		}

		query := `
			WITH ins AS (
				INSERT INTO folders (public_id, name, user_id, parent_folder_id)
				VALUES ($1, $2, $3, $4)
				RETURNING *
			)
			SELECT ` + folderColumns + ` FROM ins f LEFT JOIN folders p ON p.id = f.parent_folder_id`

		f, err := scanFolderRow(tx.QueryRow(ctx, query, uuid.New(), name, userID, parentID))
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

// GetLive returns a folder that is owned by userID and not deleted.
func (r *FolderRepository) GetLive(ctx context.Context, publicID string, userID int64) (*models.Folder, error) {
	id, err := uuid.Parse(publicID)
	if err != nil {
		return nil, models.ErrNotFound
	}
	query := `SELECT ` + folderColumns + folderFrom + `
		WHERE f.public_id = $1 AND f.user_id = $2 AND NOT f.is_deleted`
	return scanFolderRow(r.db.Pool.QueryRow(ctx, query, id, userID))
}

// ListLiveChildren returns the live subfolders of parentID, or the live
// root folders when parentID is nil.
func (r *FolderRepository) ListLiveChildren(ctx context.Context, parentID *int64, userID int64) ([]*models.Folder, error) {
	query := `SELECT ` + folderColumns + folderFrom + `
		WHERE f.user_id = $1 AND f.parent_folder_id IS NOT DISTINCT FROM $2 AND NOT f.is_deleted
		ORDER BY f.name`
	rows, err := r.db.Pool.Query(ctx, query, userID, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query folders: %w", err)
	}
	return scanFolderRows(rows)
}

// InTree runs fn against a serializable transaction. Any error from fn
// rolls back every write made through the tree.
func (r *FolderRepository) InTree(ctx context.Context, fn func(FolderTree) error) error {
	return r.db.WithSerializable(ctx, func(tx pgx.Tx) error {
		return fn(&folderTreeTx{tx: tx})
	})
}

func resolveLive(ctx context.Context, tx pgx.Tx, publicID string, userID int64, lock string) (int64, error) {
	pid, err := uuid.Parse(publicID)
	if err != nil {
		return 0, models.ErrNotFound
	}
	var id int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM folders WHERE public_id = $1 AND user_id = $2 AND NOT is_deleted `+lock,
		pid, userID,
	).Scan(&id)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return id, nil
}

type folderTreeTx struct {
	tx pgx.Tx
}

func (t *folderTreeTx) ResolveLive(ctx context.Context, publicID string, userID int64) (int64, error) {
	return resolveLive(ctx, t.tx, publicID, userID, "FOR UPDATE")
}

func (t *folderTreeTx) ChildFolders(ctx context.Context, folderID, userID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id FROM folders
		WHERE parent_folder_id = $1 AND user_id = $2 AND NOT is_deleted
		ORDER BY id
		FOR UPDATE`,
		folderID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query child folders: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan child folders: %w", err)
	}
	return ids, nil
}

func (t *folderTreeTx) TrashFiles(ctx context.Context, folderID, userID int64, at time.Time) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE files SET is_deleted = TRUE, deleted_at = $3
		WHERE parent_folder_id = $1 AND user_id = $2 AND NOT is_deleted`,
		folderID, userID, at,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to trash files: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t *folderTreeTx) TrashFolder(ctx context.Context, folderID, userID int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE folders SET is_deleted = TRUE, deleted_at = $3, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND NOT is_deleted`,
		folderID, userID, at,
	)
	if err != nil {
		return fmt.Errorf("failed to trash folder: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
