package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/repositories"
	pkglogger "github.com/lalithsaicharan00/cloud-storage-api/pkg/logger"
)

const maxFolderNameLength = 255

// FolderRepository defines folder persistence
type FolderRepository interface {
	Create(ctx context.Context, name string, userID int64, parentPublicID *string) (*models.Folder, error)
	GetLive(ctx context.Context, publicID string, userID int64) (*models.Folder, error)
	ListLiveChildren(ctx context.Context, parentID *int64, userID int64) ([]*models.Folder, error)
	InTree(ctx context.Context, fn func(repositories.FolderTree) error) error
}

// FolderListing is the root level of a user's drive.
type FolderListing struct {
	Folders []models.FolderView `json:"folders"`
	Files   []models.FileView   `json:"files"`
}

// TrashStats counts the rows a recursive trash marked deleted.
type TrashStats struct {
	Folders int
	Files   int64
}

type FolderService struct {
	folders     FolderRepository
	files       FileRepository
	now         func() time.Time
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
}

func NewFolderService(folders FolderRepository, files FileRepository, logger *slog.Logger, auditLogger *pkglogger.AuditLogger) *FolderService {
	return &FolderService{
		folders:     folders,
		files:       files,
		now:         time.Now,
		logger:      logger,
		auditLogger: auditLogger,
	}
}

// Create adds a folder at the root or under a live parent folder of the
// same owner. Sibling names are unique among live folders.
func (s *FolderService) Create(ctx context.Context, userID int64, name string, parentPublicID *string) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", models.ErrBadRequest)
	}
	if len(name) > maxFolderNameLength {
		return nil, fmt.Errorf("%w: folder name is too long", models.ErrBadRequest)
	}
	if parentPublicID != nil && strings.TrimSpace(*parentPublicID) == "" {
		parentPublicID = nil
	}

	folder, err := s.folders.Create(ctx, name, userID, parentPublicID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound), errors.Is(err, models.ErrConflict):
			return nil, err
		default:
			s.logger.Error("failed to create folder", slog.Int64("user_id", userID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}
	return folder, nil
}

// Get returns a live folder with its live direct subfolders and files.
func (s *FolderService) Get(ctx context.Context, userID int64, publicID string) (*models.FolderContents, error) {
	folder, err := s.folders.GetLive(ctx, publicID, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}

	children, err := s.folders.ListLiveChildren(ctx, &folder.ID, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	files, err := s.files.ListLive(ctx, &folder.ID, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}

	return &models.FolderContents{
		FolderView: folder.View(),
		Children:   folderViews(children),
		Files:      fileViews(files),
	}, nil
}

// ListRoot returns the live folders and files that have no parent.
func (s *FolderService) ListRoot(ctx context.Context, userID int64) (*FolderListing, error) {
	folders, err := s.folders.ListLiveChildren(ctx, nil, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	files, err := s.files.ListLive(ctx, nil, userID)
	if err != nil {
		return nil, s.lookupError(err)
	}
	return &FolderListing{Folders: folderViews(folders), Files: fileViews(files)}, nil
}

func (s *FolderService) lookupError(err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.ErrNotFound
	}
	s.logger.Error("folder lookup failed", slog.Any("error", err))
	return models.ErrInternalServer
}

// Trash soft-deletes a folder, every live folder beneath it and every live
// file in that subtree, all in one transaction. Rows keep their parent
// links, so the subtree can be restored as a unit. Any failure part way
// through rolls the whole subtree back.
func (s *FolderService) Trash(ctx context.Context, userID int64, userPublicID, publicID string) error {
	var stats TrashStats
	err := s.folders.InTree(ctx, func(tree repositories.FolderTree) error {
		var err error
		stats, err = trashSubtree(ctx, tree, userID, publicID, s.now())
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return models.ErrNotFound
		case errors.Is(err, models.ErrTreeCorrupt):
			s.logger.Error("refusing to trash corrupt folder tree",
				slog.String("folder_id", publicID),
				slog.Any("error", err))
			return models.ErrInternalServer
		default:
			s.logger.Error("failed to trash folder",
				slog.String("folder_id", publicID),
				slog.Any("error", err))
			return models.ErrUpstream
		}
	}

	s.auditLogger.Log(ctx, pkglogger.AuditEvent{
		EventType: pkglogger.EventFolderTrashed,
		UserID:    userPublicID,
		Success:   true,
		Metadata: map[string]string{
			"folder_id": publicID,
			"folders":   fmt.Sprint(stats.Folders),
			"files":     fmt.Sprint(stats.Files),
		},
	})
	return nil
}

type trashFrame struct {
	id       int64
	expanded bool
}

// trashSubtree walks the subtree rooted at publicID with an explicit stack,
// so depth is bounded by memory rather than the call stack. Files of a
// folder are trashed when it is first visited and the folder itself after
// all of its descendants. A folder reached twice means the parent links
// form a cycle.
func trashSubtree(ctx context.Context, tree repositories.FolderTree, userID int64, publicID string, at time.Time) (TrashStats, error) {
	var stats TrashStats

	rootID, err := tree.ResolveLive(ctx, publicID, userID)
	if err != nil {
		return stats, err
	}

	visited := map[int64]bool{}
	stack := []trashFrame{{id: rootID}}

	for len(stack) > 0 {
		top := len(stack) - 1
		frame := stack[top]

		if frame.expanded {
			if err := tree.TrashFolder(ctx, frame.id, userID, at); err != nil {
				return stats, err
			}
			stats.Folders++
			stack = stack[:top]
			continue
		}

		if visited[frame.id] {
			return stats, fmt.Errorf("%w: folder %d reached twice", models.ErrTreeCorrupt, frame.id)
		}
		visited[frame.id] = true
		stack[top].expanded = true

		n, err := tree.TrashFiles(ctx, frame.id, userID, at)
		if err != nil {
			return stats, err
		}
		stats.Files += n

		children, err := tree.ChildFolders(ctx, frame.id, userID)
		if err != nil {
			return stats, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, trashFrame{id: children[i]})
		}
	}

	return stats, nil
}

func folderViews(folders []*models.Folder) []models.FolderView {
	views := make([]models.FolderView, 0, len(folders))
	for _, f := range folders {
		views = append(views, f.View())
	}
	return views
}

func fileViews(files []*models.File) []models.FileView {
	views := make([]models.FileView, 0, len(files))
	for _, f := range files {
		views = append(views, f.View())
	}
	return views
}
