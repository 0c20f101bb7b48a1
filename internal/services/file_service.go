package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/storage"
)

var (
	ErrFileTooLarge    = fmt.Errorf("%w: file too large", models.ErrBadRequest)
	ErrUnsupportedType = fmt.Errorf("%w: file type not allowed", models.ErrBadRequest)
	ErrNoFiles         = fmt.Errorf("%w: no files provided", models.ErrBadRequest)
	ErrTooManyFiles    = fmt.Errorf("%w: too many files", models.ErrBadRequest)
)

// blockedMimeTypes are never accepted, whatever the client declares.
var blockedMimeTypes = map[string]bool{
	"application/x-msdownload": true,
	"application/javascript":   true,
	"application/x-sh":         true,
	"text/html":                true,
}

// blockedExtensions covers names whose extension implies a blocked type
// even when the content sniffs as something harmless.
var blockedExtensions = map[string]string{
	".exe":  "application/x-msdownload",
	".dll":  "application/x-msdownload",
	".msi":  "application/x-msdownload",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".sh":   "application/x-sh",
	".html": "text/html",
	".htm":  "text/html",
}

const sniffLen = 512

// FileRepository defines file persistence
type FileRepository interface {
	FileObjectLister
	ResolveParent(ctx context.Context, publicID string, userID int64) (int64, error)
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetLive(ctx context.Context, publicID string, userID int64) (*models.File, error)
	ListLive(ctx context.Context, folderID *int64, userID int64) ([]*models.File, error)
	SoftDelete(ctx context.Context, publicID string, userID int64, at time.Time) error
}

// UploadInput is one part of a multipart upload.
type UploadInput struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

type FileService struct {
	files       FileRepository
	store       storage.Provider
	maxFileSize int64
	maxFiles    int
	parallel    int
	now         func() time.Time
	logger      *slog.Logger
}

func NewFileService(files FileRepository, store storage.Provider, maxFileSize int64, maxFiles, parallel int, logger *slog.Logger) *FileService {
	if parallel < 1 {
		parallel = 1
	}
	return &FileService{
		files:       files,
		store:       store,
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
		parallel:    parallel,
		now:         time.Now,
		logger:      logger,
	}
}

// baseMime strips parameters such as charset from a media type.
func baseMime(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return mt
}

// sniffContentType peeks at the body to detect its media type and returns
// a reader that still yields the full content. The declared type is kept
// when detection is inconclusive.
func sniffContentType(body io.Reader, declared string) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", nil, err
	}
	head = head[:n]

	detected := baseMime(http.DetectContentType(head))
	declared = baseMime(declared)

	contentType := detected
	if detected == "application/octet-stream" || detected == "text/plain" {
		if declared != "" && declared != "application/octet-stream" {
			contentType = declared
		}
	}
	return contentType, io.MultiReader(bytes.NewReader(head), body), nil
}

func isBlocked(name, declared, detected string) bool {
	if blockedMimeTypes[baseMime(declared)] || blockedMimeTypes[detected] {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	if mt, ok := blockedExtensions[ext]; ok {
		return blockedMimeTypes[mt]
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return blockedMimeTypes[baseMime(byExt)]
	}
	return false
}

// Upload stores every file of a batch, optionally inside a live folder.
// Files are processed concurrently and independently, so one failure never
// undoes another file's upload. The returned result always accounts for
// every input. The error is nil when at least one file was stored.
func (s *FileService) Upload(ctx context.Context, userID int64, userPublicID string, parentPublicID *string, inputs []UploadInput) (*models.UploadResult, error) {
	if len(inputs) == 0 {
		return nil, ErrNoFiles
	}
	if s.maxFiles > 0 && len(inputs) > s.maxFiles {
		return nil, ErrTooManyFiles
	}

	var parentID *int64
	if parentPublicID != nil && strings.TrimSpace(*parentPublicID) != "" {
		id, err := s.files.ResolveParent(ctx, *parentPublicID, userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.ErrNotFound
			}
			s.logger.Error("failed to resolve upload folder", slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		parentID = &id
	}

	type outcome struct {
		file    *models.File
		reason  string
		invalid bool
	}
	outcomes := make([]outcome, len(inputs))

	var g errgroup.Group
	g.SetLimit(s.parallel)
	for i, in := range inputs {
		g.Go(func() error {
			file, err := s.uploadOne(ctx, userID, userPublicID, parentID, in)
			switch {
			case err == nil:
				outcomes[i] = outcome{file: file}
			case errors.Is(err, models.ErrBadRequest):
				outcomes[i] = outcome{reason: uploadReason(err), invalid: true}
			default:
				outcomes[i] = outcome{reason: uploadReason(err)}
			}
			return nil
		})
	}
	_ = g.Wait()

	result := &models.UploadResult{
		Uploaded: make([]models.FileView, 0, len(inputs)),
		Failed:   make([]models.UploadFailure, 0),
	}
	allInvalid := true
	for i, o := range outcomes {
		if o.file != nil {
			result.Uploaded = append(result.Uploaded, o.file.View())
			continue
		}
		allInvalid = allInvalid && o.invalid
		result.Failed = append(result.Failed, models.UploadFailure{Name: inputs[i].Name, Reason: o.reason})
	}

	if len(result.Uploaded) == 0 {
		if allInvalid {
			return result, models.ErrBadRequest
		}
		return result, models.ErrUpstream
	}
	return result, nil
}

func uploadReason(err error) string {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		return "File exceeds the maximum allowed size"
	case errors.Is(err, ErrUnsupportedType):
		return "File type not allowed"
	case errors.Is(err, models.ErrNotFound):
		return "Destination folder no longer exists"
	case errors.Is(err, models.ErrConflict):
		return "File could not be recorded"
	case errors.Is(err, models.ErrBadRequest):
		return "Invalid file"
	default:
		return "Upload failed"
	}
}

func (s *FileService) uploadOne(ctx context.Context, userID int64, userPublicID string, parentID *int64, in UploadInput) (*models.File, error) {
	name := strings.TrimSpace(filepath.Base(strings.ReplaceAll(in.Name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return nil, fmt.Errorf("%w: missing file name", models.ErrBadRequest)
	}
	if s.maxFileSize > 0 && in.Size > s.maxFileSize {
		return nil, ErrFileTooLarge
	}

	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable file", models.ErrBadRequest)
	}
	defer rc.Close()

	contentType, body, err := sniffContentType(rc, in.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: unreadable file", models.ErrBadRequest)
	}
	if isBlocked(name, in.ContentType, contentType) {
		return nil, ErrUnsupportedType
	}

	stored, err := s.store.Upload(ctx, storage.Object{
		Body:        body,
		Size:        in.Size,
		Name:        name,
		ContentType: contentType,
		FolderHint:  "files/" + userPublicID,
	})
	if err != nil {
		s.logger.Error("failed to upload file to storage",
			slog.String("file_name", name),
			slog.Any("error", err))
		return nil, models.ErrUpstream
	}

	created, err := s.files.Create(ctx, &models.File{
		Name:           name,
		UserID:         userID,
		ParentFolderID: parentID,
		URL:            stored.URL,
		ObjectID:       stored.ObjectID,
		MimeType:       stored.MimeType,
		SizeBytes:      stored.SizeBytes,
	})
	if err != nil {
		if delErr := s.store.Delete(ctx, stored.ObjectID); delErr != nil {
			s.logger.Warn("failed to remove orphaned object",
				slog.String("object_id", stored.ObjectID),
				slog.Any("error", delErr))
		}
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to record uploaded file", slog.Any("error", err))
		return nil, models.ErrUpstream
	}
	return created, nil
}

// Get returns a live file owned by userID.
func (s *FileService) Get(ctx context.Context, userID int64, publicID string) (*models.File, error) {
	file, err := s.files.GetLive(ctx, publicID, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load file", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return file, nil
}

// Open returns the file record and a stream of its content. The caller
// closes the stream.
func (s *FileService) Open(ctx context.Context, userID int64, publicID string) (*models.File, io.ReadCloser, error) {
	file, err := s.Get(ctx, userID, publicID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(ctx, file.ObjectID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("file record has no stored object", slog.String("file_id", file.PublicID))
			return nil, nil, models.ErrNotFound
		}
		s.logger.Error("failed to open stored object", slog.Any("error", err))
		return nil, nil, models.ErrUpstream
	}
	return file, rc, nil
}

// Delete moves a single file to the trash.
func (s *FileService) Delete(ctx context.Context, userID int64, publicID string) error {
	if err := s.files.SoftDelete(ctx, publicID, userID, s.now()); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrNotFound
		}
		s.logger.Error("failed to delete file", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}
