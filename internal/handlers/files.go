package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

// uploadMemory is how much of a multipart body is buffered in memory before
// parts spill to temporary files.
const uploadMemory = 32 << 20

type FileServiceInterface interface {
	Upload(ctx context.Context, userID int64, userPublicID string, parentPublicID *string, inputs []services.UploadInput) (*models.UploadResult, error)
	Get(ctx context.Context, userID int64, publicID string) (*models.File, error)
	Open(ctx context.Context, userID int64, publicID string) (*models.File, io.ReadCloser, error)
	Delete(ctx context.Context, userID int64, publicID string) error
}

type FileHandler struct {
	service     FileServiceInterface
	maxFileSize int64
	maxFiles    int
	logger      *slog.Logger
}

func NewFileHandler(service FileServiceInterface, maxFileSize int64, maxFiles int, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		service:     service,
		maxFileSize: maxFileSize,
		maxFiles:    maxFiles,
		logger:      logger,
	}
}

func (h *FileHandler) bodyLimit() int64 {
	files := int64(h.maxFiles)
	if files < 1 {
		files = 1
	}
	return files*h.maxFileSize + multipartOverhead
}

// Upload handles POST /files/upload
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.bodyLimit())
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			pkghttp.WritePayloadTooLarge(w, "Upload exceeds the maximum allowed size")
			return
		}
		pkghttp.WriteBadRequest(w, "Invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var parent *string
	if values := r.MultipartForm.Value["parentFolderId"]; len(values) > 0 && values[0] != "" {
		parent = &values[0]
	}

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		headers = r.MultipartForm.File["files[]"]
	}
	inputs := make([]services.UploadInput, 0, len(headers))
	for _, fh := range headers {
		inputs = append(inputs, uploadInput(fh))
	}

	result, err := h.service.Upload(r.Context(), user.UserID, user.PublicID, parent, inputs)
	switch {
	case err == nil && len(result.Failed) == 0:
		pkghttp.WriteJSON(w, http.StatusCreated, result)
	case err == nil:
		pkghttp.WriteJSON(w, http.StatusMultiStatus, result)
	case result != nil && errors.Is(err, models.ErrBadRequest):
		pkghttp.WriteJSON(w, http.StatusBadRequest, struct {
			ErrorResponse
			Failed []models.UploadFailure `json:"failed"`
		}{
			ErrorResponse: ErrorResponse{Error: "bad_request", Message: "None of the files could be accepted"},
			Failed:        result.Failed,
		})
	default:
		writeServiceError(w, h.logger, err)
	}
}

func uploadInput(fh *multipart.FileHeader) services.UploadInput {
	return services.UploadInput{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Get handles GET /files/{id}
func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	file, err := h.service.Get(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"file": file.View()})
}

// Download handles GET /files/{id}/download
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	file, body, err := h.service.Open(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	defer body.Close()

	contentType := file.MimeType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if file.SizeBytes > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(file.SizeBytes, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("download interrupted",
			slog.String("file_id", file.PublicID),
			slog.Any("error", err))
	}
}

// Delete handles DELETE /files/{id}
func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), user.UserID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusOK, "File moved to trash")
}
