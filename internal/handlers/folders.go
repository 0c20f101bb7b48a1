package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
	pkghttp "github.com/lalithsaicharan00/cloud-storage-api/pkg/http"
)

type FolderServiceInterface interface {
	Create(ctx context.Context, userID int64, name string, parentPublicID *string) (*models.Folder, error)
	Get(ctx context.Context, userID int64, publicID string) (*models.FolderContents, error)
	ListRoot(ctx context.Context, userID int64) (*services.FolderListing, error)
	Trash(ctx context.Context, userID int64, userPublicID, publicID string) error
}

type FolderHandler struct {
	service FolderServiceInterface
	logger  *slog.Logger
}

func NewFolderHandler(service FolderServiceInterface, logger *slog.Logger) *FolderHandler {
	return &FolderHandler{service: service, logger: logger}
}

type CreateFolderRequest struct {
	Name           string  `json:"name" validate:"required,max=255"`
	ParentFolderID *string `json:"parentFolderId" validate:"omitempty,uuid"`
}

// Create handles POST /folders
func (h *FolderHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req CreateFolderRequest
	if !decode(w, r, &req) {
		return
	}

	folder, err := h.service.Create(r.Context(), user.UserID, req.Name, req.ParentFolderID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusCreated, map[string]any{"folder": folder.View()})
}

// List handles GET /folders
func (h *FolderHandler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	listing, err := h.service.ListRoot(r.Context(), user.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, listing)
}

// Get handles GET /folders/{id}
func (h *FolderHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	contents, err := h.service.Get(r.Context(), user.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{"folder": contents})
}

// Delete handles DELETE /folders/{id}. The folder and everything below it
// moves to the trash as one unit.
func (h *FolderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Trash(r.Context(), user.UserID, user.PublicID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	pkghttp.WriteMessage(w, http.StatusOK, "Folder moved to trash")
}
