package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lalithsaicharan00/cloud-storage-api/internal/handlers"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/models"
	"github.com/lalithsaicharan00/cloud-storage-api/internal/services"
)

func newFolderHandler(svc handlers.FolderServiceInterface) *handlers.FolderHandler {
	return handlers.NewFolderHandler(svc, discardLogger())
}

func TestCreateFolder(t *testing.T) {
	parentView := "11111111-1111-4111-8111-111111111111"
	mock := &handlers.MockFolderService{
		CreateFunc: func(ctx context.Context, userID int64, name string, parentPublicID *string) (*models.Folder, error) {
			if name == "Docs" {
				return nil, models.ErrConflict
			}
			return &models.Folder{PublicID: "f-new", Name: name, ParentPublicID: parentPublicID}, nil
		},
	}
	h := newFolderHandler(mock)

	w := httptest.NewRecorder()
	h.Create(w, authed(handlers.NewTestRequest(t, http.MethodPost, "/folders", handlers.CreateFolderRequest{
		Name: "Photos", ParentFolderID: &parentView,
	})))
	var resp map[string]models.FolderView
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &resp)
	require.NotNil(t, resp["folder"].ParentFolderID)
	assert.Equal(t, parentView, *resp["folder"].ParentFolderID)

	w = httptest.NewRecorder()
	h.Create(w, authed(handlers.NewTestRequest(t, http.MethodPost, "/folders", handlers.CreateFolderRequest{Name: "Docs"})))
	handlers.AssertErrorResponse(t, w, http.StatusConflict, "conflict")

	bad := "not-a-uuid"
	w = httptest.NewRecorder()
	h.Create(w, authed(handlers.NewTestRequest(t, http.MethodPost, "/folders", handlers.CreateFolderRequest{Name: "X", ParentFolderID: &bad})))
	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
}

func TestListAndGetFolder(t *testing.T) {
	mock := &handlers.MockFolderService{
		ListRootFunc: func(ctx context.Context, userID int64) (*services.FolderListing, error) {
			return &services.FolderListing{
				Folders: []models.FolderView{{PublicID: "a", Name: "A"}},
				Files:   []models.FileView{},
			}, nil
		},
		GetFunc: func(ctx context.Context, userID int64, publicID string) (*models.FolderContents, error) {
			if publicID != "a" {
				return nil, models.ErrNotFound
			}
			return &models.FolderContents{
				FolderView: models.FolderView{PublicID: "a", Name: "A"},
				Children:   []models.FolderView{{PublicID: "b", Name: "B"}},
				Files:      []models.FileView{},
			}, nil
		},
	}
	h := newFolderHandler(mock)

	w := httptest.NewRecorder()
	h.List(w, authed(httptest.NewRequest(http.MethodGet, "/folders", nil)))
	var listing services.FolderListing
	handlers.AssertJSONResponse(t, w, http.StatusOK, &listing)
	assert.Len(t, listing.Folders, 1)

	w = httptest.NewRecorder()
	h.Get(w, authed(handlers.WithURLParam(httptest.NewRequest(http.MethodGet, "/folders/a", nil), "id", "a")))
	var got map[string]models.FolderContents
	handlers.AssertJSONResponse(t, w, http.StatusOK, &got)
	assert.Equal(t, "B", got["folder"].Children[0].Name)

	w = httptest.NewRecorder()
	h.Get(w, authed(handlers.WithURLParam(httptest.NewRequest(http.MethodGet, "/folders/z", nil), "id", "z")))
	handlers.AssertErrorResponse(t, w, http.StatusNotFound, "not_found")
}

func TestDeleteFolder(t *testing.T) {
	var gotOwner string
	mock := &handlers.MockFolderService{
		TrashFunc: func(ctx context.Context, userID int64, userPublicID, publicID string) error {
			gotOwner = userPublicID
			switch publicID {
			case "a":
				return nil
			case "broken":
				return models.ErrUpstream
			}
			return models.ErrNotFound
		},
	}
	h := newFolderHandler(mock)
	del := func(id string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.Delete(w, authed(handlers.WithURLParam(httptest.NewRequest(http.MethodDelete, "/folders/"+id, nil), "id", id)))
		return w
	}

	assert.Equal(t, http.StatusOK, del("a").Code)
	assert.Equal(t, "u-7", gotOwner)
	handlers.AssertErrorResponse(t, del("gone"), http.StatusNotFound, "not_found")
	handlers.AssertErrorResponse(t, del("broken"), http.StatusInternalServerError, "internal_error")
}
