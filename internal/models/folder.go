package models

import "time"

type Folder struct {
	ID             int64
	PublicID       string
	Name           string
	UserID         int64
	ParentFolderID *int64
	IsDeleted      bool
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Populated by lookups, never stored.
	ParentPublicID *string
}

// FolderView is the JSON representation of a folder.
type FolderView struct {
	PublicID       string    `json:"uuid"`
	Name           string    `json:"name"`
	ParentFolderID *string   `json:"parentFolderId"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// FolderContents is a folder with its visible direct children.
type FolderContents struct {
	FolderView
	Children []FolderView `json:"children"`
	Files    []FileView   `json:"files"`
}

func (f *Folder) View() FolderView {
	return FolderView{
		PublicID:       f.PublicID,
		Name:           f.Name,
		ParentFolderID: f.ParentPublicID,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}
