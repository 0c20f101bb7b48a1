package models

import "time"

type File struct {
	ID             int64
	PublicID       string
	Name           string
	UserID         int64
	ParentFolderID *int64
	URL            string
	ObjectID       string
	MimeType       string
	SizeBytes      int64
	IsDeleted      bool
	DeletedAt      *time.Time
	UploadedAt     time.Time

	ParentPublicID *string
}

type FileView struct {
	PublicID       string    `json:"uuid"`
	Name           string    `json:"name"`
	ParentFolderID *string   `json:"parentFolderId"`
	URL            string    `json:"url"`
	MimeType       string    `json:"mimeType"`
	SizeBytes      int64     `json:"sizeBytes"`
	UploadedAt     time.Time `json:"uploadedAt"`
}

func (f *File) View() FileView {
	return FileView{
		PublicID:       f.PublicID,
		Name:           f.Name,
		ParentFolderID: f.ParentPublicID,
		URL:            f.URL,
		MimeType:       f.MimeType,
		SizeBytes:      f.SizeBytes,
		UploadedAt:     f.UploadedAt,
	}
}

// StoredObject describes a blob accepted by the object storage provider.
type StoredObject struct {
	URL       string
	ObjectID  string
	SizeBytes int64
	MimeType  string
}

// UploadFailure reports one file of a batch that could not be stored.
type UploadFailure struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// UploadResult is the outcome of a multi-file upload. Uploaded and Failed
// together account for every submitted file.
type UploadResult struct {
	Uploaded []FileView      `json:"uploaded"`
	Failed   []UploadFailure `json:"failed"`
}
