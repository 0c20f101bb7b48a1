// Package storage binds file blobs to an object storage provider.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("object not found")

// Object is a blob to be stored.
type Object struct {
	Body        io.Reader
	Size        int64
	Name        string // original file name, used for the key extension
	ContentType string
	FolderHint  string // key prefix grouping, e.g. "files/<user>"
}

// Stored is the provider's receipt for an uploaded blob.
type Stored struct {
	URL       string
	ObjectID  string
	SizeBytes int64
	MimeType  string
}

// Provider is the object storage contract consumed by the services.
type Provider interface {
	Upload(ctx context.Context, obj Object) (Stored, error)
	Open(ctx context.Context, objectID string) (io.ReadCloser, error)
	Delete(ctx context.Context, objectID string) error
	BulkDelete(ctx context.Context, objectIDs []string) error
}

// objectKey builds a collision-free key that keeps the original extension.
func objectKey(prefix, hint, name string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(name, "\\", "/"))))
	if len(ext) > 16 {
		ext = ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, hint} {
		if p = strings.Trim(p, "/"); p != "" {
			parts = append(parts, p)
		}
	}
	parts = append(parts, uuid.NewString()+ext)
	return strings.Join(parts, "/")
}
