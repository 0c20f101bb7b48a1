package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// Memory is an in-process Provider for local development and tests.
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
	baseURL string
}

func NewMemory(baseURL string) *Memory {
	return &Memory{objects: make(map[string][]byte), baseURL: baseURL}
}

func (m *Memory) Upload(ctx context.Context, obj Object) (Stored, error) {
	data, err := io.ReadAll(obj.Body)
	if err != nil {
		return Stored{}, fmt.Errorf("failed to read upload: %w", err)
	}
	key := objectKey("", obj.FolderHint, obj.Name)

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()

	return Stored{
		URL:       m.baseURL + "/" + key,
		ObjectID:  key,
		SizeBytes: int64(len(data)),
		MimeType:  obj.ContentType,
	}, nil
}

func (m *Memory) Open(ctx context.Context, objectID string) (io.ReadCloser, error) {
	m.mu.Lock()
	data, ok := m.objects[objectID]
	m.mu.Unlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Delete(ctx context.Context, objectID string) error {
	m.mu.Lock()
	delete(m.objects, objectID)
	m.mu.Unlock()
	return nil
}

func (m *Memory) BulkDelete(ctx context.Context, objectIDs []string) error {
	m.mu.Lock()
	for _, id := range objectIDs {
		delete(m.objects, id)
	}
	m.mu.Unlock()
	return nil
}

// Len reports how many objects are stored.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
