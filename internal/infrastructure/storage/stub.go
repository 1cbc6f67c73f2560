// Package storage provides the object-storage backend for the published
// catalog snapshot.
package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	syncapp "github.com/tradeshelf/backend/internal/application/sync"
)

// MemorySnapshotStorage keeps uploaded objects in memory. Use this for
// development until a real S3-compatible backend is configured.
type MemorySnapshotStorage struct {
	mu      sync.Mutex
	objects map[string]memoryObject
}

type memoryObject struct {
	body     []byte
	modified time.Time
}

// NewMemorySnapshotStorage creates an empty in-memory store.
func NewMemorySnapshotStorage() *MemorySnapshotStorage {
	return &MemorySnapshotStorage{objects: make(map[string]memoryObject)}
}

// Ensure MemorySnapshotStorage implements the exporter's storage port.
var _ syncapp.SnapshotStorage = (*MemorySnapshotStorage)(nil)

// LastModified returns the stored object's upload time.
func (s *MemorySnapshotStorage) LastModified(_ context.Context, key string) (time.Time, bool, error) {
	if key == "" {
		return time.Time{}, false, errors.New("storage key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	object, ok := s.objects[key]
	if !ok {
		return time.Time{}, false, nil
	}
	return object.modified, true, nil
}

// Upload stores the object, overwriting any previous version.
func (s *MemorySnapshotStorage) Upload(_ context.Context, key string, body []byte, _, _ string) error {
	if key == "" {
		return errors.New("storage key is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{
		body:     append([]byte(nil), body...),
		modified: time.Now(),
	}
	return nil
}

// Object returns the stored body for inspection.
func (s *MemorySnapshotStorage) Object(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	object, ok := s.objects[key]
	return object.body, ok
}
