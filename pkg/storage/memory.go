package storage

import (
	"context"
	"sync"
)

// MemoryObject is one object held by a MemoryStore.
type MemoryObject struct {
	ContentType string
	Data        []byte
}

// MemoryStore is a BlobStore kept in process memory, used when no bucket is
// configured.
type MemoryStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]MemoryObject
}

func NewMemoryStore(baseURL string) *MemoryStore {
	return &MemoryStore{baseURL: baseURL, objects: make(map[string]MemoryObject)}
}

func (s *MemoryStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = MemoryObject{ContentType: contentType, Data: append([]byte(nil), data...)}
	return s.baseURL + "/" + key, nil
}

// Get returns the object stored under key.
func (s *MemoryStore) Get(key string) (MemoryObject, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj, ok
}
