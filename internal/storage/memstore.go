package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// MemStore is an in-memory ObjectStore for tests and local development.
type MemStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

type memObject struct {
	data        []byte
	contentType string
}

func NewMemStore() *MemStore {
	return &MemStore{objects: map[string]memObject{}}
}

func (m *MemStore) Put(_ context.Context, key, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{data: data, contentType: contentType}
	return nil
}

func (m *MemStore) Get(_ context.Context, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("storage: object %s not found", key)
	}
	return obj.data, obj.contentType, nil
}

// Len reports the number of stored objects.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
