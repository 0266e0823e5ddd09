package objectstore

import (
	"context"
	"strings"
	"sync"

	"github.com/flowershow/contentsync/internal/common/apperrors"
)

type MemoryBackend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{objects: make(map[string][]byte)}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, data []byte) apperrors.Error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, apperrors.Error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound.Msg("object not found: " + key)
	}
	return append([]byte(nil), data...), nil
}

// Delete succeeds when key is already absent.
func (m *MemoryBackend) Delete(ctx context.Context, key string) apperrors.Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *MemoryBackend) DeletePrefix(ctx context.Context, prefix string) apperrors.Error {
	if prefix == "" {
		return ErrInvalidKey.Msg("prefix cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			delete(m.objects, k)
		}
	}
	return nil
}

// Len returns the number of stored objects.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
