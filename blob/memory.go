package blob

import (
	"context"
	"fmt"
	"slices"
	"sync"
)

// MemoryStore keeps content in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (m *MemoryStore) Store(ctx context.Context, path string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if path == "" {
		return "", fmt.Errorf("invalid blob path %q", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.blobs[path] = slices.Clone(data)

	return makeRef(path, data), nil
}

func (m *MemoryStore) Retrieve(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, digest, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	data, ok := m.blobs[path]
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}

	if err := verify(ref, digest, data); err != nil {
		return nil, err
	}

	return slices.Clone(data), nil
}

func (m *MemoryStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, _, err := parseRef(ref)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.blobs, path)

	return nil
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.blobs)
}
