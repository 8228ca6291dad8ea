package contentstore

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// MemoryBackend keeps content in process. Identical bytes yield identical identifiers.
type MemoryBackend struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{blobs: make(map[string][]byte)}
}

func (m *MemoryBackend) Add(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	id, err := ComputeCID(data)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.blobs[id] = data
	m.mu.Unlock()
	return id, nil
}

func (m *MemoryBackend) Cat(ctx context.Context, id string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.blobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
