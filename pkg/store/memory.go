package store

import (
	"context"
	"sync"
)

type optionKey struct {
	project string
	key     string
}

// MemoryStore keeps options in process memory. Values are copied on the way
// in and out.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[optionKey][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[optionKey][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, project, key string) ([]byte, error) {
	if err := validateKey(project, key); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[optionKey{project, key}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (m *MemoryStore) Set(_ context.Context, project, key string, value []byte) error {
	if err := validateKey(project, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[optionKey{project, key}] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, project, key string) error {
	if err := validateKey(project, key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, optionKey{project, key})
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
