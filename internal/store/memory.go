package store

import (
	"context"
	"sync"
)

// Memory is a process-local backend used by tests and the memory driver.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, collection string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	raw, ok := m.data[collection]
	if !ok {
		return nil, ErrCollectionMissing
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (m *Memory) Save(_ context.Context, collection string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.data[collection] = buf
	return nil
}

func (m *Memory) Remove(_ context.Context, collection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[collection]; !ok {
		return ErrCollectionMissing
	}
	delete(m.data, collection)
	return nil
}

func (m *Memory) Ping(context.Context) error {
	return nil
}
