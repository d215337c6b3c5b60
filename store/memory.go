package store

import (
	"context"
	"sync"
)

// Memory keeps collections in process memory. It is the default for tests
// and the dev profile.
type Memory struct {
	mu   sync.RWMutex
	data map[Collection][]byte
}

func NewMemory() *Memory {
	return &Memory{data: make(map[Collection][]byte)}
}

func (m *Memory) Load(ctx context.Context, c Collection) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrap("load", c, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[c]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Save(ctx context.Context, c Collection, data []byte) error {
	if err := ctx.Err(); err != nil {
		return wrap("save", c, err)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	m.mu.Lock()
	m.data[c] = buf
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(ctx context.Context, c Collection) error {
	if err := ctx.Err(); err != nil {
		return wrap("remove", c, err)
	}
	m.mu.Lock()
	delete(m.data, c)
	m.mu.Unlock()
	return nil
}
