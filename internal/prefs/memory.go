package prefs

import (
	"context"
	"sync"
)

// MemoryBackend keeps preferences in process memory. MaxBytes, when set,
// caps the total stored size the way browser storage quotas do.
type MemoryBackend struct {
	mu       sync.RWMutex
	data     map[string][]byte
	size     int
	MaxBytes int
	disabled bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Disable makes every subsequent call fail with ErrUnavailable.
func (m *MemoryBackend) Disable() {
	m.mu.Lock()
	m.disabled = true
	m.mu.Unlock()
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.disabled {
		return nil, false, ErrUnavailable
	}
	v, ok := m.data[memoryKey(namespace, key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

// Save implements Backend.
func (m *MemoryBackend) Save(_ context.Context, namespace, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disabled {
		return ErrUnavailable
	}
	k := memoryKey(namespace, key)
	next := m.size - len(m.data[k]) + len(value)
	if m.MaxBytes > 0 && next > m.MaxBytes {
		return ErrQuotaExceeded
	}
	stored := make([]byte, len(value))
	copy(stored, value)
	m.data[k] = stored
	m.size = next
	return nil
}

// Put writes a raw value without validation. Tests use it to plant corrupt data.
func (m *MemoryBackend) Put(namespace, key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := memoryKey(namespace, key)
	m.size += len(value) - len(m.data[k])
	m.data[k] = value
}

func memoryKey(namespace, key string) string {
	return namespace + "\x00" + key
}

var _ Backend = (*MemoryBackend)(nil)
