package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryMirror implements LocalMirror in memory. Used in tests and as the
// fallback when no durable mirror path is configured.
type MemoryMirror struct {
	mu   sync.RWMutex
	data map[string]json.RawMessage
}

// NewMemoryMirror creates an empty in-memory mirror
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{data: make(map[string]json.RawMessage)}
}

// Load retrieves the last value saved under key
func (m *MemoryMirror) Load(key string) (json.RawMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[MirrorPrefix+key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make(json.RawMessage, len(value))
	copy(out, value)
	return out, nil
}

// Save stores value under key, replacing any prior value
func (m *MemoryMirror) Save(key string, value json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	m.data[MirrorPrefix+key] = stored
	return nil
}

// Remove deletes the entry for key
func (m *MemoryMirror) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, MirrorPrefix+key)
	return nil
}

// Keys returns all logical keys with a mirrored value, sorted
func (m *MemoryMirror) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, strings.TrimPrefix(k, MirrorPrefix))
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping always succeeds for the in-memory mirror
func (m *MemoryMirror) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (m *MemoryMirror) Close() error {
	return nil
}
