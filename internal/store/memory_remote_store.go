package store

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryRemoteStore implements RemoteStore in memory, with synchronous
// change delivery. Used in tests and for single-machine deployments with no
// hosted store.
type MemoryRemoteStore struct {
	mu          sync.Mutex
	bulk        map[string]json.RawMessage
	children    map[string]map[string]json.RawMessage
	subscribers map[string]map[int]func(json.RawMessage, bool)
	nextSubID   int
	closed      bool
}

// NewMemoryRemoteStore creates an empty in-memory remote store
func NewMemoryRemoteStore() *MemoryRemoteStore {
	return &MemoryRemoteStore{
		bulk:        make(map[string]json.RawMessage),
		children:    make(map[string]map[string]json.RawMessage),
		subscribers: make(map[string]map[int]func(json.RawMessage, bool)),
	}
}

// Get returns the merged document at path
func (s *MemoryRemoteStore) Get(ctx context.Context, path string) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return mergeDocument(s.bulk[path], s.children[path])
}

// Set overwrites the whole document at path
func (s *MemoryRemoteStore) Set(ctx context.Context, path string, value json.RawMessage) error {
	s.mu.Lock()
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.bulk[path] = stored
	delete(s.children, path)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Delete removes the document and its children
func (s *MemoryRemoteStore) Delete(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.bulk, path)
	delete(s.children, path)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// SetChild writes one record under path
func (s *MemoryRemoteStore) SetChild(ctx context.Context, path, childID string, value json.RawMessage) error {
	s.mu.Lock()
	if s.children[path] == nil {
		s.children[path] = make(map[string]json.RawMessage)
	}
	stored := make(json.RawMessage, len(value))
	copy(stored, value)
	s.children[path][childID] = stored
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// DeleteChild removes one record under path
func (s *MemoryRemoteStore) DeleteChild(ctx context.Context, path, childID string) error {
	s.mu.Lock()
	delete(s.children[path], childID)
	s.mu.Unlock()

	s.notify(path)
	return nil
}

// Subscribe registers deliver for path and fires it with the current value
func (s *MemoryRemoteStore) Subscribe(path string, deliver func(json.RawMessage, bool)) (func(), error) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	if s.subscribers[path] == nil {
		s.subscribers[path] = make(map[int]func(json.RawMessage, bool))
	}
	s.subscribers[path][id] = deliver
	value, err := mergeDocument(s.bulk[path], s.children[path])
	s.mu.Unlock()

	// Initial delivery, matching the standing-listener contract.
	deliver(value, err == nil)

	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers[path], id)
		s.mu.Unlock()
	}
	return cancel, nil
}

// notify delivers the current document to every subscriber of path. The
// callbacks run outside the store lock so a slow subscriber cannot block
// writers.
func (s *MemoryRemoteStore) notify(path string) {
	s.mu.Lock()
	value, err := mergeDocument(s.bulk[path], s.children[path])
	subs := make([]func(json.RawMessage, bool), 0, len(s.subscribers[path]))
	for _, deliver := range s.subscribers[path] {
		subs = append(subs, deliver)
	}
	s.mu.Unlock()

	for _, deliver := range subs {
		deliver(value, err == nil)
	}
}

// Ping always succeeds for the in-memory store
func (s *MemoryRemoteStore) Ping(ctx context.Context) error {
	return nil
}

// Close drops all subscribers
func (s *MemoryRemoteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = make(map[string]map[int]func(json.RawMessage, bool))
	s.closed = true
	return nil
}
