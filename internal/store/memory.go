package store

import "sync"

// MemoryStore is an in-process KVStore. Used in tests and as the degraded
// fallback when a durable backend cannot be opened.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Get returns the blob stored under namespace, or (nil, nil) if absent.
func (s *MemoryStore) Get(namespace string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.blobs[namespace]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(blob))
	copy(out, blob)
	return out, nil
}

// Set replaces the blob stored under namespace.
func (s *MemoryStore) Set(namespace string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(blob))
	copy(stored, blob)
	s.blobs[namespace] = stored
	return nil
}

// Remove deletes the namespace.
func (s *MemoryStore) Remove(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, namespace)
	return nil
}
