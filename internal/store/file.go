package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore persists each namespace as a file under a base directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Get returns the blob stored under namespace, or (nil, nil) if absent.
func (s *FileStore) Get(namespace string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(namespace))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read namespace %q: %w", namespace, err)
	}
	return blob, nil
}

// Set replaces the blob stored under namespace. The write goes through a
// temp file and rename so a crash mid-write never corrupts prior state.
func (s *FileStore) Set(namespace string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(namespace)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, blob, 0644); err != nil {
		return fmt.Errorf("write namespace %q: %w", namespace, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit namespace %q: %w", namespace, err)
	}
	return nil
}

// Remove deletes the namespace.
func (s *FileStore) Remove(namespace string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(namespace))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove namespace %q: %w", namespace, err)
	}
	return nil
}

func (s *FileStore) path(namespace string) string {
	// Namespaces are dotted identifiers; keep the filename flat.
	name := strings.ReplaceAll(namespace, string(os.PathSeparator), "_")
	return filepath.Join(s.dir, name+".json")
}
