package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
)

// FileStore keeps the whole state document in one JSON file. The file is read
// fully into memory, mutated, and written fully back; there are no partial or
// delta writes. Pretty-printing is for human inspection only.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore opens (and if necessary initializes) the state file at path.
// A missing file is created containing an empty mapping, and the containing
// directory is created if absent, so the file always holds valid JSON.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
			return nil, fmt.Errorf("initialize state file: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat state file: %w", err)
	}

	return &FileStore{path: path}, nil
}

// Path returns the location of the backing file.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.
func (s *FileStore) Load() (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// Save implements Store. This is a last-writer-wins whole-document overwrite;
// there is no merge and no optimistic concurrency check.
func (s *FileStore) Save(state map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(state)
}

// Add implements Store. Load, set, and save happen under one lock so
// in-process writers cannot discard each other's updates.
func (s *FileStore) Add(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.loadLocked()
	if err != nil {
		return err
	}
	state[key] = value
	return s.saveLocked(state)
}

func (s *FileStore) loadLocked() (map[string]any, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var state map[string]any
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	if state == nil {
		return nil, fmt.Errorf("%w: document is null", ErrCorruptState)
	}
	return state, nil
}

func (s *FileStore) saveLocked(state map[string]any) error {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}
