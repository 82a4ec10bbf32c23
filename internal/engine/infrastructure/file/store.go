package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"homewatch/internal/engine"
)

// Store persists engine state as a single JSON snapshot file.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore constructs a file store at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("state file: empty path")
	}
	return &Store{path: path}, nil
}

// Path returns the snapshot path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Load reads the snapshot. A missing file yields an empty state.
func (s *Store) Load(ctx context.Context) (engine.State, error) {
	if s == nil {
		return engine.State{}, errors.New("state file: nil store")
	}
	if err := ctx.Err(); err != nil {
		return engine.State{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return engine.State{}, nil
	}
	if err != nil {
		return engine.State{}, fmt.Errorf("state file: read: %w", err)
	}
	var state engine.State
	if err := json.Unmarshal(data, &state); err != nil {
		return engine.State{}, fmt.Errorf("state file: decode %s: %w", s.path, err)
	}
	return state, nil
}

// Save writes the snapshot to a temporary file and renames it into place.
func (s *Store) Save(ctx context.Context, state engine.State) error {
	if s == nil {
		return errors.New("state file: nil store")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("state file: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("state file: mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("state file: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("state file: rename: %w", err)
	}
	return nil
}
