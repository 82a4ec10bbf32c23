package contacts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	escalation "homewatch/internal/escalation/domain"
)

// FileSource reads the escalation ladder from a YAML (or JSON) file on every Get.
type FileSource struct {
	path string
}

// NewFileSource constructs a file-backed ladder source.
func NewFileSource(path string) (*FileSource, error) {
	if path == "" {
		return nil, errors.New("contacts: empty path")
	}
	return &FileSource{path: path}, nil
}

// Path returns the backing file path.
func (s *FileSource) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Get loads the ladder. A missing file yields the default ladder.
func (s *FileSource) Get(ctx context.Context) (escalation.Ladder, error) {
	if s == nil {
		return escalation.DefaultLadder(), nil
	}
	if err := ctx.Err(); err != nil {
		return escalation.Ladder{}, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return escalation.DefaultLadder(), nil
	}
	if err != nil {
		return escalation.Ladder{}, fmt.Errorf("contacts: read %s: %w", s.path, err)
	}
	var ladder escalation.Ladder
	if err := yaml.Unmarshal(data, &ladder); err != nil {
		return escalation.Ladder{}, fmt.Errorf("contacts: parse %s: %w", s.path, err)
	}
	if err := ladder.Validate(); err != nil {
		return escalation.Ladder{}, err
	}
	ladder = ladder.Normalize()
	if ladder.EmergencyService.Phone == "" {
		ladder.EmergencyService = escalation.DefaultLadder().EmergencyService
	}
	return ladder, nil
}

// Save writes the ladder, replacing the file atomically.
func (s *FileSource) Save(ladder escalation.Ladder) error {
	if s == nil {
		return errors.New("contacts: nil source")
	}
	if err := ladder.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(ladder.Normalize())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("contacts: mkdir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("contacts: write: %w", err)
	}
	return os.Rename(tmp, s.path)
}
