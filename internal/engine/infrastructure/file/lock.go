package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// ErrLocked is returned when another live process holds the snapshot lock.
var ErrLocked = errors.New("state file: locked by another process")

// Lock is an exclusive claim on a snapshot, held through a lock file next to
// it that records the owner's pid.
type Lock struct {
	path string
}

// LockPath returns the lock file guarding the snapshot.
func (s *Store) LockPath() string {
	if s == nil {
		return ""
	}
	return s.path + ".lock"
}

// Lock claims the snapshot for this process. A lock file left behind by a
// process that no longer exists is taken over.
func (s *Store) Lock() (*Lock, error) {
	if s == nil {
		return nil, errors.New("state file: nil store")
	}
	path := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("state file: mkdir: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
			cerr := f.Close()
			if werr == nil {
				werr = cerr
			}
			if werr != nil {
				_ = os.Remove(path)
				return nil, fmt.Errorf("state file: write lock: %w", werr)
			}
			return &Lock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("state file: lock: %w", err)
		}
		pid, ok := lockHolder(path)
		if !ok || processAlive(pid) {
			return nil, fmt.Errorf("%w: %s (pid %s)", ErrLocked, path, holderLabel(pid, ok))
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("state file: remove stale lock: %w", err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

// Release removes the lock file. Releasing twice is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	path := l.path
	l.path = ""
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state file: release lock: %w", err)
	}
	return nil
}

func lockHolder(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func holderLabel(pid int, ok bool) string {
	if !ok {
		return "unknown"
	}
	return strconv.Itoa(pid)
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}
