package diagnostics

import (
	"log"
	"sync"
)

const (
	// TailLimit is the maximum number of entries a read exposes.
	TailLimit = 10

	defaultCapacity = 1000
)

// Recorder accepts human-readable trace messages.
type Recorder interface {
	Record(message string)
}

// Log is a bounded append-only record of diagnostic messages.
type Log struct {
	mu       sync.RWMutex
	entries  []string
	capacity int
	logger   *log.Logger
}

// Option configures the log.
type Option func(*Log)

// WithCapacity caps the number of stored entries; older entries are dropped.
func WithCapacity(capacity int) Option {
	return func(l *Log) {
		if capacity > 0 {
			l.capacity = capacity
		}
	}
}

// WithLogger mirrors every recorded message to logger.
func WithLogger(logger *log.Logger) Option {
	return func(l *Log) {
		l.logger = logger
	}
}

// New constructs an empty diagnostics log.
func New(opts ...Option) *Log {
	l := &Log{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(l)
	}
	l.entries = make([]string, 0, min(l.capacity, 64))
	return l
}

// Record appends a message.
func (l *Log) Record(message string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	if len(l.entries) >= l.capacity {
		l.entries = append(l.entries[:0], l.entries[len(l.entries)-l.capacity+1:]...)
	}
	l.entries = append(l.entries, message)
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.Printf("diag: %s", message)
	}
}

// Tail returns the last min(n, len) entries in chronological order.
// n <= 0 and n > TailLimit are both clamped to TailLimit.
func (l *Log) Tail(n int) []string {
	if l == nil {
		return nil
	}
	if n <= 0 || n > TailLimit {
		n = TailLimit
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > len(l.entries) {
		n = len(l.entries)
	}
	result := make([]string, n)
	copy(result, l.entries[len(l.entries)-n:])
	return result
}

// Snapshot returns a copy of every stored entry.
func (l *Log) Snapshot() []string {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	result := make([]string, len(l.entries))
	copy(result, l.entries)
	return result
}

// Restore replaces stored entries, keeping the newest ones within capacity.
func (l *Log) Restore(entries []string) {
	if l == nil {
		return
	}
	if len(entries) > l.capacity {
		entries = entries[len(entries)-l.capacity:]
	}
	restored := make([]string, len(entries))
	copy(restored, entries)
	l.mu.Lock()
	l.entries = restored
	l.mu.Unlock()
}

// Len returns the number of stored entries.
func (l *Log) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Discard is a Recorder that drops every message.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Record(string) {}
