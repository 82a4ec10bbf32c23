// Package audit records operator actions taken through the API.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"homewatch/internal/auth"
)

// Actions recorded by the API.
const (
	ActionScenarioCreate = "scenario.create"
	ActionScenarioUpdate = "scenario.update"
	ActionScenarioDelete = "scenario.delete"
	ActionAlertAck       = "alert.acknowledge"
	ActionEscalate       = "escalation.manual"
)

// Entry represents an audit log entry.
type Entry struct {
	ID            string          `json:"id"`
	Actor         string          `json:"actor"`
	Role          string          `json:"role"`
	Action        string          `json:"action"`
	ResourceType  string          `json:"resource_type"`
	ResourceID    string          `json:"resource_id"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
	PayloadDigest string          `json:"payload_digest,omitempty"`
	RemoteAddr    string          `json:"remote_addr,omitempty"`
	UserAgent     string          `json:"user_agent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Logger writes audit entries.
type Logger interface {
	Log(ctx context.Context, entry Entry) error
}

// FromRequest builds an entry for the caller identified on r. Anonymous
// callers (auth disabled) are recorded as "anonymous".
func FromRequest(r *http.Request, action, resourceType, resourceID string, metadata any) Entry {
	entry := Entry{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		CreatedAt:    time.Now().UTC(),
	}
	if r == nil {
		entry.Actor = "anonymous"
		return entry
	}
	entry.Actor = auth.SubjectFromContext(r.Context())
	if entry.Actor == "" {
		entry.Actor = "anonymous"
	}
	entry.Role = string(auth.RoleFromContext(r.Context()))
	entry.UserAgent = r.UserAgent()
	entry.RemoteAddr = r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		entry.RemoteAddr = host
	}
	if metadata != nil {
		if raw, err := json.Marshal(metadata); err == nil {
			entry.Metadata = raw
		}
	}
	return entry
}

// prepare fills generated fields.
func prepare(entry Entry) Entry {
	if entry.ID == "" {
		entry.ID = NewID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.PayloadDigest == "" {
		entry.PayloadDigest = DigestJSON(entry.Metadata)
	}
	return entry
}

// NewID generates a random audit id.
func NewID() string {
	return "audit-" + uuid.NewString()
}

// DigestJSON computes a SHA256 hex digest for metadata payloads.
func DigestJSON(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// LogWriter writes entries as JSON lines to a standard logger.
type LogWriter struct {
	logger *log.Logger
}

// NewLogWriter constructs a LogWriter.
func NewLogWriter(logger *log.Logger) *LogWriter {
	return &LogWriter{logger: logger}
}

// Log implements Logger.
func (w *LogWriter) Log(_ context.Context, entry Entry) error {
	if w == nil || w.logger == nil {
		return nil
	}
	data, err := json.Marshal(prepare(entry))
	if err != nil {
		return err
	}
	w.logger.Printf("audit %s", data)
	return nil
}
