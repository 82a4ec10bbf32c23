package health

import (
	"errors"
	"strings"
	"time"
)

// Status is the last reported availability of a device.
type Status string

const (
	StatusUp      Status = "up"
	StatusDown    Status = "down"
	StatusRemoved Status = "removed"
	StatusUnknown Status = "unknown"
)

// ErrUnknownStatus indicates a status outside the supported set.
var ErrUnknownStatus = errors.New("health: unknown status")

// ParseStatus maps a reported value onto a Status.
func ParseStatus(value string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusUp:
		return StatusUp, nil
	case StatusDown:
		return StatusDown, nil
	case StatusRemoved:
		return StatusRemoved, nil
	case StatusUnknown:
		return StatusUnknown, nil
	default:
		return "", ErrUnknownStatus
	}
}

// Alerting reports whether entering this status raises an alert.
func (s Status) Alerting() bool {
	return s == StatusDown || s == StatusRemoved
}

// Record is the latest health observation for one device.
type Record struct {
	DeviceID string    `json:"device_id"`
	LastSeen time.Time `json:"last_seen"`
	Status   Status    `json:"status"`
}

// Alert is raised when a device transitions into down or removed.
type Alert struct {
	ID           string    `json:"id"`
	DeviceID     string    `json:"device_id"`
	Event        Status    `json:"event"`
	Timestamp    time.Time `json:"timestamp"`
	Acknowledged bool      `json:"acknowledged"`
	AckedAt      time.Time `json:"acked_at,omitzero"`
}

// UserStatus is the household traffic light.
type UserStatus string

const (
	UserGreen  UserStatus = "green"
	UserYellow UserStatus = "yellow"
	UserRed    UserStatus = "red"
)
