package chains

import (
	"errors"
	"fmt"
)

const (
	// EventTypeCallOut triggers the escalation ladder.
	EventTypeCallOut = "call_out"
	// EventTypeDeviceStatus carries a device health observation:
	// SensorID is the device id and Value the status.
	EventTypeDeviceStatus = "device_status"
	// EventTypeVoiceCommand is emitted for transcribed voice input.
	EventTypeVoiceCommand = "voice_text_command"
)

// DefaultCallOutMessage is used when a call_out event carries no message.
const DefaultCallOutMessage = "Emergency detected. Please respond."

// Event is a typed, timestamped observation. Events are treated as immutable.
type Event struct {
	EventType       string `json:"event_type" yaml:"event_type"`
	SensorID        string `json:"sensor_id,omitempty" yaml:"sensor_id,omitempty"`
	SensorType      string `json:"sensor_type,omitempty" yaml:"sensor_type,omitempty"`
	Location        string `json:"location,omitempty" yaml:"location,omitempty"`
	Value           string `json:"value,omitempty" yaml:"value,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Label           string `json:"label,omitempty" yaml:"label,omitempty"`
	Message         string `json:"message,omitempty" yaml:"message,omitempty"`
	EscalationLevel *int   `json:"escalation_level,omitempty" yaml:"escalation_level,omitempty"`
}

// Validate checks the fields every event must carry.
func (e Event) Validate() error {
	if e.EventType == "" {
		return errors.New("chain event: empty event type")
	}
	return nil
}

// Matches reports whether two events are equal for chain matching purposes.
// Location and timestamp are ignored.
func (e Event) Matches(other Event) bool {
	return e.EventType == other.EventType &&
		e.SensorID == other.SensorID &&
		e.Value == other.Value
}

// CallOut returns the message and escalation level carried by a call_out event.
func (e Event) CallOut() (string, int) {
	message := e.Message
	if message == "" {
		message = DefaultCallOutMessage
	}
	level := 0
	if e.EscalationLevel != nil {
		level = *e.EscalationLevel
	}
	return message, level
}

// String renders the event for diagnostics.
func (e Event) String() string {
	s := fmt.Sprintf("%s sensor=%s value=%s", e.EventType, e.SensorID, e.Value)
	if e.SensorType != "" {
		s += " type=" + e.SensorType
	}
	if e.Location != "" {
		s += " location=" + e.Location
	}
	if e.Timestamp != 0 {
		s += fmt.Sprintf(" ts=%d", e.Timestamp)
	}
	return s
}

func (e Event) clone() Event {
	if e.EscalationLevel != nil {
		level := *e.EscalationLevel
		e.EscalationLevel = &level
	}
	return e
}
