package escalation

import (
	"errors"
	"fmt"
	"strings"
)

// MaxContacts bounds the personal contacts on a ladder.
const MaxContacts = 7

// ErrTooManyContacts indicates a ladder over MaxContacts.
var ErrTooManyContacts = errors.New("escalation: too many contacts")

// Contact is one rung of the ladder.
type Contact struct {
	Name   string `json:"name" yaml:"name"`
	Phone  string `json:"phone" yaml:"phone"`
	Mobile string `json:"mobile,omitempty" yaml:"mobile,omitempty"`
}

// Ladder orders who is called for an escalation level. Level 0 is the
// emergency service, levels 1..len(Contacts) address Contacts[level-1].
type Ladder struct {
	EmergencyService Contact   `json:"emergency_service" yaml:"emergency_service"`
	Contacts         []Contact `json:"contacts" yaml:"contacts"`
}

// DefaultLadder is used when no contact source is configured or it fails.
func DefaultLadder() Ladder {
	return Ladder{EmergencyService: Contact{Name: "911", Phone: "911"}}
}

// Normalize trims fields and defaults a missing contact list.
func (l Ladder) Normalize() Ladder {
	out := Ladder{
		EmergencyService: l.EmergencyService.normalize(),
		Contacts:         make([]Contact, 0, len(l.Contacts)),
	}
	for _, contact := range l.Contacts {
		out.Contacts = append(out.Contacts, contact.normalize())
	}
	return out
}

// Validate enforces the contact bound.
func (l Ladder) Validate() error {
	if len(l.Contacts) > MaxContacts {
		return fmt.Errorf("%w: %d > %d", ErrTooManyContacts, len(l.Contacts), MaxContacts)
	}
	return nil
}

// Target resolves the contact for level.
func (l Ladder) Target(level int) (Contact, bool) {
	switch {
	case level == 0:
		return l.EmergencyService, true
	case level >= 1 && level <= len(l.Contacts):
		return l.Contacts[level-1], true
	default:
		return Contact{}, false
	}
}

// Levels returns the number of addressable levels including level 0.
func (l Ladder) Levels() int {
	return len(l.Contacts) + 1
}

func (c Contact) normalize() Contact {
	return Contact{
		Name:   strings.TrimSpace(c.Name),
		Phone:  strings.TrimSpace(c.Phone),
		Mobile: strings.TrimSpace(c.Mobile),
	}
}
