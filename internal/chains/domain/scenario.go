package chains

import "fmt"

// UnknownChainID marks a scenario with neither sequence id nor label.
const UnknownChainID = "unknown_chain"

// Scenario is a labeled, ordered sequence of events used as a prediction pattern.
type Scenario struct {
	SequenceID string  `json:"sequence_id,omitempty" yaml:"sequence_id,omitempty"`
	Label      string  `json:"label,omitempty" yaml:"label,omitempty"`
	Events     []Event `json:"events" yaml:"events"`
}

// ScenarioView is a scenario together with its current store position.
type ScenarioView struct {
	Index int `json:"index"`
	Scenario
}

// Identifier returns the sequence id, falling back to label, then UnknownChainID.
func (s Scenario) Identifier() string {
	if s.SequenceID != "" {
		return s.SequenceID
	}
	if s.Label != "" {
		return s.Label
	}
	return UnknownChainID
}

// DisplayLabel returns the label used in diagnostics.
func (s Scenario) DisplayLabel() string {
	if s.Label == "" {
		return "unlabeled"
	}
	return s.Label
}

// Clone returns a deep copy.
func (s Scenario) Clone() Scenario {
	out := Scenario{SequenceID: s.SequenceID, Label: s.Label}
	if s.Events != nil {
		out.Events = make([]Event, len(s.Events))
		for i, evt := range s.Events {
			out.Events[i] = evt.clone()
		}
	}
	return out
}

// CloneEvents deep-copies a slice of events.
func CloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, evt := range events {
		out[i] = evt.clone()
	}
	return out
}

func viewLabel(s Scenario, index int) string {
	if s.Label != "" {
		return s.Label
	}
	return fmt.Sprintf("unlabeled_%d", index)
}

// NewScenarioView builds a list element; an empty label becomes unlabeled_<index>.
func NewScenarioView(index int, s Scenario) ScenarioView {
	view := ScenarioView{Index: index, Scenario: s.Clone()}
	view.Label = viewLabel(s, index)
	return view
}
