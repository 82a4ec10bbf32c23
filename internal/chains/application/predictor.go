package application

import (
	"fmt"
	"strings"

	chains "homewatch/internal/chains/domain"
	"homewatch/internal/diagnostics"
	"homewatch/internal/observability/metrics"
)

// ScenarioSource provides point-in-time copies of stored scenarios.
type ScenarioSource interface {
	Snapshot() []chains.Scenario
}

// Predictor matches recent events against stored chains.
type Predictor struct {
	source ScenarioSource
	diag   diagnostics.Recorder
}

// NewPredictor constructs a predictor over source.
func NewPredictor(source ScenarioSource, diag diagnostics.Recorder) *Predictor {
	if diag == nil {
		diag = diagnostics.Discard
	}
	return &Predictor{source: source, diag: diag}
}

// PredictNext returns the event that follows recent in the first stored chain
// containing recent as a contiguous run.
//
// The window length is fixed at len(recent) and the first full match wins,
// in store order and then by increasing offset. Only offsets up to
// len(chain)-2 are tried. A match that ends the chain is still accepted, in
// which case there is no prediction.
func (p *Predictor) PredictNext(recent []chains.Event) (chains.Event, bool) {
	next, ok := p.match(recent)
	metrics.IncPrediction(ok)
	if ok {
		p.diag.Record("Predicted next event: " + next.String())
	} else {
		p.diag.Record("No prediction could be made from recent events.")
	}
	return next, ok
}

func (p *Predictor) match(recent []chains.Event) (chains.Event, bool) {
	n := len(recent)
	if p == nil || p.source == nil || n == 0 {
		return chains.Event{}, false
	}
	for _, scenario := range p.source.Snapshot() {
		chain := scenario.Events
		if len(chain) < 2 {
			continue
		}
		for i := 0; i <= len(chain)-2; i++ {
			if i+n > len(chain) {
				break
			}
			if !windowMatches(chain[i:i+n], recent) {
				continue
			}
			if i+n < len(chain) {
				return chain[i+n], true
			}
			return chains.Event{}, false
		}
	}
	return chains.Event{}, false
}

func windowMatches(window, recent []chains.Event) bool {
	for j := range recent {
		if !window[j].Matches(recent[j]) {
			return false
		}
	}
	return true
}

// DeviceInfo describes a newly seen device.
type DeviceInfo struct {
	SensorType string            `json:"sensor_type"`
	SensorID   string            `json:"sensor_id,omitempty"`
	Location   string            `json:"location,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// ProfileSuggestion is the heuristic profile for a device.
type ProfileSuggestion struct {
	SuggestedNormalState *string  `json:"suggested_normal_state"`
	SuggestedChains      []string `json:"suggested_chains"`
}

var normalStates = map[string]string{
	"contact":  "closed",
	"door":     "closed",
	"window":   "closed",
	"motion":   "inactive",
	"pir":      "inactive",
	"pressure": "open",
	"mat":      "open",
	"bed":      "open",
	"leak":     "dry",
	"water":    "dry",
	"switch":   "off",
}

// NormalStateFor returns the expected resting state for a sensor type.
func NormalStateFor(sensorType string) (string, bool) {
	state, ok := normalStates[strings.ToLower(strings.TrimSpace(sensorType))]
	return state, ok
}

// SuggestProfile proposes a normal state and the chains that already contain
// a sensor of the same type.
func (p *Predictor) SuggestProfile(info DeviceInfo) ProfileSuggestion {
	suggestion := ProfileSuggestion{SuggestedChains: []string{}}
	if state, ok := NormalStateFor(info.SensorType); ok {
		suggestion.SuggestedNormalState = &state
	}

	sensorType := strings.ToLower(strings.TrimSpace(info.SensorType))
	if sensorType != "" && p != nil && p.source != nil {
		seen := make(map[string]struct{})
		for _, scenario := range p.source.Snapshot() {
			if !containsSensorType(scenario.Events, sensorType) {
				continue
			}
			id := scenario.Identifier()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			suggestion.SuggestedChains = append(suggestion.SuggestedChains, id)
		}
	}

	state := "none"
	if suggestion.SuggestedNormalState != nil {
		state = *suggestion.SuggestedNormalState
	}
	if p != nil {
		p.diag.Record(fmt.Sprintf("Suggest for %s: normal_state=%s chains=%v", info.SensorID, state, suggestion.SuggestedChains))
	}
	return suggestion
}

func containsSensorType(events []chains.Event, sensorType string) bool {
	for _, evt := range events {
		if strings.ToLower(evt.SensorType) == sensorType {
			return true
		}
	}
	return false
}
