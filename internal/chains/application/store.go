package application

import (
	"fmt"
	"sync"

	chains "homewatch/internal/chains/domain"
	"homewatch/internal/diagnostics"
)

// Store is the ordered, index-addressed collection of scenarios.
// Reads return deep copies so callers never observe a partially edited chain.
type Store struct {
	mu        sync.RWMutex
	scenarios []chains.Scenario
	diag      diagnostics.Recorder
}

// NewStore constructs an empty store.
func NewStore(diag diagnostics.Recorder) *Store {
	if diag == nil {
		diag = diagnostics.Discard
	}
	return &Store{diag: diag}
}

// Add appends a scenario and returns its index.
func (s *Store) Add(scenario chains.Scenario) int {
	copy := scenario.Clone()
	s.mu.Lock()
	s.scenarios = append(s.scenarios, copy)
	index := len(s.scenarios) - 1
	s.mu.Unlock()

	s.diag.Record("Scenario added: " + scenario.DisplayLabel())
	return index
}

// List returns a snapshot of every scenario with its current index.
func (s *Store) List() []chains.ScenarioView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	views := make([]chains.ScenarioView, 0, len(s.scenarios))
	for i, scenario := range s.scenarios {
		views = append(views, chains.NewScenarioView(i, scenario))
	}
	return views
}

// Get returns the scenario at index.
func (s *Store) Get(index int) (chains.Scenario, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.scenarios) {
		return chains.Scenario{}, false
	}
	return s.scenarios[index].Clone(), true
}

// Update replaces the scenario at index. It returns false without mutating
// anything when index is out of range.
func (s *Store) Update(index int, scenario chains.Scenario) bool {
	copy := scenario.Clone()
	s.mu.Lock()
	if index < 0 || index >= len(s.scenarios) {
		s.mu.Unlock()
		s.diag.Record(fmt.Sprintf("Scenario update rejected: no scenario at index %d", index))
		return false
	}
	s.scenarios[index] = copy
	s.mu.Unlock()

	s.diag.Record(fmt.Sprintf("Scenario updated at index %d: %s", index, scenario.DisplayLabel()))
	return true
}

// Delete removes the scenario at index. Later scenarios shift down by one.
func (s *Store) Delete(index int) bool {
	s.mu.Lock()
	if index < 0 || index >= len(s.scenarios) {
		s.mu.Unlock()
		s.diag.Record(fmt.Sprintf("Scenario delete rejected: no scenario at index %d", index))
		return false
	}
	removed := s.scenarios[index]
	s.scenarios = append(s.scenarios[:index], s.scenarios[index+1:]...)
	s.mu.Unlock()

	s.diag.Record("Scenario deleted: " + removed.DisplayLabel())
	return true
}

// Snapshot returns deep copies of all scenarios in store order.
func (s *Store) Snapshot() []chains.Scenario {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]chains.Scenario, len(s.scenarios))
	for i, scenario := range s.scenarios {
		out[i] = scenario.Clone()
	}
	return out
}

// Restore replaces the store contents.
func (s *Store) Restore(scenarios []chains.Scenario) {
	restored := make([]chains.Scenario, len(scenarios))
	for i, scenario := range scenarios {
		restored[i] = scenario.Clone()
	}
	s.mu.Lock()
	s.scenarios = restored
	s.mu.Unlock()
}

// Len returns the number of stored scenarios.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.scenarios)
}
