package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	chains "homewatch/internal/chains/domain"
	health "homewatch/internal/health/domain"
	"homewatch/internal/observability/metrics"
)

// ErrNoPersistence is returned by Load and Save without a Persistence.
var ErrNoPersistence = errors.New("engine: no persistence configured")

// State is a point-in-time copy of everything the engine persists.
type State struct {
	Scenarios   []chains.Scenario        `json:"scenarios"`
	Health      map[string]health.Record `json:"health"`
	Alerts      []health.Alert           `json:"alerts"`
	Diagnostics []string                 `json:"diagnostics"`
	Events      []chains.Event           `json:"events"`
}

// Persistence loads and saves engine state.
type Persistence interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Snapshot copies the current state. Each component is copied under its own lock.
func (e *Engine) Snapshot() State {
	records, alerts := e.health.Snapshot()
	return State{
		Scenarios:   e.scenarios.Snapshot(),
		Health:      records,
		Alerts:      alerts,
		Diagnostics: e.diag.Snapshot(),
		Events:      e.RecentEvents(0),
	}
}

// Restore replaces all in-memory state with state.
func (e *Engine) Restore(state State) {
	e.scenarios.Restore(state.Scenarios)
	e.health.Restore(state.Health, state.Alerts)
	e.diag.Restore(state.Diagnostics)

	events := chains.CloneEvents(state.Events)
	if over := len(events) - e.historyCap; over > 0 {
		events = events[over:]
	}
	e.historyMu.Lock()
	e.history = events
	e.historyMu.Unlock()
}

// Load replaces in-memory state with the persisted state.
func (e *Engine) Load(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrNoPersistence
	}
	start := time.Now()
	state, err := e.store.Load(ctx)
	metrics.ObservePersistence("load", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("engine: load state: %w", err)
	}
	e.Restore(state)
	e.diag.Record(fmt.Sprintf("State loaded: %d scenarios, %d devices, %d alerts", len(state.Scenarios), len(state.Health), len(state.Alerts)))
	return nil
}

// Save persists a snapshot. The persistence call runs outside every lock.
func (e *Engine) Save(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrNoPersistence
	}
	state := e.Snapshot()
	start := time.Now()
	err := e.store.Save(ctx, state)
	metrics.ObservePersistence("save", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("engine: save state: %w", err)
	}
	return nil
}
