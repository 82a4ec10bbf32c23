package engine

import (
	"context"

	chainapp "homewatch/internal/chains/application"
	chains "homewatch/internal/chains/domain"
	escalation "homewatch/internal/escalation/domain"
	healthapp "homewatch/internal/health/application"
	health "homewatch/internal/health/domain"
)

// Diagnostics returns up to the last n diagnostic entries, oldest first.
func (e *Engine) Diagnostics(n int) []string {
	return e.diag.Tail(n)
}

// ListScenarios returns every stored scenario with its index.
func (e *Engine) ListScenarios() []chains.ScenarioView {
	return e.scenarios.List()
}

// Scenario returns the scenario at index.
func (e *Engine) Scenario(index int) (chains.Scenario, bool) {
	return e.scenarios.Get(index)
}

// AddScenario appends a scenario and returns its index.
func (e *Engine) AddScenario(scenario chains.Scenario) int {
	return e.scenarios.Add(scenario)
}

// UpdateScenario replaces the scenario at index.
func (e *Engine) UpdateScenario(index int, scenario chains.Scenario) bool {
	return e.scenarios.Update(index, scenario)
}

// DeleteScenario removes the scenario at index.
func (e *Engine) DeleteScenario(index int) bool {
	return e.scenarios.Delete(index)
}

// ScenarioCount returns the number of stored scenarios.
func (e *Engine) ScenarioCount() int {
	return e.scenarios.Len()
}

// PredictNext predicts the event following recent.
func (e *Engine) PredictNext(recent []chains.Event) (chains.Event, bool) {
	return e.predictor.PredictNext(recent)
}

// PredictFromHistory predicts from the newest window events received.
func (e *Engine) PredictFromHistory(window int) (chains.Event, bool) {
	return e.predictor.PredictNext(e.RecentEvents(window))
}

// SuggestProfile proposes a normal state and related chains for a device.
func (e *Engine) SuggestProfile(info chainapp.DeviceInfo) chainapp.ProfileSuggestion {
	return e.predictor.SuggestProfile(info)
}

// RecentEvents returns a copy of the newest n events, oldest first.
// n <= 0 returns the whole history.
func (e *Engine) RecentEvents(n int) []chains.Event {
	e.historyMu.RLock()
	defer e.historyMu.RUnlock()
	start := 0
	if n > 0 && n < len(e.history) {
		start = len(e.history) - n
	}
	return chains.CloneEvents(e.history[start:])
}

// UpdateHealth records a device status and raises an alert on transition
// into down or removed.
func (e *Engine) UpdateHealth(ctx context.Context, deviceID string, status health.Status) bool {
	return e.health.UpdateHealth(ctx, deviceID, status)
}

// Acknowledge acknowledges every pending alert for deviceID.
func (e *Engine) Acknowledge(ctx context.Context, deviceID string) int {
	return e.health.Acknowledge(ctx, deviceID)
}

// UnacknowledgedAlerts returns pending alerts.
func (e *Engine) UnacknowledgedAlerts() []health.Alert {
	return e.health.UnacknowledgedAlerts()
}

// Alerts returns every alert.
func (e *Engine) Alerts() []health.Alert {
	return e.health.Alerts()
}

// HealthRecords returns the current health record per device.
func (e *Engine) HealthRecords() map[string]health.Record {
	return e.health.Records()
}

// UserStatus classifies a user's devices as red, yellow or green.
func (e *Engine) UserStatus(username string) health.UserStatus {
	return e.health.UserStatus(username)
}

// Escalate calls the contact at level on the configured ladder.
func (e *Engine) Escalate(ctx context.Context, message string, level int) bool {
	return e.escalator.Escalate(ctx, message, level, e.Ladder(ctx))
}

// Ladder returns the current escalation ladder.
func (e *Engine) Ladder(ctx context.Context) escalation.Ladder {
	return e.escalator.ResolveLadder(ctx, e.ladders)
}

// EscalationEnabled reports whether a call gateway was supplied.
func (e *Engine) EscalationEnabled() bool {
	return e.escalation
}

// AlertReader exposes alert lookup for notifiers.
func (e *Engine) AlertReader() *healthapp.Service {
	return e.health
}

// CountUnacknowledged returns the number of pending alerts.
func (e *Engine) CountUnacknowledged() int {
	return e.health.CountUnacknowledged()
}

// DeviceCount returns the number of devices with a health record.
func (e *Engine) DeviceCount() int {
	return e.health.DeviceCount()
}
