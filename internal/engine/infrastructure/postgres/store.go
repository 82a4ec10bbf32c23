package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	chains "homewatch/internal/chains/domain"
	"homewatch/internal/engine"
	health "homewatch/internal/health/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS chain_scenarios (
	position    INTEGER PRIMARY KEY,
	sequence_id TEXT NOT NULL DEFAULT '',
	label       TEXT NOT NULL DEFAULT '',
	events      JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS device_health (
	device_id TEXT PRIMARY KEY,
	status    TEXT NOT NULL,
	last_seen TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS device_alerts (
	id           TEXT PRIMARY KEY,
	position     INTEGER NOT NULL,
	device_id    TEXT NOT NULL,
	event        TEXT NOT NULL,
	raised_at    TIMESTAMPTZ NOT NULL,
	acknowledged BOOLEAN NOT NULL DEFAULT FALSE,
	acked_at     TIMESTAMPTZ NULL
);
CREATE TABLE IF NOT EXISTS engine_diagnostics (
	position INTEGER PRIMARY KEY,
	message  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS engine_events (
	position INTEGER PRIMARY KEY,
	payload  JSONB NOT NULL
);`

// Store persists engine state in Postgres. Save replaces every table inside
// one transaction.
type Store struct {
	db *sql.DB
}

// NewStore constructs a store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the state tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("state store: nil db")
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Load reads the persisted state.
func (s *Store) Load(ctx context.Context) (engine.State, error) {
	if s == nil || s.db == nil {
		return engine.State{}, errors.New("state store: nil db")
	}
	var state engine.State
	var err error
	if state.Scenarios, err = s.loadScenarios(ctx); err != nil {
		return engine.State{}, err
	}
	if state.Health, err = s.loadHealth(ctx); err != nil {
		return engine.State{}, err
	}
	if state.Alerts, err = s.loadAlerts(ctx); err != nil {
		return engine.State{}, err
	}
	if state.Diagnostics, err = s.loadDiagnostics(ctx); err != nil {
		return engine.State{}, err
	}
	if state.Events, err = s.loadEvents(ctx); err != nil {
		return engine.State{}, err
	}
	return state, nil
}

// Save replaces the persisted state.
func (s *Store) Save(ctx context.Context, state engine.State) (err error) {
	if s == nil || s.db == nil {
		return errors.New("state store: nil db")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"chain_scenarios", "device_health", "device_alerts", "engine_diagnostics", "engine_events"} {
		if _, err = tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("state store: clear %s: %w", table, err)
		}
	}

	for i, scenario := range state.Scenarios {
		payload, mErr := json.Marshal(scenario.Events)
		if mErr != nil {
			err = mErr
			return err
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO chain_scenarios (position, sequence_id, label, events)
VALUES ($1, $2, $3, $4)`, i, scenario.SequenceID, scenario.Label, payload); err != nil {
			return fmt.Errorf("state store: insert scenario %d: %w", i, err)
		}
	}

	for id, record := range state.Health {
		if record.DeviceID == "" {
			record.DeviceID = id
		}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO device_health (device_id, status, last_seen)
VALUES ($1, $2, $3)`, record.DeviceID, string(record.Status), record.LastSeen.UTC()); err != nil {
			return fmt.Errorf("state store: insert health %s: %w", record.DeviceID, err)
		}
	}

	for i, alert := range state.Alerts {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO device_alerts (id, position, device_id, event, raised_at, acknowledged, acked_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			alert.ID,
			i,
			alert.DeviceID,
			string(alert.Event),
			alert.Timestamp.UTC(),
			alert.Acknowledged,
			nullableTime(alert.AckedAt),
		); err != nil {
			return fmt.Errorf("state store: insert alert %s: %w", alert.ID, err)
		}
	}

	for i, message := range state.Diagnostics {
		if _, err = tx.ExecContext(ctx, `INSERT INTO engine_diagnostics (position, message) VALUES ($1, $2)`, i, message); err != nil {
			return fmt.Errorf("state store: insert diagnostic %d: %w", i, err)
		}
	}

	for i, evt := range state.Events {
		payload, mErr := json.Marshal(evt)
		if mErr != nil {
			err = mErr
			return err
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO engine_events (position, payload) VALUES ($1, $2)`, i, payload); err != nil {
			return fmt.Errorf("state store: insert event %d: %w", i, err)
		}
	}

	err = tx.Commit()
	return err
}

func (s *Store) loadScenarios(ctx context.Context) ([]chains.Scenario, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT sequence_id, label, events FROM chain_scenarios ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chains.Scenario
	for rows.Next() {
		var scenario chains.Scenario
		var payload []byte
		if err := rows.Scan(&scenario.SequenceID, &scenario.Label, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &scenario.Events); err != nil {
			return nil, fmt.Errorf("state store: decode scenario events: %w", err)
		}
		out = append(out, scenario)
	}
	return out, rows.Err()
}

func (s *Store) loadHealth(ctx context.Context) (map[string]health.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT device_id, status, last_seen FROM device_health`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]health.Record)
	for rows.Next() {
		var record health.Record
		var status string
		if err := rows.Scan(&record.DeviceID, &status, &record.LastSeen); err != nil {
			return nil, err
		}
		record.Status = health.Status(status)
		record.LastSeen = record.LastSeen.UTC()
		out[record.DeviceID] = record
	}
	return out, rows.Err()
}

func (s *Store) loadAlerts(ctx context.Context) ([]health.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, device_id, event, raised_at, acknowledged, acked_at
FROM device_alerts
ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []health.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *alert)
	}
	return out, rows.Err()
}

func (s *Store) loadDiagnostics(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT message FROM engine_diagnostics ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var message string
		if err := rows.Scan(&message); err != nil {
			return nil, err
		}
		out = append(out, message)
	}
	return out, rows.Err()
}

func (s *Store) loadEvents(ctx context.Context) ([]chains.Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM engine_events ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chains.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var evt chains.Event
		if err := json.Unmarshal(payload, &evt); err != nil {
			return nil, fmt.Errorf("state store: decode event: %w", err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*health.Alert, error) {
	var alert health.Alert
	var event string
	var ackedAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&alert.DeviceID,
		&event,
		&alert.Timestamp,
		&alert.Acknowledged,
		&ackedAt,
	); err != nil {
		return nil, err
	}
	alert.Event = health.Status(event)
	alert.Timestamp = alert.Timestamp.UTC()
	if ackedAt.Valid {
		alert.AckedAt = ackedAt.Time.UTC()
	}
	return &alert, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value.UTC(), Valid: true}
}
