package application

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"homewatch/internal/diagnostics"
	health "homewatch/internal/health/domain"
	"homewatch/internal/observability/metrics"
)

// Alert lifecycle event types.
const (
	EventRaised       = "raised"
	EventAcknowledged = "acknowledged"
)

// AlertNotifier forwards alert lifecycle events outside the engine.
// Implementations must not block for long and must not call back into Service.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type  string       `json:"type"`
	Alert health.Alert `json:"alert"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service tracks device health records and the alerts raised from them.
// Health records and alerts are guarded by separate locks and no method holds
// both at once.
type Service struct {
	healthMu sync.RWMutex
	records  map[string]health.Record

	alertMu sync.RWMutex
	alerts  []health.Alert

	notifier AlertNotifier
	clock    Clock
	newID    func() string
	diag     diagnostics.Recorder
}

// ServiceOption customizes the health service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides alert id generation.
func WithIDGenerator(fn func() string) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewService constructs a health service.
func NewService(diag diagnostics.Recorder, opts ...ServiceOption) *Service {
	if diag == nil {
		diag = diagnostics.Discard
	}
	s := &Service{
		records: make(map[string]health.Record),
		clock:   systemClock{},
		newID:   uuid.NewString,
		diag:    diag,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateHealth upserts the device record and raises an alert when the device
// transitions into down or removed. It reports whether an alert was raised.
func (s *Service) UpdateHealth(ctx context.Context, deviceID string, status health.Status) bool {
	if s == nil {
		return false
	}
	if deviceID == "" {
		s.diag.Record("Health update rejected: empty device id")
		return false
	}
	if _, err := health.ParseStatus(string(status)); err != nil {
		s.diag.Record(fmt.Sprintf("Health update rejected for %s: %v", deviceID, err))
		return false
	}

	now := s.clock.Now().UTC()
	s.healthMu.Lock()
	previous, existed := s.records[deviceID]
	s.records[deviceID] = health.Record{DeviceID: deviceID, LastSeen: now, Status: status}
	s.healthMu.Unlock()

	metrics.IncHealthUpdate(string(status))
	s.diag.Record(fmt.Sprintf("Health updated: %s -> %s", deviceID, status))

	if !status.Alerting() {
		return false
	}
	if existed && previous.Status == status {
		return false
	}
	s.AddAlert(ctx, deviceID, status)
	return true
}

// AddAlert appends an unacknowledged alert and forwards it to the notifier.
func (s *Service) AddAlert(ctx context.Context, deviceID string, event health.Status) health.Alert {
	if s == nil {
		return health.Alert{}
	}
	alert := health.Alert{
		ID:        s.newID(),
		DeviceID:  deviceID,
		Event:     event,
		Timestamp: s.clock.Now().UTC(),
	}
	s.alertMu.Lock()
	s.alerts = append(s.alerts, alert)
	s.alertMu.Unlock()

	s.diag.Record(fmt.Sprintf("Alert raised: device=%s event=%s", deviceID, event))
	s.notify(ctx, EventRaised, alert)
	return alert
}

// Acknowledge marks every unacknowledged alert for deviceID as acknowledged and
// returns how many changed. Unknown devices are a no-op.
func (s *Service) Acknowledge(ctx context.Context, deviceID string) int {
	if s == nil {
		return 0
	}
	ackedAt := s.clock.Now().UTC()
	var acked []health.Alert
	s.alertMu.Lock()
	for i := range s.alerts {
		if s.alerts[i].DeviceID != deviceID || s.alerts[i].Acknowledged {
			continue
		}
		s.alerts[i].Acknowledged = true
		s.alerts[i].AckedAt = ackedAt
		acked = append(acked, s.alerts[i])
	}
	s.alertMu.Unlock()

	s.diag.Record(fmt.Sprintf("Alerts acknowledged for %s: %d", deviceID, len(acked)))
	for _, alert := range acked {
		s.notify(ctx, EventAcknowledged, alert)
	}
	return len(acked)
}

// UnacknowledgedAlerts returns a snapshot of pending alerts in insertion order.
func (s *Service) UnacknowledgedAlerts() []health.Alert {
	if s == nil {
		return nil
	}
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()
	out := make([]health.Alert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		if !alert.Acknowledged {
			out = append(out, alert)
		}
	}
	return out
}

// CountUnacknowledged returns the number of pending alerts.
func (s *Service) CountUnacknowledged() int {
	if s == nil {
		return 0
	}
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()
	count := 0
	for _, alert := range s.alerts {
		if !alert.Acknowledged {
			count++
		}
	}
	return count
}

// Alerts returns every alert, acknowledged or not.
func (s *Service) Alerts() []health.Alert {
	if s == nil {
		return nil
	}
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()
	out := make([]health.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}

// GetByID loads one alert. A missing alert yields nil without error.
func (s *Service) GetByID(_ context.Context, id string) (*health.Alert, error) {
	if s == nil {
		return nil, nil
	}
	s.alertMu.RLock()
	defer s.alertMu.RUnlock()
	for _, alert := range s.alerts {
		if alert.ID == id {
			found := alert
			return &found, nil
		}
	}
	return nil, nil
}

// Record returns the health record for deviceID.
func (s *Service) Record(deviceID string) (health.Record, bool) {
	if s == nil {
		return health.Record{}, false
	}
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	record, ok := s.records[deviceID]
	return record, ok
}

// Records returns a copy of every health record keyed by device id.
func (s *Service) Records() map[string]health.Record {
	if s == nil {
		return nil
	}
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	out := make(map[string]health.Record, len(s.records))
	for id, record := range s.records {
		out[id] = record
	}
	return out
}

// DeviceCount returns the number of tracked devices.
func (s *Service) DeviceCount() int {
	if s == nil {
		return 0
	}
	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	return len(s.records)
}

// UserStatus derives a traffic light for username. Devices belong to a user
// when their id contains the username.
//
// red: an unacknowledged down or removed alert exists for one of the devices.
// yellow: otherwise, one of the devices is currently down.
// green: otherwise.
func (s *Service) UserStatus(username string) health.UserStatus {
	if s == nil {
		return health.UserGreen
	}
	owns := func(deviceID string) bool {
		return strings.Contains(deviceID, username)
	}

	s.alertMu.RLock()
	red := false
	for _, alert := range s.alerts {
		if alert.Acknowledged || !alert.Event.Alerting() {
			continue
		}
		if owns(alert.DeviceID) {
			red = true
			break
		}
	}
	s.alertMu.RUnlock()
	if red {
		return health.UserRed
	}

	s.healthMu.RLock()
	defer s.healthMu.RUnlock()
	for id, record := range s.records {
		if record.Status == health.StatusDown && owns(id) {
			return health.UserYellow
		}
	}
	return health.UserGreen
}

// Snapshot returns copies of the records and alerts.
func (s *Service) Snapshot() (map[string]health.Record, []health.Alert) {
	return s.Records(), s.Alerts()
}

// Restore replaces all health records and alerts.
func (s *Service) Restore(records map[string]health.Record, alerts []health.Alert) {
	if s == nil {
		return
	}
	nextRecords := make(map[string]health.Record, len(records))
	for id, record := range records {
		if record.DeviceID == "" {
			record.DeviceID = id
		}
		nextRecords[id] = record
	}
	nextAlerts := make([]health.Alert, len(alerts))
	copy(nextAlerts, alerts)

	s.healthMu.Lock()
	s.records = nextRecords
	s.healthMu.Unlock()

	s.alertMu.Lock()
	s.alerts = nextAlerts
	s.alertMu.Unlock()
}

func (s *Service) notify(ctx context.Context, eventType string, alert health.Alert) {
	if s == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert})
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
