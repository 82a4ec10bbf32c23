package application

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"homewatch/internal/diagnostics"
	health "homewatch/internal/health/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Add(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []AlertEvent
}

func (r *recordingNotifier) Notify(_ context.Context, event AlertEvent) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recordingNotifier) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, event := range r.events {
		out = append(out, event.Type)
	}
	return out
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		next++
		return fmt.Sprintf("alert-%d", next)
	}
}

func newTestService(opts ...ServiceOption) (*Service, *diagnostics.Log, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	diag := diagnostics.New()
	base := []ServiceOption{WithClock(clock), WithIDGenerator(sequentialIDs())}
	return NewService(diag, append(base, opts...)...), diag, clock
}

func TestUpdateHealthDedupesRepeatedDown(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if !svc.UpdateHealth(ctx, "cam-1", health.StatusDown) {
		t.Fatalf("expected first down to raise an alert")
	}
	if svc.UpdateHealth(ctx, "cam-1", health.StatusDown) {
		t.Fatalf("expected repeated down not to raise an alert")
	}
	alerts := svc.UnacknowledgedAlerts()
	if len(alerts) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(alerts))
	}
	if alerts[0].Event != health.StatusDown || alerts[0].DeviceID != "cam-1" {
		t.Fatalf("unexpected alert %+v", alerts[0])
	}
}

func TestUpdateHealthUpsertsLastSeen(t *testing.T) {
	svc, _, clock := newTestService()
	ctx := context.Background()

	svc.UpdateHealth(ctx, "lock-1", health.StatusUp)
	clock.Add(time.Minute)
	svc.UpdateHealth(ctx, "lock-1", health.StatusUp)

	record, ok := svc.Record("lock-1")
	if !ok {
		t.Fatalf("expected record")
	}
	if !record.LastSeen.Equal(clock.Now()) {
		t.Fatalf("expected last seen %s, got %s", clock.Now(), record.LastSeen)
	}
	if len(svc.Alerts()) != 0 {
		t.Fatalf("expected no alerts for up status")
	}
}

func TestUpdateHealthRearmsAfterRecovery(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	svc.UpdateHealth(ctx, "cam-1", health.StatusDown)
	svc.UpdateHealth(ctx, "cam-1", health.StatusUp)
	svc.UpdateHealth(ctx, "cam-1", health.StatusDown)

	if got := len(svc.Alerts()); got != 2 {
		t.Fatalf("expected 2 alerts, got %d", got)
	}
}

func TestUpdateHealthDownToRemovedRaisesSecondAlert(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	svc.UpdateHealth(ctx, "sensor-9", health.StatusDown)
	svc.UpdateHealth(ctx, "sensor-9", health.StatusRemoved)

	alerts := svc.Alerts()
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	if alerts[1].Event != health.StatusRemoved {
		t.Fatalf("expected removed alert, got %s", alerts[1].Event)
	}
}

func TestUpdateHealthRejectsInvalidInput(t *testing.T) {
	svc, diag, _ := newTestService()
	ctx := context.Background()

	if svc.UpdateHealth(ctx, "", health.StatusDown) {
		t.Fatalf("expected empty device id to be rejected")
	}
	if svc.UpdateHealth(ctx, "cam-1", health.Status("asleep")) {
		t.Fatalf("expected unknown status to be rejected")
	}
	if svc.DeviceCount() != 0 {
		t.Fatalf("expected no records, got %d", svc.DeviceCount())
	}
	if diag.Len() != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", diag.Len())
	}
}

func TestAcknowledgeIsIdempotent(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, _, clock := newTestService(WithNotifier(notifier))
	ctx := context.Background()

	svc.UpdateHealth(ctx, "cam-1", health.StatusDown)
	svc.UpdateHealth(ctx, "cam-1", health.StatusUp)
	svc.UpdateHealth(ctx, "cam-1", health.StatusDown)
	svc.UpdateHealth(ctx, "cam-2", health.StatusDown)

	clock.Add(time.Minute)
	if got := svc.Acknowledge(ctx, "cam-1"); got != 2 {
		t.Fatalf("expected 2 acknowledged, got %d", got)
	}
	for _, alert := range svc.UnacknowledgedAlerts() {
		if alert.DeviceID == "cam-1" {
			t.Fatalf("expected cam-1 alerts acknowledged")
		}
	}
	before := svc.Alerts()
	if got := svc.Acknowledge(ctx, "cam-1"); got != 0 {
		t.Fatalf("expected second acknowledge to change nothing, got %d", got)
	}
	after := svc.Alerts()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("alert %d changed on repeated acknowledge", i)
		}
	}
	if !after[0].AckedAt.Equal(clock.Now()) {
		t.Fatalf("expected acked at %s, got %s", clock.Now(), after[0].AckedAt)
	}

	want := []string{EventRaised, EventRaised, EventRaised, EventAcknowledged, EventAcknowledged}
	got := notifier.Types()
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected notifications %v, got %v", want, got)
	}
}

func TestAcknowledgeUnknownDeviceIsNoop(t *testing.T) {
	svc, _, _ := newTestService()
	if got := svc.Acknowledge(context.Background(), "ghost"); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestUserStatus(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	if got := svc.UserStatus("alice"); got != health.UserGreen {
		t.Fatalf("expected green, got %s", got)
	}

	svc.UpdateHealth(ctx, "alice-cam", health.StatusDown)
	if got := svc.UserStatus("alice"); got != health.UserRed {
		t.Fatalf("expected red, got %s", got)
	}
	if got := svc.UserStatus("bob"); got != health.UserGreen {
		t.Fatalf("expected bob green, got %s", got)
	}

	svc.Acknowledge(ctx, "alice-cam")
	if got := svc.UserStatus("alice"); got != health.UserYellow {
		t.Fatalf("expected yellow after acknowledge, got %s", got)
	}

	svc.UpdateHealth(ctx, "alice-cam", health.StatusUp)
	if got := svc.UserStatus("alice"); got != health.UserGreen {
		t.Fatalf("expected green after recovery, got %s", got)
	}
}

func TestUserStatusYellowWithoutAlert(t *testing.T) {
	svc, _, _ := newTestService()
	svc.Restore(map[string]health.Record{
		"carol-door": {Status: health.StatusDown},
	}, nil)
	if got := svc.UserStatus("carol"); got != health.UserYellow {
		t.Fatalf("expected yellow, got %s", got)
	}
}

func TestGetByID(t *testing.T) {
	svc, _, _ := newTestService()
	alert := svc.AddAlert(context.Background(), "hub", health.StatusRemoved)

	got, err := svc.GetByID(context.Background(), alert.ID)
	if err != nil || got == nil {
		t.Fatalf("expected alert, got %v %v", got, err)
	}
	if got.DeviceID != "hub" {
		t.Fatalf("unexpected alert %+v", got)
	}
	missing, err := svc.GetByID(context.Background(), "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing alert")
	}
}

func TestSnapshotRestore(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	svc.UpdateHealth(ctx, "cam-1", health.StatusDown)

	records, alerts := svc.Snapshot()
	other, _, _ := newTestService()
	other.Restore(records, alerts)

	if other.DeviceCount() != 1 || len(other.UnacknowledgedAlerts()) != 1 {
		t.Fatalf("expected restored state")
	}
	// Re-observing down after restore must not re-alert.
	if other.UpdateHealth(ctx, "cam-1", health.StatusDown) {
		t.Fatalf("expected no alert after restore")
	}
}

func TestConcurrentTransitionsLoseNoAlerts(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	const devices = 50
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			svc.UpdateHealth(ctx, id, health.StatusDown)
			svc.Acknowledge(ctx, "other-"+id)
		}(fmt.Sprintf("dev-%d", i))
	}
	wg.Wait()

	if got := svc.CountUnacknowledged(); got != devices {
		t.Fatalf("expected %d alerts, got %d", devices, got)
	}
}
