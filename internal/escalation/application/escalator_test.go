package application

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"homewatch/internal/diagnostics"
	escalation "homewatch/internal/escalation/domain"
)

type call struct {
	phone   string
	message string
}

type stubGateway struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (s *stubGateway) Call(_ context.Context, phone, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{phone: phone, message: message})
	return s.err
}

type stubSource struct {
	ladder escalation.Ladder
	err    error
}

func (s stubSource) Get(context.Context) (escalation.Ladder, error) {
	return s.ladder, s.err
}

func testLadder() escalation.Ladder {
	return escalation.Ladder{
		EmergencyService: escalation.Contact{Name: "911", Phone: "911"},
		Contacts: []escalation.Contact{
			{Name: "Ann", Phone: "+15550001"},
			{Name: "NoPhone"},
		},
	}
}

func TestEscalateResolvesLevels(t *testing.T) {
	gateway := &stubGateway{}
	diag := diagnostics.New()
	escalator := NewEscalator(gateway, diag)
	ctx := context.Background()

	if !escalator.Escalate(ctx, "help", 0, testLadder()) {
		t.Fatalf("expected level 0 call to succeed")
	}
	if !escalator.Escalate(ctx, "help", 1, testLadder()) {
		t.Fatalf("expected level 1 call to succeed")
	}
	if len(gateway.calls) != 2 || gateway.calls[0].phone != "911" || gateway.calls[1].phone != "+15550001" {
		t.Fatalf("unexpected calls %+v", gateway.calls)
	}
	if gateway.calls[1].message != "help" {
		t.Fatalf("expected message forwarded, got %q", gateway.calls[1].message)
	}
	if got := diag.Tail(1)[0]; !strings.Contains(got, "level 1") || !strings.Contains(got, "true") {
		t.Fatalf("unexpected diagnostic %q", got)
	}
}

func TestEscalateWithoutTargetMakesNoCall(t *testing.T) {
	gateway := &stubGateway{}
	diag := diagnostics.New()
	escalator := NewEscalator(gateway, diag)

	for _, level := range []int{3, -1, 99} {
		if escalator.Escalate(context.Background(), "help", level, testLadder()) {
			t.Fatalf("expected level %d to fail", level)
		}
	}
	if len(gateway.calls) != 0 {
		t.Fatalf("expected no gateway calls, got %d", len(gateway.calls))
	}
	if got := diag.Tail(1)[0]; !strings.Contains(got, "No contact for escalation level 99") {
		t.Fatalf("unexpected diagnostic %q", got)
	}
}

func TestEscalateEmptyPhone(t *testing.T) {
	gateway := &stubGateway{}
	diag := diagnostics.New()
	if NewEscalator(gateway, diag).Escalate(context.Background(), "help", 2, testLadder()) {
		t.Fatalf("expected empty phone to fail")
	}
	if len(gateway.calls) != 0 || diag.Len() != 1 {
		t.Fatalf("expected one diagnostic and no calls")
	}
}

func TestEscalateGatewayFailure(t *testing.T) {
	gateway := &stubGateway{err: errors.New("timeout")}
	diag := diagnostics.New()
	if NewEscalator(gateway, diag).Escalate(context.Background(), "help", 0, testLadder()) {
		t.Fatalf("expected gateway failure to return false")
	}
	if got := diag.Tail(1)[0]; !strings.Contains(got, "false") || !strings.Contains(got, "timeout") {
		t.Fatalf("unexpected diagnostic %q", got)
	}
}

func TestEscalateWithoutGatewayLogsOnce(t *testing.T) {
	var buf bytes.Buffer
	diag := diagnostics.New()
	escalator := NewEscalator(nil, diag, WithLogger(log.New(&buf, "", 0)))

	for i := 0; i < 3; i++ {
		if escalator.Escalate(context.Background(), "help", 0, testLadder()) {
			t.Fatalf("expected false without gateway")
		}
	}
	if escalator.Available() {
		t.Fatalf("expected escalator unavailable")
	}
	if got := strings.Count(buf.String(), "not configured"); got != 1 {
		t.Fatalf("expected one log line, got %d", got)
	}
	if diag.Len() != 3 {
		t.Fatalf("expected a diagnostic per call, got %d", diag.Len())
	}
}

func TestResolveLadderFallsBack(t *testing.T) {
	diag := diagnostics.New()
	escalator := NewEscalator(nil, diag)
	ctx := context.Background()

	if got := escalator.ResolveLadder(ctx, nil); got.EmergencyService.Phone != "911" {
		t.Fatalf("expected default ladder, got %+v", got)
	}
	got := escalator.ResolveLadder(ctx, stubSource{err: errors.New("boom")})
	if got.EmergencyService.Phone != "911" || len(got.Contacts) != 0 {
		t.Fatalf("expected default ladder on error, got %+v", got)
	}
	if diag.Len() != 1 {
		t.Fatalf("expected fallback diagnostic")
	}

	custom := escalator.ResolveLadder(ctx, stubSource{ladder: testLadder()})
	if len(custom.Contacts) != 2 {
		t.Fatalf("expected source ladder, got %+v", custom)
	}
}
