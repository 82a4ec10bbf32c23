package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHelpersAreNilSafeBeforeInit(t *testing.T) {
	if eventsIngested != nil {
		t.Skip("metrics already initialised")
	}
	IncEventIngested("motion")
	ObserveIngest("", time.Millisecond)
	IncPrediction(true)
	ObservePersistence("save", nil, time.Millisecond)
}

func TestInitRegistersCountersAndGauges(t *testing.T) {
	scenarios := 3
	Init(Gauges{
		Scenarios: func() int { return scenarios },
		Devices:   func() int { panic("boom") },
	}, nil)

	IncEventIngested("")
	IncEventIngested("motion")
	IncEventIngested("motion")
	if got := testutil.ToFloat64(eventsIngested.WithLabelValues("motion")); got != 2 {
		t.Fatalf("expected 2 motion events, got %v", got)
	}
	if got := testutil.ToFloat64(eventsIngested.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("expected empty type recorded as unknown, got %v", got)
	}

	IncPrediction(false)
	if got := testutil.ToFloat64(predictions.WithLabelValues(resultNone)); got < 1 {
		t.Fatalf("expected a none prediction, got %v", got)
	}

	ObservePersistence("save", errors.New("disk full"), 5*time.Millisecond)
	if got := testutil.ToFloat64(persistenceTotal.WithLabelValues("save", resultError)); got != 1 {
		t.Fatalf("expected 1 failed save, got %v", got)
	}

	if got := sample(func() int { return scenarios }, "scenarios", nil); got != 3 {
		t.Fatalf("expected gauge sample 3, got %v", got)
	}
	if got := sample(func() int { panic("boom") }, "devices", nil); got != 0 {
		t.Fatalf("expected panicking gauge to read 0, got %v", got)
	}
	if got := sample(func() int { return -1 }, "negative", nil); got != 0 {
		t.Fatalf("expected negative gauge clamped to 0, got %v", got)
	}
}
