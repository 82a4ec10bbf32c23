package report

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	health "homewatch/internal/health/domain"
)

func sampleAlerts() []health.Alert {
	at := time.Date(2026, 3, 3, 6, 0, 0, 0, time.UTC)
	return []health.Alert{
		{ID: "a1", DeviceID: "cam", Event: health.StatusDown, Timestamp: at},
		{ID: "a2", DeviceID: "hub", Event: health.StatusRemoved, Timestamp: at, Acknowledged: true, AckedAt: at.Add(time.Hour)},
	}
}

func TestSummarize(t *testing.T) {
	got := Summarize(sampleAlerts())
	want := Summary{Total: 2, Unacknowledged: 1, Down: 1, Removed: 1}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestBuildAlertsCSV(t *testing.T) {
	data, err := BuildAlertsCSV(sampleAlerts())
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(records))
	}
	if records[0][1] != "device_id" || records[2][4] != "true" || records[2][5] != "2026-03-03T07:00:00Z" {
		t.Fatalf("unexpected csv %v", records)
	}
	if records[1][5] != "" {
		t.Fatalf("expected empty acked_at for open alert")
	}
}

func TestBuildAlertsXLSX(t *testing.T) {
	data, err := BuildAlertsXLSX(sampleAlerts(), time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	defer f.Close()
	total, err := f.GetCellValue("summary", "B4")
	if err != nil || total != "2" {
		t.Fatalf("expected total 2, got %q (%v)", total, err)
	}
	device, err := f.GetCellValue("alerts", "B3")
	if err != nil || device != "hub" {
		t.Fatalf("expected hub in alerts sheet, got %q (%v)", device, err)
	}
}

func TestBuildAlertsPDF(t *testing.T) {
	data, err := BuildAlertsPDF(sampleAlerts(), time.Now())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Fatalf("expected pdf header")
	}
}
