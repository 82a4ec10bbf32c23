package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	health "homewatch/internal/health/domain"
)

var alertColumns = []string{"id", "device_id", "event", "raised_at", "acknowledged", "acked_at"}

// Summary counts alerts by state.
type Summary struct {
	Total          int
	Unacknowledged int
	Down           int
	Removed        int
}

// Summarize counts alerts.
func Summarize(alerts []health.Alert) Summary {
	s := Summary{Total: len(alerts)}
	for _, alert := range alerts {
		if !alert.Acknowledged {
			s.Unacknowledged++
		}
		switch alert.Event {
		case health.StatusDown:
			s.Down++
		case health.StatusRemoved:
			s.Removed++
		}
	}
	return s
}

// BuildAlertsCSV renders alerts as CSV with a header row.
func BuildAlertsCSV(alerts []health.Alert) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(alertColumns); err != nil {
		return nil, err
	}
	for _, alert := range alerts {
		if err := w.Write(alertRow(alert)); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders a summary sheet and an alerts sheet.
func BuildAlertsXLSX(alerts []health.Alert, generatedAt time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	alertsSheet := "alerts"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(alertsSheet); err != nil {
		return nil, err
	}

	summary := Summarize(alerts)
	_ = f.SetCellValue(summarySheet, "A1", "Device Alerts")
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", generatedAt.UTC().Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A4", "Total")
	_ = f.SetCellValue(summarySheet, "B4", summary.Total)
	_ = f.SetCellValue(summarySheet, "A5", "Unacknowledged")
	_ = f.SetCellValue(summarySheet, "B5", summary.Unacknowledged)
	_ = f.SetCellValue(summarySheet, "A6", "Down")
	_ = f.SetCellValue(summarySheet, "B6", summary.Down)
	_ = f.SetCellValue(summarySheet, "A7", "Removed")
	_ = f.SetCellValue(summarySheet, "B7", summary.Removed)

	for i, column := range alertColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(alertsSheet, cell, column)
	}
	for r, alert := range alerts {
		for c, value := range alertRow(alert) {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(alertsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsPDF renders a one-table PDF of alerts.
func BuildAlertsPDF(alerts []health.Alert, generatedAt time.Time) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	summary := Summarize(alerts)
	pdf.Cell(0, 8, "Device Alerts")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", generatedAt.UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total: %d  Unacknowledged: %d  Down: %d  Removed: %d",
		summary.Total, summary.Unacknowledged, summary.Down, summary.Removed))
	pdf.Ln(8)

	widths := []float64{70, 55, 22, 45, 25, 45}
	pdf.SetFont("Arial", "B", 9)
	for i, column := range alertColumns {
		pdf.CellFormat(widths[i], 6, column, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alert := range alerts {
		for i, value := range alertRow(alert) {
			pdf.CellFormat(widths[i], 6, value, "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func alertRow(alert health.Alert) []string {
	ackedAt := ""
	if !alert.AckedAt.IsZero() {
		ackedAt = alert.AckedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		alert.ID,
		alert.DeviceID,
		string(alert.Event),
		alert.Timestamp.UTC().Format(time.RFC3339),
		fmt.Sprintf("%t", alert.Acknowledged),
		ackedAt,
	}
}
