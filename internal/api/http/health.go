package apihttp

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"homewatch/internal/audit"
	health "homewatch/internal/health/domain"
	"homewatch/internal/report"
)

type healthRequest struct {
	DeviceID string `json:"device_id"`
	Status   string `json:"status"`
}

func (h *Handler) updateHealth(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req healthRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	status, err := health.ParseStatus(req.Status)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	raised := h.engine.UpdateHealth(r.Context(), req.DeviceID, status)
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id":    req.DeviceID,
		"status":       status,
		"alert_raised": raised,
	})
}

func (h *Handler) listHealth(w http.ResponseWriter, _ *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.HealthRecords())
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	if r.URL.Query().Get("all") == "true" {
		writeJSON(w, http.StatusOK, h.engine.Alerts())
		return
	}
	writeJSON(w, http.StatusOK, h.engine.UnacknowledgedAlerts())
}

func (h *Handler) acknowledge(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	deviceID := chi.URLParam(r, "device_id")
	if deviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}
	count := h.engine.Acknowledge(r.Context(), deviceID)
	h.recordAudit(r, audit.ActionAlertAck, "device", deviceID, map[string]int{"acknowledged": count})
	writeJSON(w, http.StatusOK, map[string]any{"device_id": deviceID, "acknowledged": count})
}

func (h *Handler) exportAlerts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	alerts := h.engine.Alerts()
	if r.URL.Query().Get("all") == "false" {
		alerts = h.engine.UnacknowledgedAlerts()
	}
	now := h.now()

	var (
		data        []byte
		err         error
		contentType string
	)
	format := chi.URLParam(r, "format")
	switch format {
	case "csv":
		data, err = report.BuildAlertsCSV(alerts)
		contentType = "text/csv"
	case "xlsx":
		data, err = report.BuildAlertsXLSX(alerts, now)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		data, err = report.BuildAlertsPDF(alerts, now)
		contentType = "application/pdf"
	default:
		http.Error(w, "unsupported export format", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logf("alerts export %s error: %v", format, err)
		http.Error(w, "export error", http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("alerts-%s.%s", now.UTC().Format("20060102T150405Z"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) userStatus(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	username := chi.URLParam(r, "username")
	if username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"username": username,
		"status":   h.engine.UserStatus(username),
	})
}
