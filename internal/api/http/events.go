package apihttp

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	chains "homewatch/internal/chains/domain"
	"homewatch/internal/observability/metrics"
)

type ingestResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// postEvent accepts a single event object or an array of events.
func (h *Handler) postEvent(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveIngest(result, time.Since(start))
	}()

	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		result = metrics.ResultError
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var events []chains.Event
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			result = metrics.ResultError
			http.Error(w, "invalid event list", http.StatusBadRequest)
			return
		}
	} else {
		var evt chains.Event
		if err := json.Unmarshal(trimmed, &evt); err != nil {
			result = metrics.ResultError
			http.Error(w, "invalid event", http.StatusBadRequest)
			return
		}
		events = []chains.Event{evt}
	}

	var resp ingestResponse
	for _, evt := range events {
		if h.engine.AddEvent(r.Context(), evt) {
			resp.Accepted++
		} else {
			resp.Rejected++
		}
	}
	if resp.Accepted == 0 {
		result = metrics.ResultError
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	n, err := parseCount(r, "n", 50)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.RecentEvents(n))
}

func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	n, err := parseCount(r, "n", 10)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": h.engine.Diagnostics(n)})
}
