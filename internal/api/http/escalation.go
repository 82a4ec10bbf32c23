package apihttp

import (
	"net/http"
	"strconv"

	"homewatch/internal/audit"
	chains "homewatch/internal/chains/domain"
)

type escalateRequest struct {
	Message string `json:"message"`
	Level   int    `json:"level"`
}

func (h *Handler) contacts(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.Ladder(r.Context()))
}

// escalate triggers a manual call-out at the requested level.
func (h *Handler) escalate(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req escalateRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Message == "" {
		req.Message = chains.DefaultCallOutMessage
	}
	placed := h.engine.Escalate(r.Context(), req.Message, req.Level)
	h.recordAudit(r, audit.ActionEscalate, "ladder_level", strconv.Itoa(req.Level), map[string]any{"placed": placed})
	writeJSON(w, http.StatusOK, map[string]any{
		"level":   req.Level,
		"placed":  placed,
		"enabled": h.engine.EscalationEnabled(),
	})
}
