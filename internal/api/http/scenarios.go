package apihttp

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"homewatch/internal/audit"
	chainapp "homewatch/internal/chains/application"
	chains "homewatch/internal/chains/domain"
)

func scenarioIndex(r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, false
	}
	return index, true
}

func (h *Handler) listScenarios(w http.ResponseWriter, _ *http.Request) {
	if !h.ready(w) {
		return
	}
	writeJSON(w, http.StatusOK, h.engine.ListScenarios())
}

func (h *Handler) addScenario(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var scenario chains.Scenario
	if err := decodeJSON(r, &scenario); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	index := h.engine.AddScenario(scenario)
	h.recordAudit(r, audit.ActionScenarioCreate, "scenario", strconv.Itoa(index), map[string]any{"label": scenario.Label, "events": len(scenario.Events)})
	writeJSON(w, http.StatusCreated, map[string]int{"index": index})
}

func (h *Handler) getScenario(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	index, ok := scenarioIndex(r)
	if !ok {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	scenario, found := h.engine.Scenario(index)
	if !found {
		http.Error(w, chains.ErrIndexOutOfRange.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, chains.NewScenarioView(index, scenario))
}

func (h *Handler) updateScenario(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	index, ok := scenarioIndex(r)
	if !ok {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	var scenario chains.Scenario
	if err := decodeJSON(r, &scenario); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !h.engine.UpdateScenario(index, scenario) {
		http.Error(w, chains.ErrIndexOutOfRange.Error(), http.StatusNotFound)
		return
	}
	h.recordAudit(r, audit.ActionScenarioUpdate, "scenario", strconv.Itoa(index), map[string]any{"label": scenario.Label, "events": len(scenario.Events)})
	writeJSON(w, http.StatusOK, chains.NewScenarioView(index, scenario))
}

func (h *Handler) deleteScenario(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	index, ok := scenarioIndex(r)
	if !ok {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	if !h.engine.DeleteScenario(index) {
		http.Error(w, chains.ErrIndexOutOfRange.Error(), http.StatusNotFound)
		return
	}
	h.recordAudit(r, audit.ActionScenarioDelete, "scenario", strconv.Itoa(index), nil)
	w.WriteHeader(http.StatusNoContent)
}

type predictRequest struct {
	Recent []chains.Event `json:"recent"`
	Window int            `json:"window"`
}

type predictResponse struct {
	Predicted bool          `json:"predicted"`
	Event     *chains.Event `json:"event"`
}

// predict uses the supplied recent events, or the newest window events from
// the ingest history when recent is empty.
func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var (
		next chains.Event
		ok   bool
	)
	switch {
	case len(req.Recent) > 0:
		next, ok = h.engine.PredictNext(req.Recent)
	case req.Window > 0:
		next, ok = h.engine.PredictFromHistory(req.Window)
	default:
		http.Error(w, "recent or window is required", http.StatusBadRequest)
		return
	}
	resp := predictResponse{Predicted: ok}
	if ok {
		resp.Event = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) suggestProfile(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var info chainapp.DeviceInfo
	if err := decodeJSON(r, &info); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, h.engine.SuggestProfile(info))
}
