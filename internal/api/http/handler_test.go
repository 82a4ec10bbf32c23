package apihttp

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"homewatch/internal/audit"
	chains "homewatch/internal/chains/domain"
	"homewatch/internal/engine"
	health "homewatch/internal/health/domain"
)

type stubGateway struct {
	phones []string
}

func (s *stubGateway) Call(_ context.Context, phone, _ string) error {
	s.phones = append(s.phones, phone)
	return nil
}

func newTestServer(t *testing.T, opts ...engine.Option) (*httptest.Server, *engine.Engine) {
	t.Helper()
	eng := engine.New(opts...)
	router := chi.NewRouter()
	NewHandler(eng, nil).Routes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server, eng
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		var raw []byte
		switch v := body.(type) {
		case string:
			raw = []byte(v)
		default:
			var err error
			raw, err = json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestScenarioCRUD(t *testing.T) {
	server, eng := newTestServer(t)

	scenario := chains.Scenario{
		SequenceID: "morning",
		Label:      "Morning routine",
		Events: []chains.Event{
			{EventType: "motion", SensorID: "hall"},
			{EventType: "door", SensorID: "front", Value: "open"},
		},
	}
	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/scenarios", scenario)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var created map[string]int
	decodeBody(t, resp, &created)
	if created["index"] != 0 {
		t.Fatalf("expected index 0, got %d", created["index"])
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/scenarios/0", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var view chains.ScenarioView
	decodeBody(t, resp, &view)
	if view.Label != "Morning routine" || len(view.Events) != 2 {
		t.Fatalf("unexpected scenario view: %+v", view)
	}

	scenario.Label = "Updated"
	resp = doJSON(t, http.MethodPut, server.URL+"/api/v1/scenarios/0", scenario)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on update, got %d", resp.StatusCode)
	}
	if got, _ := eng.Scenario(0); got.Label != "Updated" {
		t.Fatalf("expected updated label, got %q", got.Label)
	}

	resp = doJSON(t, http.MethodDelete, server.URL+"/api/v1/scenarios/0", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	if eng.ScenarioCount() != 0 {
		t.Fatalf("expected empty store, got %d", eng.ScenarioCount())
	}
}

func TestScenarioNotFoundAndMalformed(t *testing.T) {
	server, _ := newTestServer(t)

	cases := []struct {
		method string
		path   string
		body   any
		status int
	}{
		{http.MethodGet, "/api/v1/scenarios/3", nil, http.StatusNotFound},
		{http.MethodPut, "/api/v1/scenarios/3", chains.Scenario{Label: "x"}, http.StatusNotFound},
		{http.MethodDelete, "/api/v1/scenarios/3", nil, http.StatusNotFound},
		{http.MethodGet, "/api/v1/scenarios/abc", nil, http.StatusBadRequest},
		{http.MethodPost, "/api/v1/scenarios", "{not json", http.StatusBadRequest},
		{http.MethodPost, "/api/v1/scenarios", "", http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := doJSON(t, tc.method, server.URL+tc.path, tc.body)
		if resp.StatusCode != tc.status {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.status, resp.StatusCode)
		}
	}
}

func TestPostEventsAndPredict(t *testing.T) {
	server, eng := newTestServer(t)
	eng.AddScenario(chains.Scenario{
		SequenceID: "evening",
		Events: []chains.Event{
			{EventType: "motion", SensorID: "kitchen"},
			{EventType: "light", SensorID: "kitchen", Value: "on"},
		},
	})

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/events", chains.Event{EventType: "motion", SensorID: "kitchen"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/events", `[{"event_type":""},{"event_type":"door"}]`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202 for partial batch, got %d", resp.StatusCode)
	}
	var batch ingestResponse
	decodeBody(t, resp, &batch)
	if batch.Accepted != 1 || batch.Rejected != 1 {
		t.Fatalf("unexpected batch result: %+v", batch)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/events", `{"sensor_id":"x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid event, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/predict", predictRequest{
		Recent: []chains.Event{{EventType: "motion", SensorID: "kitchen"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var predicted predictResponse
	decodeBody(t, resp, &predicted)
	if !predicted.Predicted || predicted.Event == nil || predicted.Event.EventType != "light" {
		t.Fatalf("unexpected prediction: %+v", predicted)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/predict", predictRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without recent or window, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/events?n=1", nil)
	var recent []chains.Event
	decodeBody(t, resp, &recent)
	if len(recent) != 1 || recent[0].EventType != "door" {
		t.Fatalf("unexpected recent events: %+v", recent)
	}
}

func TestHealthAlertsAndUserStatus(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/v1/health", healthRequest{DeviceID: "alice-pendant", Status: "down"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var result map[string]any
	decodeBody(t, resp, &result)
	if result["alert_raised"] != true {
		t.Fatalf("expected alert raised, got %+v", result)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/health", healthRequest{DeviceID: "alice-pendant", Status: "sleepy"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/users/alice/status", nil)
	var status map[string]string
	decodeBody(t, resp, &status)
	if status["status"] != string(health.UserRed) {
		t.Fatalf("expected red, got %q", status["status"])
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/alerts", nil)
	var alerts []health.Alert
	decodeBody(t, resp, &alerts)
	if len(alerts) != 1 || alerts[0].DeviceID != "alice-pendant" {
		t.Fatalf("unexpected alerts: %+v", alerts)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/alerts/alice-pendant/ack", nil)
	var ack map[string]any
	decodeBody(t, resp, &ack)
	if ack["acknowledged"] != float64(1) {
		t.Fatalf("expected 1 acknowledged, got %+v", ack)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/alerts", nil)
	alerts = nil
	decodeBody(t, resp, &alerts)
	if len(alerts) != 0 {
		t.Fatalf("expected no unacknowledged alerts, got %d", len(alerts))
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/alerts?all=true", nil)
	decodeBody(t, resp, &alerts)
	if len(alerts) != 1 || !alerts[0].Acknowledged {
		t.Fatalf("expected acknowledged alert in history, got %+v", alerts)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/users/alice/status", nil)
	decodeBody(t, resp, &status)
	if status["status"] != string(health.UserYellow) {
		t.Fatalf("expected yellow while device is down, got %q", status["status"])
	}
}

func TestAlertExport(t *testing.T) {
	server, eng := newTestServer(t)
	eng.UpdateHealth(context.Background(), "hub-1", health.StatusRemoved)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/alerts/export.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("unexpected content type %q", ct)
	}
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if !strings.Contains(buf.String(), "hub-1") {
		t.Fatalf("expected device in csv, got %s", buf.String())
	}

	for _, format := range []string{"xlsx", "pdf"} {
		resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/alerts/export."+format, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s export: expected 200, got %d", format, resp.StatusCode)
		}
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/alerts/export.doc", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown format, got %d", resp.StatusCode)
	}
}

func TestEscalateAndContacts(t *testing.T) {
	gateway := &stubGateway{}
	server, _ := newTestServer(t, engine.WithCallGateway(gateway))

	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/contacts", nil)
	var ladder map[string]any
	decodeBody(t, resp, &ladder)
	if ladder["emergency_service"] == nil {
		t.Fatalf("expected emergency service in ladder, got %+v", ladder)
	}

	resp = doJSON(t, http.MethodPost, server.URL+"/api/v1/escalate", escalateRequest{Level: 0})
	var result map[string]any
	decodeBody(t, resp, &result)
	if result["placed"] != true || result["enabled"] != true {
		t.Fatalf("unexpected escalate result: %+v", result)
	}
	if len(gateway.phones) != 1 || gateway.phones[0] != "911" {
		t.Fatalf("expected call to 911, got %v", gateway.phones)
	}
}

func TestDiagnosticsLimit(t *testing.T) {
	server, eng := newTestServer(t)
	for i := 0; i < 5; i++ {
		eng.AddEvent(context.Background(), chains.Event{EventType: "motion"})
	}
	resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/diagnostics?n=2", nil)
	var body map[string][]string
	decodeBody(t, resp, &body)
	if len(body["entries"]) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(body["entries"]))
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/v1/diagnostics?n=-1", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Log(_ context.Context, entry audit.Entry) error {
	r.entries = append(r.entries, entry)
	return nil
}

func TestOperatorActionsAreAudited(t *testing.T) {
	recorder := &recordingAudit{}
	eng := engine.New()
	router := chi.NewRouter()
	NewHandler(eng, nil, WithAuditLogger(recorder)).Routes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	doJSON(t, http.MethodPost, server.URL+"/api/v1/scenarios", chains.Scenario{Label: "a", Events: []chains.Event{{EventType: "x"}, {EventType: "y"}}})
	if resp := doJSON(t, http.MethodGet, server.URL+"/api/v1/scenarios/0", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 on read, got %d", resp.StatusCode)
	}
	doJSON(t, http.MethodGet, server.URL+"/api/v1/scenarios", nil)
	if len(recorder.entries) != 1 {
		t.Fatalf("expected reads to leave the audit trail untouched, got %d entries", len(recorder.entries))
	}
	doJSON(t, http.MethodPost, server.URL+"/api/v1/alerts/hub-1/ack", nil)
	doJSON(t, http.MethodDelete, server.URL+"/api/v1/scenarios/9", nil)

	if len(recorder.entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(recorder.entries))
	}
	if recorder.entries[0].Action != audit.ActionScenarioCreate || recorder.entries[0].ResourceID != "0" {
		t.Fatalf("unexpected first entry: %+v", recorder.entries[0])
	}
	if recorder.entries[1].Action != audit.ActionAlertAck || recorder.entries[1].Actor != "anonymous" {
		t.Fatalf("unexpected second entry: %+v", recorder.entries[1])
	}
}
