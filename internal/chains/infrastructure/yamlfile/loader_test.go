package yamlfile

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestLoadScenariosDocument(t *testing.T) {
	path := writeFile(t, "scenarios.yaml", `
scenarios:
  - sequence_id: morning
    label: Morning routine
    events:
      - event_type: motion
        sensor_id: hall
      - event_type: door
        sensor_id: front
        value: open
  - label: Fall
    events:
      - event_type: fall
      - event_type: call_out
        escalation_level: 1
`)
	scenarios, err := LoadScenarios(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scenarios) != 2 {
		t.Fatalf("expected 2 scenarios, got %d", len(scenarios))
	}
	if scenarios[0].SequenceID != "morning" || scenarios[0].Events[1].Value != "open" {
		t.Fatalf("unexpected first scenario: %+v", scenarios[0])
	}
	level := scenarios[1].Events[1].EscalationLevel
	if level == nil || *level != 1 {
		t.Fatalf("expected escalation level 1, got %v", level)
	}
}

func TestLoadScenariosListAndJSON(t *testing.T) {
	path := writeFile(t, "scenarios.json", `[{"label":"a","events":[{"event_type":"x"}]}]`)
	scenarios, err := LoadScenarios(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].Label != "a" {
		t.Fatalf("unexpected scenarios: %+v", scenarios)
	}
}

func TestParseSingleScenario(t *testing.T) {
	scenarios, err := ParseScenarios([]byte("label: solo\nevents:\n  - event_type: x\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(scenarios) != 1 || scenarios[0].Label != "solo" {
		t.Fatalf("unexpected scenarios: %+v", scenarios)
	}
}

func TestLoadEvents(t *testing.T) {
	path := writeFile(t, "recent.yaml", "events:\n  - event_type: motion\n    sensor_id: kitchen\n")
	events, err := LoadEvents(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(events) != 1 || events[0].SensorID != "kitchen" {
		t.Fatalf("unexpected events: %+v", events)
	}

	if _, err := LoadEvents(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, err := LoadEvents(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
