// Package yamlfile reads scenario and event lists from YAML or JSON files.
package yamlfile

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	chains "homewatch/internal/chains/domain"
)

var errEmptyPath = errors.New("yamlfile: empty path")

type scenarioDocument struct {
	Scenarios []chains.Scenario `yaml:"scenarios"`
}

type eventDocument struct {
	Events []chains.Event `yaml:"events"`
}

// LoadScenarios accepts either a top-level list or a document with a
// "scenarios" key.
func LoadScenarios(path string) ([]chains.Scenario, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenarios(data)
}

// ParseScenarios decodes scenarios from raw YAML or JSON.
func ParseScenarios(data []byte) ([]chains.Scenario, error) {
	if isList(data) {
		var list []chains.Scenario
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("yamlfile: decode scenarios: %w", err)
		}
		return list, nil
	}
	var doc scenarioDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlfile: decode scenarios: %w", err)
	}
	if doc.Scenarios == nil {
		var single chains.Scenario
		if err := yaml.Unmarshal(data, &single); err == nil && len(single.Events) > 0 {
			return []chains.Scenario{single}, nil
		}
	}
	return doc.Scenarios, nil
}

// LoadEvents accepts either a top-level list or a document with an
// "events" key.
func LoadEvents(path string) ([]chains.Event, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if isList(data) {
		var list []chains.Event
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("yamlfile: decode events: %w", err)
		}
		return list, nil
	}
	var doc eventDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlfile: decode events: %w", err)
	}
	return doc.Events, nil
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("yamlfile: read %s: %w", path, err)
	}
	return data, nil
}

func isList(data []byte) bool {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return bytes.HasPrefix(bytes.TrimSpace(data), []byte("["))
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0].Kind == yaml.SequenceNode
	}
	return false
}
