package notify

import (
	"bytes"
	"errors"
	"text/template"
)

const DefaultTemplate = `[Device Alert {{.EventLabel}}]
Device: {{.DeviceID}}
Condition: {{.Condition}}
Raised At: {{.RaisedAt}}
Current Status: {{.Status}}
Suggestion: {{.Suggestion}}
{{ if .AckedAt }}
Acknowledged At: {{.AckedAt}}
{{ end }}`

// TemplateData provides fields for rendering notification content.
type TemplateData struct {
	AlertID    string
	DeviceID   string
	Condition  string
	RaisedAt   string
	AckedAt    string
	Status     string
	Suggestion string
	Event      string
	EventLabel string
}

// Template renders notification content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notification template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if tpl == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("alert-notification").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to data.
func (t *Template) Render(data TemplateData) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("alert template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
