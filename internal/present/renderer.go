package present

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// Event names a message shown to a participant.
type Event string

const (
	EventGained    Event = "gained"
	EventLost      Event = "lost"
	EventAvailable Event = "available"
	EventFailed    Event = "failed"
)

// DefaultTemplates are used for any event without an override.
var DefaultTemplates = map[Event]string{
	EventGained: `{{ if eq .Kind "mount" }}You mount {{ .Name }}{{ else if eq .Kind "pickup" }}You pick up {{ .Name }}{{ else }}You capture {{ .Name }}{{ end }}.` +
		`{{ if .AwaitConfirm }} Confirm to keep it.{{ end }}`,
	EventLost:      `{{ if eq .Kind "mount" }}You dismount {{ .Name }}{{ else }}You no longer hold {{ .Name }}{{ end }}.`,
	EventAvailable: `{{ .Name }} is {{ ternary "free" "taken" .Free }}.`,
	EventFailed:    `You lose {{ .Name }}: {{ .Reason | lower }}.`,
}

// Data is what the templates can reference.
type Data struct {
	Entity       string
	Name         string
	Kind         string
	Free         bool
	AwaitConfirm bool
	Reason       string
}

// Renderer expands event templates with sprig's function map.
type Renderer struct {
	templates map[Event]*template.Template
}

// NewRenderer parses DefaultTemplates with any overrides applied.
func NewRenderer(overrides map[Event]string) (*Renderer, error) {
	r := &Renderer{templates: map[Event]*template.Template{}}

	sources := map[Event]string{}
	for ev, src := range DefaultTemplates {
		sources[ev] = src
	}
	for ev, src := range overrides {
		sources[ev] = src
	}

	for ev, src := range sources {
		tmpl, err := template.New(string(ev)).Funcs(sprig.TxtFuncMap()).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parsing %s template: %w", ev, err)
		}
		r.templates[ev] = tmpl
	}

	return r, nil
}

func (r *Renderer) Render(ev Event, data Data) (string, error) {
	tmpl, ok := r.templates[ev]
	if !ok {
		return "", fmt.Errorf("no template for %s", ev)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("executing %s template: %w", ev, err)
	}
	return buf.String(), nil
}
