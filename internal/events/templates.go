package events

import (
	"bytes"
	"fmt"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// MessageTemplateEngine provides dynamic message generation for events.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventReason]*template.Template
	sources   map[EventReason]string
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]*template.Template),
		sources:   make(map[EventReason]string),
	}
	engine.loadDefaultTemplates()
	return engine
}

// loadDefaultTemplates initializes the default message templates for all event reasons.
func (e *MessageTemplateEngine) loadDefaultTemplates() {
	defaults := map[EventReason]string{
		// Framework
		ReasonFrameworkStarted:  "Framework started",
		ReasonFrameworkError:    "Framework error{{if .Name}} in bundle {{.Name}} [{{.Bundle}}]{{end}}{{if .Error}}: {{.Error}}{{end}}",
		ReasonPackagesRefreshed: "Packages refreshed",
		ReasonStartLevelChanged: "Framework start level changed to {{.StartLevel}}",
		ReasonFrameworkStopped:  "Framework stopped",
		ReasonWaitTimedOut:      "Timed out waiting for the framework to stop",

		// Bundles
		ReasonBundleInstalled:   "Bundle {{.Name}} [{{.Bundle}}] installed from {{.Location | default \"unknown location\"}}",
		ReasonBundleResolved:    "Bundle {{.Name}} [{{.Bundle}}] resolved",
		ReasonBundleStarting:    "Bundle {{.Name}} [{{.Bundle}}] is starting",
		ReasonBundleStarted:     "Bundle {{.Name}} [{{.Bundle}}] started",
		ReasonBundleStopping:    "Bundle {{.Name}} [{{.Bundle}}] is stopping",
		ReasonBundleStopped:     "Bundle {{.Name}} [{{.Bundle}}] stopped",
		ReasonBundleUpdated:     "Bundle {{.Name}} [{{.Bundle}}] updated",
		ReasonBundleUnresolved:  "Bundle {{.Name}} [{{.Bundle}}] unresolved",
		ReasonBundleUninstalled: "Bundle {{.Name}} [{{.Bundle}}] uninstalled",

		// Services
		ReasonServiceRegistered:    "Service {{.ServiceID}} [{{.Contracts | join \", \"}}] registered by bundle {{.Bundle}}",
		ReasonServiceModified:      "Service {{.ServiceID}} [{{.Contracts | join \", \"}}] modified",
		ReasonServiceUnregistering: "Service {{.ServiceID}} [{{.Contracts | join \", \"}}] unregistering",
	}
	for reason, src := range defaults {
		if err := e.SetTemplate(reason, src); err != nil {
			panic(fmt.Sprintf("invalid default template for %s: %v", reason, err))
		}
	}
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	e.mu.RLock()
	tmpl, exists := e.templates[reason]
	e.mu.RUnlock()
	if !exists {
		// Fallback for unknown event reasons
		return fmt.Sprintf("Event: %s for %s [%d]", string(reason), data.Name, data.Bundle)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Event: %s for %s [%d] (template error: %v)", string(reason), data.Name, data.Bundle, err)
	}
	return buf.String()
}

// SetTemplate allows customizing the message template for a specific event reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, src string) error {
	tmpl, err := template.New(string(reason)).Funcs(sprig.TxtFuncMap()).Parse(src)
	if err != nil {
		return fmt.Errorf("failed to parse template for %s: %w", reason, err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[reason] = tmpl
	e.sources[reason] = src
	return nil
}

// GetTemplate returns the template for a specific event reason.
func (e *MessageTemplateEngine) GetTemplate(reason EventReason) (string, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	src, exists := e.sources[reason]
	return src, exists
}
