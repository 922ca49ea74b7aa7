// Package plan parses the declarative mount plan a session is constructed
// from: which modules to load, from which sources, with what configuration.
package plan

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/kingrea/loom/internal/module"
	"gopkg.in/yaml.v3"
)

// Entry declares one module to mount.
type Entry struct {
	Module string        `yaml:"module" json:"module"`
	Source string        `yaml:"source,omitempty" json:"source,omitempty"`
	Config module.Config `yaml:"config,omitempty" json:"config,omitempty"`
}

// Descriptor converts the entry into a module descriptor of the given type.
func (e Entry) Descriptor(t module.Type) module.Descriptor {
	return module.Descriptor{
		ID:     strings.TrimSpace(e.Module),
		Type:   t,
		Source: strings.TrimSpace(e.Source),
		Config: e.Config,
	}.Normalized()
}

// SessionSpec holds the singleton slots plus session-level policy values.
// Budget fields are additive: older plans simply omit them.
type SessionSpec struct {
	Orchestrator *Entry `yaml:"orchestrator,omitempty" json:"orchestrator,omitempty"`
	Context      *Entry `yaml:"context,omitempty" json:"context,omitempty"`

	InjectionSizeLimit     int `yaml:"injection_size_limit,omitempty" json:"injection_size_limit,omitempty"`
	InjectionBudgetPerTurn int `yaml:"injection_budget_per_turn,omitempty" json:"injection_budget_per_turn,omitempty"`
}

// Plan models the mount plan document.
type Plan struct {
	Session   SessionSpec `yaml:"session" json:"session"`
	Providers []Entry     `yaml:"providers,omitempty" json:"providers,omitempty"`
	Tools     []Entry     `yaml:"tools,omitempty" json:"tools,omitempty"`
	Hooks     []Entry     `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Context   []Entry     `yaml:"context,omitempty" json:"context,omitempty"`
}

// Parse decodes and validates a mount plan payload.
func Parse(data []byte) (Plan, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Plan{}, fmt.Errorf("plan: document is empty")
	}
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Plan{}, fmt.Errorf("plan: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Load reads a mount plan from disk.
func Load(path string) (Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return Plan{}, fmt.Errorf("plan: %s: %w", path, err)
	}
	return p, nil
}

// Validate enforces entry well-formedness and the singleton rule for the
// context slot: a plan may name a context module either under session.context
// or as the single element of the context list, not both.
func (p Plan) Validate() error {
	if p.Session.Orchestrator != nil {
		if err := validateEntry("session.orchestrator", *p.Session.Orchestrator); err != nil {
			return err
		}
	}
	if p.Session.Context != nil {
		if err := validateEntry("session.context", *p.Session.Context); err != nil {
			return err
		}
	}
	if p.Session.InjectionSizeLimit < 0 {
		return fmt.Errorf("plan: injection_size_limit must be >= 0")
	}
	if p.Session.InjectionBudgetPerTurn < 0 {
		return fmt.Errorf("plan: injection_budget_per_turn must be >= 0")
	}
	for _, section := range []struct {
		label   string
		entries []Entry
	}{
		{"providers", p.Providers},
		{"tools", p.Tools},
		{"hooks", p.Hooks},
		{"context", p.Context},
	} {
		seen := make(map[string]struct{}, len(section.entries))
		for idx, entry := range section.entries {
			label := fmt.Sprintf("%s[%d]", section.label, idx)
			if err := validateEntry(label, entry); err != nil {
				return err
			}
			id := strings.TrimSpace(entry.Module)
			if _, dup := seen[id]; dup {
				return fmt.Errorf("plan: %s: duplicate module %s", label, id)
			}
			seen[id] = struct{}{}
		}
	}
	if len(p.Context) > 1 {
		return fmt.Errorf("plan: context slot is a singleton; %d context modules declared", len(p.Context))
	}
	if p.Session.Context != nil && len(p.Context) > 0 {
		return fmt.Errorf("plan: context declared both under session.context and context[]")
	}
	return nil
}

// Descriptors flattens the plan into mount order: hooks first so lifecycle
// events are observable, then providers, tools, context, and finally the
// orchestrator.
func (p Plan) Descriptors() []module.Descriptor {
	var descs []module.Descriptor
	for _, e := range p.Hooks {
		descs = append(descs, e.Descriptor(module.TypeHook))
	}
	for _, e := range p.Providers {
		descs = append(descs, e.Descriptor(module.TypeProvider))
	}
	for _, e := range p.Tools {
		descs = append(descs, e.Descriptor(module.TypeTool))
	}
	if p.Session.Context != nil {
		descs = append(descs, p.Session.Context.Descriptor(module.TypeContext))
	}
	for _, e := range p.Context {
		descs = append(descs, e.Descriptor(module.TypeContext))
	}
	if p.Session.Orchestrator != nil {
		descs = append(descs, p.Session.Orchestrator.Descriptor(module.TypeOrchestrator))
	}
	return descs
}

func validateEntry(label string, e Entry) error {
	if strings.TrimSpace(e.Module) == "" {
		return fmt.Errorf("plan: %s: module id is required", label)
	}
	return nil
}
