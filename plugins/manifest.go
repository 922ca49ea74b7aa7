// Package plugins implements the module-source-resolver: it turns descriptor
// source locators (YAML manifests, Go manifest files, builtin ids) into
// mountable modules backed by the in-process factory registry.
package plugins

import (
	"fmt"
	"strings"

	"github.com/kingrea/loom/internal/module"
)

// Manifest describes an externally declared module.
//
// The struct mirrors the on-disk schema under .loom/modules/*.yaml and is
// intentionally narrow so the runtime can validate plugin metadata before
// wiring it into a session.
type Manifest struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name,omitempty" yaml:"name,omitempty"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string        `json:"version" yaml:"version"`
	Type        module.Type   `json:"type" yaml:"type"`
	Implements  string        `json:"implements,omitempty" yaml:"implements,omitempty"`
	Requires    []string      `json:"requires,omitempty" yaml:"requires,omitempty"`
	Config      module.Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// Normalized returns a trimmed, copy-on-write variant of the manifest.
func (m Manifest) Normalized() Manifest {
	clone := Manifest{
		ID:          strings.TrimSpace(m.ID),
		Name:        strings.TrimSpace(m.Name),
		Description: strings.TrimSpace(m.Description),
		Version:     strings.TrimSpace(m.Version),
		Type:        module.Type(strings.TrimSpace(string(m.Type))),
		Implements:  strings.TrimSpace(m.Implements),
	}
	if len(m.Requires) > 0 {
		clone.Requires = make([]string, 0, len(m.Requires))
		for _, req := range m.Requires {
			if trimmed := strings.TrimSpace(req); trimmed != "" {
				clone.Requires = append(clone.Requires, trimmed)
			}
		}
	}
	if len(m.Config) > 0 {
		clone.Config = make(module.Config, len(m.Config))
		for key, value := range m.Config {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Config[trimmed] = value
		}
	}
	return clone
}

// FactoryID returns the factory the manifest is constructed from, defaulting
// to the manifest's own id.
func (m Manifest) FactoryID() string {
	normalized := m.Normalized()
	if normalized.Implements != "" {
		return normalized.Implements
	}
	return normalized.ID
}

// Validate ensures the manifest is well-formed and declares a known type.
func (m Manifest) Validate() error {
	normalized := m.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("plugin: id is required")
	}
	if normalized.Version == "" {
		return fmt.Errorf("plugin %s: version is required", normalized.ID)
	}
	if normalized.Type == "" {
		return fmt.Errorf("plugin %s: type is required", normalized.ID)
	}
	if _, err := module.MountPointFor(normalized.Type); err != nil {
		return fmt.Errorf("plugin %s: %w", normalized.ID, err)
	}
	return nil
}
