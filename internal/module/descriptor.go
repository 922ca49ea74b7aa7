package module

import (
	"fmt"
	"strings"
)

// Config represents module-specific configuration (opaque to the runtime).
type Config map[string]any

// Descriptor declares a module before it is resolved and mounted: identity,
// declared type, an opaque source locator, and configuration. Immutable once
// loaded.
type Descriptor struct {
	ID     string `json:"id" yaml:"id"`
	Type   Type   `json:"type" yaml:"type"`
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
	Config Config `json:"config,omitempty" yaml:"config,omitempty"`
}

// Normalized returns a trimmed copy of the descriptor.
func (d Descriptor) Normalized() Descriptor {
	clone := Descriptor{
		ID:     strings.TrimSpace(d.ID),
		Type:   Type(strings.TrimSpace(string(d.Type))),
		Source: strings.TrimSpace(d.Source),
	}
	if len(d.Config) > 0 {
		clone.Config = make(Config, len(d.Config))
		for key, value := range d.Config {
			trimmed := strings.TrimSpace(key)
			if trimmed == "" {
				continue
			}
			clone.Config[trimmed] = value
		}
	}
	return clone
}

// Validate ensures the descriptor is well-formed and its declared type has a
// mount point.
func (d Descriptor) Validate() error {
	normalized := d.Normalized()
	if normalized.ID == "" {
		return fmt.Errorf("module: descriptor id is required")
	}
	if normalized.Type == "" {
		return fmt.Errorf("module: descriptor %s: type is required", normalized.ID)
	}
	if _, err := MountPointFor(normalized.Type); err != nil {
		return fmt.Errorf("module: descriptor %s: %w", normalized.ID, err)
	}
	return nil
}
