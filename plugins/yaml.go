package plugins

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ParseManifestYAML decodes and validates a single manifest payload. Decoding
// is strict: unknown keys are rejected so a typoed field fails loudly instead
// of silently vanishing.
func ParseManifestYAML(data []byte) (Manifest, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return Manifest{}, fmt.Errorf("plugin: manifest payload is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("plugin: decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m.Normalized(), nil
}

// loadYAMLManifests reads one YAML manifest file. A YAML file declares
// exactly one manifest.
func loadYAMLManifests(path string) ([]ManifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := ParseManifestYAML(data)
	if err != nil {
		return nil, err
	}
	return []ManifestFile{{Manifest: m, Path: filepath.Clean(path)}}, nil
}
