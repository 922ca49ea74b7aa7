package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// loadFunc parses every manifest one file declares. YAML files declare exactly
// one; Go manifest files may declare several.
type loadFunc func(path string) ([]ManifestFile, error)

// loadersByExt dispatches on the file extension. Supporting a new manifest
// format means adding one entry here.
var loadersByExt = map[string]loadFunc{
	".yaml": loadYAMLManifests,
	".yml":  loadYAMLManifests,
	".go":   loadGoManifests,
}

// ManifestFile pairs a parsed manifest with its on-disk source. For Go
// manifest files the path carries the manifest's position ("file.go#2").
type ManifestFile struct {
	Manifest Manifest
	Path     string
}

// isManifestSource reports whether a source locator names a loadable manifest
// file.
func isManifestSource(source string) bool {
	_, ok := loadersByExt[strings.ToLower(filepath.Ext(strings.TrimSpace(source)))]
	return ok
}

// LoadManifestFile parses the manifests a single file declares, picking the
// parser from the file extension.
func LoadManifestFile(path string) ([]ManifestFile, error) {
	load, ok := loadersByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, fmt.Errorf("plugin: %s: unsupported manifest format (expected .yaml, .yml, or .go)", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("plugin: %s is a directory", path)
	}
	files, err := load(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return files, nil
}

// LoadAllManifests scans dir for manifest files in every supported format. A
// missing directory is treated as "no plugins" to simplify startup. Duplicate
// module ids across files are rejected so a plan cannot resolve ambiguously.
func LoadAllManifests(dir string) ([]ManifestFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	var files []ManifestFile
	seen := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || !isManifestSource(entry.Name()) {
			continue
		}
		parsed, err := LoadManifestFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		for _, file := range parsed {
			id := file.Manifest.ID
			if existing, dup := seen[id]; dup {
				return nil, fmt.Errorf("plugin: duplicate module id %s (%s and %s)", id, existing, file.Path)
			}
			seen[id] = file.Path
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}
