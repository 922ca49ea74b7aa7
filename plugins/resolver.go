package plugins

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/loom/internal/module"
)

// builtinScheme marks a source locator that names an in-process factory.
const builtinScheme = "builtin:"

// ResolverOption customizes Resolver construction.
type ResolverOption func(*Resolver)

// WithSearchDir resolves relative source paths against dir (typically
// .loom/modules).
func WithSearchDir(dir string) ResolverOption {
	return func(r *Resolver) {
		r.searchDir = strings.TrimSpace(dir)
	}
}

// Resolver resolves descriptor source locators into modules. It is itself a
// module of type resolver, so a session mounts it at module-source-resolver
// and other components discover it there.
type Resolver struct {
	registry  *module.Registry
	searchDir string
}

// NewResolver builds a resolver backed by the given factory registry.
func NewResolver(registry *module.Registry, opts ...ResolverOption) *Resolver {
	r := &Resolver{registry: registry}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Info implements module.Module.
func (r *Resolver) Info() module.Info {
	return module.Info{
		ID:          "source-resolver",
		Name:        "Module Source Resolver",
		Type:        module.TypeResolver,
		Version:     "1.0.0",
		Description: "resolves descriptor source locators into modules",
	}
}

// Mount publishes the modules.available capability so other modules can list
// resolvable factory ids.
func (r *Resolver) Mount(host module.Host) error {
	host.RegisterCapability("modules.available", func(context.Context, map[string]any) (any, error) {
		return r.registry.IDs(), nil
	})
	return nil
}

// Unmount withdraws the published capability.
func (r *Resolver) Unmount(host module.Host) error {
	host.UnregisterCapability("modules.available")
	return nil
}

// Resolve implements module.SourceResolver. An empty or builtin: locator
// constructs straight from the factory registry; *.yaml and *.go locators are
// loaded as manifests first.
func (r *Resolver) Resolve(desc module.Descriptor) (module.Module, error) {
	desc = desc.Normalized()
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	source := desc.Source
	switch {
	case source == "":
		return r.registry.Resolve(desc.ID, desc.Config)
	case strings.HasPrefix(source, builtinScheme):
		id := strings.TrimSpace(strings.TrimPrefix(source, builtinScheme))
		if id == "" {
			id = desc.ID
		}
		return r.registry.Resolve(id, desc.Config)
	case isManifestSource(source):
		files, err := LoadManifestFile(r.resolvePath(source))
		if err != nil {
			return nil, err
		}
		m, err := pickManifest(files, desc.ID)
		if err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", source, err)
		}
		return r.fromManifest(desc, m)
	}
	return nil, fmt.Errorf("plugin: descriptor %s: unsupported source locator %q (expected builtin:<id>, *.yaml, or *.go)", desc.ID, source)
}

// fromManifest constructs the module a manifest describes and checks it
// against the descriptor's declared type, so a plan cannot smuggle a module
// into the wrong mount point.
func (r *Resolver) fromManifest(desc module.Descriptor, m Manifest) (module.Module, error) {
	if m.Type != desc.Type {
		return nil, fmt.Errorf("plugin: descriptor %s declares type %s but manifest %s declares %s", desc.ID, desc.Type, m.ID, m.Type)
	}
	merged := make(module.Config, len(m.Config)+len(desc.Config))
	for key, value := range m.Config {
		merged[key] = value
	}
	for key, value := range desc.Config {
		merged[key] = value
	}
	mod, err := r.registry.Resolve(m.FactoryID(), merged)
	if err != nil {
		return nil, fmt.Errorf("plugin: manifest %s: %w", m.ID, err)
	}
	if got := mod.Info().Type; got != desc.Type {
		return nil, fmt.Errorf("plugin: factory %s produced type %s, descriptor %s requires %s", m.FactoryID(), got, desc.ID, desc.Type)
	}
	if reqs := m.Normalized().Requires; len(reqs) > 0 {
		return &requiringModule{Module: mod, requires: reqs}, nil
	}
	return mod, nil
}

func (r *Resolver) resolvePath(source string) string {
	if filepath.IsAbs(source) || r.searchDir == "" {
		return source
	}
	return filepath.Join(r.searchDir, source)
}

func pickManifest(files []ManifestFile, id string) (Manifest, error) {
	if len(files) == 0 {
		return Manifest{}, fmt.Errorf("no manifests declared")
	}
	for _, file := range files {
		if file.Manifest.ID == id {
			return file.Manifest, nil
		}
	}
	if len(files) == 1 {
		return files[0].Manifest, nil
	}
	return Manifest{}, fmt.Errorf("no manifest matches module id %s", id)
}

// requiringModule overlays a manifest's required-capability declaration onto
// the constructed module so loader validation can check it.
type requiringModule struct {
	module.Module
	requires []string
}

// Requires lists capability names that must be registered before mount.
func (m *requiringModule) Requires() []string {
	return append([]string{}, m.requires...)
}
