// Package loader tracks which modules occupy which mount points. It validates
// before mounting (fail before mutate), remembers mount order so teardown can
// reverse it, and treats unmounting an absent name as a no-op.
package loader

import (
	"fmt"
	"sync"

	"github.com/kingrea/loom/internal/module"
)

// CapabilityChecker answers presence queries during validation without
// triggering audit logging.
type CapabilityChecker interface {
	Has(name string) bool
}

// Logger records loader diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Mounted identifies one occupied slot.
type Mounted struct {
	Point  module.MountPoint
	Name   string
	Module module.Module
}

// Loader owns the mount-point table for a single coordinator.
type Loader struct {
	mu     sync.Mutex
	mounts map[module.MountPoint]map[string]module.Module
	order  []Mounted
	caps   CapabilityChecker
	logger Logger
}

// New returns an empty loader. caps may be nil when required-capability
// checks are not wanted.
func New(caps CapabilityChecker, logger Logger) *Loader {
	return &Loader{
		mounts: map[module.MountPoint]map[string]module.Module{},
		caps:   caps,
		logger: logger,
	}
}

// Validate runs the structural checks a module must pass before it is
// mounted. Failures are collected into a single ValidationError carrying the
// module id and every individual check that failed.
func (l *Loader) Validate(m module.Module) error {
	if m == nil {
		return &module.ValidationError{ModuleID: "<nil>", Failures: []string{"module is nil"}}
	}
	info := m.Info()
	id := info.ID
	if id == "" {
		id = "<unidentified>"
	}
	var failures []string
	if info.ID == "" {
		failures = append(failures, "id is required")
	}
	if info.Type == "" {
		failures = append(failures, "type is required")
	} else if _, err := module.MountPointFor(info.Type); err != nil {
		failures = append(failures, err.Error())
	}
	if info.Version == "" {
		failures = append(failures, "version is required")
	}
	if l.caps != nil {
		for _, required := range requiredCapabilities(m) {
			if !l.caps.Has(required) {
				failures = append(failures, fmt.Sprintf("required capability %s is not registered", required))
			}
		}
	}
	if len(failures) > 0 {
		return &module.ValidationError{ModuleID: id, Failures: failures}
	}
	return nil
}

// Mount derives the mount point from the module's declared type, validates,
// and records the module under name (defaulting to its id). The table is not
// touched until every check has passed.
func (l *Loader) Mount(m module.Module, name string) (module.MountPoint, string, error) {
	if err := l.Validate(m); err != nil {
		return "", "", err
	}
	info := m.Info()
	mp, err := module.MountPointFor(info.Type)
	if err != nil {
		return "", "", err
	}
	if name == "" {
		name = info.ID
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	slot := l.mounts[mp]
	if mp.Singleton() && len(slot) > 0 {
		for existing := range slot {
			return "", "", fmt.Errorf("loader: mount point %s already holds %s; unmount it before mounting %s", mp, existing, info.ID)
		}
	}
	if _, taken := slot[name]; taken {
		return "", "", fmt.Errorf("loader: %s is already mounted at %s; pick another name or unmount it first", name, mp)
	}
	if slot == nil {
		slot = map[string]module.Module{}
		l.mounts[mp] = slot
	}
	slot[name] = m
	l.order = append(l.order, Mounted{Point: mp, Name: name, Module: m})
	l.logf("loader: mounted %s at %s as %s", info.ID, mp, name)
	return mp, name, nil
}

// Unmount removes the named module from a mount point. Unmounting a name that
// is not mounted is a no-op, not an error; the second return reports whether
// anything was removed.
func (l *Loader) Unmount(mp module.MountPoint, name string) (module.Module, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot := l.mounts[mp]
	m, ok := slot[name]
	if !ok {
		return nil, false
	}
	delete(slot, name)
	l.removeFromOrder(mp, name)
	l.logf("loader: unmounted %s from %s", name, mp)
	return m, true
}

// Get returns the module mounted under name at a mount point.
func (l *Loader) Get(mp module.MountPoint, name string) (module.Module, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.mounts[mp][name]
	return m, ok
}

// Mounted lists the names attached to a mount point, in mount order.
func (l *Loader) Mounted(mp module.MountPoint) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for _, ref := range l.order {
		if ref.Point == mp {
			names = append(names, ref.Name)
		}
	}
	return names
}

// DrainReverse empties the table and returns every mounted module in the
// opposite order they were mounted, so dependents tear down before their
// dependencies.
func (l *Loader) DrainReverse() []Mounted {
	l.mu.Lock()
	defer l.mu.Unlock()
	drained := make([]Mounted, 0, len(l.order))
	for i := len(l.order) - 1; i >= 0; i-- {
		drained = append(drained, l.order[i])
	}
	l.order = nil
	l.mounts = map[module.MountPoint]map[string]module.Module{}
	return drained
}

func (l *Loader) removeFromOrder(mp module.MountPoint, name string) {
	kept := l.order[:0]
	for _, ref := range l.order {
		if ref.Point == mp && ref.Name == name {
			continue
		}
		kept = append(kept, ref)
	}
	l.order = kept
}

func (l *Loader) logf(format string, args ...any) {
	if l.logger != nil {
		l.logger.Printf(format, args...)
	}
}

// requiredCapabilities extracts the optional Requires declaration a module
// may expose.
func requiredCapabilities(m module.Module) []string {
	type requirer interface {
		Requires() []string
	}
	if r, ok := m.(requirer); ok {
		return r.Requires()
	}
	return nil
}
