// Package module defines the contracts every runtime unit implements: the
// descriptor it is declared by, the static type-to-mount-point table, and the
// host facade it coordinates through once mounted.
package module

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/loom/internal/capability"
	"github.com/kingrea/loom/internal/hook"
)

// Info describes a module's identity and declared type.
type Info struct {
	ID          string
	Name        string
	Type        Type
	Version     string
	Description string
}

// Validate ensures the info block is well-formed.
func (i Info) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("module: id is required")
	}
	if i.Type == "" {
		return fmt.Errorf("module: type is required for %s", i.ID)
	}
	if _, err := MountPointFor(i.Type); err != nil {
		return err
	}
	if i.Version == "" {
		return fmt.Errorf("module: version is required for %s", i.ID)
	}
	return nil
}

// Host is the coordination facade handed to a module at mount time. It is the
// only path to shared state: modules never hold references to internal maps,
// only to capability implementations they were handed.
type Host interface {
	// SessionID identifies the owning session.
	SessionID() string
	// Emit dispatches an event through the hook chain. Attribution fields
	// are injected by the coordinator and cannot be spoofed.
	Emit(eventType string, data map[string]any) hook.Result
	// EmitAndCollect gathers per-handler responses, each invocation bounded
	// by timeout.
	EmitAndCollect(ctx context.Context, eventType string, data map[string]any, timeout time.Duration) []hook.Response
	// RegisterHook installs an event handler.
	RegisterHook(reg hook.Registration) error
	// UnregisterHook removes every registration made under a handler name.
	UnregisterHook(name string)
	// RegisterCapability publishes a named capability (overwrite semantics).
	RegisterCapability(name string, impl capability.Impl)
	// UnregisterCapability removes a published capability, restoring absence.
	UnregisterCapability(name string)
	// Capability looks up a capability for this module. Absence is a normal
	// state, reported by the second return, never an error.
	Capability(name string) (capability.Impl, bool)
	// Mounted lists the module names attached to a mount point.
	Mounted(mp MountPoint) []string
	// InjectContent records turn-scoped injected content against the
	// session's budgets. A hard size-limit violation is returned as an error.
	InjectContent(source string, size int) error
}

// Module is implemented by every mountable unit. Mount is called after
// validation succeeds; Unmount is called during teardown in reverse mount
// order. Both receive the host facade and must confine side effects to it.
type Module interface {
	Info() Info
	Mount(host Host) error
	Unmount(host Host) error
}

// SourceResolver turns a descriptor's opaque source locator into a module
// instance. The resolver mounted at module-source-resolver implements this.
type SourceResolver interface {
	Resolve(desc Descriptor) (Module, error)
}

// ValidationError reports why a module failed structural validation. It
// carries the module id and every individual check failure so the whole
// problem is visible in one diagnostic.
type ValidationError struct {
	ModuleID string
	Failures []string
}

// Error joins the individual failures into one message.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("module %s failed validation: %s", e.ModuleID, strings.Join(e.Failures, "; "))
}
