package module

import (
	"errors"
	"fmt"

	"github.com/agnivade/levenshtein"
)

// Type is the closed set of declared module types. New types require an
// additive entry in mountPoints, never runtime type inspection.
type Type string

const (
	TypeOrchestrator Type = "orchestrator"
	TypeProvider     Type = "provider"
	TypeTool         Type = "tool"
	TypeHook         Type = "hook"
	TypeContext      Type = "context"
	TypeResolver     Type = "resolver"
)

// MountPoint names an extension slot modules attach to.
type MountPoint string

const (
	MountOrchestrator MountPoint = "orchestrator"
	MountProviders    MountPoint = "providers"
	MountTools        MountPoint = "tools"
	MountHooks        MountPoint = "hooks"
	MountContext      MountPoint = "context"
	MountResolver     MountPoint = "module-source-resolver"
)

// mountPoints is the static type table. The mount point for a declared type
// is always derived from here, never from runtime state.
var mountPoints = map[Type]MountPoint{
	TypeOrchestrator: MountOrchestrator,
	TypeProvider:     MountProviders,
	TypeTool:         MountTools,
	TypeHook:         MountHooks,
	TypeContext:      MountContext,
	TypeResolver:     MountResolver,
}

// singletonMounts lists the slots that hold exactly one module.
var singletonMounts = map[MountPoint]bool{
	MountOrchestrator: true,
	MountContext:      true,
	MountResolver:     true,
}

// ErrUnknownType is wrapped by MountPointFor when a declared type has no
// table entry.
var ErrUnknownType = errors.New("unknown module type")

// MountPointFor derives the mount point for a declared type. Unknown types
// fail before any mutation; the error suggests the nearest known type so the
// declaration can be corrected.
func MountPointFor(t Type) (MountPoint, error) {
	if mp, ok := mountPoints[t]; ok {
		return mp, nil
	}
	if hint := nearestType(string(t)); hint != "" {
		return "", fmt.Errorf("module: %w %q (did you mean %q?)", ErrUnknownType, t, hint)
	}
	return "", fmt.Errorf("module: %w %q (known types: %s)", ErrUnknownType, t, knownTypes())
}

// Singleton reports whether the mount point holds exactly one module.
func (mp MountPoint) Singleton() bool {
	return singletonMounts[mp]
}

// Types returns every declared type with a table entry, in a fixed order.
func Types() []Type {
	return []Type{TypeOrchestrator, TypeProvider, TypeTool, TypeHook, TypeContext, TypeResolver}
}

// MountPoints returns every mount point, in a fixed order.
func MountPoints() []MountPoint {
	return []MountPoint{MountOrchestrator, MountProviders, MountTools, MountHooks, MountContext, MountResolver}
}

func nearestType(got string) string {
	if got == "" {
		return ""
	}
	best := ""
	bestDist := 4 // beyond three edits a suggestion is noise
	for _, t := range Types() {
		if d := levenshtein.ComputeDistance(got, string(t)); d < bestDist {
			best, bestDist = string(t), d
		}
	}
	return best
}

func knownTypes() string {
	out := ""
	for i, t := range Types() {
		if i > 0 {
			out += ", "
		}
		out += string(t)
	}
	return out
}
