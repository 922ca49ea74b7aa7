package approver

import (
	"context"

	"github.com/kingrea/loom/internal/coordinator"
	"github.com/kingrea/loom/internal/module"
)

const (
	moduleID      = "auto-approver"
	moduleVersion = "1.0.0"
)

// Module publishes the approval.request capability with a fixed verdict.
// Without a module like this mounted, every approval request fails closed.
type Module struct {
	*module.Base
	approve bool
	reason  string
}

// Register installs the module factory into the provided registry.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg), nil
	})
}

// New constructs the module. Config keys: "approve" (bool, default true) and
// "reason" (string, attached to denials).
func New(cfg module.Config) *Module {
	approve := true
	if raw, ok := cfg["approve"].(bool); ok {
		approve = raw
	}
	reason, _ := cfg["reason"].(string)
	base := module.NewBase(module.Info{
		ID:          moduleID,
		Name:        "Auto Approver",
		Type:        module.TypeProvider,
		Version:     moduleVersion,
		Description: "Answers approval requests with a configured verdict.",
	})
	return &Module{Base: &base, approve: approve, reason: reason}
}

// Mount publishes the approval capability.
func (m *Module) Mount(host module.Host) error {
	host.RegisterCapability(coordinator.ApprovalCapability, func(context.Context, map[string]any) (any, error) {
		return map[string]any{"approved": m.approve, "reason": m.reason}, nil
	})
	return nil
}

// Unmount withdraws the approval capability, restoring the fail-closed
// default.
func (m *Module) Unmount(host module.Host) error {
	host.UnregisterCapability(coordinator.ApprovalCapability)
	return nil
}
