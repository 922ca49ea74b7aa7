package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/kingrea/loom/internal/capability"
	"github.com/kingrea/loom/internal/hook"
	"github.com/kingrea/loom/internal/module"
)

// moduleHost binds the coordinator facade to one module's identity so
// capability lookups and content injections carry caller attribution.
type moduleHost struct {
	c        *Coordinator
	moduleID string
}

// hostFor returns the facade handed to a module at mount time.
func (c *Coordinator) hostFor(moduleID string) module.Host {
	return &moduleHost{c: c, moduleID: moduleID}
}

func (h *moduleHost) SessionID() string {
	return h.c.sessionID
}

func (h *moduleHost) Emit(eventType string, data map[string]any) hook.Result {
	return h.c.Emit(eventType, data)
}

func (h *moduleHost) EmitAndCollect(ctx context.Context, eventType string, data map[string]any, timeout time.Duration) []hook.Response {
	return h.c.EmitAndCollect(ctx, eventType, data, timeout)
}

func (h *moduleHost) RegisterHook(reg hook.Registration) error {
	if reg.Name == "" {
		reg.Name = h.moduleID
	}
	return h.c.RegisterHook(reg)
}

func (h *moduleHost) UnregisterHook(name string) {
	h.c.UnregisterHook(name)
}

func (h *moduleHost) RegisterCapability(name string, impl capability.Impl) {
	h.c.RegisterCapability(name, impl)
}

func (h *moduleHost) UnregisterCapability(name string) {
	h.c.UnregisterCapability(name)
}

func (h *moduleHost) Capability(name string) (capability.Impl, bool) {
	return h.c.GetCapability(name, h.moduleID)
}

func (h *moduleHost) Mounted(mp module.MountPoint) []string {
	return h.c.Mounted(mp)
}

func (h *moduleHost) InjectContent(source string, size int) error {
	if h.c.budget == nil {
		return nil
	}
	if source == "" {
		source = h.moduleID
	}
	if err := h.c.budget.RecordInjection(source, size); err != nil {
		return fmt.Errorf("coordinator: inject from %s: %w", source, err)
	}
	return nil
}
