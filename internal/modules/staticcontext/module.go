package staticcontext

import (
	"context"
	"fmt"
	"strings"

	"github.com/kingrea/loom/internal/hook"
	"github.com/kingrea/loom/internal/module"
)

const (
	moduleID      = "static-context"
	moduleVersion = "1.0.0"
)

// ContentCapability exposes the configured content to other modules.
const ContentCapability = "context.static"

// Module injects a fixed block of content at the start of every turn,
// counting it against the session's injection budgets.
type Module struct {
	*module.Base
	content string
	label   string
}

// Register installs the module factory into the provided registry.
func Register(reg *module.Registry) {
	if reg == nil {
		return
	}
	reg.MustRegister(moduleID, func(cfg module.Config) (module.Module, error) {
		return New(cfg)
	})
}

// New constructs the module. Config keys: "content" (string, required) and
// "label" (string, defaults to the module id).
func New(cfg module.Config) (*Module, error) {
	content, _ := cfg["content"].(string)
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("static-context: config key content is required")
	}
	label, _ := cfg["label"].(string)
	if label == "" {
		label = moduleID
	}
	base := module.NewBase(module.Info{
		ID:          moduleID,
		Name:        "Static Context",
		Type:        module.TypeContext,
		Version:     moduleVersion,
		Description: "Injects a fixed content block each turn.",
	})
	return &Module{Base: &base, content: content, label: label}, nil
}

// Mount registers the per-turn injection hook and the content capability.
func (m *Module) Mount(host module.Host) error {
	if err := host.RegisterHook(hook.Registration{
		Pattern:  "turn:start",
		Name:     moduleID,
		Priority: 10,
		Handler: func(string, map[string]any) (hook.Result, error) {
			if err := host.InjectContent(m.label, len(m.content)); err != nil {
				return hook.Result{}, err
			}
			return hook.Continue(), nil
		},
	}); err != nil {
		return err
	}
	host.RegisterCapability(ContentCapability, func(context.Context, map[string]any) (any, error) {
		return m.content, nil
	})
	return nil
}

// Unmount withdraws the hook and capability.
func (m *Module) Unmount(host module.Host) error {
	host.UnregisterHook(moduleID)
	host.UnregisterCapability(ContentCapability)
	return nil
}
