package recorder

import (
	"context"
	"sync"

	"github.com/kingrea/loom/internal/hook"
	"github.com/kingrea/loom/internal/module"
)

const (
	moduleID      = "event-recorder"
	moduleVersion = "1.0.0"

	// observerPriority runs after policy hooks so the recorder sees the final
	// event data.
	observerPriority = 1000

	defaultCapacity = 100
)

// TailCapability is the name the recorder publishes its event feed under.
const TailCapability = "events.tail"

// Recorded is one observed event.
type Recorded struct {
	Type string
	Data map[string]any
}

// Module keeps a bounded ring of recently emitted events and publishes it as
// the events.tail capability. It is a pure observer: every event continues
// unchanged.
type Module struct {
	*module.Base
	mu       sync.Mutex
	events   []Recorded
	capacity int
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

// New constructs the recorder. Config key "capacity" (int) bounds the ring.
func New(cfg module.Config) *Module {
	capacity := defaultCapacity
	if raw, ok := cfg["capacity"]; ok {
		if n, ok := raw.(int); ok && n > 0 {
			capacity = n
		}
	}
	base := module.NewBase(module.Info{
		ID:          moduleID,
		Name:        "Event Recorder",
		Type:        module.TypeHook,
		Version:     moduleVersion,
		Description: "Keeps a bounded tail of emitted events for inspection.",
	})
	return &Module{Base: &base, capacity: capacity}
}

// Mount registers the observing hook and the events.tail capability.
func (m *Module) Mount(host module.Host) error {
	if err := host.RegisterHook(hook.Registration{
		Pattern:  "*",
		Name:     moduleID,
		Priority: observerPriority,
		Handler:  m.record,
	}); err != nil {
		return err
	}
	host.RegisterCapability(TailCapability, m.tail)
	return nil
}

// Unmount withdraws the hook and capability.
func (m *Module) Unmount(host module.Host) error {
	host.UnregisterHook(moduleID)
	host.UnregisterCapability(TailCapability)
	return nil
}

func (m *Module) record(eventType string, data map[string]any) (hook.Result, error) {
	copied := make(map[string]any, len(data))
	for key, value := range data {
		copied[key] = value
	}
	m.mu.Lock()
	m.events = append(m.events, Recorded{Type: eventType, Data: copied})
	if len(m.events) > m.capacity {
		m.events = m.events[len(m.events)-m.capacity:]
	}
	m.mu.Unlock()
	return hook.Continue(), nil
}

// tail returns the most recent events, newest last. args["limit"] (int)
// trims the result.
func (m *Module) tail(_ context.Context, args map[string]any) (any, error) {
	limit := 0
	if raw, ok := args["limit"]; ok {
		if n, ok := raw.(int); ok && n > 0 {
			limit = n
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	events := m.events
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	out := make([]Recorded, len(events))
	copy(out, events)
	return out, nil
}
