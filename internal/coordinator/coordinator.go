// Package coordinator composes the loader, hook dispatcher, and capability
// registry behind one per-session facade. Every emitted event is stamped with
// attribution fields that modules cannot spoof, and every facade operation is
// purely coordinating: no filesystem or network side effects.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kingrea/loom/internal/capability"
	"github.com/kingrea/loom/internal/hook"
	"github.com/kingrea/loom/internal/loader"
	"github.com/kingrea/loom/internal/module"
)

// DefaultSchemaVersion is stamped onto event payloads that do not declare one.
const DefaultSchemaVersion = "1"

// Attribution field names injected into every emitted event. Caller-supplied
// values under these keys are overwritten.
const (
	FieldSessionID     = "sessionId"
	FieldParentID      = "parentId"
	FieldTimestamp     = "timestamp"
	FieldCoordinatorID = "coordinatorInstanceId"
	FieldSchemaVersion = "schemaVersion"
)

// Logger records coordinator diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// BudgetRecorder counts injected content against turn-scoped budgets. The
// session supplies the implementation; the coordinator only forwards.
type BudgetRecorder interface {
	RecordInjection(source string, size int) error
}

// Option customizes coordinator construction.
type Option func(*Coordinator)

// WithLogger injects the audit/diagnostic logger.
func WithLogger(logger Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithBudget wires the session's injection budget recorder.
func WithBudget(budget BudgetRecorder) Option {
	return func(c *Coordinator) {
		c.budget = budget
	}
}

// WithApprovalTimeout bounds approval capability invocations.
func WithApprovalTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.approvalTimeout = d
		}
	}
}

// WithApprovalTimeoutAction selects what a timed-out approval resolves to.
// Only KindContinue changes behavior; anything else keeps the deny default.
func WithApprovalTimeoutAction(kind hook.Kind) Option {
	return func(c *Coordinator) {
		c.approvalTimeoutAction = kind
	}
}

// Coordinator is the per-session mount/unmount/emit/capability facade. One
// coordinator serves exactly one session and shares nothing across sessions.
type Coordinator struct {
	sessionID  string
	parentID   string
	instanceID string

	hooks  *hook.Dispatcher
	caps   *capability.Registry
	loader *loader.Loader
	budget BudgetRecorder
	logger Logger

	approvalTimeout       time.Duration
	approvalTimeoutAction hook.Kind
}

// New constructs a coordinator for one session. parentID may be empty for
// top-level sessions.
func New(sessionID, parentID string, opts ...Option) *Coordinator {
	c := &Coordinator{
		sessionID:             sessionID,
		parentID:              parentID,
		instanceID:            uuid.NewString(),
		approvalTimeout:       30 * time.Second,
		approvalTimeoutAction: hook.KindDeny,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.hooks = hook.NewDispatcher(c.logger)
	c.caps = capability.NewRegistry(sessionID, c.logger)
	c.loader = loader.New(c.caps, c.logger)
	return c
}

// SessionID returns the owning session's identifier.
func (c *Coordinator) SessionID() string {
	return c.sessionID
}

// InstanceID returns this coordinator's unique instance identifier.
func (c *Coordinator) InstanceID() string {
	return c.instanceID
}

// Mount validates the module, attaches it at the mount point derived from its
// declared type, and runs its Mount lifecycle with a host bound to its id.
// A lifecycle failure rolls the table entry back so no half-mounted module
// remains.
func (c *Coordinator) Mount(m module.Module, name string) error {
	mp, mounted, err := c.loader.Mount(m, name)
	if err != nil {
		return err
	}
	info := m.Info()
	if err := m.Mount(c.hostFor(info.ID)); err != nil {
		c.loader.Unmount(mp, mounted)
		return fmt.Errorf("coordinator: mount %s at %s: %w", info.ID, mp, err)
	}
	c.Emit("module:mounted", map[string]any{
		"moduleId":   info.ID,
		"mountPoint": string(mp),
		"name":       mounted,
	})
	return nil
}

// MountBatch mounts every module, continuing past individual failures and
// reporting them together at the end.
func (c *Coordinator) MountBatch(mods []module.Module) error {
	var errs []error
	for _, m := range mods {
		if err := c.Mount(m, ""); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Unmount detaches the named module and runs its Unmount lifecycle. Already
// unmounted names are a no-op. Lifecycle failures during unmount are logged,
// not returned: teardown must always make progress.
func (c *Coordinator) Unmount(mp module.MountPoint, name string) bool {
	m, ok := c.loader.Unmount(mp, name)
	if !ok {
		return false
	}
	info := m.Info()
	if err := m.Unmount(c.hostFor(info.ID)); err != nil {
		c.logf("coordinator: unmount %s from %s: %v", name, mp, err)
	}
	c.Emit("module:unmounted", map[string]any{
		"moduleId":   info.ID,
		"mountPoint": string(mp),
		"name":       name,
	})
	return true
}

// UnmountAll tears every module down in reverse mount order.
func (c *Coordinator) UnmountAll() {
	for _, ref := range c.loader.DrainReverse() {
		info := ref.Module.Info()
		if err := ref.Module.Unmount(c.hostFor(info.ID)); err != nil {
			c.logf("coordinator: unmount %s from %s: %v", ref.Name, ref.Point, err)
		}
		c.Emit("module:unmounted", map[string]any{
			"moduleId":   info.ID,
			"mountPoint": string(ref.Point),
			"name":       ref.Name,
		})
	}
}

// Mounted lists the module names attached to a mount point, in mount order.
func (c *Coordinator) Mounted(mp module.MountPoint) []string {
	return c.loader.Mounted(mp)
}

// Get returns the module mounted under name at a mount point.
func (c *Coordinator) Get(mp module.MountPoint, name string) (module.Module, bool) {
	return c.loader.Get(mp, name)
}

// Emit dispatches an event through the hook chain after stamping attribution.
func (c *Coordinator) Emit(eventType string, data map[string]any) hook.Result {
	return c.hooks.Emit(eventType, c.attribute(data))
}

// EmitAndCollect dispatches with per-handler timeout and returns whichever
// handler responses completed successfully.
func (c *Coordinator) EmitAndCollect(ctx context.Context, eventType string, data map[string]any, timeout time.Duration) []hook.Response {
	return c.hooks.EmitAndCollect(ctx, eventType, c.attribute(data), timeout)
}

// RegisterHook installs an event handler registration.
func (c *Coordinator) RegisterHook(reg hook.Registration) error {
	return c.hooks.Register(reg)
}

// UnregisterHook removes every registration under a handler name.
func (c *Coordinator) UnregisterHook(name string) {
	c.hooks.Unregister(name)
}

// RegisterCapability publishes a capability (overwrite semantics, logged).
func (c *Coordinator) RegisterCapability(name string, impl capability.Impl) {
	c.caps.Register(name, impl)
}

// UnregisterCapability removes a capability, restoring absence.
func (c *Coordinator) UnregisterCapability(name string) {
	c.caps.Unregister(name)
}

// GetCapability looks a capability up on behalf of caller. Absence is
// reported by the second return, never raised.
func (c *Coordinator) GetCapability(name, caller string) (capability.Impl, bool) {
	return c.caps.Get(name, caller)
}

// Capabilities returns the registered capability names, sorted.
func (c *Coordinator) Capabilities() []string {
	return c.caps.Names()
}

// attribute copies the payload and stamps the canonical attribution fields,
// overwriting any caller-supplied values of the same keys. schemaVersion is
// defaulted but never overwritten.
func (c *Coordinator) attribute(data map[string]any) map[string]any {
	stamped := make(map[string]any, len(data)+5)
	for key, value := range data {
		stamped[key] = value
	}
	stamped[FieldSessionID] = c.sessionID
	stamped[FieldParentID] = c.parentID
	stamped[FieldTimestamp] = time.Now().UTC().Format(time.RFC3339Nano)
	stamped[FieldCoordinatorID] = c.instanceID
	if _, ok := stamped[FieldSchemaVersion]; !ok {
		stamped[FieldSchemaVersion] = DefaultSchemaVersion
	}
	return stamped
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}
