// Package hook delivers named events to registered handlers in priority order
// with per-handler fault isolation: a misbehaving handler is logged and
// skipped, never allowed to abort dispatch or crash the emitter.
package hook

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Handler observes one event. Returning an error (or an invalid Result) is
// logged and treated as Continue.
type Handler func(eventType string, data map[string]any) (Result, error)

// Registration binds a handler to an event pattern. Patterns are either an
// exact event type ("tool:pre"), a prefix wildcard ("tool:*"), or the bare
// match-all "*".
type Registration struct {
	Pattern  string
	Name     string
	Priority int
	Handler  Handler
}

// Validate ensures the registration can be dispatched to.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.Pattern) == "" {
		return fmt.Errorf("hook: pattern is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("hook: name is required for pattern %s", r.Pattern)
	}
	if r.Handler == nil {
		return fmt.Errorf("hook: handler is required for %s", r.Name)
	}
	return nil
}

// Response pairs a handler name with the result it produced during a
// collecting dispatch.
type Response struct {
	Handler string
	Result  Result
}

// Logger records dispatch diagnostics. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

type entry struct {
	Registration
	seq int
}

// Dispatcher holds hook registrations and runs the emit state machine.
// Registration mutations are serialized; each emit takes a point-in-time
// snapshot of the matching handlers, so handlers added or removed while a
// dispatch is in flight do not affect that dispatch.
type Dispatcher struct {
	mu      sync.RWMutex
	entries []entry
	nextSeq int
	logger  Logger
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher(logger Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Register installs a handler registration.
func (d *Dispatcher) Register(reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	reg.Pattern = strings.TrimSpace(reg.Pattern)
	reg.Name = strings.TrimSpace(reg.Name)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries = append(d.entries, entry{Registration: reg, seq: d.nextSeq})
	d.nextSeq++
	return nil
}

// Unregister removes every registration with the given handler name. Removing
// an unknown name is a no-op.
func (d *Dispatcher) Unregister(name string) {
	name = strings.TrimSpace(name)
	d.mu.Lock()
	defer d.mu.Unlock()
	kept := d.entries[:0]
	for _, e := range d.entries {
		if e.Name != name {
			kept = append(kept, e)
		}
	}
	d.entries = kept
}

// Handlers returns the names of handlers matching eventType, in dispatch order.
func (d *Dispatcher) Handlers(eventType string) []string {
	snapshot := d.snapshot(eventType)
	names := make([]string, len(snapshot))
	for i, e := range snapshot {
		names[i] = e.Name
	}
	return names
}

// Emit runs the handler chain for eventType sequentially in ascending
// priority order (ties broken by registration order). A handler fault is
// logged and treated as Continue. Deny short-circuits; Modify replaces the
// data seen by later handlers. The returned result is either the first Deny
// or Continue carrying the final data.
func (d *Dispatcher) Emit(eventType string, data map[string]any) Result {
	current := data
	for _, e := range d.snapshot(eventType) {
		result, ok := d.invoke(e, eventType, current)
		if !ok {
			continue
		}
		switch result.Kind() {
		case KindDeny:
			return result
		case KindModify:
			if result.Data() != nil {
				current = result.Data()
			}
		}
	}
	return ContinueWith(current)
}

// EmitAndCollect runs the same chain but gathers every successful handler
// result. Each invocation is bounded by timeout (if positive); a handler that
// times out or faults is logged and excluded, never retried. The returned
// slice holds whatever subset completed, possibly empty. Deny and Modify
// short-circuit and thread data exactly as in Emit.
func (d *Dispatcher) EmitAndCollect(ctx context.Context, eventType string, data map[string]any, timeout time.Duration) []Response {
	responses := []Response{}
	current := data
	for _, e := range d.snapshot(eventType) {
		result, ok := d.invokeBounded(ctx, e, eventType, current, timeout)
		if !ok {
			continue
		}
		responses = append(responses, Response{Handler: e.Name, Result: result})
		switch result.Kind() {
		case KindDeny:
			return responses
		case KindModify:
			if result.Data() != nil {
				current = result.Data()
			}
		}
	}
	return responses
}

// invoke calls a single handler with panic recovery. The second return is
// false when the outcome must be skipped (fault or invalid result).
func (d *Dispatcher) invoke(e entry, eventType string, data map[string]any) (result Result, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logf("hook: handler %s panicked on %s: %v", e.Name, eventType, r)
			result, ok = Result{}, false
		}
	}()
	res, err := e.Handler(eventType, data)
	if err != nil {
		d.logf("hook: handler %s failed on %s: %v", e.Name, eventType, err)
		return Result{}, false
	}
	if !res.Valid() {
		d.logf("hook: handler %s returned invalid result on %s", e.Name, eventType)
		return Result{}, false
	}
	return res, true
}

// invokeBounded runs the handler in its own goroutine so a deadline can
// abandon it. An abandoned handler's goroutine may finish later; its result
// is discarded and nothing is cancelled for sibling handlers or the caller.
func (d *Dispatcher) invokeBounded(ctx context.Context, e entry, eventType string, data map[string]any, timeout time.Duration) (Result, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	type outcome struct {
		result Result
		ok     bool
	}
	done := make(chan outcome, 1)
	go func() {
		result, ok := d.invoke(e, eventType, data)
		done <- outcome{result: result, ok: ok}
	}()
	select {
	case out := <-done:
		return out.result, out.ok
	case <-ctx.Done():
		d.logf("hook: handler %s timed out on %s after %s", e.Name, eventType, timeout)
		return Result{}, false
	}
}

// snapshot returns the matching registrations sorted by priority then
// registration order, copied under the read lock.
func (d *Dispatcher) snapshot(eventType string) []entry {
	d.mu.RLock()
	matched := make([]entry, 0, len(d.entries))
	for _, e := range d.entries {
		if Matches(e.Pattern, eventType) {
			matched = append(matched, e)
		}
	}
	d.mu.RUnlock()
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Priority != matched[j].Priority {
			return matched[i].Priority < matched[j].Priority
		}
		return matched[i].seq < matched[j].seq
	})
	return matched
}

func (d *Dispatcher) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}

// Matches reports whether an event type falls under a registration pattern.
func Matches(pattern, eventType string) bool {
	pattern = strings.TrimSpace(pattern)
	eventType = strings.TrimSpace(eventType)
	if pattern == "" || eventType == "" {
		return false
	}
	if pattern == "*" {
		return true
	}
	if prefix, found := strings.CutSuffix(pattern, "*"); found {
		return strings.HasPrefix(eventType, prefix)
	}
	return pattern == eventType
}
