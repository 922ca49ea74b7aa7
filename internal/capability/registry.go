// Package capability implements the per-session capability registry. Modules
// hold zero capabilities until they look one up by name; absence is a normal,
// non-error state so callers can degrade gracefully or fail on their own
// terms.
package capability

import (
	"context"
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"
)

// Impl is an invocable capability implementation published by one module for
// consumption by others.
type Impl func(ctx context.Context, args map[string]any) (any, error)

// Logger records audit lines. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Registry maps capability names to implementations for a single session.
// Last registration for a name wins.
type Registry struct {
	mu        sync.RWMutex
	caps      map[string]Impl
	sessionID string
	logger    Logger
}

// NewRegistry returns an empty registry scoped to one session.
func NewRegistry(sessionID string, logger Logger) *Registry {
	return &Registry{caps: map[string]Impl{}, sessionID: sessionID, logger: logger}
}

// Register installs an implementation under name, overwriting any previous
// registration. A nil impl is ignored.
func (r *Registry) Register(name string, impl Impl) {
	if name == "" || impl == nil {
		return
	}
	r.mu.Lock()
	_, replaced := r.caps[name]
	r.caps[name] = impl
	r.mu.Unlock()
	if replaced {
		r.logf("capability: %s re-registered (session %s)", name, r.sessionID)
		return
	}
	r.logf("capability: %s registered (session %s)", name, r.sessionID)
}

// Unregister removes a capability, restoring absence. Unknown names are a
// no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	_, existed := r.caps[name]
	delete(r.caps, name)
	r.mu.Unlock()
	if existed {
		r.logf("capability: %s unregistered (session %s)", name, r.sessionID)
	}
}

// Get looks up a capability for the named caller. The second return reports
// presence; absence is not an error. Every lookup is audited with the
// capability name, session, caller, and grant outcome.
func (r *Registry) Get(name, caller string) (Impl, bool) {
	r.mu.RLock()
	impl, ok := r.caps[name]
	r.mu.RUnlock()
	if caller == "" {
		caller = "unknown"
	}
	if ok {
		r.logf("capability: lookup %s by %s (session %s) granted=true", name, caller, r.sessionID)
		return impl, true
	}
	if hint := r.nearestName(name); hint != "" {
		r.logf("capability: lookup %s by %s (session %s) granted=false (did you mean %q?)", name, caller, r.sessionID, hint)
		return nil, false
	}
	r.logf("capability: lookup %s by %s (session %s) granted=false", name, caller, r.sessionID)
	return nil, false
}

// nearestName suggests the closest registered name for a failed lookup.
func (r *Registry) nearestName(name string) string {
	if name == "" {
		return ""
	}
	best := ""
	bestDist := 4 // beyond three edits a suggestion is noise
	for _, candidate := range r.Names() {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

// Has reports presence without auditing. Used by loader validation, where a
// missing capability is a check failure rather than a module's own lookup.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.caps[name]
	return ok
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.caps))
	for name := range r.caps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
