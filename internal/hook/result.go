package hook

import "strings"

// Kind discriminates the outcome of a handler invocation.
type Kind string

const (
	// KindContinue lets dispatch proceed to the next handler unchanged.
	KindContinue Kind = "continue"
	// KindDeny stops dispatch immediately and returns the denial to the emitter.
	KindDeny Kind = "deny"
	// KindModify replaces the in-flight event data before the next handler runs.
	KindModify Kind = "modify"
)

// Result is the tagged outcome of a handler. The zero value is deliberately
// invalid so a handler that forgets to return one is treated as faulty.
type Result struct {
	kind   Kind
	reason string
	data   map[string]any
}

// Continue reports that the handler has no objection and no changes.
func Continue() Result {
	return Result{kind: KindContinue}
}

// ContinueWith is Continue carrying the final event data. Emit uses it for the
// terminal result so callers can observe modifications applied along the chain.
func ContinueWith(data map[string]any) Result {
	return Result{kind: KindContinue, data: data}
}

// Deny stops the dispatch chain with a human-readable reason.
func Deny(reason string) Result {
	return Result{kind: KindDeny, reason: strings.TrimSpace(reason)}
}

// Modify replaces the event data seen by subsequent handlers.
func Modify(data map[string]any) Result {
	return Result{kind: KindModify, data: data}
}

// Kind returns the result discriminant.
func (r Result) Kind() Kind {
	return r.kind
}

// Denied reports whether the result is a denial.
func (r Result) Denied() bool {
	return r.kind == KindDeny
}

// Reason returns the denial reason, empty for other kinds.
func (r Result) Reason() string {
	return r.reason
}

// Data returns the event data carried by the result, if any.
func (r Result) Data() map[string]any {
	return r.data
}

// Valid reports whether the result carries a known discriminant.
func (r Result) Valid() bool {
	switch r.kind {
	case KindContinue, KindDeny, KindModify:
		return true
	}
	return false
}
