package hook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func (l *captureLogger) contains(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func continueHandler(record *[]string, name string) Handler {
	return func(string, map[string]any) (Result, error) {
		*record = append(*record, name)
		return Continue(), nil
	}
}

func TestEmitRunsHandlersInPriorityOrder(t *testing.T) {
	d := NewDispatcher(nil)
	var order []string
	regs := []Registration{
		{Pattern: "x", Name: "third", Priority: 30, Handler: continueHandler(&order, "third")},
		{Pattern: "x", Name: "first", Priority: 1, Handler: continueHandler(&order, "first")},
		{Pattern: "x", Name: "second", Priority: 15, Handler: continueHandler(&order, "second")},
	}
	for _, reg := range regs {
		if err := d.Register(reg); err != nil {
			t.Fatalf("register %s: %v", reg.Name, err)
		}
	}
	result := d.Emit("x", nil)
	if result.Kind() != KindContinue {
		t.Fatalf("expected continue, got %s", result.Kind())
	}
	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("expected %d invocations, got %v", len(want), order)
	}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, order[i])
		}
	}
}

func TestEmitBreaksPriorityTiesByRegistrationOrder(t *testing.T) {
	d := NewDispatcher(nil)
	var order []string
	for _, name := range []string{"a", "b", "c"} {
		if err := d.Register(Registration{Pattern: "x", Name: name, Priority: 5, Handler: continueHandler(&order, name)}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	d.Emit("x", nil)
	if len(order) != 3 || order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Fatalf("expected stable order a,b,c got %v", order)
	}
}

func TestEmitDenyShortCircuits(t *testing.T) {
	// H1 continues, H2 denies, H3 must never run.
	d := NewDispatcher(nil)
	var order []string
	if err := d.Register(Registration{Pattern: "tool:pre", Name: "H1", Priority: 1, Handler: continueHandler(&order, "H1")}); err != nil {
		t.Fatalf("register H1: %v", err)
	}
	if err := d.Register(Registration{Pattern: "tool:pre", Name: "H2", Priority: 5, Handler: func(string, map[string]any) (Result, error) {
		order = append(order, "H2")
		return Deny("blocked"), nil
	}}); err != nil {
		t.Fatalf("register H2: %v", err)
	}
	if err := d.Register(Registration{Pattern: "tool:pre", Name: "H3", Priority: 10, Handler: continueHandler(&order, "H3")}); err != nil {
		t.Fatalf("register H3: %v", err)
	}
	result := d.Emit("tool:pre", map[string]any{"tool": "write"})
	if !result.Denied() {
		t.Fatalf("expected deny, got %s", result.Kind())
	}
	if result.Reason() != "blocked" {
		t.Fatalf("expected reason blocked, got %q", result.Reason())
	}
	for _, name := range order {
		if name == "H3" {
			t.Fatalf("H3 ran after deny: %v", order)
		}
	}
}

func TestEmitModifyThreadsDataToNextHandler(t *testing.T) {
	d := NewDispatcher(nil)
	if err := d.Register(Registration{Pattern: "x", Name: "modifier", Priority: 1, Handler: func(_ string, data map[string]any) (Result, error) {
		next := map[string]any{"touched": true}
		for key, value := range data {
			next[key] = value
		}
		return Modify(next), nil
	}}); err != nil {
		t.Fatalf("register modifier: %v", err)
	}
	var seen map[string]any
	if err := d.Register(Registration{Pattern: "x", Name: "witness", Priority: 2, Handler: func(_ string, data map[string]any) (Result, error) {
		seen = data
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register witness: %v", err)
	}
	result := d.Emit("x", map[string]any{"orig": 1})
	if seen == nil || seen["touched"] != true || seen["orig"] != 1 {
		t.Fatalf("witness did not see modified data: %v", seen)
	}
	if result.Data()["touched"] != true {
		t.Fatalf("final result does not carry modified data: %v", result.Data())
	}
}

func TestEmitHandlerErrorIsIsolated(t *testing.T) {
	// H1 faults, H2 continues; emit returns continue and logs H1.
	logger := &captureLogger{}
	d := NewDispatcher(logger)
	if err := d.Register(Registration{Pattern: "x", Name: "H1", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		return Result{}, errors.New("boom")
	}}); err != nil {
		t.Fatalf("register H1: %v", err)
	}
	ran := false
	if err := d.Register(Registration{Pattern: "x", Name: "H2", Priority: 2, Handler: func(string, map[string]any) (Result, error) {
		ran = true
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register H2: %v", err)
	}
	result := d.Emit("x", nil)
	if result.Kind() != KindContinue {
		t.Fatalf("expected continue, got %s", result.Kind())
	}
	if !ran {
		t.Fatalf("H2 did not run after H1 fault")
	}
	if !logger.contains("H1") {
		t.Fatalf("fault log does not reference H1: %v", logger.lines)
	}
}

func TestEmitHandlerPanicIsRecovered(t *testing.T) {
	logger := &captureLogger{}
	d := NewDispatcher(logger)
	if err := d.Register(Registration{Pattern: "x", Name: "panicky", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		panic("unexpected")
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	ran := false
	if err := d.Register(Registration{Pattern: "x", Name: "witness", Priority: 2, Handler: func(string, map[string]any) (Result, error) {
		ran = true
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	result := d.Emit("x", nil)
	if result.Kind() != KindContinue {
		t.Fatalf("expected continue after panic, got %s", result.Kind())
	}
	if !ran {
		t.Fatalf("witness did not run after panic")
	}
	if !logger.contains("panicked") {
		t.Fatalf("panic was not logged: %v", logger.lines)
	}
}

func TestEmitInvalidResultTreatedAsContinue(t *testing.T) {
	logger := &captureLogger{}
	d := NewDispatcher(logger)
	if err := d.Register(Registration{Pattern: "x", Name: "zero", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		return Result{}, nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	result := d.Emit("x", nil)
	if result.Kind() != KindContinue {
		t.Fatalf("expected continue, got %s", result.Kind())
	}
	if !logger.contains("invalid result") {
		t.Fatalf("invalid result was not logged: %v", logger.lines)
	}
}

func TestEmitWithNoHandlersReturnsContinue(t *testing.T) {
	d := NewDispatcher(nil)
	result := d.Emit("nobody:listens", map[string]any{"k": "v"})
	if result.Kind() != KindContinue {
		t.Fatalf("expected continue, got %s", result.Kind())
	}
	if result.Data()["k"] != "v" {
		t.Fatalf("expected input data carried through, got %v", result.Data())
	}
}

func TestEmitSnapshotIgnoresMidDispatchRegistration(t *testing.T) {
	d := NewDispatcher(nil)
	lateRan := false
	if err := d.Register(Registration{Pattern: "x", Name: "registrar", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		if err := d.Register(Registration{Pattern: "x", Name: "late", Priority: 99, Handler: func(string, map[string]any) (Result, error) {
			lateRan = true
			return Continue(), nil
		}}); err != nil {
			t.Errorf("mid-dispatch register: %v", err)
		}
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	d.Emit("x", nil)
	if lateRan {
		t.Fatalf("handler registered mid-dispatch ran in the same dispatch")
	}
	d.Emit("x", nil)
	if !lateRan {
		t.Fatalf("late handler missing from next dispatch")
	}
}

func TestUnregisterRemovesAllRegistrationsForName(t *testing.T) {
	d := NewDispatcher(nil)
	var order []string
	if err := d.Register(Registration{Pattern: "a", Name: "dup", Priority: 1, Handler: continueHandler(&order, "a")}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.Register(Registration{Pattern: "b", Name: "dup", Priority: 1, Handler: continueHandler(&order, "b")}); err != nil {
		t.Fatalf("register: %v", err)
	}
	d.Unregister("dup")
	d.Emit("a", nil)
	d.Emit("b", nil)
	if len(order) != 0 {
		t.Fatalf("unregistered handlers still ran: %v", order)
	}
	d.Unregister("dup") // no-op
}

func TestEmitAndCollectGathersSuccessfulSubset(t *testing.T) {
	logger := &captureLogger{}
	d := NewDispatcher(logger)
	if err := d.Register(Registration{Pattern: "q", Name: "ok", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.Register(Registration{Pattern: "q", Name: "broken", Priority: 2, Handler: func(string, map[string]any) (Result, error) {
		return Result{}, errors.New("no answer")
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.Register(Registration{Pattern: "q", Name: "also-ok", Priority: 3, Handler: func(string, map[string]any) (Result, error) {
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	responses := d.EmitAndCollect(context.Background(), "q", nil, time.Second)
	if len(responses) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(responses))
	}
	if responses[0].Handler != "ok" || responses[1].Handler != "also-ok" {
		t.Fatalf("unexpected responders: %v", responses)
	}
	if !logger.contains("broken") {
		t.Fatalf("fault not logged: %v", logger.lines)
	}
}

func TestEmitAndCollectExcludesTimedOutHandler(t *testing.T) {
	logger := &captureLogger{}
	d := NewDispatcher(logger)
	release := make(chan struct{})
	defer close(release)
	if err := d.Register(Registration{Pattern: "q", Name: "slow", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		<-release
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := d.Register(Registration{Pattern: "q", Name: "fast", Priority: 2, Handler: func(string, map[string]any) (Result, error) {
		return Continue(), nil
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	responses := d.EmitAndCollect(context.Background(), "q", nil, 20*time.Millisecond)
	if len(responses) != 1 || responses[0].Handler != "fast" {
		t.Fatalf("expected only fast handler, got %v", responses)
	}
	if !logger.contains("timed out") {
		t.Fatalf("timeout not logged: %v", logger.lines)
	}
}

func TestEmitAndCollectReturnsEmptySliceWhenAllFail(t *testing.T) {
	d := NewDispatcher(nil)
	if err := d.Register(Registration{Pattern: "q", Name: "broken", Priority: 1, Handler: func(string, map[string]any) (Result, error) {
		return Result{}, errors.New("nope")
	}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	responses := d.EmitAndCollect(context.Background(), "q", nil, time.Second)
	if responses == nil {
		t.Fatalf("expected empty slice, got nil")
	}
	if len(responses) != 0 {
		t.Fatalf("expected no responses, got %v", responses)
	}
}

func TestRegistrationValidate(t *testing.T) {
	tests := []struct {
		name string
		reg  Registration
		msg  string
	}{
		{name: "missing pattern", reg: Registration{Name: "h", Handler: func(string, map[string]any) (Result, error) { return Continue(), nil }}, msg: "pattern"},
		{name: "missing name", reg: Registration{Pattern: "x", Handler: func(string, map[string]any) (Result, error) { return Continue(), nil }}, msg: "name"},
		{name: "missing handler", reg: Registration{Pattern: "x", Name: "h"}, msg: "handler"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.reg.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tc.msg) {
				t.Fatalf("expected %q in error, got %v", tc.msg, err)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		pattern string
		event   string
		want    bool
	}{
		{"tool:pre", "tool:pre", true},
		{"tool:pre", "tool:post", false},
		{"tool:*", "tool:pre", true},
		{"tool:*", "session:start", false},
		{"*", "anything", true},
		{"", "x", false},
		{"x", "", false},
	}
	for _, tc := range tests {
		if got := Matches(tc.pattern, tc.event); got != tc.want {
			t.Errorf("Matches(%q, %q) = %v, want %v", tc.pattern, tc.event, got, tc.want)
		}
	}
}
