package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kingrea/loom/internal/module"
)

const samplePlan = `
session:
  orchestrator:
    module: conductor
  injection_size_limit: 4096
  injection_budget_per_turn: 16384
providers:
  - module: llm
    config:
      model: default
tools:
  - module: search
  - module: calculator
hooks:
  - module: event-recorder
context:
  - module: static-context
    config:
      content: house rules
`

func TestParse(t *testing.T) {
	p, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.Session.Orchestrator == nil || p.Session.Orchestrator.Module != "conductor" {
		t.Fatalf("orchestrator not parsed: %+v", p.Session)
	}
	if p.Session.InjectionSizeLimit != 4096 || p.Session.InjectionBudgetPerTurn != 16384 {
		t.Fatalf("budgets not parsed: %+v", p.Session)
	}
	if len(p.Tools) != 2 || len(p.Providers) != 1 || len(p.Hooks) != 1 || len(p.Context) != 1 {
		t.Fatalf("sections not parsed: %+v", p)
	}
	if got := p.Providers[0].Config["model"]; got != "default" {
		t.Fatalf("entry config not parsed: %v", got)
	}
}

func TestParseEmptyDocument(t *testing.T) {
	if _, err := Parse([]byte("   \n")); err == nil {
		t.Fatalf("expected error for empty document")
	}
}

func TestParseMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("tools: [unclosed")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte(samplePlan), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(p.Tools) != 2 {
		t.Fatalf("plan not loaded: %+v", p)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr string
	}{
		{
			name: "empty plan is valid",
			plan: Plan{},
		},
		{
			name:    "missing module id",
			plan:    Plan{Tools: []Entry{{Module: "  "}}},
			wantErr: "module id is required",
		},
		{
			name:    "duplicate module in section",
			plan:    Plan{Tools: []Entry{{Module: "search"}, {Module: "search"}}},
			wantErr: "duplicate module search",
		},
		{
			name:    "two context modules",
			plan:    Plan{Context: []Entry{{Module: "a"}, {Module: "b"}}},
			wantErr: "context slot is a singleton",
		},
		{
			name: "context declared twice",
			plan: Plan{
				Session: SessionSpec{Context: &Entry{Module: "a"}},
				Context: []Entry{{Module: "b"}},
			},
			wantErr: "both under session.context and context[]",
		},
		{
			name:    "negative size limit",
			plan:    Plan{Session: SessionSpec{InjectionSizeLimit: -1}},
			wantErr: "injection_size_limit",
		},
		{
			name:    "negative budget",
			plan:    Plan{Session: SessionSpec{InjectionBudgetPerTurn: -1}},
			wantErr: "injection_budget_per_turn",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDescriptorsMountOrder(t *testing.T) {
	p, err := Parse([]byte(samplePlan))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	descs := p.Descriptors()
	var got []string
	for _, d := range descs {
		got = append(got, string(d.Type)+":"+d.ID)
	}
	want := []string{
		"hook:event-recorder",
		"provider:llm",
		"tool:search",
		"tool:calculator",
		"context:static-context",
		"orchestrator:conductor",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mount order mismatch at %d: expected %v, got %v", i, want, got)
		}
	}
}

func TestDescriptorsSessionContextSlot(t *testing.T) {
	p := Plan{Session: SessionSpec{Context: &Entry{Module: "notes"}}}
	descs := p.Descriptors()
	if len(descs) != 1 || descs[0].Type != module.TypeContext || descs[0].ID != "notes" {
		t.Fatalf("expected session context descriptor, got %v", descs)
	}
}
