package plugins

import (
	"strings"
	"testing"

	"github.com/kingrea/loom/internal/module"
)

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name     string
		manifest Manifest
		wantErr  string
	}{
		{
			name:     "valid",
			manifest: Manifest{ID: "echo", Version: "1.0.0", Type: module.TypeTool},
		},
		{
			name:     "missing id",
			manifest: Manifest{Version: "1.0.0", Type: module.TypeTool},
			wantErr:  "id is required",
		},
		{
			name:     "missing version",
			manifest: Manifest{ID: "echo", Type: module.TypeTool},
			wantErr:  "version is required",
		},
		{
			name:     "missing type",
			manifest: Manifest{ID: "echo", Version: "1.0.0"},
			wantErr:  "type is required",
		},
		{
			name:     "unknown type gets suggestion",
			manifest: Manifest{ID: "echo", Version: "1.0.0", Type: "tols"},
			wantErr:  `did you mean "tool"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.manifest.Validate()
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

func TestManifestNormalized(t *testing.T) {
	m := Manifest{
		ID:       "  echo ",
		Version:  " 1.0.0 ",
		Type:     " tool ",
		Requires: []string{" fs.read ", "", "net.fetch"},
		Config:   module.Config{" key ": "value", "": "dropped"},
	}
	n := m.Normalized()
	if n.ID != "echo" || n.Version != "1.0.0" || n.Type != module.TypeTool {
		t.Fatalf("fields not trimmed: %+v", n)
	}
	if len(n.Requires) != 2 || n.Requires[0] != "fs.read" || n.Requires[1] != "net.fetch" {
		t.Fatalf("requires not normalized: %v", n.Requires)
	}
	if _, ok := n.Config["key"]; !ok || len(n.Config) != 1 {
		t.Fatalf("config not normalized: %v", n.Config)
	}
}

func TestManifestFactoryID(t *testing.T) {
	m := Manifest{ID: "greeter", Version: "1.0.0", Type: module.TypeTool}
	if got := m.FactoryID(); got != "greeter" {
		t.Fatalf("expected manifest id fallback, got %s", got)
	}
	m.Implements = "echo"
	if got := m.FactoryID(); got != "echo" {
		t.Fatalf("expected implements to win, got %s", got)
	}
}
