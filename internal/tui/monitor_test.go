package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kingrea/loom/internal/module"
	"github.com/kingrea/loom/internal/modules/recorder"
	"github.com/kingrea/loom/internal/session"
)

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	s := session.New(session.Config{ID: "monitor-test"}, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSnapshotListsEveryMountPoint(t *testing.T) {
	s := newTestSession(t)
	m := NewMonitor(s)
	msg := m.snapshot()
	if len(msg.mounts) != len(module.MountPoints()) {
		t.Fatalf("expected %d mount points, got %d", len(module.MountPoints()), len(msg.mounts))
	}
	for i, mp := range module.MountPoints() {
		if msg.mounts[i].point != mp {
			t.Fatalf("mount point order mismatch at %d: %s", i, msg.mounts[i].point)
		}
	}
}

func TestSnapshotReflectsMountedModules(t *testing.T) {
	s := newTestSession(t)
	if err := s.Coordinator().Mount(recorder.New(nil), ""); err != nil {
		t.Fatalf("mount: %v", err)
	}
	s.Coordinator().Emit("demo", nil)
	m := NewMonitor(s)
	msg := m.snapshot()
	var hookNames []string
	for _, item := range msg.mounts {
		if item.point == module.MountHooks {
			hookNames = item.names
		}
	}
	if len(hookNames) != 1 || hookNames[0] != "event-recorder" {
		t.Fatalf("recorder not listed: %v", hookNames)
	}
	if len(msg.events) == 0 {
		t.Fatalf("expected recorded events in snapshot")
	}
	found := false
	for _, c := range msg.capabilities {
		if c == recorder.TailCapability {
			found = true
		}
	}
	if !found {
		t.Fatalf("tail capability not listed: %v", msg.capabilities)
	}
}

func TestViewShowsSessionAndModules(t *testing.T) {
	s := newTestSession(t)
	if err := s.Coordinator().Mount(recorder.New(nil), ""); err != nil {
		t.Fatalf("mount: %v", err)
	}
	s.BeginTurn()
	m := NewMonitor(s)
	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m = model.(*Monitor)
	model, _ = m.Update(m.snapshot())
	m = model.(*Monitor)
	view := m.View()
	if !strings.Contains(view, "monitor-test") {
		t.Fatalf("view does not show session id:\n%s", view)
	}
	if !strings.Contains(view, "turn 1") {
		t.Fatalf("view does not show turn:\n%s", view)
	}
	if !strings.Contains(view, recorder.TailCapability) {
		t.Fatalf("view does not list capabilities:\n%s", view)
	}
	if !strings.Contains(view, "turn:start") {
		t.Fatalf("view does not show event tail:\n%s", view)
	}
}

func TestQuitKeys(t *testing.T) {
	s := newTestSession(t)
	m := NewMonitor(s)
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		_, cmd := m.Update(keyMsg(key))
		if cmd == nil {
			t.Fatalf("key %q did not quit", key)
		}
		if msg := cmd(); msg != tea.Quit() {
			t.Fatalf("key %q produced %v, not quit", key, msg)
		}
	}
}

func TestRefreshKeyProducesSnapshot(t *testing.T) {
	s := newTestSession(t)
	m := NewMonitor(s)
	_, cmd := m.Update(keyMsg("r"))
	if cmd == nil {
		t.Fatalf("r did not schedule a refresh")
	}
	if _, ok := cmd().(refreshMsg); !ok {
		t.Fatalf("r did not produce a refresh message")
	}
}

func keyMsg(key string) tea.KeyMsg {
	switch key {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
}
