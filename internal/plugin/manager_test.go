package plugin

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest creates dir/<sub>/plugin.json from a Manifest or a raw string.
func writeManifest(t *testing.T, dir, sub string, manifest any) {
	t.Helper()

	pluginDir := filepath.Join(dir, sub)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatalf("failed to create plugin dir: %v", err)
	}

	var data []byte
	switch m := manifest.(type) {
	case string:
		data = []byte(m)
	default:
		var err error
		if data, err = json.Marshal(m); err != nil {
			t.Fatalf("failed to marshal manifest: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "plugin.json"), data, 0o644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
}

func TestManager_Discover(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "outbox", Manifest{
		Name:        "outbox",
		Version:     "1.0.0",
		Description: "Copies photos to a folder",
		Executable:  "outbox",
		Events:      []string{EventSessionFinished},
	})

	manager := NewManager(dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 {
		t.Fatalf("expected 1 plugin, got %d", len(plugins))
	}

	p := plugins[0]
	if p.Manifest.Name != "outbox" || p.Manifest.Version != "1.0.0" {
		t.Errorf("manifest = %+v", p.Manifest)
	}
	if p.Path != filepath.Join(dir, "outbox") {
		t.Errorf("Path = %q", p.Path)
	}
	if p.Executable != filepath.Join(dir, "outbox", "outbox") {
		t.Errorf("Executable = %q", p.Executable)
	}
	if !p.Manifest.Handles(EventSessionFinished) {
		t.Error("outbox should handle session.finished")
	}
}

func TestManager_Discover_SkipsBadEntries(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "good", Manifest{Name: "good", Executable: "run"})
	writeManifest(t, dir, "broken", "{not json")
	writeManifest(t, dir, "nameless", Manifest{Executable: "run"})
	if err := os.MkdirAll(filepath.Join(dir, "no-manifest"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	manager := NewManager(dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	plugins := manager.List()
	if len(plugins) != 1 || plugins[0].Manifest.Name != "good" {
		t.Errorf("List() = %v, want only good", names(plugins))
	}
}

func TestManager_Discover_MissingDir(t *testing.T) {
	for _, dir := range []string{filepath.Join(t.TempDir(), "missing"), t.TempDir()} {
		manager := NewManager(dir, nil)
		if err := manager.Discover(); err != nil {
			t.Errorf("Discover(%s) error = %v", dir, err)
		}
		if n := len(manager.List()); n != 0 {
			t.Errorf("Discover(%s) found %d plugins", dir, n)
		}
	}
}

func TestManager_GetAndSubscribers(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b", Manifest{Name: "zeta", Executable: "run", Events: []string{EventSessionFinished}})
	writeManifest(t, dir, "a", Manifest{Name: "alpha", Executable: "run", Events: []string{EventSessionFinished}})
	writeManifest(t, dir, "c", Manifest{Name: "other", Executable: "run", Events: []string{"session.started"}})

	manager := NewManager(dir, nil)
	if err := manager.Discover(); err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	if _, err := manager.Get("alpha"); err != nil {
		t.Errorf("Get(alpha) error = %v", err)
	}
	if _, err := manager.Get("missing"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrPluginNotFound", err)
	}

	subs := manager.Subscribers(EventSessionFinished)
	if len(subs) != 2 || subs[0].Manifest.Name != "alpha" || subs[1].Manifest.Name != "zeta" {
		t.Errorf("Subscribers() = %v", names(subs))
	}
	if manager.PluginDir() != dir {
		t.Errorf("PluginDir() = %q, want %q", manager.PluginDir(), dir)
	}
}

func names(plugins []*Plugin) []string {
	out := make([]string, len(plugins))
	for i, p := range plugins {
		out[i] = p.Manifest.Name
	}
	return out
}
