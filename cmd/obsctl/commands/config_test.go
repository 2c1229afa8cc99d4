package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultShellConfig(t *testing.T) {
	cfg := DefaultShellConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	if cfg.DefaultPolicy != "manual" || cfg.MaxWalkDepth != 256 || cfg.RootName != "root" {
		t.Errorf("defaults = %+v", cfg)
	}
	if level, _ := cfg.Level(); level != slog.LevelWarn {
		t.Errorf("Level() = %v, want WARN", level)
	}
}

func TestParseShellConfig(t *testing.T) {
	data := []byte(`
default_policy: scope
max_walk_depth: 8
trace_file: /tmp/obsctl.olog
snapshot_dir: /tmp/snapshots
log_level: debug
`)
	cfg, err := ParseShellConfig(data)
	if err != nil {
		t.Fatalf("ParseShellConfig failed: %v", err)
	}
	if cfg.DefaultPolicy != "scope" || cfg.MaxWalkDepth != 8 {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.TraceFile != "/tmp/obsctl.olog" || cfg.SnapshotDir != "/tmp/snapshots" {
		t.Errorf("paths = %q, %q", cfg.TraceFile, cfg.SnapshotDir)
	}
	if cfg.RootName != "root" {
		t.Errorf("RootName = %q, want default root", cfg.RootName)
	}
	if level, _ := cfg.Level(); level != slog.LevelDebug {
		t.Errorf("Level() = %v, want DEBUG", level)
	}
}

func TestParseShellConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"Malformed", "default_policy: [\n"},
		{"UnknownPolicy", "default_policy: sometimes\n"},
		{"ZeroDepth", "max_walk_depth: 0\n"},
		{"BadLevel", "log_level: loud\n"},
		{"EmptyRoot", "root_name: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseShellConfig([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadShellConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obsctl.yaml")
	if err := os.WriteFile(path, []byte("root_name: project\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadShellConfig(path)
	if err != nil {
		t.Fatalf("LoadShellConfig failed: %v", err)
	}
	if cfg.RootName != "project" {
		t.Errorf("RootName = %q, want project", cfg.RootName)
	}

	if _, err := LoadShellConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
