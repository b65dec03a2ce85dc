package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Preview.PortRangeLow != DefaultPortRangeLow {
		t.Errorf("Preview.PortRangeLow = %d, want %d", cfg.Preview.PortRangeLow, DefaultPortRangeLow)
	}
	if cfg.Preview.PortRangeHigh != DefaultPortRangeHigh {
		t.Errorf("Preview.PortRangeHigh = %d, want %d", cfg.Preview.PortRangeHigh, DefaultPortRangeHigh)
	}
	if cfg.Preview.Host != DefaultHost {
		t.Errorf("Preview.Host = %q, want %q", cfg.Preview.Host, DefaultHost)
	}
	if cfg.Render.Command != DefaultRenderer {
		t.Errorf("Render.Command = %q, want %q", cfg.Render.Command, DefaultRenderer)
	}
	if cfg.Editor.BaseURL != DefaultEditorBase {
		t.Errorf("Editor.BaseURL = %q, want %q", cfg.Editor.BaseURL, DefaultEditorBase)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Test loading non-existent config
	_, err := Load(tmpDir)
	if err == nil {
		t.Error("Expected error for missing config")
	}

	// Create a config file
	configPath := filepath.Join(tmpDir, ConfigFileName)
	configJSON := `{
  "workspace": "diagrams",
  "preview": {
    "portRangeLow": 4000,
    "portRangeHigh": 4010,
    "host": "0.0.0.0",
    "openBrowser": false
  },
  "render": {
    "command": "mermaid-cli",
    "theme": "dark",
    "scale": 2
  },
  "publish": {
    "bucket": "my-diagrams",
    "prefix": "rendered/"
  }
}
`
	if err := os.WriteFile(configPath, []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	// Load the config
	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Preview.PortRangeLow != 4000 {
		t.Errorf("Preview.PortRangeLow = %d, want %d", cfg.Preview.PortRangeLow, 4000)
	}
	if cfg.Preview.PortRangeHigh != 4010 {
		t.Errorf("Preview.PortRangeHigh = %d, want %d", cfg.Preview.PortRangeHigh, 4010)
	}
	if cfg.Preview.Host != "0.0.0.0" {
		t.Errorf("Preview.Host = %q, want %q", cfg.Preview.Host, "0.0.0.0")
	}
	if cfg.OpenBrowser() {
		t.Error("OpenBrowser should be false")
	}
	if cfg.Render.Command != "mermaid-cli" {
		t.Errorf("Render.Command = %q, want %q", cfg.Render.Command, "mermaid-cli")
	}
	if cfg.Render.Theme != "dark" {
		t.Errorf("Render.Theme = %q, want %q", cfg.Render.Theme, "dark")
	}
	if cfg.Render.Scale != 2 {
		t.Errorf("Render.Scale = %d, want %d", cfg.Render.Scale, 2)
	}
	if cfg.Publish.Bucket != "my-diagrams" {
		t.Errorf("Publish.Bucket = %q, want %q", cfg.Publish.Bucket, "my-diagrams")
	}

	// Unset fields fall back to defaults
	if cfg.Render.Format != DefaultFormat {
		t.Errorf("Render.Format = %q, want %q", cfg.Render.Format, DefaultFormat)
	}
	if cfg.Editor.BaseURL != DefaultEditorBase {
		t.Errorf("Editor.BaseURL = %q, want %q", cfg.Editor.BaseURL, DefaultEditorBase)
	}
}

func TestLoadFile_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// Write invalid JSON
	if err := os.WriteFile(configPath, []byte("not valid json"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFile(configPath)
	if err == nil {
		t.Error("Expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "E080") {
		t.Errorf("Expected E080 error, got: %v", err)
	}
}

func TestSave(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	cfg := New()
	cfg.Preview.PortRangeLow = 9000
	cfg.Preview.PortRangeHigh = 9010
	cfg.Render.Theme = "forest"

	// Save should fail without configPath set
	err := cfg.Save()
	if err == nil {
		t.Error("Expected error when saving without path")
	}

	// SaveTo should work
	err = cfg.SaveTo(configPath)
	if err != nil {
		t.Fatalf("SaveTo error: %v", err)
	}

	// Reload and verify
	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if loaded.Preview.PortRangeLow != 9000 {
		t.Errorf("Preview.PortRangeLow = %d, want %d", loaded.Preview.PortRangeLow, 9000)
	}
	if loaded.Render.Theme != "forest" {
		t.Errorf("Render.Theme = %q, want %q", loaded.Render.Theme, "forest")
	}

	// Now Save should work
	loaded.Preview.PortRangeLow = 9001
	err = loaded.Save()
	if err != nil {
		t.Fatalf("Save error: %v", err)
	}

	// Reload again
	reloaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if reloaded.Preview.PortRangeLow != 9001 {
		t.Errorf("Preview.PortRangeLow = %d, want %d", reloaded.Preview.PortRangeLow, 9001)
	}
}

func TestValidate(t *testing.T) {
	cfg := New()

	// Valid config
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate should pass for valid config: %v", err)
	}

	// Inverted range
	cfg.Preview.PortRangeLow = 4000
	cfg.Preview.PortRangeHigh = 3000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail when low port exceeds high port")
	}

	// Out-of-range port
	cfg = New()
	cfg.Preview.PortRangeHigh = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for port > 65535")
	}

	// Bad format
	cfg = New()
	cfg.Render.Format = "pdf"
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should fail for unsupported format")
	}
}

func TestWorkspacePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// Environment variable wins
	t.Setenv(WorkspaceEnv, "/env/workspace")
	cfg := New()
	if got := cfg.WorkspacePath(); got != "/env/workspace" {
		t.Errorf("WorkspacePath = %q, want %q", got, "/env/workspace")
	}
	t.Setenv(WorkspaceEnv, "")

	// Default is under the home directory
	cfg = New()
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}
	if got := cfg.WorkspacePath(); got != filepath.Join(home, ".easel") {
		t.Errorf("WorkspacePath = %q, want %q", got, filepath.Join(home, ".easel"))
	}

	// Relative path resolves against the config directory
	cfg = New()
	cfg.Workspace = "diagrams"
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}
	if got := cfg.WorkspacePath(); got != filepath.Join(tmpDir, "diagrams") {
		t.Errorf("WorkspacePath = %q, want %q", got, filepath.Join(tmpDir, "diagrams"))
	}

	// Absolute path wins as-is
	cfg.Workspace = "/absolute/diagrams"
	if got := cfg.WorkspacePath(); got != "/absolute/diagrams" {
		t.Errorf("WorkspacePath = %q, want %q", got, "/absolute/diagrams")
	}

	// Tilde expands to home
	cfg.Workspace = "~/easel-diagrams"
	if got := cfg.WorkspacePath(); got != filepath.Join(home, "easel-diagrams") {
		t.Errorf("WorkspacePath = %q, want %q", got, filepath.Join(home, "easel-diagrams"))
	}
}

func TestRenderTimeout(t *testing.T) {
	cfg := New()
	if got := cfg.RenderTimeout().String(); got != "30s" {
		t.Errorf("RenderTimeout = %v, want 30s", got)
	}

	cfg.Render.Timeout = "2m"
	if got := cfg.RenderTimeout().String(); got != "2m0s" {
		t.Errorf("RenderTimeout = %v, want 2m0s", got)
	}

	// Garbage falls back to the default
	cfg.Render.Timeout = "soon"
	if got := cfg.RenderTimeout().String(); got != "30s" {
		t.Errorf("RenderTimeout = %v, want 30s", got)
	}
}

func TestRetention(t *testing.T) {
	cfg := New()
	if got := cfg.Retention().Hours(); got != 720 {
		t.Errorf("Retention = %v hours, want 720", got)
	}

	cfg.Preview.Retention = "24h"
	if got := cfg.Retention().Hours(); got != 24 {
		t.Errorf("Retention = %v hours, want 24", got)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()

	if Exists(tmpDir) {
		t.Error("Exists should be false for empty directory")
	}

	// Create config file
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	if !Exists(tmpDir) {
		t.Error("Exists should be true after creating config")
	}
}

func TestFindProjectRoot(t *testing.T) {
	// Create nested directory structure
	tmpDir := t.TempDir()
	nestedDir := filepath.Join(tmpDir, "a", "b", "c")
	if err := os.MkdirAll(nestedDir, 0755); err != nil {
		t.Fatal(err)
	}

	// Should fail when no config exists
	_, err := FindProjectRoot(nestedDir)
	if err == nil {
		t.Error("FindProjectRoot should fail when no config exists")
	}

	// Create config in root
	configPath := filepath.Join(tmpDir, ConfigFileName)
	if err := os.WriteFile(configPath, []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}

	// Should find root from nested directory
	root, err := FindProjectRoot(nestedDir)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}

	// Should find root from middle directory
	root, err = FindProjectRoot(filepath.Join(tmpDir, "a"))
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	if root != tmpDir {
		t.Errorf("FindProjectRoot = %q, want %q", root, tmpDir)
	}
}

func TestItoa(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, "0"},
		{1, "1"},
		{10, "10"},
		{123, "123"},
		{3737, "3737"},
		{65535, "65535"},
		{-1, "-1"},
		{-100, "-100"},
	}

	for _, tt := range tests {
		got := itoa(tt.n)
		if got != tt.want {
			t.Errorf("itoa(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()

	if cfg.Preview.PortRangeLow != DefaultPortRangeLow {
		t.Errorf("Preview.PortRangeLow = %d, want %d", cfg.Preview.PortRangeLow, DefaultPortRangeLow)
	}
	if cfg.Preview.Host != DefaultHost {
		t.Errorf("Preview.Host = %q, want %q", cfg.Preview.Host, DefaultHost)
	}
	if cfg.Render.Command != DefaultRenderer {
		t.Errorf("Render.Command = %q, want %q", cfg.Render.Command, DefaultRenderer)
	}
	if cfg.Render.Scale != 1 {
		t.Errorf("Render.Scale = %d, want 1", cfg.Render.Scale)
	}
	if !cfg.OpenBrowser() {
		t.Error("OpenBrowser should default to true")
	}
}

func TestOpenBrowserRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, ConfigFileName)

	// An explicit false must survive the save/load round trip and not be
	// clobbered back to the default.
	off := false
	cfg := New()
	cfg.Preview.OpenBrowser = &off
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadFile(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.OpenBrowser() {
		t.Error("OpenBrowser = true after round trip, want false")
	}
}
