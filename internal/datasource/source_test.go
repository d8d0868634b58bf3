package datasource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	origWd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(origWd) })
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
}

func TestDiscoverFromEnvVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	writeConfig(t, path, "sport: tennis\n")
	t.Setenv("SVV_CONFIG", path)

	got, err := Discover()
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if got != path {
		t.Errorf("Discover() = %q, want %q", got, path)
	}
}

func TestDiscoverEnvVarMissing(t *testing.T) {
	t.Setenv("SVV_CONFIG", "/nonexistent/path/config.yaml")

	_, err := Discover()
	if err == nil {
		t.Error("Discover should fail when SVV_CONFIG points to nonexistent file")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("an explicit bad SVV_CONFIG is not ErrNotFound")
	}
}

func TestDiscoverFromCWD(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, filepath.Join(dir, ".sportvision", "config.yaml"), "sport: tennis\n")
	t.Setenv("SVV_CONFIG", "")
	chdir(t, dir)

	path, err := Discover()
	if err != nil {
		t.Fatalf("Discover from CWD: %v", err)
	}
	if filepath.Base(filepath.Dir(path)) != ".sportvision" {
		t.Errorf("expected path in .sportvision/, got %q", path)
	}
}

func TestDiscoverFromParentDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, ".sportvision", "config.yaml")
	writeConfig(t, cfgPath, "sport: tennis\n")

	childDir := filepath.Join(dir, "sub", "deep")
	if err := os.MkdirAll(childDir, 0o755); err != nil {
		t.Fatalf("MkdirAll child: %v", err)
	}
	t.Setenv("SVV_CONFIG", "")
	chdir(t, childDir)

	path, err := Discover()
	if err != nil {
		t.Fatalf("Discover from parent: %v", err)
	}
	// Resolve symlinks for comparison (macOS /var -> /private/var).
	resolvedPath, _ := filepath.EvalSymlinks(path)
	resolvedExpect, _ := filepath.EvalSymlinks(cfgPath)
	if resolvedPath != resolvedExpect {
		t.Errorf("Discover() = %q, want %q", path, cfgPath)
	}
}

func TestDiscoverNoConfig(t *testing.T) {
	t.Setenv("SVV_CONFIG", "")
	chdir(t, t.TempDir())

	_, err := Discover()
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Discover() err = %v, want ErrNotFound", err)
	}
}

func TestOpenFallsBackToDefaults(t *testing.T) {
	t.Setenv("SVV_CONFIG", "")
	t.Setenv("SVV_SPORT", "")
	chdir(t, t.TempDir())

	cfg, path, err := Open("")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}
	if cfg.Sport != "badminton" {
		t.Errorf("Sport = %q", cfg.Sport)
	}
	if StateDir(path) != ".sportvision" {
		t.Errorf("StateDir = %q", StateDir(path))
	}
}

func TestOpenExplicit(t *testing.T) {
	t.Setenv("SVV_SPORT", "")
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	writeConfig(t, path, "sport: table_tennis\n")

	cfg, got, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got != path || cfg.Sport != "table_tennis" {
		t.Errorf("Open = %q, %q", got, cfg.Sport)
	}
	if StateDir(got) != filepath.Dir(path) {
		t.Errorf("StateDir = %q", StateDir(got))
	}
}

func TestOpenInvalid(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "viewer.yaml")
	writeConfig(t, path, "render:\n  fps: 0\n")

	if _, _, err := Open(path); err == nil {
		t.Error("Open should fail for an invalid config")
	}
}
