// Package datasource discovers and loads the viewer configuration file.
package datasource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/daviddao/sportvision_viewer/internal/config"
)

const (
	defaultDir    = ".sportvision"
	defaultConfig = ".sportvision/config.yaml"
)

// ErrNotFound means no configuration file was discovered.
var ErrNotFound = errors.New("no sportvision config found")

// Discover finds the configuration file path.
// Priority: SVV_CONFIG env var > .sportvision/config.yaml in CWD > walk up parents.
func Discover() (string, error) {
	if env := os.Getenv("SVV_CONFIG"); env != "" {
		if _, err := os.Stat(env); err == nil {
			return env, nil
		}
		return "", fmt.Errorf("SVV_CONFIG=%q: %w", env, os.ErrNotExist)
	}

	// Check CWD first.
	if _, err := os.Stat(defaultConfig); err == nil {
		abs, err := filepath.Abs(defaultConfig)
		if err != nil {
			return "", fmt.Errorf("resolve absolute path for %s: %w", defaultConfig, err)
		}
		return abs, nil
	}

	// Walk up parent directories.
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, defaultConfig)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w (looked for %s)", ErrNotFound, defaultConfig)
}

// Open loads the .env file, then the configuration at explicit, or the
// discovered one when explicit is empty. A missing discovered file yields the
// defaults and an empty path.
func Open(explicit string) (*config.Config, string, error) {
	if err := config.LoadEnvFile(""); err != nil {
		return nil, "", err
	}
	path := explicit
	if path == "" {
		var err error
		path, err = Discover()
		if errors.Is(err, ErrNotFound) {
			path = ""
		} else if err != nil {
			return nil, "", err
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", displayPath(path), err)
	}
	return cfg, path, nil
}

// StateDir returns the directory holding logs and history next to the
// config file, or .sportvision in the CWD when no file was found.
func StateDir(configPath string) string {
	if configPath == "" {
		return defaultDir
	}
	return filepath.Dir(configPath)
}

func displayPath(p string) string {
	if p == "" {
		return "defaults"
	}
	return p
}
