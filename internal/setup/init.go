// Package setup creates a working directory with a default meterbot.yaml.
package setup

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/templates"
)

const configName = "meterbot.yaml"

// Run writes the default config into dir and creates the state and log
// directories it points at. It returns the config path and refuses to
// overwrite an existing config.
func Run(dir string) (string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve dir: %w", err)
	}
	path := filepath.Join(absDir, configName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	data, err := fs.ReadFile(templates.FS, configName)
	if err != nil {
		return "", fmt.Errorf("read config template: %w", err)
	}
	cfg, err := model.ParseConfig(data)
	if err != nil {
		return "", fmt.Errorf("config template: %w", err)
	}
	cfg = cfg.ResolvePaths(absDir)

	for _, p := range []string{cfg.Schedule.StateFile, cfg.Logging.File} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return "", fmt.Errorf("create directory %s: %w", filepath.Dir(p), err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
