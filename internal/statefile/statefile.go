// Package statefile persists the scheduler state as YAML with atomic
// replace, a .bak copy of the previous version, and recovery from it.
package statefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gridops/meterbot/internal/logging"
)

// State is what the scheduler remembers across restarts.
type State struct {
	LastRunDate  string   `yaml:"last_run_date,omitempty"` // dd.mm.yyyy
	LastCycleID  string   `yaml:"last_cycle_id,omitempty"`
	LastFailures []string `yaml:"last_failures,omitempty"`
}

// Load reads the state at path. A missing file is the zero State. A corrupt
// file is restored from its .bak copy, or moved aside as
// <name>.<timestamp>.corrupt when the backup is unusable too.
func Load(path string, log *logging.Logger) (State, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("read state: %w", err)
	}

	var st State
	err = yaml.Unmarshal(data, &st)
	if err == nil {
		return st, nil
	}
	log.Warnf("state file %s is corrupt: %v", path, err)

	st, err = restoreFromBackup(path)
	if err == nil {
		log.Infof("restored state from %s.bak", path)
		return st, nil
	}
	log.Warnf("state backup unusable: %v", err)

	moved, err := quarantine(path)
	if err != nil {
		return State{}, err
	}
	log.Warnf("quarantined corrupt state file: %s -> %s", path, moved)
	return State{}, nil
}

// Save replaces the state at path atomically.
func Save(path string, st State) error {
	content, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("yaml marshal: %w", err)
	}
	return atomicWrite(path, content)
}

// atomicWrite keeps the current file as .bak, then renames a synced temp
// file over path.
func atomicWrite(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	prev, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := os.WriteFile(path+".bak", prev, 0644); err != nil {
			return fmt.Errorf("write backup: %w", err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("read state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".meterbot-tmp-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	_, err = tmp.Write(content)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

func restoreFromBackup(path string) (State, error) {
	content, err := os.ReadFile(path + ".bak")
	if err != nil {
		return State{}, fmt.Errorf("read backup: %w", err)
	}
	var st State
	if err := yaml.Unmarshal(content, &st); err != nil {
		return State{}, fmt.Errorf("backup is also corrupted: %w", err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		return State{}, fmt.Errorf("restore from backup: %w", err)
	}
	return st, nil
}

func quarantine(path string) (string, error) {
	moved := fmt.Sprintf("%s.%s.corrupt", path, time.Now().Format("20060102T150405"))
	if err := os.Rename(path, moved); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}
	return moved, nil
}
