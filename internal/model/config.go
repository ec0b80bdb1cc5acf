// Package model defines meterbot's configuration, readings and per-cycle outcomes.
package model

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Automations   map[string]bool     `yaml:"automations"`
	Notifications NotificationsConfig `yaml:"notifications"`
	UIA           UIAConfig           `yaml:"uia"`
	Mercury       MercuryConfig       `yaml:"mercury"`
	BTCTools      BTCToolsConfig      `yaml:"btctools"`
	Excel         ExcelConfig         `yaml:"excel"`
	Persistence   PersistenceConfig   `yaml:"persistence"`
	History       HistoryConfig       `yaml:"history"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ScheduleConfig struct {
	AutoLaunch      bool   `yaml:"auto_launch"`
	StartTime       string `yaml:"start_time"`        // HH:MM, local time
	PollIntervalSec int    `yaml:"poll_interval_sec"` // 0..86400
	StateFile       string `yaml:"state_file"`
	LockFile        string `yaml:"lock_file"`
}

type NotificationsConfig struct {
	TokenEnv     string   `yaml:"token_env"`
	TgRecipients []string `yaml:"tg_recipients"`
}

type UIAConfig struct {
	HelperPath        string `yaml:"helper_path"`
	FileBrowser       string `yaml:"file_browser"`
	LaunchSettleSec   int    `yaml:"launch_settle_sec"`
	CommandTimeoutSec int    `yaml:"command_timeout_sec"`
}

// AppConfig is shared by every automated program.
type AppConfig struct {
	ProgramPath string `yaml:"program_path"`
	LaunchType  string `yaml:"launch_type"` // normal | manual
}

// PollConfig bounds a progress wait. A zero interval polls back to back;
// MaxAttempts 0 waits without bound.
type PollConfig struct {
	IntervalSec float64 `yaml:"interval_sec"`
	MaxAttempts int     `yaml:"max_attempts"`
}

func (p PollConfig) Interval() time.Duration {
	return time.Duration(p.IntervalSec * float64(time.Second))
}

type ReadingKindConfig struct {
	Name   string `yaml:"name"`
	Button string `yaml:"button"`
	Field  string `yaml:"field"`
}

type MercuryControls struct {
	Dialog           string `yaml:"dialog"`
	ConnectionLink   string `yaml:"connection_link"`
	MeterField       string `yaml:"meter_field"`
	AccessLevelField string `yaml:"access_level_field"`
	ConnectButton    string `yaml:"connect_button"`
	ProgressField    string `yaml:"progress_field"`
	ErrorMarker      string `yaml:"error_marker"`
	ConfirmButton    string `yaml:"confirm_button"`
	ValuesLink       string `yaml:"values_link"`
	ReadButton       string `yaml:"read_button"`
}

type MercuryConfig struct {
	AppConfig       `yaml:",inline"`
	MeterIndexes    []MeterID           `yaml:"meter_indexes"`
	DataPath        string              `yaml:"data_path"`
	NotepadDataPath string              `yaml:"notepad_data_path"`
	AccessLevel     string              `yaml:"access_level"`
	ReadingKinds    []ReadingKindConfig `yaml:"reading_kinds"`
	Controls        MercuryControls     `yaml:"controls"`
	Poll            PollConfig          `yaml:"poll"`
	DialogSettleSec float64             `yaml:"dialog_settle_sec"`
	ReadSettleSec   float64             `yaml:"read_settle_sec"`
}

// Kinds returns the configured reading kinds in order.
func (m MercuryConfig) Kinds() []ReadingKind {
	out := make([]ReadingKind, len(m.ReadingKinds))
	for i, k := range m.ReadingKinds {
		out[i] = ReadingKind(k.Name)
	}
	return out
}

type BTCToolsControls struct {
	Dialog        string `yaml:"dialog"`
	SessionPrompt string `yaml:"session_prompt"`
	ScanButton    string `yaml:"scan_button"`
	ProgressField string `yaml:"progress_field"`
	DoneMarker    string `yaml:"done_marker"`
	ConfirmButton string `yaml:"confirm_button"`
	ExportHeader  string `yaml:"export_header"`
	ExportButton  string `yaml:"export_button"`
	FileNameField string `yaml:"file_name_field"`
	SaveButton    string `yaml:"save_button"`
	OverwriteYes  string `yaml:"overwrite_yes"`
	OverwriteOK   string `yaml:"overwrite_ok"`
}

type BTCToolsConfig struct {
	AppConfig       `yaml:",inline"`
	DataFolder      string           `yaml:"data_folder"`
	FilePrefix      string           `yaml:"file_prefix"`
	Controls        BTCToolsControls `yaml:"controls"`
	Poll            PollConfig       `yaml:"poll"`
	StartSettleSec  float64          `yaml:"start_settle_sec"`
	DialogSettleSec float64          `yaml:"dialog_settle_sec"`
}

type ExcelConfig struct {
	ProgramPath        string  `yaml:"program_path"`
	MeterIndexRow      int     `yaml:"meter_index_row"`
	MeterIndexColFirst int     `yaml:"meter_index_col_first"`
	MeterIndexColLast  int     `yaml:"meter_index_col_last"` // exclusive
	CloseSettleSec     float64 `yaml:"close_settle_sec"`
}

// SuccessPolicy decides when the meter worker reports success.
type SuccessPolicy string

const (
	// SuccessAttempted reports success once persistence was attempted.
	SuccessAttempted SuccessPolicy = "attempted"
	// SuccessPersisted requires either the spreadsheet or the flat log to accept the data.
	SuccessPersisted SuccessPolicy = "persisted"
	// SuccessStructured requires the spreadsheet write itself to succeed.
	SuccessStructured SuccessPolicy = "structured"
)

type PersistenceConfig struct {
	SuccessPolicy SuccessPolicy `yaml:"success_policy"`
}

type HistoryConfig struct {
	DBPath string `yaml:"db_path"`
}

type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// UnmarshalYAML accepts meter ids written either as numbers or strings.
func (m *MeterID) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: meter id must be a scalar", n.Line)
	}
	v := strings.TrimSpace(n.Value)
	if v == "" {
		return fmt.Errorf("line %d: empty meter id", n.Line)
	}
	*m = MeterID(v)
	return nil
}

var startTimeRe = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// LoadConfig reads, defaults and validates the YAML config at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, err
	}
	return cfg.ResolvePaths(filepath.Dir(path)), nil
}

// ResolvePaths makes meterbot's own files (state, lock, history, metrics,
// log) relative to base. Paths into the automated programs are left alone.
func (c Config) ResolvePaths(base string) Config {
	for _, p := range []*string{
		&c.Schedule.StateFile,
		&c.Schedule.LockFile,
		&c.History.DBPath,
		&c.Metrics.TextfilePath,
		&c.Logging.File,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	return c
}

func ParseConfig(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg = ApplyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnabledPrograms returns the enabled programs in KnownPrograms order.
// Unknown names are rejected by Validate, so they never appear here.
func (c Config) EnabledPrograms() []ProgramID {
	var out []ProgramID
	for _, p := range KnownPrograms {
		if c.Automations[string(p)] {
			out = append(out, p)
		}
	}
	return out
}

// App returns the launch settings of program p.
func (c Config) App(p ProgramID) (AppConfig, bool) {
	switch p {
	case ProgramMercury:
		return c.Mercury.AppConfig, true
	case ProgramBTCTools:
		return c.BTCTools.AppConfig, true
	default:
		return AppConfig{}, false
	}
}

// StartClock parses Schedule.StartTime into hour and minute.
func (c Config) StartClock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", normalizeClock(c.Schedule.StartTime))
	if err != nil {
		return 0, 0, fmt.Errorf("start_time %q: %w", c.Schedule.StartTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

// normalizeClock pads "9:00" to "09:00".
func normalizeClock(s string) string {
	if len(s) == 4 {
		return "0" + s
	}
	return s
}

func (c Config) Validate() error {
	if !startTimeRe.MatchString(c.Schedule.StartTime) {
		return fmt.Errorf("schedule.start_time must be HH:MM (ex.: 09:00), got %q", c.Schedule.StartTime)
	}
	if c.Schedule.PollIntervalSec < 0 || c.Schedule.PollIntervalSec > 86400 {
		return fmt.Errorf("schedule.poll_interval_sec must be between 0 and 86400 seconds, got %d", c.Schedule.PollIntervalSec)
	}
	for name, p := range map[string]PollConfig{"mercury": c.Mercury.Poll, "btctools": c.BTCTools.Poll} {
		if p.IntervalSec < 0 || p.MaxAttempts < 0 {
			return fmt.Errorf("%s.poll: interval_sec and max_attempts must not be negative", name)
		}
	}
	for name := range c.Automations {
		if _, err := ParseProgramID(name); err != nil {
			return fmt.Errorf("automations: %w", err)
		}
	}
	for _, p := range c.EnabledPrograms() {
		app, _ := c.App(p)
		if app.ProgramPath == "" {
			return fmt.Errorf("%s.program_path is required", p)
		}
		if app.LaunchType != "normal" && app.LaunchType != "manual" {
			return fmt.Errorf("%s.launch_type must be normal or manual, got %q", p, app.LaunchType)
		}
	}
	if c.Automations[string(ProgramMercury)] {
		if len(c.Mercury.MeterIndexes) == 0 {
			return fmt.Errorf("mercury.meter_indexes must list at least one meter")
		}
		if c.Mercury.DataPath == "" && c.Mercury.NotepadDataPath == "" {
			return fmt.Errorf("mercury: data_path or notepad_data_path is required")
		}
		if c.Excel.MeterIndexColLast <= c.Excel.MeterIndexColFirst {
			return fmt.Errorf("excel.meter_index_col_last (%d) must be greater than meter_index_col_first (%d)",
				c.Excel.MeterIndexColLast, c.Excel.MeterIndexColFirst)
		}
	}
	switch c.Persistence.SuccessPolicy {
	case SuccessAttempted, SuccessPersisted, SuccessStructured:
	default:
		return fmt.Errorf("persistence.success_policy must be attempted, persisted or structured, got %q", c.Persistence.SuccessPolicy)
	}
	return nil
}
