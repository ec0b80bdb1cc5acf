package model

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
schedule:
  auto_launch: true
  start_time: "9:30"
  poll_interval_sec: 30
automations:
  mercury: true
  btctools: false
notifications:
  tg_recipients: ["1001", "1002"]
mercury:
  program_path: 'C:\Program Files\Mercury\Mercury.exe'
  launch_type: manual
  meter_indexes: [38, 39, "40"]
  data_path: 'C:\data\meters.xlsx'
  notepad_data_path: 'C:\data\meters.txt'
excel:
  meter_index_row: 2
  meter_index_col_first: 2
  meter_index_col_last: 11
`

func TestParseConfig_Sample(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.True(t, cfg.Schedule.AutoLaunch)
	assert.Equal(t, 30, cfg.Schedule.PollIntervalSec)
	assert.Equal(t, []MeterID{"38", "39", "40"}, cfg.Mercury.MeterIndexes)
	assert.Equal(t, "manual", cfg.Mercury.LaunchType)
	assert.Equal(t, []ProgramID{ProgramMercury}, cfg.EnabledPrograms())
	assert.Equal(t, []string{"1001", "1002"}, cfg.Notifications.TgRecipients)

	hour, minute, err := cfg.StartClock()
	require.NoError(t, err)
	assert.Equal(t, 9, hour)
	assert.Equal(t, 30, minute)
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "TG_API", cfg.Notifications.TokenEnv)
	assert.Equal(t, "111111", cfg.Mercury.AccessLevel)
	assert.Equal(t, "Static3", cfg.Mercury.Controls.ProgressField)
	assert.Equal(t, "Ошибка!", cfg.Mercury.Controls.ErrorMarker)
	assert.Equal(t, "\u00a0Соединить\u00a0", cfg.Mercury.Controls.ConnectButton)
	require.Len(t, cfg.Mercury.ReadingKinds, 2)
	assert.Equal(t, "previous_day", cfg.Mercury.ReadingKinds[0].Name)
	assert.Equal(t, 5.0, cfg.Mercury.Poll.IntervalSec)
	assert.Equal(t, 120, cfg.Mercury.Poll.MaxAttempts)
	assert.Equal(t, SuccessAttempted, cfg.Persistence.SuccessPolicy)
	assert.Equal(t, "scan", cfg.BTCTools.FilePrefix)
}

func TestParseConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		wantErr string
	}{
		{"bad start time", [2]string{`"9:30"`, `"24:00"`}, "start_time"},
		{"poll interval too large", [2]string{"poll_interval_sec: 30", "poll_interval_sec: 86401"}, "poll_interval_sec"},
		{"negative poll interval", [2]string{"poll_interval_sec: 30", "poll_interval_sec: -1"}, "poll_interval_sec"},
		{"unknown program", [2]string{"btctools: false", "notepad: true"}, "unknown program"},
		{"bad launch type", [2]string{"launch_type: manual", "launch_type: remote"}, "launch_type"},
		{"no meters", [2]string{`meter_indexes: [38, 39, "40"]`, "meter_indexes: []"}, "meter_indexes"},
		{"bad policy", [2]string{"excel:", "persistence:\n  success_policy: never\nexcel:"}, "success_policy"},
		{"negative max attempts", [2]string{"excel:", "btctools:\n  poll:\n    max_attempts: -1\nexcel:"}, "btctools.poll"},
		{"columns inverted", [2]string{"meter_index_col_last: 11", "meter_index_col_last: 1"}, "meter_index_col_last"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := strings.Replace(sampleConfig, tt.replace[0], tt.replace[1], 1)
			_, err := ParseConfig([]byte(data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseConfig_ExplicitZeroKept(t *testing.T) {
	data := strings.Replace(sampleConfig, "poll_interval_sec: 30", "poll_interval_sec: 0", 1)
	data = strings.Replace(data, `  notepad_data_path: 'C:\data\meters.txt'`, `  notepad_data_path: 'C:\data\meters.txt'
  read_settle_sec: 0
  dialog_settle_sec: 0
  poll:
    max_attempts: 0`, 1)

	cfg, err := ParseConfig([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Schedule.PollIntervalSec)
	assert.Equal(t, 0, cfg.Mercury.Poll.MaxAttempts, "0 means unbounded")
	assert.Equal(t, 5.0, cfg.Mercury.Poll.IntervalSec, "absent key keeps its default")
	assert.Zero(t, cfg.Mercury.ReadSettleSec)
	assert.Zero(t, cfg.Mercury.DialogSettleSec)
	assert.Equal(t, 120, cfg.BTCTools.Poll.MaxAttempts)
}

func TestParseConfig_RejectsNonScalarMeterID(t *testing.T) {
	data := strings.Replace(sampleConfig, `meter_indexes: [38, 39, "40"]`, "meter_indexes: [[38]]", 1)
	_, err := ParseConfig([]byte(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meter id must be a scalar")
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meterbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9:30", cfg.Schedule.StartTime)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "state", "scheduler.yaml"), cfg.Schedule.StateFile)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "state", "history.db"), cfg.History.DBPath)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfig_ResolvePaths(t *testing.T) {
	base := t.TempDir()
	abs := filepath.Join(base, "elsewhere", "meterbot.lock")

	cfg := Config{}
	cfg.Schedule.StateFile = "state/s.yaml"
	cfg.Schedule.LockFile = abs
	cfg.Mercury.DataPath = "data/readings.xlsx"

	got := cfg.ResolvePaths(base)
	assert.Equal(t, filepath.Join(base, "state", "s.yaml"), got.Schedule.StateFile)
	assert.Equal(t, abs, got.Schedule.LockFile)
	assert.Empty(t, got.Metrics.TextfilePath)
	assert.Equal(t, "data/readings.xlsx", got.Mercury.DataPath)
}

func TestConfig_App(t *testing.T) {
	cfg, err := ParseConfig([]byte(sampleConfig))
	require.NoError(t, err)

	app, ok := cfg.App(ProgramMercury)
	require.True(t, ok)
	assert.Equal(t, "manual", app.LaunchType)

	_, ok = cfg.App("notepad")
	assert.False(t, ok)
}
