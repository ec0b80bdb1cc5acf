package model

// Defaults returns a complete configuration. Settings for which zero is a
// valid choice (intervals, attempt limits, settle delays) are only set here:
// the file is decoded over this value, so an explicit 0 is kept.
func Defaults() Config {
	var cfg Config
	cfg.Schedule.PollIntervalSec = 60
	cfg.UIA.LaunchSettleSec = 5
	cfg.Mercury.Poll = PollConfig{IntervalSec: 5, MaxAttempts: 120}
	cfg.Mercury.DialogSettleSec = 1
	cfg.Mercury.ReadSettleSec = 3
	cfg.BTCTools.Poll = PollConfig{IntervalSec: 5, MaxAttempts: 120}
	cfg.BTCTools.StartSettleSec = 5
	cfg.BTCTools.DialogSettleSec = 1
	cfg.Excel.CloseSettleSec = 3
	return ApplyDefaults(cfg)
}

// ApplyDefaults fills zero values with the settings of the known application
// versions. Control names follow the UI backend's best-match naming.
func ApplyDefaults(cfg Config) Config {
	if cfg.Schedule.StartTime == "" {
		cfg.Schedule.StartTime = "09:00"
	}
	if cfg.Schedule.StateFile == "" {
		cfg.Schedule.StateFile = "state/scheduler.yaml"
	}
	if cfg.Schedule.LockFile == "" {
		cfg.Schedule.LockFile = "state/meterbot.lock"
	}
	if cfg.Notifications.TokenEnv == "" {
		cfg.Notifications.TokenEnv = "TG_API"
	}
	if cfg.UIA.HelperPath == "" {
		cfg.UIA.HelperPath = "uia-helper.exe"
	}
	if cfg.UIA.FileBrowser == "" {
		cfg.UIA.FileBrowser = "explorer.exe"
	}
	if cfg.UIA.CommandTimeoutSec <= 0 {
		cfg.UIA.CommandTimeoutSec = 30
	}

	cfg.Mercury = mercuryDefaults(cfg.Mercury)
	cfg.BTCTools = btcToolsDefaults(cfg.BTCTools)

	if cfg.Excel.ProgramPath == "" {
		cfg.Excel.ProgramPath = "EXCEL.EXE"
	}
	if cfg.Excel.MeterIndexRow <= 0 {
		cfg.Excel.MeterIndexRow = 1
	}
	if cfg.Excel.MeterIndexColFirst <= 0 {
		cfg.Excel.MeterIndexColFirst = 2
	}
	if cfg.Excel.MeterIndexColLast <= 0 {
		cfg.Excel.MeterIndexColLast = 11
	}
	if cfg.Persistence.SuccessPolicy == "" {
		cfg.Persistence.SuccessPolicy = SuccessAttempted
	}
	if cfg.History.DBPath == "" {
		cfg.History.DBPath = "state/history.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = "logs/meterbot.log"
	}
	return cfg
}

func mercuryDefaults(m MercuryConfig) MercuryConfig {
	if m.LaunchType == "" {
		m.LaunchType = "normal"
	}
	if m.AccessLevel == "" {
		m.AccessLevel = "111111"
	}
	if len(m.ReadingKinds) == 0 {
		m.ReadingKinds = []ReadingKindConfig{
			{Name: string(KindPreviousDay), Button: "RadioButton10", Field: "Static74"},
			{Name: string(KindResetEnergy), Button: "RadioButton0", Field: "Static86"},
		}
	}
	c := &m.Controls
	setDefault(&c.Dialog, "Dialog")
	setDefault(&c.ConnectionLink, "Параметры связиHyperlink")
	setDefault(&c.MeterField, "СчетчикEdit")
	setDefault(&c.AccessLevelField, "Уровень доступаEdit")
	setDefault(&c.ConnectButton, "\u00a0Соединить\u00a0")
	setDefault(&c.ProgressField, "Static3")
	setDefault(&c.ErrorMarker, "Ошибка!")
	setDefault(&c.ConfirmButton, "OKButton")
	setDefault(&c.ValuesLink, "Hyperlink9")
	setDefault(&c.ReadButton, "Button1")
	return m
}

func btcToolsDefaults(b BTCToolsConfig) BTCToolsConfig {
	if b.LaunchType == "" {
		b.LaunchType = "normal"
	}
	if b.DataFolder == "" {
		b.DataFolder = "BTC_Tool_SCAN"
	}
	if b.FilePrefix == "" {
		b.FilePrefix = "scan"
	}
	c := &b.Controls
	setDefault(&c.Dialog, "Dialog")
	setDefault(&c.SessionPrompt, "NoButton")
	setDefault(&c.ScanButton, "ScanButton")
	setDefault(&c.ProgressField, "Progress")
	setDefault(&c.DoneMarker, "Dialog")
	setDefault(&c.ConfirmButton, "OKButton")
	setDefault(&c.ExportHeader, "Header5")
	setDefault(&c.ExportButton, "ExportButton")
	setDefault(&c.FileNameField, "ComboBox0")
	setDefault(&c.SaveButton, "SaveButton")
	setDefault(&c.OverwriteYes, "YesButton")
	setDefault(&c.OverwriteOK, "OkButton")
	return b
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
