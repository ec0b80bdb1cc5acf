package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridops/meterbot/internal/history"
	"github.com/gridops/meterbot/internal/lock"
	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/metrics"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/notify"
	"github.com/gridops/meterbot/internal/runner"
	"github.com/gridops/meterbot/internal/scheduler"
	"github.com/gridops/meterbot/internal/uia"
)

// session holds what one schedule/once/debug invocation owns.
type session struct {
	configPath string
	cfg        model.Config
	log        *logging.Logger
	logFile    io.Closer
	lock       *lock.FileLock
	history    *history.Store
	metrics    *metrics.Recorder
}

func openSession(configPath string, tee, debug bool) (*session, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	w, closer, err := logging.OpenFile(cfg.Logging.File, tee)
	if err != nil {
		return nil, err
	}
	level := logging.ParseLogLevel(cfg.Logging.Level)
	if debug {
		level = logging.LogLevelDebug
	}
	return &session{
		configPath: configPath,
		cfg:        cfg,
		log:        logging.New(w, level, "meterbot"),
		logFile:    closer,
	}, nil
}

func (s *session) acquire() error {
	fl := lock.NewFileLock(s.cfg.Schedule.LockFile)
	if err := fl.TryLock(); err != nil {
		return err
	}
	s.lock = fl
	return nil
}

// openStores opens run history and metrics. Both are optional: a history
// database that cannot be opened is logged and skipped.
func (s *session) openStores(ctx context.Context) {
	if path := s.cfg.History.DBPath; path != "" {
		st, err := history.Open(ctx, path)
		if err != nil {
			s.log.Warnf("run history disabled: %v", err)
		} else {
			s.history = st
		}
	}
	s.metrics = metrics.NewRecorder(s.cfg.Metrics.TextfilePath)
}

func (s *session) Close() {
	if s.history != nil {
		if err := s.history.Close(); err != nil {
			s.log.Warnf("close history: %v", err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.log.Warnf("release lock: %v", err)
		}
	}
	if s.logFile != nil {
		s.logFile.Close() //nolint:errcheck
	}
}

func (s *session) scheduler() *scheduler.Scheduler {
	return scheduler.New(s.configPath, s.cfg, s.cycleFunc(false), s.log.With("scheduler"))
}

// cycleFunc builds a fresh cycle from cfg for every run, so a reloaded
// config takes effect on the next cycle.
func (s *session) cycleFunc(skipNotify bool) scheduler.CycleFunc {
	return func(ctx context.Context, cfg model.Config) (runner.CycleResult, error) {
		backend := uia.NewBridge(cfg.UIA.HelperPath, time.Duration(cfg.UIA.CommandTimeoutSec)*time.Second)
		c := &runner.Cycle{
			Runner:     runner.New(runner.DefaultRegistry(), cfg, backend, s.log.With("runner")),
			Programs:   cfg.EnabledPrograms(),
			Notifier:   notify.NewNotifier(cfg.Notifications.TgRecipients, cfg.Notifications.TokenEnv, s.log.With("notify")),
			NewID:      history.NewCycleID,
			SkipNotify: skipNotify,
			Log:        s.log.With("cycle"),
		}
		if s.history != nil {
			c.History = s.history
		}
		if s.metrics != nil {
			c.Metrics = s.metrics
		}
		return c.Execute(ctx)
	}
}

// waitSignals cancels ctx on the first SIGINT/SIGTERM. A second signal
// exits immediately.
func waitSignals(cancel context.CancelFunc, log *logging.Logger) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigCh
	log.Infof("received signal=%s, stopping after the current step", sig)
	cancel()

	<-sigCh
	log.Warnf("received second signal, forcing exit")
	os.Exit(1)
}
