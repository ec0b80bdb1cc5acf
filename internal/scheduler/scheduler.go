// Package scheduler runs the automation cycle once a day at the configured
// start time and reloads the configuration when its file changes.
package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/runner"
	"github.com/gridops/meterbot/internal/statefile"
)

// CycleFunc runs one automation cycle with the given configuration.
type CycleFunc func(ctx context.Context, cfg model.Config) (runner.CycleResult, error)

type Scheduler struct {
	configPath string
	run        CycleFunc
	log        *logging.Logger
	now        func() time.Time
	load       func(path string) (model.Config, error)

	mu  sync.Mutex
	cfg model.Config

	cycles singleflight.Group
	wg     sync.WaitGroup
}

func New(configPath string, cfg model.Config, run CycleFunc, log *logging.Logger) *Scheduler {
	return &Scheduler{
		configPath: configPath,
		cfg:        cfg,
		run:        run,
		log:        log,
		now:        time.Now,
		load:       model.LoadConfig,
	}
}

// Config returns the configuration currently in effect.
func (s *Scheduler) Config() model.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Due reports whether the daily cycle should run at now: the start time has
// passed today and no cycle completed today yet.
func Due(cfg model.Config, st statefile.State, now time.Time) (bool, error) {
	hour, minute, err := cfg.StartClock()
	if err != nil {
		return false, err
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	return !now.Before(start) && st.LastRunDate != model.DateStamp(now), nil
}

// Tick runs the cycle if it is due. A tick that arrives while a cycle is
// in flight joins that cycle instead of starting another one.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	cfg := s.Config()
	st, err := statefile.Load(cfg.Schedule.StateFile, s.log)
	if err != nil {
		return false, err
	}
	due, err := Due(cfg, st, s.now())
	if err != nil || !due {
		return false, err
	}

	v, err, shared := s.cycles.Do("cycle", func() (any, error) {
		return s.runCycle(ctx, cfg)
	})
	if shared {
		s.log.Debugf("tick joined a running cycle")
	}
	return v.(bool), err
}

// runCycle re-checks the state before running, since a cycle that finished
// after this tick read the state has already covered today.
func (s *Scheduler) runCycle(ctx context.Context, cfg model.Config) (bool, error) {
	st, err := statefile.Load(cfg.Schedule.StateFile, s.log)
	if err != nil {
		return false, err
	}
	now := s.now()
	if due, err := Due(cfg, st, now); err != nil || !due {
		return false, err
	}
	today := model.DateStamp(now)
	res, err := s.run(ctx, cfg)
	if err != nil {
		return true, fmt.Errorf("cycle %s: %w", today, err)
	}
	st = statefile.State{
		LastRunDate:  today,
		LastCycleID:  res.ID,
		LastFailures: res.Failed.Names(),
	}
	if err := statefile.Save(cfg.Schedule.StateFile, st); err != nil {
		return true, fmt.Errorf("save state: %w", err)
	}
	return true, nil
}

// Run ticks until ctx is cancelled, then waits for an in-flight cycle.
func (s *Scheduler) Run(ctx context.Context) error {
	cfg := s.Config()
	s.log.Infof("program runs every day at %s; to change the start time edit schedule.start_time in %s",
		cfg.Schedule.StartTime, s.configPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	if s.configPath != "" {
		// Editors replace the file, so watch its directory.
		if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
			return fmt.Errorf("watch %s: %w", s.configPath, err)
		}
	}

	interval := tickInterval(cfg)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.tickAsync(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Infof("scheduler stopping, waiting for running cycle")
			s.wg.Wait()
			return nil
		case <-ticker.C:
			s.tickAsync(ctx)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !s.isConfigEvent(event) {
				continue
			}
			s.log.Debugf("fsnotify event=%s file=%s", event.Op, event.Name)
			if s.reload() {
				if next := tickInterval(s.Config()); next != interval {
					interval = next
					ticker.Reset(interval)
					s.log.Infof("poll interval changed to %s", interval)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Errorf("fsnotify error=%v", err)
		}
	}
}

func (s *Scheduler) tickAsync(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ran, err := s.Tick(ctx)
		if err != nil {
			s.log.Errorf("scheduled run: %v", err)
			return
		}
		if ran {
			s.log.Debugf("scheduled cycle finished")
		}
	}()
}

func (s *Scheduler) isConfigEvent(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
		return false
	}
	return filepath.Clean(e.Name) == filepath.Clean(s.configPath)
}

// reload swaps in the config file's new contents. An invalid file keeps
// the previous configuration.
func (s *Scheduler) reload() bool {
	cfg, err := s.load(s.configPath)
	if err != nil {
		s.log.Errorf("config reload rejected: %v", err)
		return false
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	s.log.Infof("config reloaded start_time=%s programs=%v", cfg.Schedule.StartTime, cfg.EnabledPrograms())
	return true
}

// tickInterval is poll_interval_sec with a floor of one second.
func tickInterval(cfg model.Config) time.Duration {
	if cfg.Schedule.PollIntervalSec < 1 {
		return time.Second
	}
	return time.Duration(cfg.Schedule.PollIntervalSec) * time.Second
}
