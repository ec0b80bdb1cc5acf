package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gridops/meterbot/internal/btctools"
	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/uia"
)

type Runner struct {
	registry Registry
	cfg      model.Config
	backend  uia.Backend
	log      *logging.Logger
	now      func() time.Time
}

func New(registry Registry, cfg model.Config, backend uia.Backend, log *logging.Logger) *Runner {
	return &Runner{registry: registry, cfg: cfg, backend: backend, log: log, now: time.Now}
}

// Run automates program p once. Launch and worker failures are reported in
// the Outcome; only an unknown program is returned as an error.
func (r *Runner) Run(ctx context.Context, p model.ProgramID) (model.Outcome, error) {
	log := r.log.With(string(p))
	out := model.Outcome{Program: p, StartedAt: r.now()}
	finish := func(detail string) model.Outcome {
		out.Detail = detail
		out.FinishedAt = r.now()
		return out
	}

	factory, err := r.registry.Lookup(p)
	if err != nil {
		return finish(err.Error()), err
	}
	appCfg, _ := r.cfg.App(p)
	worker, err := factory(Env{Config: r.cfg, Backend: r.backend, Log: log})
	if err != nil {
		log.Errorf("can't create worker: %v", err)
		return finish(err.Error()), nil
	}
	launcher, err := uia.NewLauncher(appCfg.LaunchType, r.backend, r.cfg.UIA.FileBrowser, time.Duration(r.cfg.UIA.LaunchSettleSec)*time.Second)
	if err != nil {
		log.Errorf("can't run application module: %v", err)
		return finish(err.Error()), nil
	}

	app, err := launcher.Start(ctx, appCfg.ProgramPath)
	if err != nil {
		log.Errorf("can't run application module: %v", err)
		return finish(fmt.Sprintf("launch: %v", err)), nil
	}
	out.Launched = true
	defer func() {
		if err := app.Kill(); err != nil {
			log.Warnf("kill: %v", err)
		}
		log.Infof("%s completed", p)
	}()

	log.Infof("%s is running", p)
	if err := worker.Work(ctx, app); err != nil {
		var pe *btctools.PhaseError
		if errors.As(err, &pe) {
			log.Errorf("failed phase=%s: %v", pe.Phase, pe.Err)
		} else {
			log.Errorf("failed: %v", err)
		}
		return finish(err.Error()), nil
	}
	out.Success = true
	return finish(""), nil
}
