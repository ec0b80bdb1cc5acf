// Package runner launches each enabled program, hands it to its worker and
// guarantees the program is terminated afterwards.
package runner

import (
	"context"
	"fmt"

	"github.com/gridops/meterbot/internal/btctools"
	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/mercury"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/store"
	"github.com/gridops/meterbot/internal/uia"
)

// Worker automates one running program. A nil error is a success.
type Worker interface {
	Work(ctx context.Context, app uia.App) error
}

// Env is what a Factory may build a worker from.
type Env struct {
	Config  model.Config
	Backend uia.Backend
	Log     *logging.Logger
}

type Factory func(env Env) (Worker, error)

// Registry maps every known program to its worker.
type Registry map[model.ProgramID]Factory

// DefaultRegistry returns the workers for all KnownPrograms.
func DefaultRegistry() Registry {
	return Registry{
		model.ProgramMercury:  newMercuryWorker,
		model.ProgramBTCTools: newBTCToolsWorker,
	}
}

// Lookup resolves p. Unknown programs are a configuration error.
func (r Registry) Lookup(p model.ProgramID) (Factory, error) {
	f, ok := r[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownProgram, p)
	}
	return f, nil
}

func newMercuryWorker(env Env) (Worker, error) {
	cfg := env.Config
	kinds := cfg.Mercury.Kinds()
	chain := &store.Chain{Log: env.Log.With("store")}
	if cfg.Mercury.DataPath != "" {
		closer := store.ExcelCloser{
			Backend:     env.Backend,
			ProgramPath: cfg.Excel.ProgramPath,
			Settle:      uia.Seconds(cfg.Excel.CloseSettleSec),
		}
		layout := store.SheetLayout{
			HeaderRow: cfg.Excel.MeterIndexRow,
			ColFirst:  cfg.Excel.MeterIndexColFirst,
			ColLast:   cfg.Excel.MeterIndexColLast,
		}
		chain.Primary = store.NewSheetWriter(cfg.Mercury.DataPath, kinds, layout, closer, env.Log.With("store.sheet"))
	}
	if cfg.Mercury.NotepadDataPath != "" {
		chain.Fallback = store.NewFlatWriter(cfg.Mercury.NotepadDataPath, kinds)
	}
	if chain.Primary == nil && chain.Fallback == nil {
		return nil, fmt.Errorf("mercury: no output path configured")
	}
	return mercury.New(cfg.Mercury, cfg.Persistence.SuccessPolicy, chain, env.Log), nil
}

func newBTCToolsWorker(env Env) (Worker, error) {
	return btctools.New(env.Config.BTCTools, env.Log), nil
}
