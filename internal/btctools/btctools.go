// Package btctools automates the network scanner: scan the miner network,
// then export the results to a dated file in the data folder.
package btctools

import (
	"context"
	"fmt"
	"time"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/poll"
	"github.com/gridops/meterbot/internal/uia"
)

// Phase names the step of the scan sequence that failed.
type Phase string

const (
	PhaseLaunchPrompt Phase = "launch_prompt"
	PhaseScan         Phase = "scan"
	PhaseExport       Phase = "export"
	PhaseSave         Phase = "save"
)

// PhaseError tags a failure with the phase it happened in.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("btctools %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

func phaseErr(p Phase, err error) error {
	if err == nil {
		return nil
	}
	return &PhaseError{Phase: p, Err: err}
}

type Worker struct {
	cfg model.BTCToolsConfig
	log *logging.Logger
	now func() time.Time
}

func New(cfg model.BTCToolsConfig, log *logging.Logger) *Worker {
	return &Worker{cfg: cfg, log: log, now: time.Now}
}

// Work runs the whole sequence. Any failure is returned as a *PhaseError.
func (w *Worker) Work(ctx context.Context, app uia.App) error {
	dlg := app.Dialog(w.cfg.Controls.Dialog)
	if err := phaseErr(PhaseLaunchPrompt, w.dismissSessionPrompt(ctx, dlg)); err != nil {
		return err
	}
	if err := phaseErr(PhaseScan, w.scan(ctx, dlg)); err != nil {
		return err
	}
	if err := phaseErr(PhaseExport, w.export(ctx, dlg)); err != nil {
		return err
	}
	// The save dialog is a new window under the same name.
	save := app.Dialog(w.cfg.Controls.Dialog)
	if err := phaseErr(PhaseSave, w.save(ctx, save)); err != nil {
		return err
	}
	w.log.Infof("scan exported file=%s", w.FileName())
	return nil
}

// FileName is the export name for today, e.g. scan_07_03.
func (w *Worker) FileName() string {
	return w.cfg.FilePrefix + model.DaySuffix(w.now())
}

func (w *Worker) dismissSessionPrompt(ctx context.Context, dlg uia.Dialog) error {
	if err := uia.Settle(ctx, uia.Seconds(w.cfg.StartSettleSec)); err != nil {
		return err
	}
	c := w.cfg.Controls
	present, err := dlg.Exists(ctx, c.SessionPrompt)
	if err != nil {
		return err
	}
	if !present {
		return nil
	}
	w.log.Infof("dismissing previous session prompt")
	return dlg.Click(ctx, c.SessionPrompt)
}

func (w *Worker) scan(ctx context.Context, dlg uia.Dialog) error {
	c := w.cfg.Controls
	if err := dlg.Click(ctx, c.ScanButton); err != nil {
		return err
	}
	st, err := poll.Wait(ctx, dlg, poll.Spec{
		ProgressControl: c.ProgressField,
		SuccessMarker:   c.DoneMarker,
		ConfirmControl:  c.ConfirmButton,
		Interval:        w.cfg.Poll.Interval(),
		MaxAttempts:     w.cfg.Poll.MaxAttempts,
	}, w.log.With("btctools.poll"))
	if err != nil {
		return err
	}
	if st != poll.Done {
		return fmt.Errorf("scan %s", st)
	}
	return uia.Settle(ctx, uia.Seconds(w.cfg.DialogSettleSec))
}

func (w *Worker) export(ctx context.Context, dlg uia.Dialog) error {
	c := w.cfg.Controls
	if err := dlg.Click(ctx, c.ExportHeader); err != nil {
		return err
	}
	present, err := dlg.Exists(ctx, c.ExportButton)
	if err != nil {
		return err
	}
	if present {
		if err := dlg.Click(ctx, c.ExportButton); err != nil {
			return err
		}
	}
	return uia.Settle(ctx, uia.Seconds(w.cfg.DialogSettleSec))
}

func (w *Worker) save(ctx context.Context, dlg uia.Dialog) error {
	c := w.cfg.Controls
	if err := dlg.DoubleClick(ctx, w.cfg.DataFolder); err != nil {
		return fmt.Errorf("open data folder: %w", err)
	}
	if err := dlg.TypeText(ctx, c.FileNameField, w.FileName()); err != nil {
		return err
	}
	if err := dlg.Click(ctx, c.SaveButton); err != nil {
		return err
	}
	return w.confirmOverwrite(ctx, dlg)
}

// confirmOverwrite answers an overwrite prompt if one appeared, preferring Yes.
func (w *Worker) confirmOverwrite(ctx context.Context, dlg uia.Dialog) error {
	c := w.cfg.Controls
	for _, button := range []string{c.OverwriteYes, c.OverwriteOK} {
		present, err := dlg.Exists(ctx, button)
		if err != nil {
			return err
		}
		if present {
			return dlg.Click(ctx, button)
		}
	}
	return nil
}
