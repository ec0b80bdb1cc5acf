// Package mercury automates the electricity meter application: it connects
// to each configured meter in turn, reads its values and persists them.
package mercury

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/poll"
	"github.com/gridops/meterbot/internal/store"
	"github.com/gridops/meterbot/internal/uia"
)

// ErrNoData means no meter produced a single value this cycle.
var ErrNoData = errors.New("mercury data not found or is incorrect")

// Persister stores a cycle's readings.
type Persister interface {
	Write(ctx context.Context, set *model.ReadingSet) (store.Report, error)
}

type Worker struct {
	cfg     model.MercuryConfig
	policy  model.SuccessPolicy
	persist Persister
	log     *logging.Logger
}

func New(cfg model.MercuryConfig, policy model.SuccessPolicy, persist Persister, log *logging.Logger) *Worker {
	return &Worker{cfg: cfg, policy: policy, persist: persist, log: log}
}

// Work reads every meter and persists the result. A nil error means the
// program counts as successful under the configured success policy.
func (w *Worker) Work(ctx context.Context, app uia.App) error {
	set, readErr := w.Read(ctx, app)
	if set.Empty() {
		if readErr != nil {
			return readErr
		}
		w.log.Errorf("%v", ErrNoData)
		return ErrNoData
	}
	if readErr != nil {
		// Meters read before the abort are still saved.
		if _, err := w.persist.Write(context.WithoutCancel(ctx), set); err != nil {
			w.log.Errorf("partial readings not persisted: %v", err)
		}
		return readErr
	}

	rep, err := w.persist.Write(ctx, set)
	switch w.policy {
	case model.SuccessStructured:
		if !rep.Structured() {
			if cause := errors.Join(rep.PrimaryErr, err); cause != nil {
				return fmt.Errorf("spreadsheet not updated: %w", cause)
			}
			return errors.New("spreadsheet not updated")
		}
	case model.SuccessPersisted:
		if err != nil {
			return fmt.Errorf("readings not persisted: %w", err)
		}
	default:
		if err != nil {
			w.log.Errorf("readings not persisted: %v", err)
		}
	}
	return nil
}

// Read collects a reading for every configured meter, in order. A meter
// that cannot be reached keeps its slot with an empty reading. Only
// cancellation or a terminated application abort the read; the set then
// holds the meters completed so far and is returned with the error.
func (w *Worker) Read(ctx context.Context, app uia.App) (*model.ReadingSet, error) {
	dlg := app.Dialog(w.cfg.Controls.Dialog)
	set := model.NewReadingSet()
	for _, id := range w.cfg.MeterIndexes {
		r, err := w.readMeter(ctx, dlg, id)
		if err != nil {
			if fatal(ctx, err) {
				w.log.Errorf("meter=%s read aborted: %v", id, err)
				return set, err
			}
			w.log.Warnf("meter=%s read failed: %v", id, err)
		}
		set.Add(id, r)
		w.log.Infof("meter=%s values=%d", id, len(r))
	}
	return set, nil
}

func fatal(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, uia.ErrAppTerminated)
}

func (w *Worker) readMeter(ctx context.Context, dlg uia.Dialog, id model.MeterID) (model.MeterReading, error) {
	connected, err := w.connect(ctx, dlg, id)
	if err != nil || !connected {
		return model.MeterReading{}, err
	}

	c := w.cfg.Controls
	if err := dlg.Click(ctx, c.ValuesLink); err != nil {
		return model.MeterReading{}, err
	}
	r := model.MeterReading{}
	for _, kind := range w.cfg.ReadingKinds {
		if err := dlg.Click(ctx, kind.Button); err != nil {
			return r, err
		}
		if err := dlg.Click(ctx, c.ReadButton); err != nil {
			return r, err
		}
		if err := uia.Settle(ctx, uia.Seconds(w.cfg.ReadSettleSec)); err != nil {
			return r, err
		}
		text, err := dlg.Text(ctx, kind.Field)
		if err != nil {
			return r, err
		}
		v, err := ParseValue(text)
		if err != nil {
			w.log.Warnf("meter=%s kind=%s can't get value %q: %v", id, kind.Name, text, err)
			continue
		}
		r[model.ReadingKind(kind.Name)] = v
	}
	return r, nil
}

// connect opens the connection parameters, enters the meter and waits for
// the link. It returns false when the application reported an error or the
// wait ran out.
func (w *Worker) connect(ctx context.Context, dlg uia.Dialog, id model.MeterID) (bool, error) {
	c := w.cfg.Controls
	if err := dlg.Click(ctx, c.ConnectionLink); err != nil {
		return false, err
	}
	if err := uia.Settle(ctx, uia.Seconds(w.cfg.DialogSettleSec)); err != nil {
		return false, err
	}
	if err := dlg.SetText(ctx, c.MeterField, ""); err != nil {
		return false, err
	}
	if err := dlg.TypeText(ctx, c.MeterField, string(id)); err != nil {
		return false, err
	}
	level, err := dlg.Text(ctx, c.AccessLevelField)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(level) == "" {
		if err := dlg.SetText(ctx, c.AccessLevelField, w.cfg.AccessLevel); err != nil {
			return false, err
		}
	}
	if err := dlg.Click(ctx, c.ConnectButton); err != nil {
		return false, err
	}

	st, err := poll.Wait(ctx, dlg, poll.Spec{
		ProgressControl: c.ProgressField,
		ErrorMarker:     c.ErrorMarker,
		ConfirmControl:  c.ConfirmButton,
		Interval:        w.cfg.Poll.Interval(),
		MaxAttempts:     w.cfg.Poll.MaxAttempts,
	}, w.log.With("mercury.poll"))
	if err != nil {
		return false, err
	}
	if st != poll.Done {
		w.log.Warnf("meter=%s connection %s", id, st)
		return false, nil
	}
	return true, nil
}

// ParseValue parses a displayed reading, accepting a decimal comma.
func ParseValue(s string) (float64, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	return strconv.ParseFloat(s, 64)
}
