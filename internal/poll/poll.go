// Package poll waits for a long-running dialog operation to finish by
// watching a progress field and optional marker controls.
package poll

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/uia"
)

// Status is the terminal state of a wait.
type Status int

const (
	Done Status = iota
	Failed
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Spec describes what to watch. Empty marker names are not checked.
type Spec struct {
	ProgressControl string
	SuccessMarker   string
	ErrorMarker     string
	ConfirmControl  string // clicked to dismiss a detected marker
	Interval        time.Duration
	MaxAttempts     int // 0 means unbounded
}

// Wait polls dlg until the operation completes, fails or runs out of
// attempts. Each attempt sleeps Interval first. Markers are checked before
// progress, the error marker first. A non-nil error means the dialog itself
// could not be read or ctx was cancelled.
func Wait(ctx context.Context, dlg uia.Dialog, spec Spec, log *logging.Logger) (Status, error) {
	for attempt := 1; spec.MaxAttempts <= 0 || attempt <= spec.MaxAttempts; attempt++ {
		if err := uia.Settle(ctx, spec.Interval); err != nil {
			return TimedOut, err
		}

		if spec.ErrorMarker != "" {
			present, err := dlg.Exists(ctx, spec.ErrorMarker)
			if err != nil {
				return Failed, fmt.Errorf("check %s: %w", spec.ErrorMarker, err)
			}
			if present {
				log.Debugf("error marker present attempt=%d", attempt)
				return Failed, dismiss(ctx, dlg, spec.ConfirmControl)
			}
		}

		if spec.SuccessMarker != "" {
			present, err := dlg.Exists(ctx, spec.SuccessMarker)
			if err != nil {
				return Failed, fmt.Errorf("check %s: %w", spec.SuccessMarker, err)
			}
			if present {
				log.Debugf("success marker present attempt=%d", attempt)
				return Done, dismiss(ctx, dlg, spec.ConfirmControl)
			}
		}

		text, err := dlg.Text(ctx, spec.ProgressControl)
		if err != nil {
			return Failed, fmt.Errorf("read %s: %w", spec.ProgressControl, err)
		}
		progress := ParsePercent(text)
		log.Debugf("progress=%d attempt=%d", progress, attempt)
		if progress >= 100 {
			return Done, nil
		}
	}
	log.Warnf("no completion after max_attempts=%d", spec.MaxAttempts)
	return TimedOut, nil
}

func dismiss(ctx context.Context, dlg uia.Dialog, control string) error {
	if control == "" {
		return nil
	}
	if err := dlg.Click(ctx, control); err != nil {
		return fmt.Errorf("dismiss with %s: %w", control, err)
	}
	return nil
}

// ParsePercent keeps only the digits of s. Empty or unparsable text is 0.
func ParsePercent(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0
	}
	return n
}
