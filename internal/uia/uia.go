// Package uia is the boundary to the Windows UI automation layer: launching
// desktop programs and driving the controls of their dialogs.
package uia

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrAppTerminated is returned by any operation on an application that was killed.
	ErrAppTerminated = errors.New("application terminated")
	// ErrControlNotFound is returned when a dialog or control cannot be resolved.
	ErrControlNotFound = errors.New("control not found")
)

// Backend starts or attaches to desktop applications.
type Backend interface {
	// Launch starts a command line and returns a handle to the new process.
	Launch(ctx context.Context, cmdline string) (App, error)
	// Connect attaches to a running process by executable path or file name.
	Connect(ctx context.Context, target string) (App, error)
}

// App is a handle to a running application.
type App interface {
	// Dialog resolves a top-level window by its title or automation name.
	// Resolution is lazy: errors surface on the first control operation.
	Dialog(name string) Dialog
	// Kill terminates the process. Killing an already dead process is not an error.
	Kill() error
}

// Dialog drives the controls of one window. An empty control name addresses
// the window itself.
type Dialog interface {
	Click(ctx context.Context, control string) error
	DoubleClick(ctx context.Context, control string) error
	// SetText replaces the control's text in one step.
	SetText(ctx context.Context, control, text string) error
	// TypeText sends keystrokes to the control.
	TypeText(ctx context.Context, control, text string) error
	Text(ctx context.Context, control string) (string, error)
	Exists(ctx context.Context, control string) (bool, error)
}

// Settle waits d or until ctx is done. UI steps use it between actions that
// need the application to redraw.
func Settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Seconds converts a fractional config value to a duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
