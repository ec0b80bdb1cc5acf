package uia

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Exit codes of the automation helper.
const (
	exitControlNotFound = 3
	exitProcessGone     = 4
)

// Bridge is a Backend that drives a UI automation helper executable, one
// helper invocation per operation:
//
//	launch <cmdline>                         -> prints pid
//	connect <target>                         -> prints pid
//	click|dclick <pid> <dialog> <control>
//	settext|type <pid> <dialog> <control> <text>
//	text <pid> <dialog> <control>            -> prints text
//	exists <pid> <dialog> <control>          -> prints true|false
//	kill <pid>
type Bridge struct {
	helper  string
	timeout time.Duration
	exec    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewBridge returns a Bridge calling helper with a per-command timeout.
func NewBridge(helper string, timeout time.Duration) *Bridge {
	return &Bridge{helper: helper, timeout: timeout, exec: execHelper}
}

func execHelper(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

func (b *Bridge) Launch(ctx context.Context, cmdline string) (App, error) {
	return b.attach(ctx, "launch", cmdline)
}

func (b *Bridge) Connect(ctx context.Context, target string) (App, error) {
	return b.attach(ctx, "connect", target)
}

func (b *Bridge) attach(ctx context.Context, verb, target string) (App, error) {
	out, err := b.output(ctx, verb, target)
	if err != nil {
		return nil, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return nil, fmt.Errorf("uia %s: unexpected pid %q", verb, strings.TrimSpace(out))
	}
	return &bridgeApp{bridge: b, pid: strconv.Itoa(pid)}, nil
}

func (b *Bridge) run(ctx context.Context, args ...string) error {
	_, err := b.output(ctx, args...)
	return err
}

func (b *Bridge) output(ctx context.Context, args ...string) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	out, err := b.exec(ctx, b.helper, args...)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			if stderr := strings.TrimSpace(string(exitErr.Stderr)); stderr != "" {
				msg = stderr
			}
			switch exitErr.ExitCode() {
			case exitControlNotFound:
				return "", fmt.Errorf("uia %s: %w: %s", args[0], ErrControlNotFound, msg)
			case exitProcessGone:
				return "", fmt.Errorf("uia %s: %w: %s", args[0], ErrAppTerminated, msg)
			}
		}
		return "", fmt.Errorf("uia %s: %w: %s", args[0], err, msg)
	}
	return string(out), nil
}

type bridgeApp struct {
	bridge *Bridge
	pid    string
	killed atomic.Bool
}

func (a *bridgeApp) Dialog(name string) Dialog {
	return &bridgeDialog{app: a, name: name}
}

func (a *bridgeApp) Kill() error {
	if a.killed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := a.bridge.run(ctx, "kill", a.pid)
	if errors.Is(err, ErrAppTerminated) {
		return nil
	}
	return err
}

type bridgeDialog struct {
	app  *bridgeApp
	name string
}

func (d *bridgeDialog) do(ctx context.Context, verb, control string, extra ...string) (string, error) {
	if d.app.killed.Load() {
		return "", ErrAppTerminated
	}
	args := append([]string{verb, d.app.pid, d.name, control}, extra...)
	return d.app.bridge.output(ctx, args...)
}

func (d *bridgeDialog) Click(ctx context.Context, control string) error {
	_, err := d.do(ctx, "click", control)
	return err
}

func (d *bridgeDialog) DoubleClick(ctx context.Context, control string) error {
	_, err := d.do(ctx, "dclick", control)
	return err
}

func (d *bridgeDialog) SetText(ctx context.Context, control, text string) error {
	_, err := d.do(ctx, "settext", control, text)
	return err
}

func (d *bridgeDialog) TypeText(ctx context.Context, control, text string) error {
	_, err := d.do(ctx, "type", control, text)
	return err
}

func (d *bridgeDialog) Text(ctx context.Context, control string) (string, error) {
	out, err := d.do(ctx, "text", control)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\r\n"), nil
}

func (d *bridgeDialog) Exists(ctx context.Context, control string) (bool, error) {
	out, err := d.do(ctx, "exists", control)
	if errors.Is(err, ErrControlNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "true", nil
}
