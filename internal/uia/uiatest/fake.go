// Package uiatest provides an in-memory uia.Backend scripted per control.
package uiatest

import (
	"context"
	"fmt"
	"sync"

	"github.com/gridops/meterbot/internal/uia"
)

// Backend is a fake uia.Backend. Launching an unregistered command line
// creates a blank App; connecting to an unregistered target fails.
type Backend struct {
	mu         sync.Mutex
	apps       map[string]*App
	launchErrs map[string]error
	launched   []string
	connected  []string
}

func NewBackend() *Backend {
	return &Backend{apps: make(map[string]*App), launchErrs: make(map[string]error)}
}

// Register makes app reachable by Launch or Connect with target.
func (b *Backend) Register(target string, app *App) *App {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.apps[target] = app
	return app
}

// FailLaunch makes Launch(target) return err.
func (b *Backend) FailLaunch(target string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.launchErrs[target] = err
}

func (b *Backend) Launch(ctx context.Context, cmdline string) (uia.App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.launched = append(b.launched, cmdline)
	if err := b.launchErrs[cmdline]; err != nil {
		return nil, err
	}
	app, ok := b.apps[cmdline]
	if !ok {
		app = NewApp()
		b.apps[cmdline] = app
	}
	return app, nil
}

func (b *Backend) Connect(ctx context.Context, target string) (uia.App, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.connected = append(b.connected, target)
	app, ok := b.apps[target]
	if !ok {
		return nil, fmt.Errorf("connect %s: %w", target, uia.ErrControlNotFound)
	}
	return app, nil
}

func (b *Backend) Launched() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.launched...)
}

func (b *Backend) Connected() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.connected...)
}

// App is a fake application holding named dialogs.
type App struct {
	mu      sync.Mutex
	dialogs map[string]*Dialog
	kills   int
}

func NewApp() *App {
	return &App{dialogs: make(map[string]*Dialog)}
}

// D returns the named dialog, creating it on first use.
func (a *App) D(name string) *Dialog {
	a.mu.Lock()
	defer a.mu.Unlock()
	d, ok := a.dialogs[name]
	if !ok {
		d = newDialog(a)
		a.dialogs[name] = d
	}
	return d
}

func (a *App) Dialog(name string) uia.Dialog {
	a.mu.Lock()
	d, ok := a.dialogs[name]
	a.mu.Unlock()
	if !ok {
		return missingDialog{app: a, name: name}
	}
	return d
}

func (a *App) Kill() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.kills++
	return nil
}

// Kills reports how many times Kill was called.
func (a *App) Kills() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.kills
}

func (a *App) terminated() bool {
	return a.Kills() > 0
}

// Dialog is a fake window. Controls must be added before use; operations
// on unknown controls return uia.ErrControlNotFound.
type Dialog struct {
	app *App

	mu      sync.Mutex
	present map[string]bool
	texts   map[string][]string
	hooks   map[string]func(*Dialog)
	errs    map[string]error
	actions []string
}

func newDialog(app *App) *Dialog {
	return &Dialog{
		app:     app,
		present: make(map[string]bool),
		texts:   make(map[string][]string),
		hooks:   make(map[string]func(*Dialog)),
		errs:    make(map[string]error),
	}
}

// Add makes controls present with empty text.
func (d *Dialog) Add(controls ...string) *Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range controls {
		d.present[c] = true
	}
	return d
}

// Remove makes a control disappear.
func (d *Dialog) Remove(control string) *Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.present, control)
	return d
}

// Texts makes control present and scripts the values returned by successive
// Text calls. The last value repeats.
func (d *Dialog) Texts(control string, values ...string) *Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present[control] = true
	d.texts[control] = append([]string(nil), values...)
	return d
}

// OnClick runs fn (with the dialog unlocked) after control is clicked.
func (d *Dialog) OnClick(control string, fn func(*Dialog)) *Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present[control] = true
	d.hooks[control] = fn
	return d
}

// Fail makes every operation on control return err.
func (d *Dialog) Fail(control string, err error) *Dialog {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.present[control] = true
	d.errs[control] = err
	return d
}

// Actions returns the recorded operations, e.g. "click OKButton" or
// "type СчетчикEdit=38".
func (d *Dialog) Actions() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.actions...)
}

// CurrentText returns the value a Text call would return next, without consuming it.
func (d *Dialog) CurrentText(control string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if v := d.texts[control]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func (d *Dialog) check(ctx context.Context, control string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.app.terminated() {
		return uia.ErrAppTerminated
	}
	if err := d.errs[control]; err != nil {
		return err
	}
	if control != "" && !d.present[control] {
		return fmt.Errorf("%q: %w", control, uia.ErrControlNotFound)
	}
	return nil
}

func (d *Dialog) click(ctx context.Context, verb, control string) error {
	d.mu.Lock()
	if err := d.check(ctx, control); err != nil {
		d.mu.Unlock()
		return err
	}
	d.actions = append(d.actions, verb+" "+control)
	hook := d.hooks[control]
	d.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return nil
}

func (d *Dialog) Click(ctx context.Context, control string) error {
	return d.click(ctx, "click", control)
}

func (d *Dialog) DoubleClick(ctx context.Context, control string) error {
	return d.click(ctx, "dclick", control)
}

func (d *Dialog) SetText(ctx context.Context, control, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, control); err != nil {
		return err
	}
	d.actions = append(d.actions, "settext "+control+"="+text)
	d.texts[control] = []string{text}
	return nil
}

func (d *Dialog) TypeText(ctx context.Context, control, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, control); err != nil {
		return err
	}
	d.actions = append(d.actions, "type "+control+"="+text)
	cur := ""
	if v := d.texts[control]; len(v) > 0 {
		cur = v[len(v)-1]
	}
	d.texts[control] = []string{cur + text}
	return nil
}

func (d *Dialog) Text(ctx context.Context, control string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.check(ctx, control); err != nil {
		return "", err
	}
	v := d.texts[control]
	if len(v) == 0 {
		return "", nil
	}
	if len(v) > 1 {
		d.texts[control] = v[1:]
	}
	return v[0], nil
}

func (d *Dialog) Exists(ctx context.Context, control string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if d.app.terminated() {
		return false, uia.ErrAppTerminated
	}
	if err := d.errs[control]; err != nil {
		return false, err
	}
	return control == "" || d.present[control], nil
}

type missingDialog struct {
	app  *App
	name string
}

func (m missingDialog) err() error {
	if m.app.terminated() {
		return uia.ErrAppTerminated
	}
	return fmt.Errorf("dialog %q: %w", m.name, uia.ErrControlNotFound)
}

func (m missingDialog) Click(context.Context, string) error       { return m.err() }
func (m missingDialog) DoubleClick(context.Context, string) error { return m.err() }

func (m missingDialog) SetText(context.Context, string, string) error  { return m.err() }
func (m missingDialog) TypeText(context.Context, string, string) error { return m.err() }

func (m missingDialog) Text(context.Context, string) (string, error) { return "", m.err() }

func (m missingDialog) Exists(context.Context, string) (bool, error) {
	if m.app.terminated() {
		return false, uia.ErrAppTerminated
	}
	return false, nil
}
