package uia

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type helperCall struct {
	name string
	args []string
}

func fakeBridge(respond func(args []string) (string, error)) (*Bridge, *[]helperCall) {
	var calls []helperCall
	b := NewBridge("uia-helper.exe", 0)
	b.exec = func(_ context.Context, name string, args ...string) ([]byte, error) {
		calls = append(calls, helperCall{name: name, args: args})
		out, err := respond(args)
		return []byte(out), err
	}
	return b, &calls
}

func TestBridge_DialogCommands(t *testing.T) {
	b, calls := fakeBridge(func(args []string) (string, error) {
		switch args[0] {
		case "launch":
			return "4242\r\n", nil
		case "text":
			return "45%\r\n", nil
		case "exists":
			return "true\n", nil
		}
		return "", nil
	})
	ctx := context.Background()

	app, err := b.Launch(ctx, `C:\Mercury\Mercury.exe`)
	require.NoError(t, err)
	dlg := app.Dialog("Dialog")

	require.NoError(t, dlg.Click(ctx, "OKButton"))
	require.NoError(t, dlg.TypeText(ctx, "СчетчикEdit", "38"))
	text, err := dlg.Text(ctx, "Static3")
	require.NoError(t, err)
	assert.Equal(t, "45%", text)
	ok, err := dlg.Exists(ctx, "Ошибка!")
	require.NoError(t, err)
	assert.True(t, ok)

	want := [][]string{
		{"launch", `C:\Mercury\Mercury.exe`},
		{"click", "4242", "Dialog", "OKButton"},
		{"type", "4242", "Dialog", "СчетчикEdit", "38"},
		{"text", "4242", "Dialog", "Static3"},
		{"exists", "4242", "Dialog", "Ошибка!"},
	}
	require.Len(t, *calls, len(want))
	for i, c := range *calls {
		assert.Equal(t, "uia-helper.exe", c.name)
		assert.Equal(t, want[i], c.args)
	}
}

func TestBridge_BadPid(t *testing.T) {
	b, _ := fakeBridge(func([]string) (string, error) { return "oops", nil })
	_, err := b.Connect(context.Background(), "explorer.exe")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected pid")
}

func TestBridge_KilledAppRejectsOperations(t *testing.T) {
	b, calls := fakeBridge(func(args []string) (string, error) {
		if args[0] == "connect" {
			return "7", nil
		}
		return "", nil
	})
	app, err := b.Connect(context.Background(), "Mercury.exe")
	require.NoError(t, err)

	require.NoError(t, app.Kill())
	require.NoError(t, app.Kill())
	err = app.Dialog("Dialog").Click(context.Background(), "OKButton")
	assert.ErrorIs(t, err, ErrAppTerminated)
	assert.Len(t, *calls, 2, "second Kill and the click must not reach the helper")
}

func TestBridge_PlainError(t *testing.T) {
	boom := errors.New("helper crashed")
	b, _ := fakeBridge(func([]string) (string, error) { return "stack trace", boom })
	_, err := b.Launch(context.Background(), "x.exe")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "uia launch")
	assert.Contains(t, err.Error(), "stack trace")
}

// exitWith returns a real *exec.ExitError carrying code.
func exitWith(t *testing.T, code string) error {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	err := exec.Command("sh", "-c", "exit "+code).Run()
	require.Error(t, err)
	return err
}

func TestBridge_ExitCodes(t *testing.T) {
	notFound := exitWith(t, "3")
	gone := exitWith(t, "4")

	b, _ := fakeBridge(func(args []string) (string, error) {
		switch {
		case args[0] == "connect":
			return "1", nil
		case args[0] == "exists":
			return "", notFound
		case args[0] == "kill":
			return "no such process", gone
		case strings.HasPrefix(args[0], "click"):
			return "no control", notFound
		}
		return "", nil
	})
	ctx := context.Background()
	app, err := b.Connect(ctx, "BTC Tools.exe")
	require.NoError(t, err)
	dlg := app.Dialog("Dialog")

	ok, err := dlg.Exists(ctx, "NoButton")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, dlg.Click(ctx, "NoButton"), ErrControlNotFound)
	assert.NoError(t, app.Kill(), "killing a dead process is not an error")
}

// scriptHelper writes a shell script standing in for the helper executable.
func scriptHelper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "uia-helper")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

func TestBridge_StderrKeptOutOfResults(t *testing.T) {
	helper := scriptHelper(t, `echo "warning: slow UI" >&2
case "$1" in
connect) echo 4242 ;;
text) echo "3.14" ;;
click) echo "control OKButton not found" >&2; exit 3 ;;
esac
`)
	b := NewBridge(helper, 0)
	ctx := context.Background()

	app, err := b.Connect(ctx, "Mercury")
	require.NoError(t, err)
	assert.Equal(t, "4242", app.(*bridgeApp).pid)

	dlg := app.Dialog("Dialog")
	text, err := dlg.Text(ctx, "Value")
	require.NoError(t, err)
	assert.Equal(t, "3.14", text)

	err = dlg.Click(ctx, "OKButton")
	require.ErrorIs(t, err, ErrControlNotFound)
	assert.Contains(t, err.Error(), "control OKButton not found")
}
