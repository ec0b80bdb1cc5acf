package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridops/meterbot/internal/history"
	"github.com/gridops/meterbot/internal/model"
)

func TestPromptMode(t *testing.T) {
	var out bytes.Buffer
	mode, err := promptMode(strings.NewReader("4\nschedule\n 2 \n"), &out)
	require.NoError(t, err)
	assert.Equal(t, "once", mode)
	assert.Equal(t, 2, strings.Count(out.String(), "Incorrect command"))
	assert.Equal(t, 3, strings.Count(out.String(), modePrompt))
}

func TestPromptMode_AllChoices(t *testing.T) {
	for in, want := range map[string]string{"1": "schedule", "2": "once", "3": "debug"} {
		mode, err := promptMode(strings.NewReader(in+"\n"), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, want, mode, "input %s", in)
	}
}

func TestPromptMode_EOF(t *testing.T) {
	_, err := promptMode(strings.NewReader("x\n"), io.Discard)
	assert.ErrorIs(t, err, io.EOF)
}

func TestSplitConfigFlag(t *testing.T) {
	path, rest, err := splitConfigFlag([]string{"--config", "/etc/m.yaml", "history", "--limit", "5"})
	require.NoError(t, err)
	assert.Equal(t, "/etc/m.yaml", path)
	assert.Equal(t, []string{"history", "--limit", "5"}, rest)

	path, rest, err = splitConfigFlag([]string{"once", "--config=c.yaml"})
	require.NoError(t, err)
	assert.Equal(t, "c.yaml", path)
	assert.Equal(t, []string{"once"}, rest)

	_, _, err = splitConfigFlag([]string{"--config"})
	assert.Error(t, err)
}

func TestResolveConfigPath_Precedence(t *testing.T) {
	assert.Equal(t, "flag.yaml", resolveConfigPath("flag.yaml", "env.yaml"))
	assert.Equal(t, "env.yaml", resolveConfigPath("", "env.yaml"))
}

func TestFindConfig_WalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))
	cfgPath := filepath.Join(root, configName)
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}"), 0644))

	assert.Equal(t, cfgPath, findConfig(nested))
}

func TestFindConfig_IgnoresDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, configName), 0755))

	got := findConfig(root)
	assert.NotEqual(t, filepath.Join(root, configName), got)
}

func TestWriteHistory(t *testing.T) {
	var buf bytes.Buffer
	writeHistory(&buf, nil)
	assert.Equal(t, "no runs recorded\n", buf.String())

	buf.Reset()
	at := time.Date(2026, 3, 7, 9, 0, 0, 0, time.Local)
	writeHistory(&buf, []history.Run{
		{CycleID: "0123456789abcdef", Program: model.ProgramMercury, Launched: true, Success: true, StartedAt: at},
		{CycleID: "0123456789abcdef", Program: model.ProgramBTCTools, Launched: false, Detail: "launch: boom", StartedAt: at},
	})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "2026-03-07 09:00:00")
	assert.Contains(t, lines[0], "ok")
	assert.Contains(t, lines[0], "01234567")
	assert.NotContains(t, lines[0], "89abcdef")
	assert.Contains(t, lines[1], "not_launched")
	assert.Contains(t, lines[1], "launch: boom")
}

func TestRunResult(t *testing.T) {
	assert.Equal(t, "not_launched", runResult(history.Run{}))
	assert.Equal(t, "failed", runResult(history.Run{Launched: true}))
	assert.Equal(t, "ok", runResult(history.Run{Launched: true, Success: true}))
}
