package uia

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Launch types accepted in program config.
const (
	LaunchNormal = "normal"
	LaunchManual = "manual"
)

// Launcher obtains an App for a program path.
type Launcher interface {
	Start(ctx context.Context, programPath string) (App, error)
}

// DirectLaunch starts the executable itself.
type DirectLaunch struct {
	Backend Backend
}

func (l DirectLaunch) Start(ctx context.Context, programPath string) (App, error) {
	app, err := l.Backend.Launch(ctx, programPath)
	if err != nil {
		return nil, fmt.Errorf("launch %s: %w", programPath, err)
	}
	return app, nil
}

// IndirectLaunch opens the program's folder in a file browser and
// double-clicks the executable, for programs that refuse a direct start.
type IndirectLaunch struct {
	Backend     Backend
	FileBrowser string
	Settle      time.Duration
}

func (l IndirectLaunch) Start(ctx context.Context, programPath string) (App, error) {
	p := parseProgramPath(programPath)
	if p.fileName == "" {
		return nil, fmt.Errorf("launch %s: no file name in path", programPath)
	}

	if _, err := l.Backend.Launch(ctx, l.FileBrowser+" "+p.folderPath); err != nil {
		return nil, fmt.Errorf("open folder %s: %w", p.folderPath, err)
	}
	browser, err := l.Backend.Connect(ctx, l.FileBrowser)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", l.FileBrowser, err)
	}
	if err := browser.Dialog(p.folderName).DoubleClick(ctx, p.fileName); err != nil {
		_ = browser.Kill()
		return nil, fmt.Errorf("open %s from folder: %w", p.fileName, err)
	}
	if err := Settle(ctx, l.Settle); err != nil {
		_ = browser.Kill()
		return nil, err
	}
	if err := browser.Kill(); err != nil {
		return nil, fmt.Errorf("close %s: %w", l.FileBrowser, err)
	}

	app, err := l.Backend.Connect(ctx, p.fileName)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", p.fileName, err)
	}
	return app, nil
}

// NewLauncher returns the launcher for a configured launch type.
func NewLauncher(launchType string, b Backend, fileBrowser string, settle time.Duration) (Launcher, error) {
	switch launchType {
	case LaunchNormal, "":
		return DirectLaunch{Backend: b}, nil
	case LaunchManual:
		return IndirectLaunch{Backend: b, FileBrowser: fileBrowser, Settle: settle}, nil
	default:
		return nil, fmt.Errorf("unknown launch type %q", launchType)
	}
}

type programPath struct {
	folderPath string
	folderName string
	fileName   string
}

// parseProgramPath splits a Windows or slash path regardless of host OS.
func parseProgramPath(path string) programPath {
	path = strings.ReplaceAll(path, `\`, "/")
	var dir, file string
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir, file = path[:i], path[i+1:]
	} else {
		file = path
	}
	folder := dir
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		folder = dir[i+1:]
	}
	return programPath{
		folderPath: strings.ReplaceAll(dir, "/", `\`),
		folderName: folder,
		fileName:   file,
	}
}

// FileName returns the last element of a Windows or slash path.
func FileName(path string) string {
	return parseProgramPath(path).fileName
}
