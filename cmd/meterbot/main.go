package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gridops/meterbot/internal/history"
	"github.com/gridops/meterbot/internal/logging"
	"github.com/gridops/meterbot/internal/model"
	"github.com/gridops/meterbot/internal/notify"
	"github.com/gridops/meterbot/internal/setup"
)

const (
	version    = "1.0.0"
	configName = "meterbot.yaml"
	configEnv  = "METERBOT_CONFIG"
)

const modePrompt = "Choose mode (1 - schedule, 2 - one-time launch, 3 - debug): "

func main() {
	configFlag, args, err := splitConfigFlag(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(args) == 0 {
		runDefault(configFlag)
		return
	}

	switch args[0] {
	case "schedule":
		runSchedule(configFlag, false)
	case "once":
		runOnce(configFlag, false)
	case "debug":
		runOnce(configFlag, true)
	case "notify":
		runNotify(configFlag, args[1:])
	case "history":
		runHistory(configFlag, args[1:])
	case "check-config":
		runCheckConfig(configFlag)
	case "init":
		runInit(args[1:])
	case "version":
		fmt.Printf("meterbot %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// runDefault starts the scheduler when auto_launch is set and asks the
// operator for a mode otherwise.
func runDefault(configFlag string) {
	path := mustConfigPath(configFlag)
	cfg, err := model.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Schedule.AutoLaunch {
		runSchedule(path, false)
		return
	}

	mode, err := promptMode(os.Stdin, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	switch mode {
	case "schedule":
		runSchedule(path, true)
	case "once":
		runOnce(path, false)
	case "debug":
		runOnce(path, true)
	}
}

// promptMode asks until the answer is 1, 2 or 3.
func promptMode(r io.Reader, w io.Writer) (string, error) {
	sc := bufio.NewScanner(r)
	for {
		fmt.Fprint(w, modePrompt)
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		switch strings.TrimSpace(sc.Text()) {
		case "1":
			return "schedule", nil
		case "2":
			return "once", nil
		case "3":
			return "debug", nil
		default:
			fmt.Fprintln(w, "Incorrect command")
		}
	}
}

func runSchedule(configFlag string, tee bool) {
	s, err := openSession(mustConfigPath(configFlag), tee, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := s.acquire(); err != nil {
		s.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitSignals(cancel, s.log)

	s.openStores(ctx)
	err = s.scheduler().Run(ctx)
	s.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// runOnce runs a single cycle. Debug mode logs at debug level and sends no
// notification.
func runOnce(configFlag string, debug bool) {
	s, err := openSession(mustConfigPath(configFlag), true, debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if err := s.acquire(); err != nil {
		s.Close()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go waitSignals(cancel, s.log)

	s.openStores(ctx)
	res, err := s.cycleFunc(debug)(ctx, s.cfg)
	s.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if names := res.Failed.Names(); len(names) > 0 {
		fmt.Printf("cycle %s finished, failed: %s\n", res.ID, strings.Join(names, ", "))
		return
	}
	fmt.Printf("cycle %s finished, all programs succeeded\n", res.ID)
}

func runNotify(configFlag string, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: meterbot notify <message>")
		os.Exit(1)
	}
	cfg, err := model.LoadConfig(mustConfigPath(configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(os.Stderr, logging.ParseLogLevel(cfg.Logging.Level), "notify")
	n := notify.NewNotifier(cfg.Notifications.TgRecipients, cfg.Notifications.TokenEnv, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := n.Broadcast(ctx, strings.Join(args, " ")); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runHistory(configFlag string, args []string) {
	limit := 20
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "error: --limit requires a value")
				os.Exit(1)
			}
			i++
			n, err := strconv.Atoi(args[i])
			if err != nil || n <= 0 {
				fmt.Fprintf(os.Stderr, "error: invalid --limit: %s\n", args[i])
				os.Exit(1)
			}
			limit = n
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: meterbot history [--limit N]")
			os.Exit(1)
		}
	}

	cfg, err := model.LoadConfig(mustConfigPath(configFlag))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	st, err := history.Open(ctx, cfg.History.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	runs, err := st.Recent(ctx, limit)
	st.Close() //nolint:errcheck
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	writeHistory(os.Stdout, runs)
}

func writeHistory(w io.Writer, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-9s %-12s %s  %s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Program, runResult(r), shortID(r.CycleID), r.Detail)
	}
}

func runResult(r history.Run) string {
	switch {
	case !r.Launched:
		return "not_launched"
	case r.Success:
		return "ok"
	default:
		return "failed"
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runCheckConfig(configFlag string) {
	path := mustConfigPath(configFlag)
	cfg, err := model.LoadConfig(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("config OK: %s\n", path)
	fmt.Printf("  start_time: %s (poll every %ds)\n", cfg.Schedule.StartTime, cfg.Schedule.PollIntervalSec)
	fmt.Printf("  programs:   %v\n", cfg.EnabledPrograms())
	fmt.Printf("  recipients: %d\n", len(cfg.Notifications.TgRecipients))
}

func runInit(args []string) {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	path, err := setup.Run(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", path)
}

// splitConfigFlag removes a global --config flag from args.
func splitConfigFlag(args []string) (string, []string, error) {
	var path string
	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "--config":
			if i+1 >= len(args) {
				return "", nil, errors.New("--config requires a value")
			}
			i++
			path = args[i]
		case strings.HasPrefix(args[i], "--config="):
			path = strings.TrimPrefix(args[i], "--config=")
		default:
			rest = append(rest, args[i])
		}
	}
	return path, rest, nil
}

func mustConfigPath(configFlag string) string {
	path := resolveConfigPath(configFlag, os.Getenv(configEnv))
	if path == "" {
		fmt.Fprintf(os.Stderr, "error: %s not found (use --config or %s)\n", configName, configEnv)
		os.Exit(1)
	}
	return path
}

// resolveConfigPath prefers the flag, then the env var, then the nearest
// meterbot.yaml in the working directory or its parents.
func resolveConfigPath(flag, env string) string {
	if flag != "" {
		return flag
	}
	if env != "" {
		return env
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	return findConfig(dir)
}

func findConfig(dir string) string {
	for {
		candidate := filepath.Join(dir, configName)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `meterbot %s - daily meter and miner data collection

Usage: meterbot [--config <path>] [command] [options]

Without a command meterbot starts the scheduler when schedule.auto_launch
is set, and asks for a mode otherwise.

Modes:
  schedule          Run the enabled programs every day at schedule.start_time
  once              Run the enabled programs once
  debug             Run once with debug logging and no notification

Utilities:
  init [dir]            Write a default meterbot.yaml
  notify <message>      Send a message to the Telegram recipients
  history [--limit N]   Show recent program runs
  check-config          Validate the configuration
  version               Show version
  help                  Show this help

The config is read from --config, $%s, or the nearest %s.

`, version, configEnv, configName)
}
