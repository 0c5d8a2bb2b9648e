// Command gesturekeys turns facial activation values streamed over a local
// WebSocket into keyboard and mouse input.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"gesturekeys/internal/singleinstance"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, showVersion, err := parseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		return 2
	}
	if showVersion {
		fmt.Printf("gesturekeys %s\n", version)
		return 0
	}

	app := NewApp(opts)
	slog.SetDefault(slog.New(app.newLogHandler(os.Stderr)))

	// Two daemons would fight over the same keys and buttons.
	lock, err := singleinstance.TryLock(singleinstance.DefaultName())
	if errors.Is(err, singleinstance.ErrAlreadyRunning) {
		slog.Error("[DEBUG-SINGLE] gesturekeys is already running; use gesturectl to control it")
		return 1
	}
	if err != nil {
		slog.Warn("[DEBUG-SINGLE] instance lock failed, continuing without it", "error", err)
	} else {
		slog.Debug("[DEBUG-SINGLE] instance lock held", "name", lock.Name())
	}
	defer func() {
		if err := lock.Release(); err != nil {
			slog.Warn("[DEBUG-SINGLE] instance lock release failed", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.startup(ctx); err != nil {
		slog.Error("[DEBUG-STARTUP] startup failed", "error", err)
		app.shutdown()
		return 1
	}
	<-ctx.Done()
	slog.Info("[DEBUG-SHUTDOWN] signal received, shutting down")
	app.shutdown()
	return 0
}

func parseFlags(args []string) (appOptions, bool, error) {
	var (
		opts        appOptions
		showVersion bool
	)
	fs := flag.NewFlagSet("gesturekeys", flag.ContinueOnError)
	fs.StringVar(&opts.ConfigPath, "config", "", "path to config.yaml (default: per-user config directory)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "log input events instead of injecting them")
	fs.StringVar(&opts.FeedAddr, "feed-addr", "", "override the activation feed listen address")
	fs.StringVar(&opts.Endpoint, "pipe", "", "override the control pipe endpoint")
	fs.BoolVar(&opts.NoHotkey, "no-hotkey", false, "do not register the global toggle hotkey")
	fs.BoolVar(&showVersion, "version", false, "print the version and exit")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: gesturekeys [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return appOptions{}, false, err
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %v\n", fs.Args())
		fs.Usage()
		return appOptions{}, false, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return opts, showVersion, nil
}
