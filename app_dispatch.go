package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gesturekeys/internal/config"
	"gesturekeys/internal/keybinder"
	"gesturekeys/internal/workerutil"
)

var errDispatchBusy = errors.New("dispatch worker did not respond in time")

// startDispatchWorker starts the only goroutine that touches the Engine.
func (a *App) startDispatchWorker(ctx context.Context) {
	workerutil.RunWithPanicRecovery(ctx, "dispatch", &a.bgWG, a.runDispatch, a.recoveryOptions())
}

func (a *App) runDispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case vector := <-a.frames.C():
			a.engine.Act(vector)
		case c := <-a.calls:
			c.run(a.engine)
		case cfg := <-a.configChanged:
			a.applyConfig(cfg)
		}
	}
}

// call runs fn on the dispatch goroutine and waits for it.
func (a *App) call(fn func(e *keybinder.Engine)) error {
	timer := time.NewTimer(controlCallTimeout)
	defer timer.Stop()

	done := make(chan struct{})
	select {
	case a.calls <- dispatchCall{fn: fn, done: done}:
	case <-timer.C:
		return errDispatchBusy
	}
	select {
	case <-done:
		return nil
	case <-timer.C:
		return errDispatchBusy
	}
}

// post queues fn for the dispatch goroutine without waiting.
func (a *App) post(fn func(e *keybinder.Engine)) {
	select {
	case a.calls <- dispatchCall{fn: fn}:
	default:
		slog.Warn("[DEBUG-DISPATCH] dispatch queue full, request dropped")
	}
}

// enqueueConfigChange runs on the reloading goroutine. Only the newest
// config is kept.
func (a *App) enqueueConfigChange(cfg config.Config) {
	for {
		select {
		case a.configChanged <- cfg:
			return
		default:
		}
		select {
		case <-a.configChanged:
		default:
		}
	}
}

// applyConfig reacts to a reloaded config. Bindings need nothing here: the
// Engine reconciles against the Store on its next pass.
func (a *App) applyConfig(cfg config.Config) {
	prev := a.applied
	a.applied = cfg

	if prev.SlogLevel() != cfg.SlogLevel() {
		a.logLevel.Set(cfg.SlogLevel())
		slog.Info("[DEBUG-CONFIG] log level changed", "level", cfg.SlogLevel().String())
	}
	if prev.ToggleHotkey != cfg.ToggleHotkey {
		a.configureGlobalHotkey(cfg.ToggleHotkey)
	}
	for _, field := range restartOnlyChanges(prev, cfg) {
		slog.Warn("[WARN-CONFIG] setting changed, restart to apply", "field", field)
	}
	for _, name := range a.unknownChannels(cfg) {
		slog.Warn("[WARN-CONFIG] binding for unknown channel is ignored", "channel", name)
	}
}

// unknownChannels lists bound channels the vocabulary does not carry. The
// engine never fires them because their value never resolves.
func (a *App) unknownChannels(cfg config.Config) []string {
	var names []string
	for _, table := range []config.BindingTable{cfg.MouseBindings, cfg.KeyboardBindings} {
		for _, entry := range table {
			if !a.vocab.Contains(entry.Channel) {
				names = append(names, entry.Channel)
			}
		}
	}
	return names
}

func restartOnlyChanges(prev, next config.Config) []string {
	var fields []string
	if prev.DryRun != next.DryRun {
		fields = append(fields, "dry_run")
	}
	if prev.FeedAddr != next.FeedAddr {
		fields = append(fields, "feed_addr")
	}
	if prev.Journal != next.Journal {
		fields = append(fields, "journal")
	}
	return fields
}
