package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"gesturekeys/internal/config"
	"gesturekeys/internal/feed"
	"gesturekeys/internal/injector"
	"gesturekeys/internal/ipc"
	"gesturekeys/internal/journal"
	"gesturekeys/internal/keybinder"
	"gesturekeys/internal/workerutil"
)

const shutdownWaitTimeout = 5 * time.Second

func (a *App) addStartupWarning(message string) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return
	}
	a.startupWarnMu.Lock()
	a.startupWarns = append(a.startupWarns, trimmed)
	a.startupWarnMu.Unlock()
}

func (a *App) consumeStartupWarnings() []string {
	a.startupWarnMu.Lock()
	defer a.startupWarnMu.Unlock()
	out := a.startupWarns
	a.startupWarns = nil
	return out
}

// startup brings the daemon up. Only a missing Engine is fatal; every other
// collaborator that fails to start is reported as a warning and skipped.
func (a *App) startup(ctx context.Context) error {
	a.startedAt = time.Now()
	a.sessionID = uuid.NewString()

	a.configPath = a.opts.ConfigPath
	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	for _, message := range config.ConsumeDefaultPathWarnings() {
		a.addStartupWarning(message)
	}
	cfg, err := config.EnsureFile(a.configPath)
	if err != nil {
		// Config failures must not prevent startup.
		cfg = config.DefaultConfig()
		a.addStartupWarning("failed to load config, running with defaults: " + err.Error())
	}
	a.applied = cfg
	a.logLevel.Set(cfg.SlogLevel())
	for _, name := range a.unknownChannels(cfg) {
		a.addStartupWarning(fmt.Sprintf("binding for unknown channel %q is ignored", name))
	}

	a.openJournal(cfg)

	a.store = config.NewStore(a.configPath, cfg)
	a.store.Subscribe(a.enqueueConfigChange)

	a.injector, a.dryRun = a.selectInjector(cfg)
	a.engine = keybinder.New(keybinder.Options{
		Source:     a.store,
		Vocabulary: a.vocab,
		Injector:   a.injector,
		Displays:   newDisplayProviderFn(),
		Observer:   a.newObserver(),
		SessionID:  a.sessionID,
	})
	a.engine.Start()

	if !a.opts.NoHotkey {
		a.hotkeys = newHotkeyManagerFn()
	}

	// The hub must exist before the dispatch worker reads it.
	workerCtx, cancel := context.WithCancel(ctx)
	a.stopWorkers = cancel
	a.startFeed(workerCtx, cfg)
	a.startDispatchWorker(workerCtx)
	a.startConfigWatcher(workerCtx)
	a.startPipeServer()
	a.configureGlobalHotkey(cfg.ToggleHotkey)

	for _, message := range a.consumeStartupWarnings() {
		slog.Warn("[DEBUG-STARTUP] " + message)
	}
	slog.Info("[DEBUG-STARTUP] gesturekeys running",
		"session", a.sessionID,
		"config", a.configPath,
		"dryRun", a.dryRun,
		"active", cfg.AutoPlay,
	)
	return nil
}

func (a *App) recoveryOptions() workerutil.RecoveryOptions {
	return workerutil.RecoveryOptions{
		IsShutdown: a.shuttingDown.Load,
		OnFatal: func(worker string, maxRetries int) {
			slog.Error("[DEBUG-PANIC] worker abandoned", "worker", worker, "maxRetries", maxRetries)
		},
	}
}

func (a *App) selectInjector(cfg config.Config) (injector.Injector, bool) {
	if cfg.DryRun || a.opts.DryRun {
		rec := injector.NewRecorder(dryRunScreenW, dryRunScreenH)
		rec.SetVerbose(true)
		return rec, true
	}
	inj, err := newSystemInjectorFn()
	if err != nil {
		a.addStartupWarning("input injection unavailable, falling back to dry run: " + err.Error())
		rec := injector.NewRecorder(dryRunScreenW, dryRunScreenH)
		rec.SetVerbose(true)
		return rec, true
	}
	return inj, false
}

func (a *App) openJournal(cfg config.Config) {
	if !cfg.Journal.Enabled {
		return
	}
	path := cfg.JournalPath(a.configPath)
	openCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	j, err := journal.Open(openCtx, path)
	if err != nil {
		a.addStartupWarning("journal disabled: " + err.Error())
		return
	}
	if err := j.BeginSession(openCtx, a.sessionID, a.startedAt); err != nil {
		a.addStartupWarning("journal session not recorded: " + err.Error())
	}
	if n, err := j.Prune(openCtx, a.startedAt.Add(-journalRetention)); err != nil {
		a.addStartupWarning("journal prune failed: " + err.Error())
	} else if n > 0 {
		slog.Debug("[DEBUG-JOURNAL] pruned old rows", "rows", n)
	}

	a.journal = j
	w := journal.NewWriter(j, a.sessionID, journal.DefaultBuffer)
	a.journalWriter.Store(w)

	// The writer outlives the other workers so shutdown logs still land.
	jctx, cancelWriter := context.WithCancel(context.Background())
	a.stopJournal = cancelWriter
	workerutil.RunWithPanicRecovery(jctx, "journal-writer", &a.journalWG, w.Run, a.recoveryOptions())
	slog.Info("[DEBUG-JOURNAL] journal open", "path", path)
}

func (a *App) startConfigWatcher(ctx context.Context) {
	workerutil.RunWithPanicRecovery(ctx, "config-watcher", &a.bgWG, func(ctx context.Context) {
		if err := a.store.Watch(ctx); err != nil {
			slog.Warn("[WARN-CONFIG] hot reload disabled", "error", err)
		}
	}, a.recoveryOptions())
}

func (a *App) startFeed(ctx context.Context, cfg config.Config) {
	addr := cfg.FeedAddr
	if a.opts.FeedAddr != "" {
		addr = a.opts.FeedAddr
	}
	hub := feed.NewHub(feed.HubOptions{Addr: addr, Sink: a.acceptFrame, OnConnect: a.announceActive})
	if err := hub.Start(ctx); err != nil {
		a.addStartupWarning("activation feed unavailable: " + err.Error())
		return
	}
	a.hub = hub
	slog.Info("[DEBUG-FEED] feed listening", "url", hub.URL())
}

// acceptFrame runs on the feed's read goroutine.
func (a *App) acceptFrame(vector []float64) {
	if vector == nil {
		return
	}
	a.frames.Push(vector)
}

// announceActive tells a newly connected producer the current Active Flag.
// It runs on the feed's read goroutine.
func (a *App) announceActive() {
	a.post(func(e *keybinder.Engine) {
		if a.hub != nil {
			a.hub.PushActive(e.Active())
		}
	})
}

func (a *App) startPipeServer() {
	endpoint := a.opts.Endpoint
	if endpoint == "" {
		endpoint = ipc.DefaultEndpoint()
	}
	server := newPipeServerFn(endpoint, ipc.ExecutorFunc(a.executeControl))
	if err := server.Start(); err != nil {
		a.addStartupWarning("control pipe unavailable: " + err.Error())
		return
	}
	a.pipeServer = server
	slog.Info("[ipc] control pipe listening", "endpoint", server.Endpoint())
}

func (a *App) configureGlobalHotkey(spec string) {
	if a.hotkeys == nil {
		return
	}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		if err := a.hotkeys.Stop(); err != nil {
			slog.Warn("[DEBUG-HOTKEY] stop failed", "error", err)
		}
		slog.Debug("[DEBUG-HOTKEY] no toggle hotkey configured")
		return
	}
	if err := a.hotkeys.Start(spec, a.toggleFromHotkey); err != nil {
		slog.Warn("[DEBUG-HOTKEY] toggle hotkey registration failed", "hotkey", spec, "error", err)
		return
	}
}

func (a *App) toggleFromHotkey() {
	a.post(func(e *keybinder.Engine) { e.Toggle() })
}

// shutdown stops every collaborator, releases held inputs and flushes the
// journal. Safe to call more than once.
func (a *App) shutdown() {
	if !a.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	if a.hotkeys != nil {
		if err := a.hotkeys.Stop(); err != nil {
			slog.Warn("[DEBUG-HOTKEY] stop failed", "error", err)
		}
	}
	if a.pipeServer != nil {
		if err := a.pipeServer.Stop(); err != nil {
			slog.Warn("[ipc] control pipe stop failed", "error", err)
		}
	}
	if a.hub != nil {
		if err := a.hub.Stop(); err != nil {
			slog.Warn("[DEBUG-FEED] feed stop failed", "error", err)
		}
	}

	a.stopWorkers()
	if !waitWithTimeout(a.bgWG.Wait, shutdownWaitTimeout) {
		slog.Warn("[DEBUG-SHUTDOWN] timed out waiting for background workers")
	} else if a.engine != nil {
		// The dispatch worker is gone, so the Engine can be used here.
		a.engine.Destroy()
	}

	slog.Info("[DEBUG-SHUTDOWN] gesturekeys stopped", "session", a.sessionID)
	a.stopJournal()
	if !waitWithTimeout(a.journalWG.Wait, shutdownWaitTimeout) {
		slog.Warn("[DEBUG-SHUTDOWN] timed out flushing the journal")
	}
	a.journalWriter.Store(nil)
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Warn("[DEBUG-JOURNAL] close failed", "error", err)
		}
	}
}

func waitWithTimeout(waitFn func(), timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		waitFn()
		close(done)
	}()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}
