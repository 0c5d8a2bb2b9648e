package main

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gesturekeys/internal/channels"
	"gesturekeys/internal/config"
	"gesturekeys/internal/display"
	"gesturekeys/internal/feed"
	"gesturekeys/internal/hotkeys"
	"gesturekeys/internal/injector"
	"gesturekeys/internal/ipc"
	"gesturekeys/internal/journal"
	"gesturekeys/internal/keybinder"
)

const (
	// frameQueueSize bounds the frames waiting for the dispatch worker.
	frameQueueSize = 8
	// controlCallTimeout bounds how long a control command waits for the
	// dispatch worker.
	controlCallTimeout = 2 * time.Second
	// journalRetention is how long journal rows are kept.
	journalRetention = 30 * 24 * time.Hour
	// dryRunScreenW and dryRunScreenH size the virtual screen in dry-run mode.
	dryRunScreenW = 1920
	dryRunScreenH = 1080
)

// Test seams for OS-facing collaborators.
var (
	newSystemInjectorFn  = injector.NewSystem
	newDisplayProviderFn = func() display.Provider { return display.NewSystemProvider() }
	newPipeServerFn      = ipc.NewPipeServer
	newHotkeyManagerFn   = hotkeys.NewManager
)

// appOptions are command-line overrides. Zero values defer to the config
// file.
type appOptions struct {
	ConfigPath string
	DryRun     bool
	FeedAddr   string
	Endpoint   string
	NoHotkey   bool
}

// dispatchCall runs fn on the dispatch goroutine. done is closed when fn
// returns or panics; it is nil for fire-and-forget calls.
type dispatchCall struct {
	fn   func(e *keybinder.Engine)
	done chan struct{}
}

func (c dispatchCall) run(e *keybinder.Engine) {
	if c.done != nil {
		defer close(c.done)
	}
	c.fn(e)
}

// App is the daemon's composition root. The Engine is touched only by the
// dispatch worker; everything else reaches it through calls.
//
// Lock ordering: none. startupWarnMu is independent; all other shared
// state is atomic or owned by a single goroutine.
type App struct {
	opts       appOptions
	configPath string
	sessionID  string
	startedAt  time.Time

	logLevel *slog.LevelVar
	vocab    *channels.Vocabulary

	store    *config.Store
	engine   *keybinder.Engine
	injector injector.Injector
	dryRun   bool

	// Owned by the dispatch worker after startup.
	applied config.Config

	frames        *feed.Queue
	calls         chan dispatchCall
	configChanged chan config.Config

	hub        *feed.Hub
	pipeServer *ipc.PipeServer
	hotkeys    *hotkeys.Manager

	journal       *journal.Journal
	journalWriter atomic.Pointer[journal.Writer]

	// bgWG tracks dispatch and watcher workers; journalWG tracks the journal
	// writer, which is stopped last so shutdown logs are kept.
	bgWG          sync.WaitGroup
	journalWG     sync.WaitGroup
	stopWorkers   func()
	stopJournal   func()
	shuttingDown  atomic.Bool
	startupWarnMu sync.Mutex
	startupWarns  []string
}

// NewApp creates an App. Call startup to bring it up.
func NewApp(opts appOptions) *App {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)
	return &App{
		opts:          opts,
		logLevel:      level,
		vocab:         channels.Default(),
		calls:         make(chan dispatchCall, 16),
		configChanged: make(chan config.Config, 1),
		frames:        feed.NewQueue(frameQueueSize),
		stopWorkers:   func() {},
		stopJournal:   func() {},
	}
}
