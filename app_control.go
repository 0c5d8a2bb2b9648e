package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"gesturekeys/internal/config"
	"gesturekeys/internal/feed"
	"gesturekeys/internal/ipc"
	"gesturekeys/internal/keybinder"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2

	defaultHistoryLimit = 20
)

const controlUsage = `commands:
  status                 engine, feed and journal state as JSON
  set-active on|off      set the Active Flag
  toggle                 flip the Active Flag
  hold-mode on|off       route mouse bindings through hold mode
  reload                 re-read the config file
  refresh-displays       re-enumerate monitors
  bindings               print the live bindings as YAML
  channels               list the channel names with their vector index
  history [n]            last n journaled intents as JSON lines
  warnings [n]           last n journaled warnings and errors
`

type controlHandler func(a *App, args []string) ipc.Response

var controlHandlers = map[string]controlHandler{
	"status":           (*App).controlStatus,
	"set-active":       (*App).controlSetActive,
	"toggle":           (*App).controlToggle,
	"hold-mode":        (*App).controlHoldMode,
	"reload":           (*App).controlReload,
	"refresh-displays": (*App).controlRefreshDisplays,
	"bindings":         (*App).controlBindings,
	"channels":         (*App).controlChannels,
	"history":          (*App).controlHistory,
	"warnings":         (*App).controlWarnings,
	"help":             func(*App, []string) ipc.Response { return ok(controlUsage) },
}

// executeControl serves one control-pipe request. It runs on the pipe
// server's connection goroutine.
func (a *App) executeControl(req ipc.Request) ipc.Response {
	command := strings.ToLower(strings.TrimSpace(req.Command))
	handler, found := controlHandlers[command]
	if !found {
		return usageError(fmt.Sprintf("unknown command %q\n%s", req.Command, controlUsage))
	}
	slog.Debug("[ipc] control command", "command", command, "args", req.Args)
	return handler(a, req.Args)
}

func ok(stdout string) ipc.Response {
	return ipc.Response{ExitCode: exitOK, Stdout: stdout}
}

func failure(err error) ipc.Response {
	return ipc.Response{ExitCode: exitError, Stderr: err.Error() + "\n"}
}

func usageError(message string) ipc.Response {
	return ipc.Response{ExitCode: exitUsage, Stderr: strings.TrimRight(message, "\n") + "\n"}
}

func parseOnOff(args []string) (bool, error) {
	if len(args) != 1 {
		return false, fmt.Errorf("expected exactly one argument: on|off")
	}
	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on|off, got %q", args[0])
	}
}

type statusReport struct {
	Engine       keybinder.Status `json:"engine"`
	ConfigPath   string           `json:"config_path"`
	DryRun       bool             `json:"dry_run"`
	Hotkey       string           `json:"hotkey,omitempty"`
	FeedURL      string           `json:"feed_url,omitempty"`
	Feed         *feed.Stats      `json:"feed,omitempty"`
	Control      *ipc.ServerStats `json:"control,omitempty"`
	FramesQueued int              `json:"frames_queued"`
	FramesStale  uint64           `json:"frames_dropped"`
	Journal      *journalReport   `json:"journal,omitempty"`
	Uptime       string           `json:"uptime"`
}

type journalReport struct {
	Path    string `json:"path"`
	Written uint64 `json:"written"`
	Dropped uint64 `json:"dropped"`
	Failed  uint64 `json:"failed"`
}

func (a *App) controlStatus(args []string) ipc.Response {
	if len(args) != 0 {
		return usageError("status takes no arguments")
	}
	var st keybinder.Status
	if err := a.call(func(e *keybinder.Engine) { st = e.Status() }); err != nil {
		return failure(err)
	}
	report := statusReport{
		Engine:       st,
		ConfigPath:   a.configPath,
		DryRun:       a.dryRun,
		FramesQueued: a.frames.Len(),
		FramesStale:  a.frames.Dropped(),
		Uptime:       time.Since(a.startedAt).Round(time.Second).String(),
	}
	if a.hotkeys != nil {
		report.Hotkey = a.hotkeys.Active()
	}
	if a.hub != nil {
		stats := a.hub.Stats()
		report.Feed = &stats
		report.FeedURL = a.hub.URL()
	}
	if a.pipeServer != nil {
		stats := a.pipeServer.Stats()
		report.Control = &stats
	}
	if w := a.journalWriter.Load(); w != nil && a.journal != nil {
		written, dropped, failed := w.Stats()
		report.Journal = &journalReport{Path: a.journal.Path(), Written: written, Dropped: dropped, Failed: failed}
	}
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return failure(fmt.Errorf("encode status: %w", err))
	}
	return ok(string(out) + "\n")
}

func (a *App) controlSetActive(args []string) ipc.Response {
	on, err := parseOnOff(args)
	if err != nil {
		return usageError("set-active: " + err.Error())
	}
	var active bool
	if err := a.call(func(e *keybinder.Engine) {
		e.SetActive(on)
		active = e.Active()
	}); err != nil {
		return failure(err)
	}
	return ok(fmt.Sprintf("active: %t\n", active))
}

func (a *App) controlToggle(args []string) ipc.Response {
	if len(args) != 0 {
		return usageError("toggle takes no arguments")
	}
	var active bool
	if err := a.call(func(e *keybinder.Engine) {
		e.Toggle()
		active = e.Active()
	}); err != nil {
		return failure(err)
	}
	return ok(fmt.Sprintf("active: %t\n", active))
}

func (a *App) controlHoldMode(args []string) ipc.Response {
	on, err := parseOnOff(args)
	if err != nil {
		return usageError("hold-mode: " + err.Error())
	}
	var holdMode bool
	if err := a.call(func(e *keybinder.Engine) {
		e.SetHoldMode(on)
		holdMode = e.Status().HoldMode
	}); err != nil {
		return failure(err)
	}
	return ok(fmt.Sprintf("hold mode: %t\n", holdMode))
}

func (a *App) controlReload(args []string) ipc.Response {
	if len(args) != 0 {
		return usageError("reload takes no arguments")
	}
	if _, err := a.store.Reload(); err != nil {
		return failure(fmt.Errorf("reload failed, previous config kept: %w", err))
	}
	return ok(fmt.Sprintf("reloaded %d bindings from %s\n", a.store.Settings().Bindings.Len(), a.store.Path()))
}

func (a *App) controlRefreshDisplays(args []string) ipc.Response {
	if len(args) != 0 {
		return usageError("refresh-displays takes no arguments")
	}
	var (
		refreshErr error
		monitors   int
	)
	if err := a.call(func(e *keybinder.Engine) {
		refreshErr = e.RefreshTopology()
		monitors = e.Status().Monitors
	}); err != nil {
		return failure(err)
	}
	if refreshErr != nil {
		return failure(fmt.Errorf("monitor enumeration failed, previous layout kept: %w", refreshErr))
	}
	return ok(fmt.Sprintf("monitors: %d\n", monitors))
}

type bindingsDocument struct {
	MouseBindings    config.BindingTable `yaml:"mouse_bindings"`
	KeyboardBindings config.BindingTable `yaml:"keyboard_bindings"`
}

func (a *App) controlBindings(args []string) ipc.Response {
	if len(args) != 0 {
		return usageError("bindings takes no arguments")
	}
	cfg := a.store.Config()
	out, err := yaml.Marshal(bindingsDocument{MouseBindings: cfg.MouseBindings, KeyboardBindings: cfg.KeyboardBindings})
	if err != nil {
		return failure(fmt.Errorf("encode bindings: %w", err))
	}
	return ok(string(out))
}

func (a *App) controlChannels(args []string) ipc.Response {
	if len(args) != 0 {
		return usageError("channels takes no arguments")
	}
	var b strings.Builder
	for i, name := range a.vocab.Names() {
		fmt.Fprintf(&b, "%d\t%s\n", i, name)
	}
	return ok(b.String())
}

// parseLimit reads the optional count argument of history and warnings.
func parseLimit(command string, args []string) (int, error) {
	switch len(args) {
	case 0:
		return defaultHistoryLimit, nil
	case 1:
		n, err := strconv.Atoi(strings.TrimSpace(args[0]))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%s: invalid count %q", command, args[0])
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s takes at most one argument", command)
	}
}

func (a *App) controlHistory(args []string) ipc.Response {
	limit, err := parseLimit("history", args)
	if err != nil {
		return usageError(err.Error())
	}
	if a.journal == nil {
		return failure(fmt.Errorf("journal is disabled"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlCallTimeout)
	defer cancel()
	intents, err := a.journal.RecentIntents(ctx, a.sessionID, limit)
	if err != nil {
		return failure(err)
	}
	return jsonLines(intents)
}

func (a *App) controlWarnings(args []string) ipc.Response {
	limit, err := parseLimit("warnings", args)
	if err != nil {
		return usageError(err.Error())
	}
	if a.journal == nil {
		return failure(fmt.Errorf("journal is disabled"))
	}
	ctx, cancel := context.WithTimeout(context.Background(), controlCallTimeout)
	defer cancel()
	logs, err := a.journal.RecentLogs(ctx, a.sessionID, limit)
	if err != nil {
		return failure(err)
	}
	return jsonLines(logs)
}

// jsonLines writes newest-first rows oldest first, one JSON object per line.
func jsonLines[T any](rows []T) ipc.Response {
	var sb strings.Builder
	for i := len(rows) - 1; i >= 0; i-- {
		line, err := json.Marshal(rows[i])
		if err != nil {
			return failure(fmt.Errorf("encode row: %w", err))
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return ok(sb.String())
}
