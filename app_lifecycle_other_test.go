//go:build !windows

package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"gesturekeys/internal/display"
	"gesturekeys/internal/feed"
	"gesturekeys/internal/injector"
	"gesturekeys/internal/ipc"
	"gesturekeys/internal/journal"
)

func shortSocketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "gk")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return filepath.Join(dir, "gesturekeys-test.sock")
}

func TestStartupServesFeedAndControlPipe(t *testing.T) {
	originalDisplays := newDisplayProviderFn
	newDisplayProviderFn = func() display.Provider {
		return display.Static{{X: 0, Y: 0, Width: 1920, Height: 1080}}
	}
	t.Cleanup(func() { newDisplayProviderFn = originalDisplays })

	dir := t.TempDir()
	configPath := writeTestConfig(t, dir, strings.Replace(testConfigYAML, "enabled: false", "enabled: true", 1))
	endpoint := shortSocketPath(t)

	a := NewApp(appOptions{
		ConfigPath: configPath,
		DryRun:     true,
		FeedAddr:   "127.0.0.1:0",
		Endpoint:   endpoint,
		NoHotkey:   true,
	})
	if err := a.startup(context.Background()); err != nil {
		t.Fatalf("startup() error = %v", err)
	}
	t.Cleanup(a.shutdown)

	rec, ok := a.injector.(*injector.Recorder)
	if !ok || !a.dryRun {
		t.Fatalf("injector = %T (dryRun=%v), want *injector.Recorder", a.injector, a.dryRun)
	}
	if a.hub == nil || a.pipeServer == nil || a.journal == nil {
		t.Fatalf("collaborators missing: hub=%v pipe=%v journal=%v", a.hub != nil, a.pipeServer != nil, a.journal != nil)
	}

	conn, _, err := websocket.DefaultDialer.Dial(a.hub.URL(), nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	defer conn.Close()
	frame := feed.EncodeFrame(blendshapeVector(map[string]float64{"jawOpen": 0.9}))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
	waitFor(t, "keyDown(space)", func() bool { return len(rec.Calls()) == 1 })

	resp, err := ipc.Send(endpoint, ipc.Request{Command: "set-active", Args: []string{"off"}})
	if err != nil {
		t.Fatalf("ipc.Send() error = %v", err)
	}
	if resp.ExitCode != exitOK || resp.Stdout != "active: false\n" {
		t.Fatalf("set-active response = %+v", resp)
	}

	a.shutdown()

	// Destroy releases the key still held by the hold binding.
	want := []string{"keyDown(space)", "keyUp(space)"}
	if got := recordedCalls(rec); !reflect.DeepEqual(got, want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}

	j, err := journal.Open(context.Background(), filepath.Join(dir, "journal.db"))
	if err != nil {
		t.Fatalf("reopen journal: %v", err)
	}
	defer j.Close()
	intents, err := j.RecentIntents(context.Background(), a.sessionID, 10)
	if err != nil {
		t.Fatalf("RecentIntents() error = %v", err)
	}
	if len(intents) != 2 || intents[1].Kind != "keyDown" || intents[0].Kind != "keyUp" {
		t.Fatalf("journaled intents = %+v", intents)
	}
}

func TestShutdownWithoutStartup(t *testing.T) {
	a := NewApp(appOptions{})
	a.shutdown()
	a.shutdown()
}
