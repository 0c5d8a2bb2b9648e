package journal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), "  "); err == nil {
		t.Fatal("Open(blank) error = nil, want error")
	}
}

func TestAppendAndRecent(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	base := time.UnixMilli(1_700_000_000_000)

	if err := j.BeginSession(ctx, "s1", base); err != nil {
		t.Fatalf("BeginSession() error = %v", err)
	}
	err := j.Append(ctx,
		[]Intent{
			{SessionID: "s1", At: base, Kind: "keyDown", Target: "space", Channel: "jawOpen"},
			{SessionID: "s1", At: base.Add(time.Second), Kind: "move", X: 960, Y: 540, Channel: "browInnerUp"},
			{SessionID: "s2", At: base.Add(2 * time.Second), Kind: "click", Target: "left", Error: "denied"},
		},
		[]Log{{SessionID: "s1", At: base, Level: "WARN", Message: "screen size query failed", Source: "engine"}},
	)
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	all, err := j.RecentIntents(ctx, "", 10)
	if err != nil {
		t.Fatalf("RecentIntents() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("RecentIntents(all) len = %d, want 3", len(all))
	}
	if all[0].Kind != "click" || all[0].Error != "denied" {
		t.Fatalf("newest intent = %+v, want the failed click", all[0])
	}

	s1, err := j.RecentIntents(ctx, "s1", 1)
	if err != nil {
		t.Fatalf("RecentIntents(s1) error = %v", err)
	}
	if len(s1) != 1 {
		t.Fatalf("RecentIntents(s1, 1) len = %d, want 1", len(s1))
	}
	want := Intent{SessionID: "s1", At: base.Add(time.Second), Kind: "move", X: 960, Y: 540, Channel: "browInnerUp"}
	if !s1[0].At.Equal(want.At) {
		t.Fatalf("At = %v, want %v", s1[0].At, want.At)
	}
	s1[0].At = want.At
	if s1[0] != want {
		t.Fatalf("RecentIntents(s1)[0] = %+v, want %+v", s1[0], want)
	}

	logs, err := j.RecentLogs(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("RecentLogs() error = %v", err)
	}
	if len(logs) != 1 || logs[0].Message != "screen size query failed" || logs[0].Source != "engine" {
		t.Fatalf("RecentLogs() = %+v", logs)
	}
}

func TestAppendEmptyBatch(t *testing.T) {
	j := openTestJournal(t)
	if err := j.Append(context.Background(), nil, nil); err != nil {
		t.Fatalf("Append(nil, nil) error = %v", err)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j := openTestJournal(t)
	old := time.UnixMilli(1_000)
	recent := time.UnixMilli(5_000)

	if err := j.Append(ctx,
		[]Intent{{SessionID: "s", At: old, Kind: "keyUp"}, {SessionID: "s", At: recent, Kind: "keyDown"}},
		[]Log{{SessionID: "s", At: old, Level: "WARN", Message: "old"}},
	); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	n, err := j.Prune(ctx, time.UnixMilli(2_000))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("Prune() removed %d rows, want 2", n)
	}
	intents, _ := j.RecentIntents(ctx, "", 10)
	if len(intents) != 1 || intents[0].Kind != "keyDown" {
		t.Fatalf("remaining intents = %+v, want only keyDown", intents)
	}
}

func TestClosedJournal(t *testing.T) {
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if err := j.Append(context.Background(), []Intent{{Kind: "click"}}, nil); !errors.Is(err, ErrClosed) {
		t.Fatalf("Append() after Close error = %v, want ErrClosed", err)
	}
	if _, err := j.RecentIntents(context.Background(), "", 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("RecentIntents() after Close error = %v, want ErrClosed", err)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Append(ctx, []Intent{{SessionID: "s", At: time.UnixMilli(1), Kind: "click", Target: "left"}}, nil); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	j.Close()

	j2, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer j2.Close()
	got, err := j2.RecentIntents(ctx, "", 5)
	if err != nil {
		t.Fatalf("RecentIntents() error = %v", err)
	}
	if len(got) != 1 || got[0].Target != "left" {
		t.Fatalf("RecentIntents() after reopen = %+v", got)
	}
}

func TestClampLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, 20}, {-3, 20}, {5, 5}, {maxQueryLimit + 1, maxQueryLimit},
	}
	for _, tt := range tests {
		if got := clampLimit(tt.in); got != tt.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
