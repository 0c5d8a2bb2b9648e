package workerutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func fastOptions(maxRetries int) RecoveryOptions {
	return RecoveryOptions{
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
		MaxRetries:     maxRetries,
	}
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not finish in time")
	}
}

func TestRunWithPanicRecoveryNormalExit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var panics, fatals atomic.Int32

	opts := fastOptions(3)
	opts.OnPanic = func(string, int) { panics.Add(1) }
	opts.OnFatal = func(string, int) { fatals.Add(1) }

	started := make(chan struct{})
	RunWithPanicRecovery(ctx, "dispatch", &wg, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}, opts)

	<-started
	cancel()
	waitOrFail(t, &wg)

	if panics.Load() != 0 || fatals.Load() != 0 {
		t.Fatalf("panics=%d fatals=%d, want 0/0", panics.Load(), fatals.Load())
	}
}

func TestRunWithPanicRecoveryRestartsAfterPanic(t *testing.T) {
	var wg sync.WaitGroup
	var calls atomic.Int32
	var mu sync.Mutex
	var attempts []int

	opts := fastOptions(5)
	opts.OnPanic = func(worker string, attempt int) {
		if worker != "journal" {
			t.Errorf("OnPanic worker = %q, want %q", worker, "journal")
		}
		mu.Lock()
		attempts = append(attempts, attempt)
		mu.Unlock()
	}
	opts.OnFatal = func(string, int) { t.Error("OnFatal called, want no fatal") }

	RunWithPanicRecovery(context.Background(), "journal", &wg, func(context.Context) {
		if calls.Add(1) < 3 {
			panic("boom")
		}
	}, opts)
	waitOrFail(t, &wg)

	if got := calls.Load(); got != 3 {
		t.Fatalf("fn calls = %d, want 3", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("OnPanic attempts = %v, want [1 2]", attempts)
	}
}

func TestRunWithPanicRecoveryGivesUp(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		panicValue any
	}{
		{name: "string panic", maxRetries: 3, panicValue: "boom"},
		{name: "error panic", maxRetries: 2, panicValue: errors.New("boom")},
		{name: "single run", maxRetries: 1, panicValue: 42},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wg sync.WaitGroup
			var calls, panics atomic.Int32
			var fatalMax atomic.Int32

			opts := fastOptions(tt.maxRetries)
			opts.OnPanic = func(string, int) { panics.Add(1) }
			opts.OnFatal = func(_ string, n int) { fatalMax.Store(int32(n)) }

			RunWithPanicRecovery(context.Background(), "watcher", &wg, func(context.Context) {
				calls.Add(1)
				panic(tt.panicValue)
			}, opts)
			waitOrFail(t, &wg)

			if got := int(calls.Load()); got != tt.maxRetries {
				t.Errorf("fn calls = %d, want %d", got, tt.maxRetries)
			}
			if got := int(panics.Load()); got != tt.maxRetries {
				t.Errorf("OnPanic calls = %d, want %d", got, tt.maxRetries)
			}
			if got := int(fatalMax.Load()); got != tt.maxRetries {
				t.Errorf("OnFatal maxRetries = %d, want %d", got, tt.maxRetries)
			}
		})
	}
}

func TestRunWithPanicRecoveryStopsOnShutdown(t *testing.T) {
	var wg sync.WaitGroup
	var calls, panics atomic.Int32

	opts := fastOptions(5)
	opts.IsShutdown = func() bool { return true }
	opts.OnPanic = func(string, int) { panics.Add(1) }

	RunWithPanicRecovery(context.Background(), "dispatch", &wg, func(context.Context) {
		calls.Add(1)
		panic("boom")
	}, opts)
	waitOrFail(t, &wg)

	if calls.Load() != 1 {
		t.Fatalf("fn calls = %d, want 1", calls.Load())
	}
	if panics.Load() != 0 {
		t.Fatalf("OnPanic calls = %d, want 0 during shutdown", panics.Load())
	}
}

func TestRunWithPanicRecoveryCancelDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	var calls atomic.Int32

	opts := RecoveryOptions{InitialBackoff: time.Hour, MaxBackoff: time.Hour, MaxRetries: 3}
	opts.OnPanic = func(string, int) { cancel() }

	RunWithPanicRecovery(ctx, "dispatch", &wg, func(context.Context) {
		calls.Add(1)
		panic("boom")
	}, opts)
	waitOrFail(t, &wg)

	if calls.Load() != 1 {
		t.Fatalf("fn calls = %d, want 1", calls.Load())
	}
}

func TestWithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   RecoveryOptions
		want RecoveryOptions
	}{
		{
			name: "zero value",
			in:   RecoveryOptions{},
			want: RecoveryOptions{InitialBackoff: defaultInitialBackoff, MaxBackoff: defaultMaxBackoff, MaxRetries: defaultMaxRetries},
		},
		{
			name: "negative values",
			in:   RecoveryOptions{InitialBackoff: -1, MaxBackoff: -1, MaxRetries: -1},
			want: RecoveryOptions{InitialBackoff: defaultInitialBackoff, MaxBackoff: defaultMaxBackoff, MaxRetries: defaultMaxRetries},
		},
		{
			name: "max below initial is clamped",
			in:   RecoveryOptions{InitialBackoff: time.Second, MaxBackoff: time.Millisecond, MaxRetries: 2},
			want: RecoveryOptions{InitialBackoff: time.Second, MaxBackoff: time.Second, MaxRetries: 2},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.withDefaults()
			if got.InitialBackoff != tt.want.InitialBackoff || got.MaxBackoff != tt.want.MaxBackoff || got.MaxRetries != tt.want.MaxRetries {
				t.Fatalf("withDefaults() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNextBackoff(t *testing.T) {
	const maxInt64 = time.Duration(1<<63 - 1)
	tests := []struct {
		name    string
		current time.Duration
		limit   time.Duration
		want    time.Duration
	}{
		{"doubles", 100 * time.Millisecond, 5 * time.Second, 200 * time.Millisecond},
		{"caps at limit", 4 * time.Second, 5 * time.Second, 5 * time.Second},
		{"stays at limit", 5 * time.Second, 5 * time.Second, 5 * time.Second},
		{"zero resets", 0, 5 * time.Second, defaultInitialBackoff},
		{"overflow", maxInt64/2 + 1, maxInt64, maxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextBackoff(tt.current, tt.limit); got != tt.want {
				t.Fatalf("nextBackoff(%v, %v) = %v, want %v", tt.current, tt.limit, got, tt.want)
			}
		})
	}
}
