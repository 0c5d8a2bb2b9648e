package singleinstance

import (
	"errors"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func testLockName(t *testing.T, suffix string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		return `Local\gesturekeys-test-` + suffix
	}
	return filepath.Join(t.TempDir(), "gesturekeys-test-"+suffix+".lock")
}

func TestTryLock(t *testing.T) {
	tests := []struct {
		name string
		run  func(t *testing.T)
	}{
		{
			name: "first lock succeeds",
			run: func(t *testing.T) {
				lock, err := TryLock(testLockName(t, "first"))
				if err != nil {
					t.Fatalf("TryLock() error = %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("Release() error = %v", err)
				}
			},
		},
		{
			name: "second lock reports already running",
			run: func(t *testing.T) {
				name := testLockName(t, "second")
				first, err := TryLock(name)
				if err != nil {
					t.Fatalf("first TryLock() error = %v", err)
				}
				defer first.Release()

				second, err := TryLock(name)
				if !errors.Is(err, ErrAlreadyRunning) {
					t.Fatalf("second TryLock() error = %v, want ErrAlreadyRunning", err)
				}
				if second != nil {
					t.Fatal("second TryLock() returned a lock alongside ErrAlreadyRunning")
				}
			},
		},
		{
			name: "lock can be retaken after release",
			run: func(t *testing.T) {
				name := testLockName(t, "retake")
				first, err := TryLock(name)
				if err != nil {
					t.Fatalf("first TryLock() error = %v", err)
				}
				if err := first.Release(); err != nil {
					t.Fatalf("Release() error = %v", err)
				}
				second, err := TryLock(name)
				if err != nil {
					t.Fatalf("TryLock() after release error = %v", err)
				}
				defer second.Release()
			},
		},
		{
			name: "release is idempotent",
			run: func(t *testing.T) {
				lock, err := TryLock(testLockName(t, "idempotent"))
				if err != nil {
					t.Fatalf("TryLock() error = %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("first Release() error = %v", err)
				}
				if err := lock.Release(); err != nil {
					t.Fatalf("second Release() error = %v", err)
				}
			},
		},
		{
			name: "nil lock release",
			run: func(t *testing.T) {
				var lock *Lock
				if err := lock.Release(); err != nil {
					t.Fatalf("nil Release() error = %v", err)
				}
			},
		},
		{
			name: "name is kept",
			run: func(t *testing.T) {
				name := testLockName(t, "named")
				lock, err := TryLock(name)
				if err != nil {
					t.Fatalf("TryLock() error = %v", err)
				}
				defer lock.Release()
				if got := lock.Name(); got != name {
					t.Fatalf("Name() = %q, want %q", got, name)
				}
			},
		},
		{
			name: "empty name",
			run: func(t *testing.T) {
				lock, err := TryLock("")
				if err == nil {
					lock.Release()
					t.Fatal("TryLock(\"\") error = nil, want error")
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.run)
	}
}

func TestDefaultName(t *testing.T) {
	t.Setenv("USERNAME", `CORP\alice`)
	t.Setenv("USER", "")
	name := DefaultName()
	if !strings.Contains(name, "gesturekeys-CORP_alice") {
		t.Fatalf("DefaultName() = %q, want it to contain %q", name, "gesturekeys-CORP_alice")
	}
}
