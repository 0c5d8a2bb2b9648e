// Package singleinstance keeps a second daemon for the same user from
// starting while one is already running.
package singleinstance

import (
	"errors"
	"sync"

	"gesturekeys/internal/userutil"
)

// ErrAlreadyRunning is returned by TryLock when another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")

const namePrefix = "gesturekeys-"

// Lock is a held instance lock. The OS drops it when the process exits, so
// a crash never leaves a stale lock behind.
type Lock struct {
	name    string
	once    sync.Once
	release func() error
}

// TryLock takes the lock called name without blocking. On Windows name is
// a kernel mutex name; elsewhere it is a lock file path.
func TryLock(name string) (*Lock, error) {
	if name == "" {
		return nil, errors.New("lock name is required")
	}
	release, err := acquire(name)
	if err != nil {
		return nil, err
	}
	return &Lock{name: name, release: release}, nil
}

// Name returns the name the lock was taken under.
func (l *Lock) Name() string {
	if l == nil {
		return ""
	}
	return l.name
}

// Release gives the lock up. Safe on a nil Lock and idempotent.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	var err error
	l.once.Do(func() { err = l.release() })
	return err
}

func userScopedName() string {
	return namePrefix + userutil.CurrentUsername()
}
