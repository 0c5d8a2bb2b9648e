package journal

import (
	"context"
	"fmt"
	"os"
	"sync/atomic"
	"time"
)

const (
	// DefaultBuffer is the number of pending records a Writer holds.
	DefaultBuffer = 1024
	maxBatch      = 64
	flushInterval = 250 * time.Millisecond
	drainTimeout  = 2 * time.Second
)

type record struct {
	intent *Intent
	log    *Log
}

// Writer queues records for a single background goroutine so callers never
// wait on SQLite. When the queue is full new records are dropped and
// counted.
type Writer struct {
	journal *Journal
	session string
	queue   chan record
	now     func() time.Time

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewWriter creates a Writer that stamps records with sessionID.
func NewWriter(j *Journal, sessionID string, buffer int) *Writer {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Writer{
		journal: j,
		session: sessionID,
		queue:   make(chan record, buffer),
		now:     time.Now,
	}
}

// SessionID returns the session stamped on every record.
func (w *Writer) SessionID() string { return w.session }

// RecordIntent queues in without blocking.
func (w *Writer) RecordIntent(in Intent) {
	in.SessionID = w.session
	if in.At.IsZero() {
		in.At = w.now()
	}
	w.enqueue(record{intent: &in})
}

// RecordLog queues l without blocking.
func (w *Writer) RecordLog(l Log) {
	l.SessionID = w.session
	if l.At.IsZero() {
		l.At = w.now()
	}
	w.enqueue(record{log: &l})
}

func (w *Writer) enqueue(r record) {
	select {
	case w.queue <- r:
	default:
		w.dropped.Add(1)
	}
}

// Stats reports records written, dropped on a full queue, and lost to
// write errors.
func (w *Writer) Stats() (written, dropped, failed uint64) {
	return w.written.Load(), w.dropped.Load(), w.failed.Load()
}

// Run drains the queue in batches until ctx is cancelled, then flushes
// whatever is still queued.
func (w *Writer) Run(ctx context.Context) {
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	var intents []Intent
	var logs []Log
	flush := func(ctx context.Context) {
		if len(intents) == 0 && len(logs) == 0 {
			return
		}
		n := uint64(len(intents) + len(logs))
		if err := w.journal.Append(ctx, intents, logs); err != nil {
			w.failed.Add(n)
			// Written to stderr: a slog record here would be journaled again.
			fmt.Fprintf(os.Stderr, "[journal] write failed, %d records lost: %v\n", n, err)
		} else {
			w.written.Add(n)
		}
		intents, logs = intents[:0], logs[:0]
	}
	add := func(r record) {
		if r.intent != nil {
			intents = append(intents, *r.intent)
		}
		if r.log != nil {
			logs = append(logs, *r.log)
		}
	}

	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			for {
				select {
				case r := <-w.queue:
					add(r)
					if len(intents)+len(logs) >= maxBatch {
						flush(drainCtx)
					}
				default:
					flush(drainCtx)
					return
				}
			}
		case r := <-w.queue:
			add(r)
			if len(intents)+len(logs) >= maxBatch {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}
