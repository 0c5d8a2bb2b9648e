// Package journal persists what the daemon did: every emitted intent and
// every warning or error log record, stamped with the engine session that
// produced it. Storage is a single SQLite file.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// ErrClosed is returned by operations on a closed Journal.
var ErrClosed = errors.New("journal is closed")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT PRIMARY KEY,
	started_at INTEGER NOT NULL,
	pid        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS intents (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	at         INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	target     TEXT    NOT NULL DEFAULT '',
	x          INTEGER NOT NULL DEFAULT 0,
	y          INTEGER NOT NULL DEFAULT 0,
	channel    TEXT    NOT NULL DEFAULT '',
	error      TEXT    NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS intents_session_at ON intents(session_id, at);
CREATE TABLE IF NOT EXISTS logs (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT    NOT NULL,
	at         INTEGER NOT NULL,
	level      TEXT    NOT NULL,
	message    TEXT    NOT NULL,
	source     TEXT    NOT NULL DEFAULT ''
);
`

// Intent is one journaled injection. At is stored with millisecond precision.
type Intent struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Kind      string    `json:"kind"`
	Target    string    `json:"target,omitempty"`
	X         int       `json:"x,omitempty"`
	Y         int       `json:"y,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Log is one journaled log record.
type Log struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Source    string    `json:"source,omitempty"`
}

// Journal is a handle on the SQLite file. Safe for concurrent use.
type Journal struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open opens or creates the journal at path and applies the schema.
func Open(ctx context.Context, path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	// SQLite serializes writers anyway; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply journal schema: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string { return j.path }

// Close closes the database. Safe to call more than once.
func (j *Journal) Close() error {
	if j == nil || !j.closed.CompareAndSwap(false, true) {
		return nil
	}
	return j.db.Close()
}

// BeginSession records the start of an engine session.
func (j *Journal) BeginSession(ctx context.Context, id string, startedAt time.Time) error {
	if j.closed.Load() {
		return ErrClosed
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions(id, started_at, pid) VALUES (?, ?, ?)`,
		id, startedAt.UnixMilli(), os.Getpid())
	if err != nil {
		return fmt.Errorf("begin session %s: %w", id, err)
	}
	return nil
}

// Append writes a batch of intents and logs in one transaction.
func (j *Journal) Append(ctx context.Context, intents []Intent, logs []Log) error {
	if j.closed.Load() {
		return ErrClosed
	}
	if len(intents) == 0 && len(logs) == 0 {
		return nil
	}
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback()

	for _, in := range intents {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO intents(session_id, at, kind, target, x, y, channel, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			in.SessionID, in.At.UnixMilli(), in.Kind, in.Target, in.X, in.Y, in.Channel, in.Error,
		); err != nil {
			return fmt.Errorf("journal intent: %w", err)
		}
	}
	for _, l := range logs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO logs(session_id, at, level, message, source) VALUES (?, ?, ?, ?, ?)`,
			l.SessionID, l.At.UnixMilli(), l.Level, l.Message, l.Source,
		); err != nil {
			return fmt.Errorf("journal log: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	return nil
}

// RecentIntents returns up to limit intents, newest first. An empty
// sessionID matches every session.
func (j *Journal) RecentIntents(ctx context.Context, sessionID string, limit int) ([]Intent, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, at, kind, target, x, y, channel, error FROM intents
		 WHERE (? = '' OR session_id = ?) ORDER BY seq DESC LIMIT ?`,
		sessionID, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query intents: %w", err)
	}
	defer rows.Close()

	var out []Intent
	for rows.Next() {
		var (
			in Intent
			at int64
		)
		if err := rows.Scan(&in.SessionID, &at, &in.Kind, &in.Target, &in.X, &in.Y, &in.Channel, &in.Error); err != nil {
			return nil, fmt.Errorf("scan intent: %w", err)
		}
		in.At = time.UnixMilli(at)
		out = append(out, in)
	}
	return out, rows.Err()
}

// RecentLogs returns up to limit log records, newest first. An empty
// sessionID matches every session.
func (j *Journal) RecentLogs(ctx context.Context, sessionID string, limit int) ([]Log, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT session_id, at, level, message, source FROM logs
		 WHERE (? = '' OR session_id = ?) ORDER BY seq DESC LIMIT ?`,
		sessionID, sessionID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	var out []Log
	for rows.Next() {
		var (
			l  Log
			at int64
		)
		if err := rows.Scan(&l.SessionID, &at, &l.Level, &l.Message, &l.Source); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		l.At = time.UnixMilli(at)
		out = append(out, l)
	}
	return out, rows.Err()
}

// Prune deletes intents and logs older than cutoff and returns how many
// rows went.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if j.closed.Load() {
		return 0, ErrClosed
	}
	var total int64
	for _, table := range []string{"intents", "logs"} {
		res, err := j.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE at < ?`, cutoff.UnixMilli())
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

const maxQueryLimit = 1000

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 20
	case limit > maxQueryLimit:
		return maxQueryLimit
	default:
		return limit
	}
}
