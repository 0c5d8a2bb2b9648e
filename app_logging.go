package main

import (
	"io"
	"log/slog"

	"gesturekeys/internal/journal"
	"gesturekeys/internal/sessionlog"
)

// newLogHandler writes text logs to w at the App's level and copies
// warnings and errors into the journal once it is open.
func (a *App) newLogHandler(w io.Writer) slog.Handler {
	base := slog.NewTextHandler(w, &slog.HandlerOptions{Level: a.logLevel})
	return sessionlog.NewTeeHandler(base, slog.LevelWarn, a.journalLog)
}

func (a *App) journalLog(e sessionlog.Entry) {
	w := a.journalWriter.Load()
	if w == nil {
		return
	}
	w.RecordLog(journal.Log{
		At:      e.Time,
		Level:   e.Level.String(),
		Message: e.Text(),
		Source:  e.Source,
	})
}
