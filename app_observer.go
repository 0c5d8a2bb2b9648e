package main

import (
	"log/slog"

	"gesturekeys/internal/feed"
	"gesturekeys/internal/journal"
	"gesturekeys/internal/keybinder"
)

type intentPusher interface {
	PushIntent(msg feed.IntentMessage)
	PushActive(active bool)
}

// intentObserver fans Engine events out to the feed client and the journal.
// It runs on the dispatch goroutine and never blocks: the hub and the
// journal writer both queue into bounded buffers and drop when full.
type intentObserver struct {
	pusher  func() intentPusher
	journal func() *journal.Writer
}

func (a *App) newObserver() *intentObserver {
	return &intentObserver{
		pusher: func() intentPusher {
			if a.hub == nil {
				return nil
			}
			return a.hub
		},
		journal: a.journalWriter.Load,
	}
}

// OnIntent implements keybinder.Observer.
func (o *intentObserver) OnIntent(intent keybinder.Intent, err error) {
	var errText string
	if err != nil {
		errText = err.Error()
	}
	if p := o.pusher(); p != nil {
		p.PushIntent(feed.IntentMessage{
			Kind:    intent.Kind.String(),
			Target:  intent.Target,
			X:       intent.X,
			Y:       intent.Y,
			Channel: intent.Channel,
			Error:   errText,
		})
	}
	if w := o.journal(); w != nil {
		w.RecordIntent(journal.Intent{
			Kind:    intent.Kind.String(),
			Target:  intent.Target,
			X:       intent.X,
			Y:       intent.Y,
			Channel: intent.Channel,
			Error:   errText,
		})
	}
}

// OnActiveChanged implements keybinder.Observer.
func (o *intentObserver) OnActiveChanged(active bool) {
	slog.Info("[DEBUG-KEYBIND] active", "active", active)
	if p := o.pusher(); p != nil {
		p.PushActive(active)
	}
}
