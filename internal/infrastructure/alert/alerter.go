// Package alert implements the best-effort delivery side-channel: a short
// audio cue plus a native desktop notification. Nothing here may fail loudly;
// every error is swallowed and at most logged at debug level.
package alert

import (
	"sync/atomic"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"github.com/opsdesk/desk-agent/internal/api/metrics"
	"github.com/opsdesk/desk-agent/internal/core/ports"
)

// Alerter delivers desktop alerts once unlocked by a user interaction.
type Alerter struct {
	log      zerolog.Logger
	unlocked atomic.Bool
}

var _ ports.Alerter = (*Alerter)(nil)

// New creates a locked alerter. The first user interaction must call Unlock
// before any cue is allowed to play.
func New(log zerolog.Logger) *Alerter {
	beeep.AppName = "deskd"
	return &Alerter{log: log}
}

// Unlock arms the channel. Idempotent.
func (a *Alerter) Unlock() {
	if a.unlocked.CompareAndSwap(false, true) {
		a.log.Debug().Msg("alert channel unlocked")
	}
}

// Unlocked reports whether the channel has been armed.
func (a *Alerter) Unlocked() bool { return a.unlocked.Load() }

// Notify plays the cue and shows a native notification. A locked channel
// skips silently; delivery failures are swallowed.
func (a *Alerter) Notify(title, message string) {
	if !a.unlocked.Load() {
		metrics.AlertsTotal.WithLabelValues("skipped").Inc()
		return
	}
	metrics.AlertsTotal.WithLabelValues("delivered").Inc()

	go func() {
		defer func() {
			// A misbehaving platform backend must not take the caller down.
			if r := recover(); r != nil {
				a.log.Debug().Interface("panic", r).Msg("alert delivery panicked")
			}
		}()
		if err := beeep.Beep(beeep.DefaultFreq, beeep.DefaultDuration); err != nil {
			a.log.Debug().Err(err).Msg("audio cue failed")
		}
		if err := beeep.Notify(title, message, ""); err != nil {
			a.log.Debug().Err(err).Msg("native notification failed")
		}
	}()
}
