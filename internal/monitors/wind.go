package monitors

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
)

// Wind tracks warn/max thresholds with a 60s quiet period after the last
// RTL request it triggered, so a gusty wind field doesn't re-request RTL
// every tick.
type Wind struct {
	lastRequestAt time.Time
	haveRequested bool
	quiet         time.Duration
	sink          events.Sink
}

// NewWind creates a Wind monitor with the given quiet period.
func NewWind(quiet time.Duration, sink events.Sink) *Wind {
	return &Wind{quiet: quiet, sink: sink}
}

// Evaluation is the outcome of one tick.
type Evaluation struct {
	Warn        bool
	RequestRTL  bool
}

// Update evaluates the current wind speed against warn/max thresholds.
func (w *Wind) Update(speedMS, warnMS, maxMS float64, now time.Time) Evaluation {
	var ev Evaluation
	if speedMS >= warnMS {
		ev.Warn = true
	}
	if speedMS >= maxMS {
		if !w.haveRequested || now.Sub(w.lastRequestAt) >= w.quiet {
			ev.RequestRTL = true
			w.haveRequested = true
			w.lastRequestAt = now
			if w.sink != nil {
				w.sink.Emit(events.Event{ID: events.IDWindExceeded, Severity: events.SeverityWarning, Template: "wind speed exceeded max", Params: map[string]any{"speed_ms": speedMS}})
			}
		}
	}
	return ev
}
