package monitors

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/hysteresis"
)

// AutoDisarm implements the two independent auto-disarm timers:
// landed-for-N-seconds, and kill-switch-engaged-for-5-seconds.
type AutoDisarm struct {
	landed     *hysteresis.Hysteresis
	killSwitch *hysteresis.Hysteresis
	sink       events.Sink
}

// NewAutoDisarm creates an AutoDisarm with the given per-timer intervals.
func NewAutoDisarm(landedFor, killSwitchFor time.Duration, sink events.Sink) *AutoDisarm {
	return &AutoDisarm{
		landed:     hysteresis.New(landedFor),
		killSwitch: hysteresis.New(killSwitchFor),
		sink:       sink,
	}
}

// Update evaluates both timers and returns whether a disarm should be
// triggered this tick. haveTakenOff gates the landed timer: a vehicle
// armed and left sitting on the ground
// must never auto-disarm off the landed timer alone, since it never had a
// flight to land from.
func (a *AutoDisarm) Update(armed, landed, killSwitchEngaged, haveTakenOff bool, now time.Time) bool {
	if !armed {
		a.landed.Reset()
		a.killSwitch.Reset()
		return false
	}

	landedTimeout := a.landed.SetStateAndUpdate(landed, now) && haveTakenOff
	killTimeout := a.killSwitch.SetStateAndUpdate(killSwitchEngaged, now)

	if landedTimeout && a.sink != nil {
		a.sink.Emit(events.Event{ID: events.IDAutoDisarmLand, Severity: events.SeverityInfo, Template: "auto-disarm after landing"})
	}
	if killTimeout && a.sink != nil {
		a.sink.Emit(events.Event{ID: events.IDKillSwitch, Severity: events.SeverityWarning, Template: "auto-disarm via kill switch"})
	}

	return landedTimeout || killTimeout
}
