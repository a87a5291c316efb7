package monitors

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/hysteresis"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Battery tracks the warning-level ladder. The ladder only ever worsens
// while armed: a recovering voltage reading cannot walk
// the warning level back down mid-flight. A worsened level must also hold
// for the configured action delay before WorsenedHeld reports it, so a
// transient sag under load does not fire a failsafe action.
type Battery struct {
	level            vstatus.BatteryWarning
	lowRemainingTime bool
	sink             events.Sink

	actionDelay *hysteresis.Hysteresis
	actedLevel  vstatus.BatteryWarning
}

// NewBattery creates a Battery monitor starting at BatteryNone. actionDelay
// is how long a worsened level must persist before it triggers an action; a
// zero delay makes the trigger immediate.
func NewBattery(actionDelay time.Duration, sink events.Sink) *Battery {
	return &Battery{sink: sink, actionDelay: hysteresis.New(actionDelay)}
}

// Sample is one tick's raw battery reading.
type Sample struct {
	RemainingFraction float64 // 0..1
	LowThreshold      float64
	CriticalThreshold float64
	EmergencyThreshold float64
	RemainingTimeSec  float64
	LowRemainingTimeThresholdSec float64
	Armed             bool
}

// Update evaluates one tick and returns the current (possibly unchanged)
// warning level.
func (b *Battery) Update(s Sample) vstatus.BatteryWarning {
	var observed vstatus.BatteryWarning
	switch {
	case s.RemainingFraction <= s.EmergencyThreshold:
		observed = vstatus.BatteryEmergency
	case s.RemainingFraction <= s.CriticalThreshold:
		observed = vstatus.BatteryCritical
	case s.RemainingFraction <= s.LowThreshold:
		observed = vstatus.BatteryLow
	default:
		observed = vstatus.BatteryNone
	}

	if s.Armed && observed > b.level {
		b.level = observed
		if b.sink != nil {
			b.sink.Emit(events.Event{ID: events.IDBatteryWarning, Severity: events.SeverityWarning, Template: "battery warning level raised", Params: map[string]any{"level": int(b.level)}})
		}
	} else if !s.Armed {
		// disarmed: the ladder may reset for the next flight
		b.level = observed
		b.actedLevel = observed
		b.actionDelay.Reset()
	}

	b.lowRemainingTime = s.RemainingTimeSec > 0 && s.RemainingTimeSec <= s.LowRemainingTimeThresholdSec
	return b.level
}

// WorsenedHeld reports whether the warning level sits above the last level
// an action was taken for and has done so continuously for the action
// delay. A true return records the current level as acted upon, so the next
// trigger needs a further worsening.
func (b *Battery) WorsenedHeld(now time.Time) bool {
	if b.actionDelay.SetStateAndUpdate(b.level > b.actedLevel, now) {
		b.actedLevel = b.level
		b.actionDelay.Reset()
		return true
	}
	return false
}

// Level returns the current latched warning level.
func (b *Battery) Level() vstatus.BatteryWarning { return b.level }

// LowRemainingTime mirrors status_flags.battery_low_remaining_time.
func (b *Battery) LowRemainingTime() bool { return b.lowRemainingTime }
