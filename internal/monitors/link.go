// Package monitors implements the per-tick watchdogs feeding the Failsafe
// Resolver: link loss per role, battery ladder, wind, and
// geofence re-evaluation, plus the auto-disarm timers.
package monitors

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/hysteresis"
)

// LinkRole identifies which heartbeat stream a Link monitor instance tracks.
type LinkRole int

const (
	RoleGCS LinkRole = iota
	RoleRC
	RoleOnboardController
	RoleParachute
	RoleOpenDroneID
	RoleAvoidance
	RoleHighLatency
)

// Link tracks heartbeat age against a timeout for a single role, with a
// debounced lost/regained edge and USB's sticky-connected override.
type Link struct {
	role      LinkRole
	timeout   time.Duration
	lost      *hysteresis.Hysteresis
	usbSticky bool

	lostEventID, regainedEventID string

	wasLost bool
	sink    events.Sink
}

// NewLink creates a Link monitor. debounce is the continuous-loss hold
// before the lost edge fires.
func NewLink(role LinkRole, timeout, debounce time.Duration, sink events.Sink) *Link {
	lostID, regainedID := events.IDGCSLost, events.IDGCSRegained
	if role == RoleRC {
		lostID, regainedID = events.IDRCLost, events.IDRCRegained
	}
	return &Link{role: role, timeout: timeout, lost: hysteresis.New(debounce), sink: sink,
		lostEventID: lostID, regainedEventID: regainedID}
}

// SetUSBSticky marks the link as always-connected because it is a USB/serial
// link rather than a radio link.
func (l *Link) SetUSBSticky(sticky bool) {
	l.usbSticky = sticky
}

// Update evaluates one tick given the age of the last received heartbeat.
// Returns (lost, changed).
func (l *Link) Update(lastHeartbeatAge time.Duration, now time.Time) (lost bool, changed bool) {
	if l.usbSticky {
		lost = l.lost.SetStateAndUpdate(false, now)
	} else {
		lost = l.lost.SetStateAndUpdate(lastHeartbeatAge > l.timeout, now)
	}

	changed = lost != l.wasLost
	if changed && l.sink != nil {
		id := l.lostEventID
		if !lost {
			id = l.regainedEventID
		}
		l.sink.Emit(events.Event{ID: id, Severity: events.SeverityWarning, Template: "link state changed", Params: map[string]any{"role": int(l.role), "lost": lost}})
	}
	l.wasLost = lost
	return lost, changed
}

// Lost reports the current debounced state without re-evaluating.
func (l *Link) Lost() bool { return l.wasLost }
