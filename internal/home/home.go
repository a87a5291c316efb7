// Package home implements the Home Position Manager:
// latching a reference position on first arm past boot-holdoff, on an
// explicit set-home command, or on a takeoff edge for in-air-home-enabled
// vehicles, and validity bookkeeping for the failsafe actions that require
// it to remain valid once latched.
package home

import (
	"math"
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Reason distinguishes why a home position was (or would be) set.
type Reason int

const (
	ReasonFirstArm Reason = iota
	ReasonExplicitCurrentPosition
	ReasonExplicitManual
	ReasonTakeoffEdge
)

// Inputs carries the per-tick vehicle state the manager consults.
type Inputs struct {
	Now time.Time

	Armed              bool
	WasArmedLastTick   bool
	Landed             bool
	WasLandedLastTick  bool
	BootHoldoffElapsed bool

	CurrentLat, CurrentLon, CurrentAlt float64
	CurrentYaw                         float64
	PositionValid                      bool

	HomeInAirEnabled bool
}

// Manager owns the latched home position and whether it is still required to
// stay valid for an in-progress failsafe action.
type Manager struct {
	home                 vstatus.HomePosition
	requiredForFailsafe  bool

	sink events.Sink
}

// New creates an empty, invalid Manager.
func New(sink events.Sink) *Manager {
	return &Manager{sink: sink}
}

// Current returns the latched home position.
func (m *Manager) Current() vstatus.HomePosition {
	return m.home
}

// LockForFailsafe marks home as required to remain valid for the duration of
// an in-progress failsafe action that depends on it (e.g. RTL). Once locked,
// Invalidate is refused until UnlockFailsafe is called.
func (m *Manager) LockForFailsafe() {
	m.requiredForFailsafe = true
}

// UnlockFailsafe releases the lock set by LockForFailsafe, once the
// home-dependent failsafe action has concluded.
func (m *Manager) UnlockFailsafe() {
	m.requiredForFailsafe = false
}

func finite(lat, lon, alt float64) bool {
	return !math.IsNaN(lat) && !math.IsInf(lat, 0) &&
		!math.IsNaN(lon) && !math.IsInf(lon, 0) &&
		!math.IsNaN(alt) && !math.IsInf(alt, 0)
}

func (m *Manager) set(lat, lon, alt, yaw float64, now time.Time, reason Reason) bool {
	if !finite(lat, lon, alt) {
		return false
	}
	m.home = vstatus.HomePosition{
		Latitude:  lat,
		Longitude: lon,
		Altitude:  alt,
		Yaw:       yaw,
		Timestamp: now,
		Valid:     true,
	}
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDHomeSet,
			Severity: events.SeverityInfo,
			Template: "home position set",
			Params:   map[string]any{"reason": int(reason)},
		})
	}
	return true
}

// Update evaluates the automatic home-setting triggers: first arm past the
// boot holdoff, and (if enabled) the takeoff edge while airborne-home is
// allowed. It returns true if home was (re)latched this tick.
func (m *Manager) Update(in Inputs) bool {
	justArmed := in.Armed && !in.WasArmedLastTick
	if justArmed && in.BootHoldoffElapsed && in.PositionValid {
		return m.set(in.CurrentLat, in.CurrentLon, in.CurrentAlt, in.CurrentYaw, in.Now, ReasonFirstArm)
	}

	justTookOff := in.WasLandedLastTick && !in.Landed
	if justTookOff && in.HomeInAirEnabled && !m.home.Valid && in.PositionValid {
		return m.set(in.CurrentLat, in.CurrentLon, in.CurrentAlt, in.CurrentYaw, in.Now, ReasonTakeoffEdge)
	}

	return false
}

// SetExplicitCurrent handles DO_SET_HOME with use-current-position.
func (m *Manager) SetExplicitCurrent(in Inputs) bool {
	if !in.PositionValid {
		return false
	}
	return m.set(in.CurrentLat, in.CurrentLon, in.CurrentAlt, in.CurrentYaw, in.Now, ReasonExplicitCurrentPosition)
}

// SetExplicitManual handles DO_SET_HOME with an explicit lat/lon/alt/yaw
// payload.
func (m *Manager) SetExplicitManual(lat, lon, alt, yaw float64, now time.Time) bool {
	return m.set(lat, lon, alt, yaw, now, ReasonExplicitManual)
}

// Invalidate drops home validity, refusing to do so while a failsafe action
// has locked it.
func (m *Manager) Invalidate() bool {
	if m.requiredForFailsafe {
		return false
	}
	m.home = vstatus.HomePosition{}
	return true
}
