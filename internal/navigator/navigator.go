// Package navigator implements the Navigator Mode Dispatcher: a per-tick
// dispatch over the active autonomous mode that produces a Position
// Setpoint Triplet, with explicit triplet-preservation exceptions for
// loiter handoffs.
package navigator

import (
	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Kind is the tagged variant over the navigator's dispatchable modes.
type Kind int

const (
	KindNone Kind = iota
	KindMission
	KindLoiter
	KindRTL
	KindTakeoff
	KindVTOLTakeoff
	KindLand
	KindPrecland
)

// FromNavState maps a resolved NavState onto the dispatcher's mode
// vocabulary.
func FromNavState(n vstatus.NavState) Kind {
	switch n {
	case vstatus.NavAutoMission:
		return KindMission
	case vstatus.NavAutoLoiter, vstatus.NavAutoDescend:
		return KindLoiter
	case vstatus.NavAutoRTL, vstatus.NavAutoRCRecover:
		return KindRTL
	case vstatus.NavAutoTakeoff:
		return KindTakeoff
	case vstatus.NavAutoVTOLTakeoff:
		return KindVTOLTakeoff
	case vstatus.NavAutoLand, vstatus.NavAutoLandengfail:
		return KindLand
	case vstatus.NavAutoPrecland:
		return KindPrecland
	default:
		return KindNone
	}
}

// MissionSource supplies the current/next mission items; a real
// implementation reads the uploaded mission plan.
type MissionSource interface {
	CurrentItem() (vstatus.PositionSetpoint, bool)
	NextItem() (vstatus.PositionSetpoint, bool)
	LandStartAvailable() bool
	LandStartItem() (vstatus.PositionSetpoint, bool)
}

// Dispatcher owns the active triplet and mode, applying the
// triplet-preservation exceptions on transition.
type Dispatcher struct {
	kind    Kind
	triplet vstatus.PositionSetpointTriplet
	publishedInvalidOnce bool
}

// New creates a Dispatcher starting in KindNone with an invalid triplet.
func New() *Dispatcher {
	return &Dispatcher{kind: KindNone}
}

// Triplet returns the currently held triplet.
func (d *Dispatcher) Triplet() vstatus.PositionSetpointTriplet {
	return d.triplet
}

// Kind returns the currently active mode.
func (d *Dispatcher) Kind() Kind {
	return d.kind
}

func isValidLoiter(t vstatus.PositionSetpointTriplet) bool {
	return t.Current.Valid && t.Current.Type == vstatus.SetpointLoiter
}

// transitionTo applies the default triplet-reset rule, or preserves the
// current triplet for the two named exceptions:
//   - AUTO_TAKEOFF -> AUTO_LOITER preserves the triplet
//   - any mode -> AUTO_LOITER when the current triplet is already a valid
//     loiter setpoint preserves the triplet
func (d *Dispatcher) transitionTo(target Kind) {
	if target == d.kind {
		return
	}

	preserve := false
	if target == KindLoiter {
		if d.kind == KindTakeoff || d.kind == KindVTOLTakeoff {
			preserve = true
			// The takeoff setpoint carries SetpointTakeoff; relabel it as the
			// loiter it now serves so isValidLoiter recognizes it as already
			// satisfied instead of being overwritten by the tick below.
			d.triplet.Current.Type = vstatus.SetpointLoiter
		} else if isValidLoiter(d.triplet) {
			preserve = true
		}
	}

	d.kind = target
	if !preserve {
		d.triplet = vstatus.PositionSetpointTriplet{}
	}
}

// RTLTarget carries the position a Direct RTL sub-type lands on, or the
// closest/mission-landing alternatives the caller has already selected.
type RTLTarget struct {
	Latitude, Longitude, Altitude float64
}

// SelectRTLType resolves which RTL sub-type to fly, given the configured
// type and whether a mission land-start sequence is available.
func SelectRTLType(configured params.RTLType, missionLandAvailable bool) params.RTLType {
	if (configured == params.RTLMissionLanding || configured == params.RTLMissionLandingReversed) && !missionLandAvailable {
		return params.RTLDirect
	}
	return configured
}

// Tick runs one dispatch cycle. armed gates the whole dispatcher: when not
// armed, the navigator forces KindNone and publishes an invalid triplet
// exactly once per disarm.
func (d *Dispatcher) Tick(navState vstatus.NavState, armed bool, home vstatus.HomePosition, rtlTarget RTLTarget, mission MissionSource, loiterSetpoint vstatus.PositionSetpoint, takeoffSetpoint vstatus.PositionSetpoint, landSetpoint vstatus.PositionSetpoint) vstatus.PositionSetpointTriplet {
	if !armed {
		if d.kind != KindNone {
			d.transitionTo(KindNone)
		}
		if !d.publishedInvalidOnce {
			d.triplet = vstatus.Invalid()
			d.publishedInvalidOnce = true
		}
		return d.triplet
	}
	d.publishedInvalidOnce = false

	target := FromNavState(navState)
	d.transitionTo(target)

	switch d.kind {
	case KindMission:
		d.tickMission(mission)
	case KindLoiter:
		if !isValidLoiter(d.triplet) {
			d.triplet.Current = loiterSetpoint
			d.triplet.Current.Type = vstatus.SetpointLoiter
			d.triplet.Current.Valid = true
		}
	case KindRTL:
		d.triplet.Current = vstatus.PositionSetpoint{
			Latitude: rtlTarget.Latitude, Longitude: rtlTarget.Longitude, Altitude: rtlTarget.Altitude,
			Type: vstatus.SetpointLoiter, Valid: true,
		}
	case KindTakeoff, KindVTOLTakeoff:
		if !d.triplet.Current.Valid {
			d.triplet.Current = takeoffSetpoint
			d.triplet.Current.Type = vstatus.SetpointTakeoff
			d.triplet.Current.Valid = true
		}
	case KindLand, KindPrecland:
		if !d.triplet.Current.Valid {
			d.triplet.Current = landSetpoint
			d.triplet.Current.Type = vstatus.SetpointLand
			d.triplet.Current.Valid = true
		}
	case KindNone:
		d.triplet = vstatus.Invalid()
	}

	return d.triplet
}

func (d *Dispatcher) tickMission(mission MissionSource) {
	if mission == nil {
		d.triplet = vstatus.Invalid()
		return
	}
	cur, ok := mission.CurrentItem()
	if !ok {
		d.triplet = vstatus.Invalid()
		return
	}
	next, hasNext := mission.NextItem()
	d.triplet.Current = cur
	if hasNext {
		d.triplet.Next = next
	} else {
		d.triplet.Next = vstatus.PositionSetpoint{}
	}
}
