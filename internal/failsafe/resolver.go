// Package failsafe implements the Failsafe Resolver: a
// pure function of the current tick's inputs, in strict priority order, so
// the highest-priority active condition always wins regardless of which
// other conditions also hold.
package failsafe

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Inputs bundles every condition the resolver consults, gathered fresh each
// tick by the Commander Loop.
type Inputs struct {
	Now time.Time

	ForceFailsafe      bool
	MissionTermination bool

	EarlyTakeoffCritical bool // failure detector's AnyEarlyTakeoffCritical, within the lockdown window
	WithinLockdownWindow bool

	BatteryWarning vstatus.BatteryWarning
	// BatteryWarningWorsened is the battery monitor's debounced worsened
	// edge: the level has sat above the last acted-upon level for the
	// configured action delay.
	BatteryWarningWorsened bool

	GCSLinkLost bool
	RCLost      bool
	MainStateIsAuto bool // for com_rcl_except_auto

	OffboardLost bool

	GeofenceBreach bool

	MaxFlightTimeExceeded bool

	WindRequestRTL bool

	VehicleType      params.VehicleType
	VTOLQuadchute    bool

	CurrentMainState vstatus.MainState
}

// Outcome is the resolver's verdict for the tick.
type Outcome struct {
	Active   bool
	NavState vstatus.NavState
	Cause    string
}

// Resolver is stateless beyond the event sink; every decision is a pure
// function of Inputs, so it holds no condition history itself (that lives in
// the monitors and hysteresis instances feeding it).
type Resolver struct {
	sink events.Sink
}

// New creates a Resolver.
func New(sink events.Sink) *Resolver {
	return &Resolver{sink: sink}
}

func actionToNavState(a params.FailsafeAction) (vstatus.NavState, bool) {
	switch a {
	case params.ActionHold:
		return vstatus.NavAutoLoiter, true
	case params.ActionRTL:
		return vstatus.NavAutoRTL, true
	case params.ActionLand:
		return vstatus.NavAutoLand, true
	case params.ActionTerminate:
		return vstatus.NavTermination, true
	default:
		return vstatus.NavManual, false
	}
}

func mainToNav(m vstatus.MainState) vstatus.NavState {
	if int(m) <= int(vstatus.MainAutoVTOLTakeoff) {
		return vstatus.NavState(m)
	}
	return vstatus.NavManual
}

// Resolve evaluates in against the fixed priority order and returns the
// winning outcome.
func (r *Resolver) Resolve(in Inputs, p *params.Params) Outcome {
	emit := func(cause string) {
		if r.sink != nil {
			r.sink.Emit(events.Event{ID: events.IDFailsafeEnter, Severity: events.SeverityCritical, Template: "failsafe entered", Params: map[string]any{"cause": cause}})
		}
	}

	// 1. force_failsafe / mission termination.
	if in.ForceFailsafe || in.MissionTermination {
		emit("force_failsafe")
		return Outcome{Active: true, NavState: vstatus.NavTermination, Cause: "force_failsafe"}
	}

	// 2. geofence action == TERMINATE.
	if in.GeofenceBreach && p.GFAction == params.ActionTerminate {
		emit("geofence_terminate")
		return Outcome{Active: true, NavState: vstatus.NavTermination, Cause: "geofence_terminate"}
	}

	// 3. early-takeoff lockdown window.
	if in.EarlyTakeoffCritical && in.WithinLockdownWindow {
		if r.sink != nil {
			r.sink.Emit(events.Event{ID: events.IDLockdown, Severity: events.SeverityCritical, Template: "early takeoff lockdown"})
		}
		return Outcome{Active: true, NavState: vstatus.NavLockdown, Cause: "early_takeoff_lockdown"}
	}

	// 4. battery EMERGENCY: always forces an immediate land, independent of
	// the configured action (PX4's emergency level overrides the action
	// parameter).
	if in.BatteryWarning == vstatus.BatteryEmergency {
		emit("battery_emergency")
		return Outcome{Active: true, NavState: vstatus.NavAutoLand, Cause: "battery_emergency"}
	}

	// 5. battery warning worsened and held for the action delay: apply the
	// configured action for the new level.
	if in.BatteryWarningWorsened {
		action := p.ComLowBatAct
		if in.BatteryWarning == vstatus.BatteryCritical {
			action = p.ComCritBatAct
		}
		if nav, override := actionToNavState(action); override {
			emit("battery_warning")
			return Outcome{Active: true, NavState: nav, Cause: "battery_warning"}
		}
	}

	// 6. GCS (data link) loss.
	if in.GCSLinkLost {
		if nav, override := actionToNavState(p.NavDLLAct); override {
			emit("gcs_link_lost")
			return Outcome{Active: true, NavState: nav, Cause: "gcs_link_lost"}
		}
	}

	// 7. RC loss, unless configured to be ignored while already in an AUTO
	// mode.
	if in.RCLost && !(p.ComRCLExcept && in.MainStateIsAuto) {
		if nav, override := actionToNavState(p.ComRCLAct); override {
			emit("rc_lost")
			return Outcome{Active: true, NavState: nav, Cause: "rc_lost"}
		}
	}

	// 8. offboard loss.
	if in.OffboardLost {
		action := p.ComOBLAct
		if !in.RCLost {
			action = p.ComOBLRCAct
		}
		if nav, override := actionToNavState(action); override {
			emit("offboard_lost")
			return Outcome{Active: true, NavState: nav, Cause: "offboard_lost"}
		}
	}

	// 9. geofence breach, non-terminate actions.
	if in.GeofenceBreach {
		if nav, override := actionToNavState(p.GFAction); override {
			emit("geofence_breach")
			return Outcome{Active: true, NavState: nav, Cause: "geofence_breach"}
		}
	}

	// 10. max flight time exceeded.
	if in.MaxFlightTimeExceeded {
		emit("max_flight_time")
		return Outcome{Active: true, NavState: vstatus.NavAutoRTL, Cause: "max_flight_time"}
	}

	// 11. wind max exceeded.
	if in.WindRequestRTL {
		emit("wind_exceeded")
		return Outcome{Active: true, NavState: vstatus.NavAutoRTL, Cause: "wind_exceeded"}
	}

	// 12. VTOL quadchute.
	if in.VehicleType == params.VehicleVTOL && in.VTOLQuadchute {
		if nav, override := actionToNavState(p.VTOLQuadchuteAct); override {
			emit("vtol_quadchute")
			return Outcome{Active: true, NavState: nav, Cause: "vtol_quadchute"}
		}
	}

	// No failsafe condition won: the effective nav state tracks the main
	// state machine directly.
	return Outcome{Active: false, NavState: mainToNav(in.CurrentMainState)}
}
