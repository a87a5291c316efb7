// Package mainstate implements the Main (Flight-Mode) State Machine:
// vehicle-type- and status-flag-gated transitions among the
// operator/automation-selected flight modes, plus the boot-time
// force-install special case.
package mainstate

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Result mirrors armstate.Result; kept distinct so the two packages stay
// decoupled.
type Result int

const (
	Changed Result = iota
	NotChanged
	Denied
)

// RequestSource distinguishes an RC mode-slot request from other sources,
// needed for the boot force-install special case.
type RequestSource int

const (
	SourceRC RequestSource = iota
	SourceHighLevel
	SourceInternal
)

// Inputs bundles the status needed to evaluate a transition request.
type Inputs struct {
	Now time.Time

	GlobalPositionValid bool
	LocalPositionValid  bool
	AltitudeValid       bool
	HomePositionValid   bool
	OffboardSignalRecent bool

	VehicleType vstatus.VehicleType
	Source      RequestSource
}

// Machine is the Main State Machine.
type Machine struct {
	state          vstatus.MainState
	changes        uint64
	everChangedByUser bool

	sink events.Sink
}

// New creates a Machine starting in MANUAL.
func New(sink events.Sink) *Machine {
	return &Machine{state: vstatus.MainManual, sink: sink}
}

func (m *Machine) State() vstatus.MainState { return m.state }
func (m *Machine) Changes() uint64          { return m.changes }

func (m *Machine) deny(requested vstatus.MainState, reason string) Result {
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDModeDenied,
			Severity: events.SeverityWarning,
			Template: "mode change not available",
			Params:   map[string]any{"requested": requested.String(), "reason": reason},
		})
	}
	return Denied
}

// available reports whether the target main state's preconditions hold,
// including vehicle-type gating.
func available(target vstatus.MainState, in Inputs) (ok bool, reason string) {
	if ok, reason := vehicleTypeAllows(target, in.VehicleType); !ok {
		return false, reason
	}

	switch target {
	case vstatus.MainAutoMission, vstatus.MainAutoLoiter, vstatus.MainAutoRTL,
		vstatus.MainAutoFollowTarget, vstatus.MainAutoPrecland, vstatus.MainOrbit:
		if !in.GlobalPositionValid {
			return false, "global_position_required"
		}
	case vstatus.MainAutoTakeoff, vstatus.MainAutoVTOLTakeoff:
		if !in.LocalPositionValid {
			return false, "local_position_required"
		}
		if !in.HomePositionValid {
			return false, "home_position_required"
		}
	case vstatus.MainAutoLand:
		if !in.LocalPositionValid {
			return false, "local_position_required"
		}
	case vstatus.MainOffboard:
		if !in.OffboardSignalRecent {
			return false, "offboard_signal_required"
		}
	case vstatus.MainPosctl:
		if !in.GlobalPositionValid && !in.LocalPositionValid {
			return false, "position_required"
		}
	}
	return true, ""
}

// vehicleTypeAllows rejects mode requests that only make sense for a
// specific airframe: VTOL-specific takeoff/transition modes for a non-VTOL
// type, and acrobatic/loiter-less manual modes for a rover, which has no
// attitude to acro around or altitude to loiter at.
func vehicleTypeAllows(target vstatus.MainState, vt vstatus.VehicleType) (bool, string) {
	switch target {
	case vstatus.MainAutoVTOLTakeoff:
		if vt != vstatus.VehicleVTOL {
			return false, "vtol_takeoff_requires_vtol_vehicle"
		}
	case vstatus.MainAcro, vstatus.MainAltctl:
		if vt == vstatus.VehicleRover {
			return false, "mode_not_supported_on_rover"
		}
	}
	return true, ""
}

// Request attempts to switch to target. Idempotent: requesting the current
// state returns ACCEPTED (Changed-equivalent NotChanged, per testable
// property 8) without incrementing the change counter.
func (m *Machine) Request(target vstatus.MainState, in Inputs) Result {
	m.everChangedByUser = m.everChangedByUser || in.Source != SourceInternal

	if target == m.state {
		return NotChanged
	}

	ok, reason := available(target, in)
	if !ok {
		// Tie-break: POSCTL unavailable falls back to ALTCTL if altitude is
		// valid.
		if target == vstatus.MainPosctl && in.AltitudeValid {
			return m.commit(vstatus.MainAltctl)
		}
		return m.deny(target, reason)
	}

	return m.commit(target)
}

func (m *Machine) commit(target vstatus.MainState) Result {
	m.state = target
	m.changes++
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDModeChanged,
			Severity: events.SeverityInfo,
			Template: "main state changed",
			Params:   map[string]any{"state": target.String()},
		})
	}
	return Changed
}

// NoteMissionFinished handles mission_result.finished: an in-progress
// takeoff or mission auto-completes into
// AUTO_LOITER rather than falling through to manual control. Any other
// state ignores the signal.
func (m *Machine) NoteMissionFinished(in Inputs) Result {
	switch m.state {
	case vstatus.MainAutoTakeoff, vstatus.MainAutoVTOLTakeoff, vstatus.MainAutoMission:
	default:
		return NotChanged
	}
	in.Source = SourceInternal
	return m.Request(vstatus.MainAutoLoiter, in)
}

// ForceInstallInitial implements the boot special rule: before the operator
// has ever changed mode, an RC mode-slot assignment may force-install
// ALTCTL/POSCTL without transition checks, and a high-level (non-RC) source
// may force-install POSCTL.
func (m *Machine) ForceInstallInitial(target vstatus.MainState, in Inputs) Result {
	if m.everChangedByUser {
		return NotChanged
	}
	switch in.Source {
	case SourceRC:
		if target != vstatus.MainAltctl && target != vstatus.MainPosctl {
			return NotChanged
		}
	case SourceHighLevel:
		if target != vstatus.MainPosctl {
			return NotChanged
		}
	default:
		return NotChanged
	}
	m.state = target
	return Changed
}
