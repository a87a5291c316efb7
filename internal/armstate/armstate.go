// Package armstate implements the Arm State Machine:
// six states, a transition table, and the additional arming gates beyond
// plain health checks (manual-mode throttle gates, RC-source gate,
// geofence-RTL-requires-home gate).
package armstate

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Result is the outcome of a transition attempt.
type Result int

const (
	Changed Result = iota
	NotChanged
	Denied
)

// TransitionSource distinguishes where an arm/disarm attempt originated,
// needed for gate 3 ("RC sources other than a manual-mode context require
// being in a manual mode first").
type TransitionSource int

const (
	SourceInternal TransitionSource = iota
	SourceRC
	SourceMAVLink
	SourceOnboardIO
)

// Inputs bundles everything a transition attempt needs to evaluate the
// arming gates, gathered fresh from the bus each tick by the Commander Loop.
type Inputs struct {
	Now time.Time

	PreflightChecksPass bool
	Forced              bool
	Source              TransitionSource

	Landed bool

	MainState   vstatus.MainState
	VehicleType vstatus.VehicleType
	ThrottleNormalized float64 // -1..1, climb-rate/manual-throttle stick

	GeofenceActionIsRTL bool
	HomeValid           bool

	BootHoldoffElapsed bool

	ShutdownRequested bool
}

// Machine is the Arm State Machine. It holds only the current state and the
// force_failsafe monotonicity latch;
// everything else is supplied fresh via Inputs each call.
type Machine struct {
	state         vstatus.ArmingState
	forceFailsafeLatched bool
	lockdown      bool
	manualLockdown bool
	armedTimestamp time.Time
	haveTakenOff  bool

	sink events.Sink
}

// New creates a Machine starting in INIT.
func New(sink events.Sink) *Machine {
	return &Machine{state: vstatus.ArmingInit, sink: sink}
}

// State returns the current arming state.
func (m *Machine) State() vstatus.ArmingState {
	return m.state
}

// ArmedTimestamp returns when ARMED was last entered.
func (m *Machine) ArmedTimestamp() time.Time {
	return m.armedTimestamp
}

// NoteLandedTransition records the landed-to-airborne edge the auto-disarm
// gate needs: the landed-for-N auto
// disarm timer must not fire unless the vehicle has actually taken off since
// the current arming, so a vehicle armed and left sitting on the ground
// never auto-disarms purely off the landed timer. Call once per tick with
// the previous and current landed samples.
func (m *Machine) NoteLandedTransition(wasLanded, landed bool) {
	if m.state == vstatus.ArmingArmed && wasLanded && !landed {
		m.haveTakenOff = true
	}
}

// HaveTakenOffSinceArming reports whether the vehicle has left the ground
// since the current arming session began.
func (m *Machine) HaveTakenOffSinceArming() bool {
	return m.haveTakenOff
}

// NoteForceFailsafe latches the monotonic force_failsafe flag for the
// remainder of the flight. Cleared only by ClearForceFailsafe, the
// cleared-by-external-command escape hatch.
func (m *Machine) NoteForceFailsafe(active bool) {
	if active {
		m.forceFailsafeLatched = true
	}
}

// ClearForceFailsafe clears the latch via explicit external command.
func (m *Machine) ClearForceFailsafe() {
	m.forceFailsafeLatched = false
}

// ForceFailsafeLatched reports the latch state.
func (m *Machine) ForceFailsafeLatched() bool {
	return m.forceFailsafeLatched
}

// NoteLockdown engages the recoverable motors-off lockdown, distinct from
// force_failsafe/termination, which is non-recoverable.
func (m *Machine) NoteLockdown() {
	m.lockdown = true
}

// ClearLockdown releases a lockdown engaged by NoteLockdown or
// DO_FLIGHTTERMINATION's clear variant.
func (m *Machine) ClearLockdown() {
	m.lockdown = false
}

// Lockdown reports whether the recoverable motors-off lockdown is engaged.
func (m *Machine) Lockdown() bool {
	return m.lockdown
}

// NoteManualLockdown engages the kill-switch-driven manual lockdown,
// distinct from NoteLockdown's DO_FLIGHTTERMINATION path and
// from the non-recoverable force_failsafe termination latch.
func (m *Machine) NoteManualLockdown() {
	m.manualLockdown = true
}

// ClearManualLockdown releases the kill-switch manual lockdown (action
// request UNKILL).
func (m *Machine) ClearManualLockdown() {
	m.manualLockdown = false
}

// ManualLockdown reports whether the kill switch is currently engaged.
func (m *Machine) ManualLockdown() bool {
	return m.manualLockdown
}

func (m *Machine) deny(reason string) Result {
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDArmDenied,
			Severity: events.SeverityWarning,
			Template: "arm/disarm transition denied",
			Params:   map[string]any{"reason": reason, "state": m.state.String()},
		})
	}
	return Denied
}

// evaluateArmGates checks the arming gates beyond health checks.
func (m *Machine) evaluateArmGates(in Inputs) (ok bool, reason string) {
	// Gate 4: geofence RTL action requires valid home.
	if in.GeofenceActionIsRTL && !in.HomeValid {
		return false, "geofence_rtl_requires_home"
	}

	// Gate 1 & 2 only apply when coming from a manual-stick-controlled mode.
	switch in.MainState {
	case vstatus.MainAltctl, vstatus.MainStab:
		// Manual climb-rate mode: reject if throttle is above center.
		if in.ThrottleNormalized > 0.05 {
			return false, "throttle_above_center"
		}
	case vstatus.MainManual, vstatus.MainAcro:
		// Manual non-climb-rate mode (and not a rover): reject if throttle
		// is not near the floor.
		if in.VehicleType != vstatus.VehicleRover && in.ThrottleNormalized > -0.9 {
			return false, "throttle_not_at_floor"
		}
	}

	// Gate 3: RC sources other than a manual-mode context require being in
	// a manual mode first.
	if in.Source == SourceRC {
		switch in.MainState {
		case vstatus.MainManual, vstatus.MainAltctl, vstatus.MainPosctl, vstatus.MainAcro, vstatus.MainStab:
			// already a manual-family mode, gate satisfied
		default:
			return false, "rc_arm_requires_manual_mode"
		}
	}

	return true, ""
}

// TryArm attempts STANDBY -> ARMED.
func (m *Machine) TryArm(in Inputs) Result {
	if m.forceFailsafeLatched {
		return m.deny("force_failsafe_latched")
	}

	switch m.state {
	case vstatus.ArmingArmed:
		return NotChanged
	case vstatus.ArmingStandby, vstatus.ArmingStandbyError:
		// falls through to checks below; STANDBY_ERROR only succeeds when
		// Forced, since an unforced attempt still fails the
		// same checks that put it there.
	case vstatus.ArmingInit:
		if in.Source == SourceOnboardIO && !in.Landed {
			m.state = vstatus.ArmingInAirRestore
			return m.completeInAirRestore(in)
		}
		if !in.Forced {
			return m.deny("not_in_standby")
		}
		// Forced arm from INIT proceeds to the checks below, which Forced
		// itself skips (force-arm despite failed checks).
	default:
		return m.deny("not_in_standby")
	}

	if !in.Forced {
		if !in.PreflightChecksPass {
			return m.deny("preflight_checks_failed")
		}
		if ok, reason := m.evaluateArmGates(in); !ok {
			return m.deny(reason)
		}
	}

	m.state = vstatus.ArmingArmed
	m.armedTimestamp = in.Now
	m.haveTakenOff = false
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDArmed,
			Severity: events.SeverityInfo,
			Template: "vehicle armed",
			Params:   map[string]any{"forced": in.Forced},
		})
	}
	return Changed
}

// completeInAirRestore finishes the INIT -> IN_AIR_RESTORE -> ARMED path for
// an onboard-IO arm command received while airborne.
func (m *Machine) completeInAirRestore(in Inputs) Result {
	m.state = vstatus.ArmingArmed
	m.armedTimestamp = in.Now
	// An in-air restore begins already airborne (the path is only reachable
	// while !in.Landed), so the auto-disarm takeoff gate is satisfied
	// immediately rather than waiting for a landed->airborne edge that will
	// never occur this session.
	m.haveTakenOff = true
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDArmed,
			Severity: events.SeverityInfo,
			Template: "vehicle armed via in-air restore",
		})
	}
	return Changed
}

// TryDisarm attempts ARMED -> STANDBY.
func (m *Machine) TryDisarm(in Inputs) Result {
	if m.state != vstatus.ArmingArmed {
		return NotChanged
	}

	isManualRotaryThrust := in.VehicleType == vstatus.VehicleRotary &&
		(in.MainState == vstatus.MainManual || in.MainState == vstatus.MainAcro || in.MainState == vstatus.MainStab)

	if !(in.Landed || in.Forced || isManualRotaryThrust) {
		return m.deny("not_landed")
	}

	m.state = vstatus.ArmingStandby
	if m.sink != nil {
		m.sink.Emit(events.Event{
			ID:       events.IDDisarmed,
			Severity: events.SeverityInfo,
			Template: "vehicle disarmed",
			Params:   map[string]any{"forced": in.Forced},
		})
	}
	return Changed
}

// UpdatePreflightOutcome drives INIT -> STANDBY / STANDBY_ERROR. The
// Commander Loop calls this every tick while in INIT, the one transition
// the core retries on its own.
func (m *Machine) UpdatePreflightOutcome(in Inputs, recoverable bool) Result {
	switch m.state {
	case vstatus.ArmingInit:
		if in.PreflightChecksPass {
			m.state = vstatus.ArmingStandby
			return Changed
		}
		if !recoverable {
			m.state = vstatus.ArmingStandbyError
			return Changed
		}
		return NotChanged
	case vstatus.ArmingStandbyError:
		if in.PreflightChecksPass {
			m.state = vstatus.ArmingStandby
			return Changed
		}
		return NotChanged
	default:
		return NotChanged
	}
}

// TryShutdown attempts any-non-ARMED -> SHUTDOWN.
func (m *Machine) TryShutdown(in Inputs) Result {
	if m.state == vstatus.ArmingArmed {
		return m.deny("armed")
	}
	if m.state == vstatus.ArmingShutdown {
		return NotChanged
	}
	m.state = vstatus.ArmingShutdown
	return Changed
}

// ShutdownIfAllowed reports whether a shutdown/reboot command should be
// accepted right now, without mutating state — used by the command
// dispatcher to decide DENIED vs ACCEPTED
// before forwarding the physical reboot.
func (m *Machine) ShutdownIfAllowed() bool {
	return m.state != vstatus.ArmingArmed
}
