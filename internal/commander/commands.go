package commander

import (
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/flightpath-dev/commander-core/internal/armstate"
	"github.com/flightpath-dev/commander-core/internal/home"
	"github.com/flightpath-dev/commander-core/internal/mainstate"
	"github.com/flightpath-dev/commander-core/internal/mavcmd"
	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// RegisterDefaultHandlers binds the supported vehicle command set to l's
// subsystems. The
// calibration routines themselves are external collaborators; what lives
// here is their gate (not armed, no busy worker) and the worker lifecycle.
// Commands with no core-side effect at all (actuator test, GPS origin, RX
// pair) stay unregistered and ack UNSUPPORTED via the dispatcher's default.
func RegisterDefaultHandlers(l *Loop) {
	l.cmds.Register(common.MAV_CMD_COMPONENT_ARM_DISARM, l.handleArmDisarm)
	l.cmds.Register(common.MAV_CMD_DO_SET_MODE, l.handleSetMode)
	l.cmds.Register(common.MAV_CMD_NAV_RETURN_TO_LAUNCH, l.handleRequestMode(vstatus.MainAutoRTL))
	l.cmds.Register(common.MAV_CMD_NAV_TAKEOFF, l.handleRequestMode(vstatus.MainAutoTakeoff))
	l.cmds.Register(common.MAV_CMD_NAV_VTOL_TAKEOFF, l.handleRequestMode(vstatus.MainAutoVTOLTakeoff))
	l.cmds.Register(common.MAV_CMD_NAV_LAND, l.handleRequestMode(vstatus.MainAutoLand))
	l.cmds.Register(common.MAV_CMD_NAV_PRECLAND, l.handleRequestMode(vstatus.MainAutoPrecland))
	l.cmds.Register(common.MAV_CMD_DO_SET_HOME, l.handleSetHome)
	l.cmds.Register(common.MAV_CMD_MISSION_START, l.handleMissionStart)
	l.cmds.Register(common.MAV_CMD_PREFLIGHT_REBOOT_SHUTDOWN, l.handleRebootShutdown)
	l.cmds.Register(common.MAV_CMD_DO_FLIGHTTERMINATION, l.handleFlightTermination)
	l.cmds.Register(common.MAV_CMD_DO_REPOSITION, l.handleReposition)
	l.cmds.Register(common.MAV_CMD_DO_VTOL_TRANSITION, l.handleVTOLTransition)
	l.cmds.Register(common.MAV_CMD_RUN_PREARM_CHECKS, l.handleRunPrearmChecks)

	armed := func() bool { return l.arm.State() == vstatus.ArmingArmed }
	l.cmds.RegisterCalibration(common.MAV_CMD_PREFLIGHT_CALIBRATION, armed, l.worker.Busy, l.handleCalibration)
	l.cmds.RegisterCalibration(common.MAV_CMD_PREFLIGHT_STORAGE, armed, l.worker.Busy, l.handleStorage)
}

// armInputsFromTelemetry builds armstate.Inputs from the loop's latest
// telemetry snapshot and a command's addressing, shared by the arm/disarm
// and reposition handlers.
func (l *Loop) armInputsFromTelemetry(forced bool, src armstate.TransitionSource) armstate.Inputs {
	t := l.lastTelemetry
	return armstate.Inputs{
		Now:                 t.Now,
		PreflightChecksPass: t.PreflightChecksPass,
		Forced:              forced,
		Source:              src,
		Landed:              t.Landed,
		MainState:           l.main.State(),
		VehicleType:         vehicleTypeOf(l.params.VehicleType),
		ThrottleNormalized:  t.ThrottleNormalized,
		HomeValid:           l.hm.Current().Valid,
		BootHoldoffElapsed:  t.Now.Sub(l.bootTimestamp) >= l.params.ComBootHoldoff,
	}
}

// handleArmDisarm implements COMPONENT_ARM_DISARM: param1 >= 0.5 arms,
// otherwise disarms; param2 carrying
// mavcmd.ForceMagicNumber requests forced semantics; param3 carrying
// mavcmd.InAirRestoreMagicNumber from the same system requests the
// IN_AIR_RESTORE path.
func (l *Loop) handleArmDisarm(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	forced := mavcmd.IsForceArmDisarm(cmd)
	src := armstate.SourceMAVLink
	if cmd.SourceSystem == cmd.TargetSystem {
		src = armstate.SourceInternal
	}

	var res armstate.Result
	if cmd.Param1 >= 0.5 {
		if mavcmd.IsInAirRestore(cmd) {
			res = l.arm.TryArm(l.armInputsFromTelemetry(forced, armstate.SourceOnboardIO))
		} else {
			res = l.arm.TryArm(l.armInputsFromTelemetry(forced, src))
		}
	} else {
		res = l.arm.TryDisarm(l.armInputsFromTelemetry(forced, src))
	}

	if res == armstate.Denied {
		return vstatus.CommandDenied
	}
	return vstatus.CommandAccepted
}

// handleSetMode implements DO_SET_MODE: param2/param3
// carry the PX4 custom main/sub mode encoding.
func (l *Loop) handleSetMode(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	target, ok := mavcmd.DecodeCustomMode(uint8(cmd.Param2), uint8(cmd.Param3))
	if !ok {
		return vstatus.CommandUnsupported
	}

	t := l.lastTelemetry
	res := l.main.Request(target, mainstate.Inputs{
		Now: t.Now, GlobalPositionValid: t.GlobalPositionValid, LocalPositionValid: t.LocalPositionValid,
		AltitudeValid: t.AltitudeValid, HomePositionValid: l.hm.Current().Valid,
		OffboardSignalRecent: t.OffboardSignalRecent, VehicleType: vehicleTypeOf(l.params.VehicleType),
		Source: mainstate.SourceInternal,
	})
	if res == mainstate.Denied {
		return vstatus.CommandDenied
	}
	return vstatus.CommandAccepted
}

// handleRequestMode returns a Handler that requests the given main state,
// shared by the NAV_RETURN_TO_LAUNCH/NAV_TAKEOFF/NAV_VTOL_TAKEOFF/NAV_LAND/
// NAV_PRECLAND handlers, which differ only in the main state they request.
func (l *Loop) handleRequestMode(target vstatus.MainState) mavcmd.Handler {
	return func(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
		t := l.lastTelemetry
		res := l.main.Request(target, mainstate.Inputs{
			Now: t.Now, GlobalPositionValid: t.GlobalPositionValid, LocalPositionValid: t.LocalPositionValid,
			AltitudeValid: t.AltitudeValid, HomePositionValid: l.hm.Current().Valid,
			OffboardSignalRecent: t.OffboardSignalRecent, VehicleType: vehicleTypeOf(l.params.VehicleType),
			Source: mainstate.SourceInternal,
		})
		if res == mainstate.Denied {
			return vstatus.CommandDenied
		}
		return vstatus.CommandAccepted
	}
}

// handleSetHome implements DO_SET_HOME: param1 >=
// 0.5 latches the current position; otherwise param5/param6/param7/param4
// carry an explicit lat/lon/alt/yaw.
func (l *Loop) handleSetHome(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	t := l.lastTelemetry
	var ok bool
	if cmd.Param1 >= 0.5 {
		ok = l.hm.SetExplicitCurrent(home.Inputs{
			Now: t.Now, PositionValid: t.GlobalPositionValid,
			CurrentLat: t.Lat, CurrentLon: t.Lon, CurrentAlt: t.AltAboveHome,
		})
	} else {
		ok = l.hm.SetExplicitManual(float64(cmd.Param5), float64(cmd.Param6), float64(cmd.Param7), float64(cmd.Param4), t.Now)
	}
	if !ok {
		return vstatus.CommandFailed
	}
	return vstatus.CommandAccepted
}

// handleMissionStart implements MISSION_START: param1 is
// the starting mission item index. Per the documented conservative default,
// an out-of-range index — including index == seq_total, the empty-remainder
// case — is DENIED rather than silently dropped. A negative index is always
// DENIED; a non-negative index is only range-checked when a plan is installed.
func (l *Loop) handleMissionStart(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	if cmd.Param1 < 0 {
		return vstatus.CommandDenied
	}
	if l.mission.Result().Valid && !l.mission.Start(int(cmd.Param1)) {
		return vstatus.CommandDenied
	}
	t := l.lastTelemetry
	res := l.main.Request(vstatus.MainAutoMission, mainstate.Inputs{
		Now: t.Now, GlobalPositionValid: t.GlobalPositionValid, LocalPositionValid: t.LocalPositionValid,
		AltitudeValid: t.AltitudeValid, HomePositionValid: l.hm.Current().Valid,
		VehicleType: vehicleTypeOf(l.params.VehicleType), Source: mainstate.SourceInternal,
	})
	if res == mainstate.Denied {
		return vstatus.CommandDenied
	}
	return vstatus.CommandAccepted
}

// handleRebootShutdown implements PREFLIGHT_REBOOT_SHUTDOWN, gated on the
// arm state machine's shutdown_if_allowed check, never on its own
// authority.
func (l *Loop) handleRebootShutdown(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	if !l.arm.ShutdownIfAllowed() {
		return vstatus.CommandDenied
	}
	t := l.lastTelemetry
	res := l.arm.TryShutdown(armstate.Inputs{Now: t.Now, ShutdownRequested: true})
	if res == armstate.Denied {
		return vstatus.CommandDenied
	}
	return vstatus.CommandAccepted
}

// handleFlightTermination implements DO_FLIGHTTERMINATION:
// param1 > 1.5 engages the recoverable motors-off lockdown; > 0.5 (but <=
// 1.5) latches the non-recoverable force_failsafe termination; otherwise
// clears the lockdown.
func (l *Loop) handleFlightTermination(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	switch {
	case cmd.Param1 > 1.5:
		l.arm.NoteLockdown()
	case cmd.Param1 > 0.5:
		l.arm.NoteForceFailsafe(true)
	default:
		l.arm.ClearLockdown()
	}
	return vstatus.CommandAccepted
}

// handleVTOLTransition implements DO_VTOL_TRANSITION (the CLI `transition`
// path): param1 carries the target MAV_VTOL_STATE. Only a VTOL airframe can
// transition; the core tracks the in-transition flags it publishes on
// vehicle_status, the aerodynamics live downstream.
func (l *Loop) handleVTOLTransition(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	if l.params.VehicleType != params.VehicleVTOL {
		return vstatus.CommandDenied
	}
	target := common.MAV_VTOL_STATE(cmd.Param1)
	switch target {
	case common.MAV_VTOL_STATE_FW:
		l.inTransition = true
		l.inTransitionToFW = true
	case common.MAV_VTOL_STATE_MC:
		l.inTransition = true
		l.inTransitionToFW = false
	default:
		return vstatus.CommandDenied
	}
	return vstatus.CommandAccepted
}

// handleRunPrearmChecks re-evaluates the preflight outcome on demand from
// the latest telemetry snapshot.
func (l *Loop) handleRunPrearmChecks(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	t := l.lastTelemetry
	l.arm.UpdatePreflightOutcome(armstate.Inputs{Now: t.Now, PreflightChecksPass: t.PreflightChecksPass}, true)
	return vstatus.CommandAccepted
}

// handleCalibration starts the requested calibration routine on the worker.
// The armed/busy gates already ran in the dispatcher wrapper; a Start
// failure here means the worker grabbed another job between the gate and
// this call, which maps to the same TEMPORARILY_REJECTED the gate uses.
func (l *Loop) handleCalibration(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	kind := calibrationKind(cmd)
	if kind == "" {
		return vstatus.CommandUnsupported
	}
	op := l.calibrateOp
	if op == nil {
		op = func(string) error { return nil }
	}
	if !l.worker.Start("calibrate_"+kind, func() error { return op(kind) }) {
		return vstatus.CommandTemporarilyRejected
	}
	return vstatus.CommandAccepted
}

// calibrationKind decodes PREFLIGHT_CALIBRATION's parameter layout into a
// routine name: param1 gyro, param2 mag (2 = quick), param3 baro, param5
// accel (2 = level, 4 = quick), param6 airspeed, param7 esc.
func calibrationKind(cmd mavcmd.VehicleCommand) string {
	switch {
	case cmd.Param1 >= 0.5:
		return "gyro"
	case cmd.Param2 >= 1.5:
		return "mag_quick"
	case cmd.Param2 >= 0.5:
		return "mag"
	case cmd.Param3 >= 0.5:
		return "baro"
	case cmd.Param5 >= 3.5:
		return "accel_quick"
	case cmd.Param5 >= 1.5:
		return "level"
	case cmd.Param5 >= 0.5:
		return "accel"
	case cmd.Param6 >= 0.5:
		return "airspeed"
	case cmd.Param7 >= 0.5:
		return "esc"
	default:
		return ""
	}
}

// handleStorage implements PREFLIGHT_STORAGE: param1 0
// loads parameters from storage, 1 saves them. A load finishes on the
// worker; the loop swaps the freshly parsed set in on a later disarmed
// tick.
func (l *Loop) handleStorage(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	switch {
	case cmd.Param1 < 0.5: // load
		path := l.params.Server.ParamsPath
		ok := l.worker.Start("params_load", func() error {
			loaded, err := params.Load(path)
			if err != nil {
				return err
			}
			l.pendingMu.Lock()
			l.pendingParams = loaded
			l.pendingMu.Unlock()
			return nil
		})
		if !ok {
			return vstatus.CommandTemporarilyRejected
		}
		return vstatus.CommandAccepted
	case cmd.Param1 < 1.5: // save
		p := l.params
		if !l.worker.Start("params_save", p.Save) {
			return vstatus.CommandTemporarilyRejected
		}
		return vstatus.CommandAccepted
	default:
		return vstatus.CommandUnsupported
	}
}

// handleReposition implements DO_REPOSITION: param2 bit 0
// additionally requests a switch to AUTO_LOITER.
func (l *Loop) handleReposition(cmd mavcmd.VehicleCommand) vstatus.CommandResult {
	switchToLoiter := int(cmd.Param2)&0x1 != 0
	if switchToLoiter {
		t := l.lastTelemetry
		res := l.main.Request(vstatus.MainAutoLoiter, mainstate.Inputs{
			Now: t.Now, GlobalPositionValid: t.GlobalPositionValid, LocalPositionValid: t.LocalPositionValid,
			AltitudeValid: t.AltitudeValid, HomePositionValid: l.hm.Current().Valid,
			VehicleType: vehicleTypeOf(l.params.VehicleType), Source: mainstate.SourceInternal,
		})
		if res == mainstate.Denied {
			return vstatus.CommandDenied
		}
	}
	return vstatus.CommandAccepted
}
