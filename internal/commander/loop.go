// Package commander implements the Commander Loop: a
// fixed-period, single-threaded cooperative loop that advances every other
// subsystem in a fixed order and publishes outputs in a fixed order.
package commander

import (
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"golang.org/x/exp/slog"

	"github.com/flightpath-dev/commander-core/internal/armstate"
	"github.com/flightpath-dev/commander-core/internal/bus"
	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/failsafe"
	"github.com/flightpath-dev/commander-core/internal/failure"
	"github.com/flightpath-dev/commander-core/internal/geofence"
	"github.com/flightpath-dev/commander-core/internal/home"
	"github.com/flightpath-dev/commander-core/internal/mainstate"
	"github.com/flightpath-dev/commander-core/internal/mavcmd"
	"github.com/flightpath-dev/commander-core/internal/monitors"
	"github.com/flightpath-dev/commander-core/internal/navigator"
	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Telemetry is the raw, per-tick vehicle state the loop gathers before
// running any subsystem.
type Telemetry struct {
	Now time.Time

	GlobalPositionValid bool
	LocalPositionValid  bool
	AltitudeValid       bool
	Landed              bool

	Lat, Lon, AltAboveHome float64
	VelNorthMPS, VelEastMPS, VelDownMPS float64

	ThrottleNormalized float64
	OffboardSignalRecent bool

	GCSHeartbeatAge time.Duration
	RCHeartbeatAge  time.Duration
	KillSwitchEngaged bool

	BatteryRemainingFraction float64
	BatteryRemainingTimeSec  float64

	WindSpeedMS float64

	VTOLQuadchute bool

	PreflightChecksPass bool

	MissionFinished bool
}

// Outputs bundles the bus topics the loop publishes to, in the fixed
// publish order downstream output modules rely on (actuator_armed first).
type Outputs struct {
	ActuatorArmed      *bus.Topic[vstatus.ActuatorArmed]
	VehicleControlMode *bus.Topic[vstatus.ControlMode]
	VehicleStatus      *bus.Topic[vstatus.VehicleStatus]
	StatusFlags        *bus.Topic[vstatus.StatusFlags]
	CommanderState     *bus.Topic[vstatus.CommanderState]
	FailureDetector    *bus.Topic[failure.Status]
	CommandAck         *bus.Topic[mavcmd.Ack]
	VehicleCommand     *bus.Topic[mavcmd.VehicleCommand]
	TuneControl        *bus.Topic[events.Tune]

	PositionSetpointTriplet *bus.Topic[vstatus.PositionSetpointTriplet]
	MissionResult           *bus.Topic[vstatus.MissionResult]
	GeofenceResult          *bus.Topic[geofence.Violation]
}

// PowerButtonEvent is the minimal record the power-button callback enqueues;
// the loop drains the queue on its next tick. A
// confirmed press requests shutdown through the arm state machine's gate,
// never directly.
type PowerButtonEvent struct {
	Pressed bool
	At      time.Time
}

// Loop owns every subsystem instance and drives them in the documented
// order each tick.
type Loop struct {
	params *params.Params
	sink   events.Sink
	log    *slog.Logger

	arm  *armstate.Machine
	main *mainstate.Machine
	det  *failure.Detector
	fs   *failsafe.Resolver
	hm   *home.Manager
	nav  *navigator.Dispatcher

	linkGCS *monitors.Link
	linkRC  *monitors.Link
	battery *monitors.Battery
	wind    *monitors.Wind
	geofenceMon *monitors.GeofenceMonitor
	autoDisarm  *monitors.AutoDisarm
	offboard    *monitors.Offboard

	cmds    *mavcmd.Dispatcher
	cmdQueue chan mavcmd.VehicleCommand
	actionQueue chan vstatus.ActionRequest
	powerButton *bus.SPSC[PowerButtonEvent]

	mission    *navigator.Mission
	safePoints []vstatus.PositionSetpoint

	worker      *Worker
	calibrateOp func(kind string) error

	pendingMu     sync.Mutex
	pendingParams *params.Params

	flightUUID *FlightUUID

	out Outputs

	lastTriplet       vstatus.PositionSetpointTriplet
	haveTriplet       bool
	lastMissionResult vstatus.MissionResult
	haveMissionResult bool

	inTransition     bool
	inTransitionToFW bool

	lastPublish time.Time
	lastArmed   vstatus.ActuatorArmed
	lastStatus      vstatus.VehicleStatus
	lastFlags       vstatus.StatusFlags
	lastCommander   vstatus.CommanderState
	lastControlMode vstatus.ControlMode
	lastFailure     failure.Status
	wasArmedLastTick bool
	wasLandedLastTick bool
	wasRTLLastTick   bool
	lastTelemetry Telemetry

	bootTimestamp    time.Time
	haveBootTimestamp bool

	shouldExit bool
}

// New assembles a Loop from its already-constructed subsystems. The
// composition root (cmd/commander/main.go) is responsible for building each
// subsystem and its event sink wiring.
func New(p *params.Params, sink events.Sink, log *slog.Logger,
	arm *armstate.Machine, main *mainstate.Machine, det *failure.Detector, fs *failsafe.Resolver,
	hm *home.Manager, nav *navigator.Dispatcher,
	linkGCS, linkRC *monitors.Link, battery *monitors.Battery, wind *monitors.Wind,
	geofenceMon *monitors.GeofenceMonitor, autoDisarm *monitors.AutoDisarm,
	cmds *mavcmd.Dispatcher, out Outputs) *Loop {
	return &Loop{
		params: p, sink: sink, log: log,
		arm: arm, main: main, det: det, fs: fs, hm: hm, nav: nav,
		linkGCS: linkGCS, linkRC: linkRC, battery: battery, wind: wind,
		geofenceMon: geofenceMon, autoDisarm: autoDisarm,
		cmds: cmds, cmdQueue: make(chan mavcmd.VehicleCommand, 16),
		actionQueue: make(chan vstatus.ActionRequest, 16),
		powerButton: bus.NewSPSC[PowerButtonEvent](8),
		mission:  navigator.NewMission(),
		worker:   NewWorker(),
		offboard: monitors.NewOffboard(p.ComOfHold),
		out: out,
	}
}

// Mission exposes the mission executor so the composition root (or a mission
// upload path) can install a plan.
func (l *Loop) Mission() *navigator.Mission {
	return l.mission
}

// SetSafePoints installs the rally/safe points the CLOSEST RTL sub-type
// chooses among.
func (l *Loop) SetSafePoints(pts []vstatus.PositionSetpoint) {
	l.safePoints = append(l.safePoints[:0:0], pts...)
}

// SetFlightUUID installs the persisted flight counter bumped on every
// landing.
func (l *Loop) SetFlightUUID(f *FlightUUID) {
	l.flightUUID = f
}

// SetCalibrationOp installs the routine the calibration worker runs; the
// routines themselves live outside the core, the gate and
// worker lifecycle live here.
func (l *Loop) SetCalibrationOp(op func(kind string) error) {
	l.calibrateOp = op
}

// NotifyPowerButton enqueues a power-button event from its (single)
// interrupt-context-like producer. Returns false if the ring is full; the
// event is then simply lost, matching a bounced hardware edge.
func (l *Loop) NotifyPowerButton(e PowerButtonEvent) bool {
	return l.powerButton.TryPush(e)
}

// EnqueueCommand offers a vehicle command to the loop's single-slot-per-tick
// processing queue. Returns false if the queue is full (the caller should
// back-pressure the link, not block the loop).
func (l *Loop) EnqueueCommand(cmd mavcmd.VehicleCommand) bool {
	select {
	case l.cmdQueue <- cmd:
		return true
	default:
		return false
	}
}

// EnqueueAction offers an action request.
func (l *Loop) EnqueueAction(a vstatus.ActionRequest) bool {
	select {
	case l.actionQueue <- a:
		return true
	default:
		return false
	}
}

// RequestExit sets the cooperative exit flag the Run loop checks between
// ticks.
func (l *Loop) RequestExit() {
	l.shouldExit = true
}

// TelemetrySource supplies one tick's worth of raw vehicle state.
type TelemetrySource func() Telemetry

// Run drives Tick at the configured publish period until RequestExit is
// called, skipping the inter-tick sleep whenever a command or action is
// already queued.
func (l *Loop) Run(source TelemetrySource) {
	for !l.shouldExit {
		l.Tick(source())

		if len(l.cmdQueue) > 0 || len(l.actionQueue) > 0 {
			continue
		}
		time.Sleep(l.params.PublishPeriod)
	}
}

// Tick runs exactly one iteration of the loop's documented sequence and
// reports whether it published outputs this tick.
func (l *Loop) Tick(t Telemetry) bool {
	p := l.params

	if !l.haveBootTimestamp {
		l.bootTimestamp = t.Now
		l.haveBootTimestamp = true
	}

	// Offboard availability is debounced before anything reads it, so every
	// downstream consumer (mode gates, failsafe, command handlers reading
	// lastTelemetry) sees the held value, never the raw per-tick signal.
	t.OffboardSignalRecent = l.offboard.Update(t.OffboardSignalRecent, t.Now)
	l.lastTelemetry = t

	// Parameter snapshots are only swapped in while disarmed, so a running
	// flight never sees a partial set; a PREFLIGHT_STORAGE load that finished mid-flight
	// stays pending until the vehicle lands and disarms.
	if l.arm.State() != vstatus.ArmingArmed {
		l.pendingMu.Lock()
		if l.pendingParams != nil {
			l.params = l.pendingParams
			l.pendingParams = nil
		}
		l.pendingMu.Unlock()
		p = l.params
	}

	// Drain the power-button ring: presses were enqueued
	// from the callback context and are only acted on here.
	for {
		e, ok := l.powerButton.TryPop()
		if !ok {
			break
		}
		if e.Pressed && l.arm.ShutdownIfAllowed() {
			l.arm.TryShutdown(armstate.Inputs{Now: t.Now, ShutdownRequested: true})
		}
	}

	// Non-blocking worker poll.
	if name, err, ok := l.worker.TakeResult(); ok && l.log != nil {
		if err != nil {
			l.log.Error("worker operation failed", "op", name, "err", err)
		} else {
			l.log.Info("worker operation finished", "op", name)
		}
	}

	fstatus := l.det.Evaluate(failure.Sample{
		Now: t.Now,
		ESCArmed: true, SpoolUpWindowElapsed: l.arm.State() == vstatus.ArmingArmed,
	})

	// The one transition the core retries on its own: repeatedly attempt
	// INIT -> STANDBY each tick.
	l.arm.UpdatePreflightOutcome(armstate.Inputs{Now: t.Now, PreflightChecksPass: t.PreflightChecksPass}, true)

	l.processOneCommand()
	l.processOneAction(t)

	if l.arm.State() == vstatus.ArmingArmed && l.nav.Kind() == navigator.KindMission {
		l.mission.Advance(t.Lat, t.Lon)
	}
	missionFinished := t.MissionFinished || l.mission.Result().Finished
	if missionFinished {
		l.main.NoteMissionFinished(mainstate.Inputs{
			Now: t.Now, GlobalPositionValid: t.GlobalPositionValid,
			LocalPositionValid: t.LocalPositionValid, AltitudeValid: t.AltitudeValid,
			HomePositionValid: l.hm.Current().Valid, OffboardSignalRecent: t.OffboardSignalRecent,
			VehicleType: vehicleTypeOf(l.params.VehicleType),
		})
	}

	armed := l.arm.State() == vstatus.ArmingArmed
	if l.arm.State() == vstatus.ArmingShutdown {
		l.hm.Invalidate()
	}
	l.hm.Update(home.Inputs{
		Now: t.Now, Armed: armed, WasArmedLastTick: l.wasArmedLastTick,
		Landed: t.Landed, WasLandedLastTick: l.wasLandedLastTick,
		BootHoldoffElapsed: t.Now.Sub(l.bootTimestamp) >= p.ComBootHoldoff,
		CurrentLat: t.Lat, CurrentLon: t.Lon, CurrentAlt: t.AltAboveHome,
		PositionValid: t.GlobalPositionValid, HomeInAirEnabled: p.ComHomeInAir,
	})

	l.arm.NoteLandedTransition(l.wasLandedLastTick, t.Landed)
	disarmTriggered := l.autoDisarm.Update(armed, t.Landed, t.KillSwitchEngaged, l.arm.HaveTakenOffSinceArming(), t.Now)
	if disarmTriggered {
		l.arm.TryDisarm(armstate.Inputs{Now: t.Now, Forced: true, Landed: t.Landed})
	}

	linkGCSLost, _ := l.linkGCS.Update(t.GCSHeartbeatAge, t.Now)
	linkRCLost, _ := l.linkRC.Update(t.RCHeartbeatAge, t.Now)

	windEval := l.wind.Update(t.WindSpeedMS, p.WindWarnMS, p.WindMaxMS, t.Now)

	isRotary := p.VehicleType == params.VehicleRotary || p.VehicleType == params.VehicleVTOL
	vehicleSample := monitors.VehicleSample{
		Lat: t.Lat, Lon: t.Lon, AltAboveHome: t.AltAboveHome,
		VelNorthMPS: t.VelNorthMPS, VelEastMPS: t.VelEastMPS, VelDownMPS: t.VelDownMPS,
		Braking: geofence.BrakingParams{
			IsRotary: isRotary,
			HorizontalDecelMPS2: p.MPCHorDecelMPS2, VerticalDecelMPS2: p.MPCVerDecelMPS2,
			FixedWingHorRadiusM: p.FWFenceHorRadiusM, FixedWingVerRadiusM: p.FWFenceVerRadiusM,
		},
	}
	gfViolation, gfDue := l.geofenceMon.Tick(t.Now, l.hm.Current(), vehicleSample)
	if gfDue && l.out.GeofenceResult != nil {
		l.out.GeofenceResult.Publish(gfViolation)
	}
	if !armed && l.wasArmedLastTick {
		l.geofenceMon.Reset()
	}

	// Flight uuid bumps on the landing edge of an actual flight, persisted
	// without notification.
	if l.flightUUID != nil && t.Landed && !l.wasLandedLastTick && l.arm.HaveTakenOffSinceArming() {
		if err := l.flightUUID.Increment(); err != nil && l.log != nil {
			l.log.Warn("flight uuid persist failed", "err", err)
		}
	}

	batLevel := l.battery.Update(monitors.Sample{
		RemainingFraction: t.BatteryRemainingFraction,
		LowThreshold: 0.3, CriticalThreshold: 0.15, EmergencyThreshold: 0.05,
		RemainingTimeSec: t.BatteryRemainingTimeSec, LowRemainingTimeThresholdSec: 120,
		Armed: armed,
	})

	maxFlightTimeExceeded := armed && p.MaxFlightTime > 0 && t.Now.Sub(l.arm.ArmedTimestamp()) >= p.MaxFlightTime

	fsOutcome := l.fs.Resolve(failsafe.Inputs{
		Now: t.Now,
		ForceFailsafe: l.arm.ForceFailsafeLatched(),
		EarlyTakeoffCritical: fstatus.AnyEarlyTakeoffCritical(),
		WithinLockdownWindow: t.Now.Sub(l.arm.ArmedTimestamp()) <= p.LockdownWindow,
		BatteryWarning: batLevel, BatteryWarningWorsened: l.battery.WorsenedHeld(t.Now),
		GCSLinkLost: linkGCSLost, RCLost: linkRCLost, MainStateIsAuto: isAutoMain(l.main.State()),
		OffboardLost: t.OffboardSignalRecent == false && l.main.State() == vstatus.MainOffboard,
		GeofenceBreach: gfViolation.Breach,
		MaxFlightTimeExceeded: maxFlightTimeExceeded,
		WindRequestRTL: windEval.RequestRTL,
		VehicleType: p.VehicleType, VTOLQuadchute: t.VTOLQuadchute,
		CurrentMainState: l.main.State(),
	}, p)

	// Once a home-dependent failsafe action
	// (RTL) has fired, home must remain valid for the rest of that action.
	// Lock on entry, unlock on exit, so Invalidate (e.g. the shutdown path
	// above) is refused for exactly the duration of the RTL engagement.
	isRTL := fsOutcome.NavState == vstatus.NavAutoRTL
	enteredRTL := isRTL && !l.wasRTLLastTick
	if enteredRTL {
		l.hm.LockForFailsafe()
	} else if !isRTL && l.wasRTLLastTick {
		l.hm.UnlockFailsafe()
	}
	l.wasRTLLastTick = isRTL

	rtlTarget, rtlType := navigator.ResolveRTLTarget(p.RTLTypeCfg, l.hm.Current(), p.RTLReturnAltM, t.Lat, t.Lon, l.safePoints, l.mission)
	if enteredRTL && rtlType == params.RTLMissionLandingReversed {
		l.mission.Reverse()
	}

	loiterSetpoint := vstatus.PositionSetpoint{}
	if l.geofenceMon.LoiterOn() {
		loiterSetpoint = l.geofenceMon.CorrectivePoint(l.hm.Current(), vehicleSample, p.GFLoiterMarginM)
	}
	trip := l.nav.Tick(fsOutcome.NavState, armed, l.hm.Current(), rtlTarget, l.mission, loiterSetpoint, vstatus.PositionSetpoint{}, vstatus.PositionSetpoint{})

	if l.out.PositionSetpointTriplet != nil && (!l.haveTriplet || trip != l.lastTriplet) {
		l.out.PositionSetpointTriplet.Publish(trip)
		l.lastTriplet = trip
		l.haveTriplet = true
	}
	if mr := l.mission.Result(); l.out.MissionResult != nil && (!l.haveMissionResult || mr != l.lastMissionResult) {
		l.out.MissionResult.Publish(mr)
		l.lastMissionResult = mr
		l.haveMissionResult = true
	}

	cm := RecomputeControlMode(fsOutcome.NavState, armed)

	l.wasArmedLastTick = armed
	l.wasLandedLastTick = t.Landed

	return l.publish(t.Now, armed, fsOutcome, cm, fstatus)
}

// vehicleTypeOf converts params.VehicleType to vstatus.VehicleType. The two
// enums are deliberately kept distinct (vstatus avoids importing params to
// stay acyclic) but share identical ordinal values, so this is a plain
// numeric conversion rather than a lookup table.
func vehicleTypeOf(p params.VehicleType) vstatus.VehicleType {
	return vstatus.VehicleType(p)
}

func isAutoMain(m vstatus.MainState) bool {
	switch m {
	case vstatus.MainAutoMission, vstatus.MainAutoLoiter, vstatus.MainAutoRTL,
		vstatus.MainAutoTakeoff, vstatus.MainAutoLand, vstatus.MainAutoFollowTarget,
		vstatus.MainAutoPrecland, vstatus.MainAutoVTOLTakeoff:
		return true
	default:
		return false
	}
}

// processOneCommand dispatches at most one queued vehicle command and
// publishes its acknowledgement: exactly one ACK per command the core
// handles; commands addressed to a different system are silently dropped
// by Dispatch's ok=false and never acked.
func (l *Loop) processOneCommand() {
	select {
	case cmd := <-l.cmdQueue:
		if ack, ok := l.cmds.Dispatch(cmd); ok && l.out.CommandAck != nil {
			l.out.CommandAck.Publish(ack)
		}
	default:
	}
}

func (l *Loop) processOneAction(t Telemetry) {
	select {
	case a := <-l.actionQueue:
		l.applyAction(a, t)
	default:
	}
}

func (l *Loop) applyAction(a vstatus.ActionRequest, t Telemetry) {
	src := armstate.SourceInternal
	switch a.Source {
	case vstatus.SourceRCStick, vstatus.SourceRCSwitch, vstatus.SourceRCButton, vstatus.SourceRCModeSlot:
		src = armstate.SourceRC
	}

	in := armstate.Inputs{
		Now: t.Now, PreflightChecksPass: t.PreflightChecksPass, Source: src,
		Landed: t.Landed, MainState: l.main.State(), ThrottleNormalized: t.ThrottleNormalized,
		HomeValid: l.hm.Current().Valid, BootHoldoffElapsed: true,
		VehicleType: vehicleTypeOf(l.params.VehicleType),
	}

	switch a.Action {
	case vstatus.ActionArm:
		l.arm.TryArm(in)
	case vstatus.ActionDisarm:
		l.arm.TryDisarm(in)
	case vstatus.ActionToggle:
		if l.arm.State() == vstatus.ArmingArmed {
			l.arm.TryDisarm(in)
		} else {
			l.arm.TryArm(in)
		}
	case vstatus.ActionKill:
		// The kill switch engages the recoverable manual lockdown,
		// not the non-recoverable force_failsafe termination latch. While
		// airborne this also re-emits a parachute release command and the
		// parachute tune, once, on the rising edge.
		wasLockdown := l.arm.ManualLockdown()
		l.arm.NoteManualLockdown()
		if !wasLockdown && l.arm.ManualLockdown() && !t.Landed {
			if l.out.VehicleCommand != nil {
				l.out.VehicleCommand.Publish(mavcmd.VehicleCommand{
					TargetSystem: l.cmds.SystemID(), TargetComponent: mavcmd.ParachuteComponentID,
					Command: common.MAV_CMD_DO_PARACHUTE, Param1: 1, ReceivedAt: t.Now,
				})
			}
			if l.out.TuneControl != nil {
				l.out.TuneControl.Publish(events.TuneParachuteRelease)
			}
		}
	case vstatus.ActionUnkill:
		l.arm.ClearManualLockdown()
	case vstatus.ActionSwitchMode:
		if a.Mode != nil {
			l.main.Request(*a.Mode, mainstate.Inputs{Now: t.Now, GlobalPositionValid: t.GlobalPositionValid,
				LocalPositionValid: t.LocalPositionValid, AltitudeValid: t.AltitudeValid,
				HomePositionValid: l.hm.Current().Valid, OffboardSignalRecent: t.OffboardSignalRecent,
				VehicleType: vehicleTypeOf(l.params.VehicleType), Source: mainstate.SourceRC})
		}
	}
}

// publish writes outputs in the fixed order (actuator_armed before
// control_mode and status) if anything changed, or if the publish period
// has elapsed.
func (l *Loop) publish(now time.Time, armed bool, fs failsafe.Outcome, cm vstatus.ControlMode, fstatus failure.Status) bool {
	due := now.Sub(l.lastPublish) >= l.params.PublishPeriod

	newArmed := vstatus.ActuatorArmed{
		Armed: armed, ForceFailsafe: l.arm.ForceFailsafeLatched(),
		Lockdown: l.arm.Lockdown(), ManualLockdown: l.arm.ManualLockdown(),
	}
	newStatus := vstatus.VehicleStatus{
		ArmingState: l.arm.State(), NavState: fs.NavState, FailsafeActive: fs.Active,
		ArmingTimestamp:  l.arm.ArmedTimestamp(),
		InTransitionMode: l.inTransition, InTransitionToFW: l.inTransitionToFW,
	}
	newFlags := vstatus.StatusFlags{
		BatteryWarning: l.battery.Level(), BatteryLowRemainingTime: l.battery.LowRemainingTime(),
		HomePositionValid: l.hm.Current().Valid,
	}
	newCommander := vstatus.CommanderState{MainState: l.main.State(), MainStateChanges: l.main.Changes()}

	changed := !newArmed.Equal(l.lastArmed) ||
		newStatus != l.lastStatus ||
		newFlags != l.lastFlags ||
		newCommander != l.lastCommander ||
		cm != l.lastControlMode ||
		fstatus != l.lastFailure

	if !changed && !due {
		return false
	}

	l.out.ActuatorArmed.Publish(newArmed)
	l.out.VehicleControlMode.Publish(cm)
	l.out.VehicleStatus.Publish(newStatus)
	l.out.StatusFlags.Publish(newFlags)
	l.out.CommanderState.Publish(newCommander)
	l.out.FailureDetector.Publish(fstatus)

	l.lastArmed = newArmed
	l.lastStatus = newStatus
	l.lastFlags = newFlags
	l.lastCommander = newCommander
	l.lastControlMode = cm
	l.lastFailure = fstatus
	l.lastPublish = now
	return true
}
