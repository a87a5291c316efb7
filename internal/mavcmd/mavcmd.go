// Package mavcmd implements the Command & Action Dispatcher: decoding a
// vehicle command, routing it to exactly one registered handler, and
// emitting exactly one acknowledgement per command.
//
// The MAV_CMD_*/MAV_RESULT_* vocabulary is taken directly from
// github.com/bluenviron/gomavlib/v3/pkg/dialects/common, the same dialect
// package the vehicle-command wire format is defined in; this package
// consumes it purely as a typed constant and message-shape source, since
// the physical transport lives outside the core.
package mavcmd

import (
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Magic parameter values the MAVLink spec defines for specific commands.
const (
	// ForceMagicNumber in COMPONENT_ARM_DISARM's param2 bypasses the normal
	// arming gates (21196 per the MAVLink common dialect spec).
	ForceMagicNumber float32 = 21196

	// InAirRestoreMagicNumber in COMPONENT_ARM_DISARM's param3, combined
	// with a same-system source, requests the IN_AIR_RESTORE arm path.
	InAirRestoreMagicNumber float32 = 1234
)

// ParachuteComponentID is the target_component value (161, MAV_COMP_ID_...)
// identifying a parachute-release command, which the failsafe path must
// receive as an explicit parameter rather than discovering it through a
// subscription side effect.
const ParachuteComponentID uint8 = 161

// VehicleCommand is the decoded command payload, carried over
// common.MessageCommandLong's field shape without requiring an actual
// serial link.
type VehicleCommand struct {
	TargetSystem    uint8
	TargetComponent uint8
	SourceSystem    uint8
	SourceComponent uint8
	Command         common.MAV_CMD
	Param1, Param2, Param3, Param4, Param5, Param6, Param7 float32
	ReceivedAt time.Time
}

// FromMessage adapts a decoded common.MessageCommandLong plus its frame
// source addressing into a VehicleCommand.
func FromMessage(msg *common.MessageCommandLong, sourceSystem, sourceComponent uint8, now time.Time) VehicleCommand {
	return VehicleCommand{
		TargetSystem: msg.TargetSystem, TargetComponent: msg.TargetComponent,
		SourceSystem: sourceSystem, SourceComponent: sourceComponent,
		Command: msg.Command,
		Param1: msg.Param1, Param2: msg.Param2, Param3: msg.Param3, Param4: msg.Param4,
		Param5: msg.Param5, Param6: msg.Param6, Param7: msg.Param7,
		ReceivedAt: now,
	}
}

// Handler processes one command and returns its result. Handlers must not
// block; CommandInProgress signals a result that will arrive later via a
// repeat ack path the caller is responsible for driving.
type Handler func(cmd VehicleCommand) vstatus.CommandResult

// Ack is the acknowledgement the dispatcher emits, mirroring
// common.MessageCommandAck's shape.
type Ack struct {
	Command common.MAV_CMD
	Result  vstatus.CommandResult
	TargetSystem, TargetComponent uint8
}

func toMAVResult(r vstatus.CommandResult) common.MAV_RESULT {
	switch r {
	case vstatus.CommandAccepted:
		return common.MAV_RESULT_ACCEPTED
	case vstatus.CommandTemporarilyRejected:
		return common.MAV_RESULT_TEMPORARILY_REJECTED
	case vstatus.CommandDenied:
		return common.MAV_RESULT_DENIED
	case vstatus.CommandUnsupported:
		return common.MAV_RESULT_UNSUPPORTED
	case vstatus.CommandFailed:
		return common.MAV_RESULT_FAILED
	case vstatus.CommandInProgress:
		return common.MAV_RESULT_IN_PROGRESS
	default:
		return common.MAV_RESULT_FAILED
	}
}

// Dispatcher routes incoming VehicleCommands to registered handlers by
// command code, filtering on target system/component (or broadcast, system
// id 0 or component id 0 meaning "any").
type Dispatcher struct {
	systemID, componentID uint8
	handlers              map[common.MAV_CMD]Handler
	sink                   events.Sink
}

// New creates a Dispatcher for the given local system/component id.
func New(systemID, componentID uint8, sink events.Sink) *Dispatcher {
	return &Dispatcher{
		systemID: systemID, componentID: componentID,
		handlers: make(map[common.MAV_CMD]Handler),
		sink:     sink,
	}
}

// SystemID returns the local system id commands must target to be accepted.
func (d *Dispatcher) SystemID() uint8 { return d.systemID }

// Register binds a handler for cmd, replacing any previous registration.
func (d *Dispatcher) Register(cmd common.MAV_CMD, h Handler) {
	d.handlers[cmd] = h
}

// RegisterCalibration wraps h with the calibration gate: calibration
// commands are only accepted while disarmed and no calibration worker is
// already busy.
func (d *Dispatcher) RegisterCalibration(cmd common.MAV_CMD, armed func() bool, busy func() bool, h Handler) {
	d.handlers[cmd] = func(c VehicleCommand) vstatus.CommandResult {
		if armed() {
			return vstatus.CommandDenied
		}
		if busy() {
			return vstatus.CommandTemporarilyRejected
		}
		return h(c)
	}
}

func (d *Dispatcher) targeted(cmd VehicleCommand) bool {
	if cmd.TargetSystem != 0 && cmd.TargetSystem != d.systemID {
		return false
	}
	if cmd.TargetComponent != 0 && cmd.TargetComponent != d.componentID {
		return false
	}
	return true
}

// Dispatch routes cmd to its handler and returns exactly one Ack, even if no
// handler is registered (UNSUPPORTED) or the command does not target this
// system/component (the caller should not ack commands addressed elsewhere;
// Dispatch reports that case via the ok return so the caller can suppress
// the ack entirely rather than emit an incorrect one).
func (d *Dispatcher) Dispatch(cmd VehicleCommand) (ack Ack, ok bool) {
	if !d.targeted(cmd) {
		return Ack{}, false
	}

	h, found := d.handlers[cmd.Command]
	var result vstatus.CommandResult
	if !found {
		result = vstatus.CommandUnsupported
	} else {
		result = h(cmd)
	}

	ack = Ack{Command: cmd.Command, Result: result, TargetSystem: cmd.SourceSystem, TargetComponent: cmd.SourceComponent}
	if d.sink != nil {
		d.sink.Emit(events.Event{
			ID:       events.IDCommandAck,
			Severity: events.SeverityInfo,
			Template: "command acknowledged",
			Params:   map[string]any{"command": int(cmd.Command), "result": int(toMAVResult(result))},
		})
	}
	return ack, true
}

// IsForceArmDisarm reports whether a COMPONENT_ARM_DISARM command carries
// the force magic number in param2.
func IsForceArmDisarm(cmd VehicleCommand) bool {
	return cmd.Param2 == ForceMagicNumber
}

// IsInAirRestore reports whether a COMPONENT_ARM_DISARM command requests
// the IN_AIR_RESTORE path: param3 carries the magic number and the command
// originates from the same system.
func IsInAirRestore(cmd VehicleCommand) bool {
	return cmd.Param3 == InAirRestoreMagicNumber && cmd.SourceSystem == cmd.TargetSystem
}
