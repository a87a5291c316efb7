// Package events defines the structured event vocabulary the core emits
// for every state transition, failsafe cause, and denied request, plus the
// tune/LED encoding those events drive.
package events

import (
	"golang.org/x/exp/slog"
)

// Severity mirrors MAVLink's STATUSTEXT severities closely enough to map
// directly onto them, without importing the dialect for a handful of ints.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityNotice
	SeverityWarning
	SeverityError
	SeverityCritical
	SeverityEmergency
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityNotice:
		return "notice"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	case SeverityEmergency:
		return "emergency"
	default:
		return "unknown"
	}
}

// Event is a structured record: a stable id, a severity, a human-readable
// template, and the parameters that filled it. Downstream UI localisation
// keys off ID, not Template.
type Event struct {
	ID       string
	Severity Severity
	Template string
	Params   map[string]any
}

// Well-known stable event ids referenced throughout the core.
const (
	IDArmDenied       = "commander.arm_denied"
	IDArmed           = "commander.armed"
	IDDisarmed        = "commander.disarmed"
	IDModeDenied      = "commander.mode_denied"
	IDModeChanged     = "commander.mode_changed"
	IDFailsafeEnter   = "commander.failsafe_enter"
	IDTermination     = "commander.termination"
	IDLockdown        = "commander.lockdown"
	IDGCSLost         = "commander.gcs_lost"
	IDGCSRegained     = "commander.gcs_regained"
	IDRCLost          = "commander.rc_lost"
	IDRCRegained      = "commander.rc_regained"
	IDOffboardLost    = "commander.offboard_lost"
	IDBatteryWarning  = "commander.battery_warning"
	IDGeofenceBreach  = "commander.geofence_breach"
	IDWindExceeded    = "commander.wind_exceeded"
	IDMaxFlightTime   = "commander.max_flight_time"
	IDAutoDisarmLand  = "commander.auto_disarm_land"
	IDKillSwitch      = "commander.kill_switch"
	IDHomeSet         = "commander.home_set"
	IDCommandAck      = "commander.command_ack"
	IDMotorFailure    = "commander.motor_failure"
	IDImbalancedProp  = "commander.imbalanced_prop"
)

// Sink receives emitted events. The Commander composition root owns the
// concrete sink (a slog.Logger wrapper); this keeps subsystems from reaching
// for a global logger.
type Sink interface {
	Emit(e Event)
}

// SlogSink adapts Sink to golang.org/x/exp/slog, the structured-logging
// package used by the pack's vice simulator core.
type SlogSink struct {
	Logger *slog.Logger
}

func NewSlogSink(logger *slog.Logger) *SlogSink {
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Emit(e Event) {
	args := make([]any, 0, len(e.Params)*2+2)
	args = append(args, "event_id", e.ID)
	for k, v := range e.Params {
		args = append(args, k, v)
	}
	switch e.Severity {
	case SeverityEmergency, SeverityCritical, SeverityError:
		s.Logger.Error(e.Template, args...)
	case SeverityWarning:
		s.Logger.Warn(e.Template, args...)
	default:
		s.Logger.Info(e.Template, args...)
	}
}

// Tune selects an acoustic cue: the negative tone played on any denied or
// failed request, plus situation-specific tunes like the parachute release.
type Tune int

const (
	TuneNone Tune = iota
	TuneNegative
	TuneArmWarning
	TuneNotify
	TuneParachuteRelease
)

// LEDState encodes the vehicle LED colour.
type LEDState int

const (
	LEDInit LEDState = iota
	LEDStandby
	LEDArmed
	LEDFailsafe
	LEDBatteryWarn
	LEDBatteryCritical
	LEDHomeKnown
	LEDOverload
)
