// Package vstatus holds the value objects published and consumed across the
// core: Vehicle Status, Actuator Armed, Status Flags, Commander State, Home
// Position, Position Setpoint Triplet, Vehicle Command / Action Request, and
// Mission Result. These are plain structs; ownership rules
// (who mutates, who only reads) are enforced by convention and documented
// per type, since the bus package only ever hands out copies.
package vstatus

import "time"

// ArmingState is the Arm State Machine's lifecycle stage.
type ArmingState int

const (
	ArmingInit ArmingState = iota
	ArmingStandby
	ArmingArmed
	ArmingStandbyError
	ArmingShutdown
	ArmingInAirRestore
)

func (a ArmingState) String() string {
	switch a {
	case ArmingInit:
		return "INIT"
	case ArmingStandby:
		return "STANDBY"
	case ArmingArmed:
		return "ARMED"
	case ArmingStandbyError:
		return "STANDBY_ERROR"
	case ArmingShutdown:
		return "SHUTDOWN"
	case ArmingInAirRestore:
		return "IN_AIR_RESTORE"
	default:
		return "UNKNOWN"
	}
}

// MainState is the operator/automation-selected flight mode.
type MainState int

const (
	MainManual MainState = iota
	MainAltctl
	MainPosctl
	MainAutoMission
	MainAutoLoiter
	MainAutoRTL
	MainAcro
	MainOffboard
	MainStab
	MainAutoTakeoff
	MainAutoLand
	MainAutoFollowTarget
	MainAutoPrecland
	MainOrbit
	MainAutoVTOLTakeoff
)

func (m MainState) String() string {
	names := [...]string{
		"MANUAL", "ALTCTL", "POSCTL", "AUTO_MISSION", "AUTO_LOITER",
		"AUTO_RTL", "ACRO", "OFFBOARD", "STAB", "AUTO_TAKEOFF", "AUTO_LAND",
		"AUTO_FOLLOW_TARGET", "AUTO_PRECLAND", "ORBIT", "AUTO_VTOL_TAKEOFF",
	}
	if int(m) < len(names) {
		return names[m]
	}
	return "UNKNOWN"
}

// NavState is the effective mode after failsafe resolution.
type NavState int

const (
	NavManual NavState = iota
	NavAltctl
	NavPosctl
	NavAutoMission
	NavAutoLoiter
	NavAutoRTL
	NavAcro
	NavOffboard
	NavStab
	NavAutoTakeoff
	NavAutoLand
	NavAutoFollowTarget
	NavAutoPrecland
	NavOrbit
	NavAutoVTOLTakeoff
	NavAutoRCRecover
	NavAutoLandengfail
	NavAutoDescend
	NavTermination
	NavLockdown
)

func (n NavState) String() string {
	names := [...]string{
		"MANUAL", "ALTCTL", "POSCTL", "AUTO_MISSION", "AUTO_LOITER",
		"AUTO_RTL", "ACRO", "OFFBOARD", "STAB", "AUTO_TAKEOFF", "AUTO_LAND",
		"AUTO_FOLLOW_TARGET", "AUTO_PRECLAND", "ORBIT", "AUTO_VTOL_TAKEOFF",
		"AUTO_RC_RECOVER", "AUTO_LAND_ENGFAIL", "AUTO_DESCEND", "TERMINATION",
		"LOCKDOWN",
	}
	if int(n) < len(names) {
		return names[n]
	}
	return "UNKNOWN"
}

// VehicleType mirrors params.VehicleType without importing params, to avoid
// a cyclic dependency; the composition root maps one to the other.
type VehicleType int

const (
	VehicleUnknown VehicleType = iota
	VehicleRotary
	VehicleFixedWing
	VehicleRover
	VehicleVTOL
)

// VehicleStatus is the core value object describing the vehicle as a whole.
type VehicleStatus struct {
	SystemID    uint8
	ComponentID uint8
	VehicleType VehicleType

	ArmingState ArmingState
	NavState    NavState

	FailsafeActive          bool
	RCSignalLost            bool
	DataLinkLost            bool
	HighLatencyDataLinkLost bool
	USBConnected            bool
	InTransitionMode        bool
	InTransitionToFW        bool

	BootTimestamp      time.Time
	ArmingTimestamp    time.Time
	TakeoffTimestamp   time.Time
	LastNavStateChange time.Time
}

// ActuatorArmed is the bit-vector of motor-enablement state. Equality is
// structural — a plain == works since every field is comparable.
type ActuatorArmed struct {
	Armed              bool
	Prearmed           bool
	ReadyToArm         bool
	Lockdown           bool
	ManualLockdown     bool
	ForceFailsafe      bool
	InESCCalibration   bool
}

// Equal reports structural equality, kept explicit even though Go's ==
// would suffice for this type.
func (a ActuatorArmed) Equal(b ActuatorArmed) bool {
	return a == b
}

// BatteryWarning is the battery failsafe level ladder.
type BatteryWarning int

const (
	BatteryNone BatteryWarning = iota
	BatteryLow
	BatteryCritical
	BatteryEmergency
)

// StatusFlags carries the pre-flight and runtime pass/fail flags.
type StatusFlags struct {
	GPSValid                bool
	GlobalPositionValid     bool
	LocalPositionValid      bool
	LocalVelocityValid      bool
	HomePositionValid       bool
	BatteryWarning          BatteryWarning
	BatteryLowRemainingTime bool
	PreFlightChecksPass     bool
	CalibrationEnabled      bool
	RCCalibrationInProgress bool
	OffboardControlSignalLost bool
	VTOLTransitionFailure   bool
}

// ControlMode is the recomputed set of enabled control loops derived from
// the resolved NavState each tick.
type ControlMode struct {
	ManualEnabled   bool
	AutoEnabled     bool
	RatesEnabled    bool
	AttitudeEnabled bool
	AltitudeEnabled bool
	PositionEnabled bool
	VelocityEnabled bool
	AcroEnabled     bool
	OffboardEnabled bool
	TerminationEnabled bool
}

// CommanderState carries the main state plus its change counter.
type CommanderState struct {
	MainState        MainState
	MainStateChanges uint64
}

// HomePosition is the reference position used by RTL, altitude references,
// and home-gated failsafe actions.
type HomePosition struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Yaw       float64
	Timestamp time.Time
	Valid     bool
}

// SetpointType distinguishes what a PositionSetpoint represents.
type SetpointType int

const (
	SetpointIdle SetpointType = iota
	SetpointLoiter
	SetpointTakeoff
	SetpointLand
	SetpointPosition
)

// LoiterDirection is clockwise (1) or counter-clockwise (-1).
type LoiterDirection int

const (
	LoiterClockwise        LoiterDirection = 1
	LoiterCounterClockwise LoiterDirection = -1
)

// PositionSetpoint is one leg of the triplet.
type PositionSetpoint struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Type      SetpointType

	Yaw      float64
	YawValid bool

	LoiterRadius    float64
	LoiterDirection LoiterDirection

	CruisingSpeed    float64
	CruisingThrottle float64
	AcceptanceRadius float64

	Valid bool
}

// PositionSetpointTriplet is the ordered trio the Navigator publishes and
// the (external) position controller consumes.
type PositionSetpointTriplet struct {
	Previous PositionSetpoint
	Current  PositionSetpoint
	Next     PositionSetpoint
}

// Invalid returns an all-invalid triplet, published exactly once when the
// active navigator mode becomes None.
func Invalid() PositionSetpointTriplet {
	return PositionSetpointTriplet{}
}

// CommandResult is the MAV_RESULT-shaped outcome of a vehicle command.
type CommandResult int

const (
	CommandAccepted CommandResult = iota
	CommandTemporarilyRejected
	CommandDenied
	CommandUnsupported
	CommandFailed
	CommandInProgress
)

// ActionSource identifies where an ActionRequest originated.
type ActionSource int

const (
	SourceRCStick ActionSource = iota
	SourceRCSwitch
	SourceRCButton
	SourceRCModeSlot
)

// Action is the user-intent verb of an ActionRequest.
type Action int

const (
	ActionArm Action = iota
	ActionDisarm
	ActionToggle
	ActionKill
	ActionUnkill
	ActionSwitchMode
)

// ActionRequest is a compact user-intent event.
type ActionRequest struct {
	Source ActionSource
	Action Action
	Mode   *MainState
}

// MissionResult is the published mission progress record.
type MissionResult struct {
	Valid              bool
	Failure            bool
	FlightTermination  bool
	Finished           bool
	Warning            bool
	InstanceCount      uint32
	SeqTotal           int32
	LandStartAvailable bool
	LandStartIndex     int32
}
