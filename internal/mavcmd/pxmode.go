package mavcmd

import "github.com/flightpath-dev/commander-core/internal/vstatus"

// PX4 main/sub flight-mode encoding carried in MAV_CMD_DO_SET_MODE's
// custom_mode field — the same encoding PX4 itself publishes in
// HEARTBEAT.custom_mode.
const (
	px4MainModeManual     = 1
	px4MainModeAltctl     = 2
	px4MainModePosctl     = 3
	px4MainModeAuto       = 4
	px4MainModeAcro       = 5
	px4MainModeOffboard   = 6
	px4MainModeStabilized = 7
)

const (
	px4AutoModeReady    = 1
	px4AutoModeTakeoff  = 2
	px4AutoModeLoiter   = 3
	px4AutoModeMission  = 4
	px4AutoModeRTL      = 5
	px4AutoModeLand     = 6
	px4AutoModeFollow   = 8
	px4AutoModePrecland = 9
)

// DecodeCustomMode maps a DO_SET_MODE command's (custom_main_mode,
// custom_sub_mode) pair onto the core's MainState vocabulary.
func DecodeCustomMode(mainMode, subMode uint8) (vstatus.MainState, bool) {
	switch mainMode {
	case px4MainModeManual:
		return vstatus.MainManual, true
	case px4MainModeAltctl:
		return vstatus.MainAltctl, true
	case px4MainModePosctl:
		return vstatus.MainPosctl, true
	case px4MainModeAcro:
		return vstatus.MainAcro, true
	case px4MainModeOffboard:
		return vstatus.MainOffboard, true
	case px4MainModeStabilized:
		return vstatus.MainStab, true
	case px4MainModeAuto:
		switch subMode {
		case px4AutoModeReady, px4AutoModeLoiter:
			return vstatus.MainAutoLoiter, true
		case px4AutoModeTakeoff:
			return vstatus.MainAutoTakeoff, true
		case px4AutoModeMission:
			return vstatus.MainAutoMission, true
		case px4AutoModeRTL:
			return vstatus.MainAutoRTL, true
		case px4AutoModeLand:
			return vstatus.MainAutoLand, true
		case px4AutoModeFollow:
			return vstatus.MainAutoFollowTarget, true
		case px4AutoModePrecland:
			return vstatus.MainAutoPrecland, true
		default:
			return vstatus.MainAutoLoiter, true
		}
	default:
		return 0, false
	}
}

// EncodeCustomMode maps a MainState to a (custom_main_mode, custom_sub_mode)
// pair that DecodeCustomMode accepts. AUTO_VTOL_TAKEOFF shares the takeoff
// sub-mode, and states with no PX4 encoding fall back to MANUAL.
func EncodeCustomMode(m vstatus.MainState) (mainMode, subMode uint8) {
	switch m {
	case vstatus.MainManual:
		return px4MainModeManual, 0
	case vstatus.MainAltctl:
		return px4MainModeAltctl, 0
	case vstatus.MainPosctl:
		return px4MainModePosctl, 0
	case vstatus.MainAcro:
		return px4MainModeAcro, 0
	case vstatus.MainOffboard:
		return px4MainModeOffboard, 0
	case vstatus.MainStab:
		return px4MainModeStabilized, 0
	case vstatus.MainAutoLoiter:
		return px4MainModeAuto, px4AutoModeLoiter
	case vstatus.MainAutoTakeoff, vstatus.MainAutoVTOLTakeoff:
		return px4MainModeAuto, px4AutoModeTakeoff
	case vstatus.MainAutoMission:
		return px4MainModeAuto, px4AutoModeMission
	case vstatus.MainAutoRTL:
		return px4MainModeAuto, px4AutoModeRTL
	case vstatus.MainAutoLand:
		return px4MainModeAuto, px4AutoModeLand
	case vstatus.MainAutoFollowTarget:
		return px4MainModeAuto, px4AutoModeFollow
	case vstatus.MainAutoPrecland:
		return px4MainModeAuto, px4AutoModePrecland
	default:
		return px4MainModeManual, 0
	}
}
