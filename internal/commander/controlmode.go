package commander

import "github.com/flightpath-dev/commander-core/internal/vstatus"

// RecomputeControlMode derives the enabled control loops from the resolved
// nav state.
func RecomputeControlMode(nav vstatus.NavState, armed bool) vstatus.ControlMode {
	var cm vstatus.ControlMode
	if !armed {
		return cm
	}

	switch nav {
	case vstatus.NavManual:
		cm.ManualEnabled, cm.RatesEnabled, cm.AttitudeEnabled = true, true, true
	case vstatus.NavAcro:
		cm.ManualEnabled, cm.AcroEnabled, cm.RatesEnabled = true, true, true
	case vstatus.NavStab:
		cm.ManualEnabled, cm.AttitudeEnabled, cm.RatesEnabled = true, true, true
	case vstatus.NavAltctl:
		cm.ManualEnabled, cm.AltitudeEnabled, cm.AttitudeEnabled, cm.RatesEnabled = true, true, true, true
	case vstatus.NavPosctl:
		cm.ManualEnabled, cm.PositionEnabled, cm.AltitudeEnabled, cm.AttitudeEnabled, cm.RatesEnabled = true, true, true, true, true
	case vstatus.NavOffboard:
		cm.OffboardEnabled, cm.PositionEnabled, cm.AltitudeEnabled, cm.AttitudeEnabled, cm.RatesEnabled = true, true, true, true, true
	case vstatus.NavTermination:
		cm.TerminationEnabled = true
	case vstatus.NavLockdown:
		// no control loop is enabled; actuators are locked down.
	default:
		// every AUTO_* family state (mission, loiter, RTL, takeoff, land,
		// precland, follow-target, orbit, VTOL takeoff, RC recover, land
		// engine-failure, descend) runs the full autonomous stack.
		cm.AutoEnabled, cm.PositionEnabled, cm.AltitudeEnabled, cm.AttitudeEnabled, cm.RatesEnabled = true, true, true, true, true
	}
	return cm
}
