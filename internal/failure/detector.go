// Package failure implements the Failure Detector:
// periodic evaluation of tilt, altitude-loss rate, external failure input,
// ESC arm-response, motor-failure masks, and imbalanced-propeller metric,
// each independently debounced.
package failure

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/hysteresis"
)

// Status is the aggregated, debounced output (failure_detector_status).
type Status struct {
	RollPitchExceeded bool
	AltitudeLossExceeded bool
	ExternalFailure   bool
	ESCFailure        bool
	MotorFailure      bool
	MotorFailureChanged bool // one-shot edge
	ImbalancedProp    bool
	ImbalancedPropChanged bool // one-shot advisory
}

// Sample carries the raw per-tick inputs the detector evaluates.
type Sample struct {
	Now time.Time

	RollRad, PitchRad     float64
	TiltThresholdRad      float64
	AltitudeLossRateMPS   float64
	AltitudeLossThreshold float64
	ExternalFailureInput  bool
	ESCArmed              bool
	SpoolUpWindowElapsed  bool
	MotorFailureMask      uint32
	ImbalancedPropMetric  float64
	ImbalancedPropThreshold float64
}

// Detector owns the per-flag debouncers.
type Detector struct {
	tiltHyst       *hysteresis.Hysteresis
	altLossHyst    *hysteresis.Hysteresis
	extFailHyst    *hysteresis.Hysteresis
	escHyst        *hysteresis.Hysteresis

	lastMotorMask   uint32
	haveLastMask    bool
	lastImbalanced  bool
}

// New creates a Detector with the given per-flag debounce intervals.
func New(tilt, altLoss, extFail, esc time.Duration) *Detector {
	return &Detector{
		tiltHyst:    hysteresis.New(tilt),
		altLossHyst: hysteresis.New(altLoss),
		extFailHyst: hysteresis.New(extFail),
		escHyst:     hysteresis.New(esc),
	}
}

// Evaluate runs one tick of the detector over s, returning the debounced
// Status.
func (d *Detector) Evaluate(s Sample) Status {
	tiltExceeded := s.RollRad > s.TiltThresholdRad || s.PitchRad > s.TiltThresholdRad
	altLossExceeded := s.AltitudeLossRateMPS > s.AltitudeLossThreshold
	escFailed := s.SpoolUpWindowElapsed && !s.ESCArmed

	var out Status
	out.RollPitchExceeded = d.tiltHyst.SetStateAndUpdate(tiltExceeded, s.Now)
	out.AltitudeLossExceeded = d.altLossHyst.SetStateAndUpdate(altLossExceeded, s.Now)
	out.ExternalFailure = d.extFailHyst.SetStateAndUpdate(s.ExternalFailureInput, s.Now)
	out.ESCFailure = d.escHyst.SetStateAndUpdate(escFailed, s.Now)

	out.MotorFailure = s.MotorFailureMask != 0
	if d.haveLastMask && (s.MotorFailureMask != 0) != (d.lastMotorMask != 0) {
		out.MotorFailureChanged = true
	}
	d.lastMotorMask = s.MotorFailureMask
	d.haveLastMask = true

	imbalanced := s.ImbalancedPropMetric > s.ImbalancedPropThreshold && s.ImbalancedPropThreshold > 0
	out.ImbalancedProp = imbalanced
	if imbalanced && !d.lastImbalanced {
		out.ImbalancedPropChanged = true
	}
	d.lastImbalanced = imbalanced

	return out
}

// AnyEarlyTakeoffCritical reports whether the early-takeoff critical window
// conditions (roll/pitch/alt/ext) are met, used by the failsafe resolver's
// lockdown priority.
func (s Status) AnyEarlyTakeoffCritical() bool {
	return s.RollPitchExceeded || s.AltitudeLossExceeded || s.ExternalFailure
}
