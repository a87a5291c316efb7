package armstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

func baseInputs(now time.Time) Inputs {
	return Inputs{
		Now:                 now,
		PreflightChecksPass: true,
		MainState:           vstatus.MainPosctl,
		VehicleType:         vstatus.VehicleRotary,
		HomeValid:           true,
		BootHoldoffElapsed:  true,
	}
}

func armedMachine(t *testing.T, now time.Time) *Machine {
	t.Helper()
	m := New(nil)
	require.Equal(t, Changed, m.UpdatePreflightOutcome(baseInputs(now), true), "expected INIT->STANDBY")
	require.Equal(t, Changed, m.TryArm(baseInputs(now)), "expected STANDBY->ARMED")
	return m
}

func TestForceFailsafeMonotonicity(t *testing.T) {
	now := time.Now()
	m := armedMachine(t, now)

	in := baseInputs(now)
	in.Landed = true
	require.Equal(t, Changed, m.TryDisarm(in), "expected disarm to succeed")

	m.NoteForceFailsafe(true)
	assert.Equal(t, Denied, m.TryArm(baseInputs(now)), "expected arming denied once force_failsafe is latched")

	m.ClearForceFailsafe()
	assert.Equal(t, Changed, m.TryArm(baseInputs(now)), "expected arming to succeed again after force_failsafe is cleared")
}

func TestGeofenceRTLRequiresHome(t *testing.T) {
	now := time.Now()
	m := New(nil)
	m.UpdatePreflightOutcome(baseInputs(now), true)

	in := baseInputs(now)
	in.GeofenceActionIsRTL = true
	in.HomeValid = false
	assert.Equal(t, Denied, m.TryArm(in), "expected DENIED when geofence action is RTL and home invalid")

	in.HomeValid = true
	assert.Equal(t, Changed, m.TryArm(in), "expected arm to succeed once home is valid")
}

func TestForceArmSkipsChecks(t *testing.T) {
	// Force-arm despite failed checks.
	now := time.Now()
	m := New(nil)
	in := baseInputs(now)
	in.PreflightChecksPass = false
	m.UpdatePreflightOutcome(in, false) // INIT -> STANDBY_ERROR

	in.Forced = true
	require.Equal(t, Changed, m.TryArm(in), "expected forced arm to bypass a STANDBY_ERROR gate failure")
	assert.False(t, m.ArmedTimestamp().IsZero(), "expected armed_time to be set")
}

func TestArmDeniedFromStandbyError(t *testing.T) {
	now := time.Now()
	m := New(nil)
	in := baseInputs(now)
	in.PreflightChecksPass = false
	m.UpdatePreflightOutcome(in, false)
	require.Equal(t, vstatus.ArmingStandbyError, m.State())
	assert.Equal(t, Denied, m.TryArm(in), "expected unforced arm from STANDBY_ERROR to be denied")
}

func TestManualThrottleGates(t *testing.T) {
	now := time.Now()

	m := New(nil)
	in := baseInputs(now)
	in.MainState = vstatus.MainAltctl
	in.ThrottleNormalized = 0.5 // above center
	m.UpdatePreflightOutcome(in, true)
	assert.Equal(t, Denied, m.TryArm(in), "expected deny for above-center throttle in ALTCTL")

	m2 := New(nil)
	in2 := baseInputs(now)
	in2.MainState = vstatus.MainManual
	in2.ThrottleNormalized = 0 // not at floor
	m2.UpdatePreflightOutcome(in2, true)
	assert.Equal(t, Denied, m2.TryArm(in2), "expected deny for non-floor throttle in MANUAL")
}

func TestDisarmRequiresLandedUnlessForcedOrManualRotary(t *testing.T) {
	now := time.Now()
	m := armedMachine(t, now)

	in := baseInputs(now)
	in.Landed = false
	require.Equal(t, Denied, m.TryDisarm(in), "expected disarm denied while airborne")

	in.Forced = true
	assert.Equal(t, Changed, m.TryDisarm(in), "expected forced disarm to succeed")
}

func TestShutdownDeniedWhileArmed(t *testing.T) {
	now := time.Now()
	m := armedMachine(t, now)
	assert.False(t, m.ShutdownIfAllowed(), "shutdown must be disallowed while armed")
	assert.Equal(t, Denied, m.TryShutdown(baseInputs(now)), "expected shutdown denied while armed")
}

func TestHaveTakenOffSinceArmingTracksLiftoffEdge(t *testing.T) {
	now := time.Now()
	m := armedMachine(t, now)
	assert.False(t, m.HaveTakenOffSinceArming(), "freshly armed on the ground has not taken off yet")

	m.NoteLandedTransition(true, true)
	assert.False(t, m.HaveTakenOffSinceArming(), "still landed: no liftoff edge")

	m.NoteLandedTransition(true, false)
	assert.True(t, m.HaveTakenOffSinceArming(), "landed->airborne edge should flip the bit")

	m.NoteLandedTransition(false, true)
	assert.True(t, m.HaveTakenOffSinceArming(), "landing after takeoff does not clear the bit")
}

func TestHaveTakenOffResetsOnReArm(t *testing.T) {
	now := time.Now()
	m := armedMachine(t, now)
	m.NoteLandedTransition(true, false)
	require.True(t, m.HaveTakenOffSinceArming())

	in := baseInputs(now)
	in.Landed = true
	require.Equal(t, Changed, m.TryDisarm(in), "expected disarm to succeed")

	require.Equal(t, Changed, m.TryArm(baseInputs(now)), "expected re-arm to succeed")
	assert.False(t, m.HaveTakenOffSinceArming(), "a fresh arming session must reset the takeoff bit")
}
