package home

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetOnFirstArm(t *testing.T) {
	m := New(nil)
	now := time.Now()

	in := Inputs{
		Now: now, Armed: true, WasArmedLastTick: false,
		BootHoldoffElapsed: true, PositionValid: true,
		CurrentLat: 47.1, CurrentLon: 8.5, CurrentAlt: 400,
	}
	assert.True(t, m.Update(in), "expected home to be set on first arm")
	assert.True(t, m.Current().Valid, "home should be valid after first arm")
}

func TestNoSetBeforeBootHoldoff(t *testing.T) {
	m := New(nil)
	in := Inputs{
		Now: time.Now(), Armed: true, WasArmedLastTick: false,
		BootHoldoffElapsed: false, PositionValid: true,
		CurrentLat: 47.1, CurrentLon: 8.5, CurrentAlt: 400,
	}
	assert.False(t, m.Update(in), "home must not be set before boot holdoff elapses")
}

func TestTakeoffEdgeSetsHomeWhenEnabled(t *testing.T) {
	m := New(nil)
	in := Inputs{
		Now: time.Now(), WasLandedLastTick: true, Landed: false,
		HomeInAirEnabled: true, PositionValid: true,
		CurrentLat: 1, CurrentLon: 2, CurrentAlt: 3,
	}
	assert.True(t, m.Update(in), "expected takeoff edge to set home when in-air-home is enabled")
}

func TestInvalidateRefusedWhileLockedForFailsafe(t *testing.T) {
	m := New(nil)
	m.set(1, 2, 3, 0, time.Now(), ReasonFirstArm)
	m.LockForFailsafe()

	assert.False(t, m.Invalidate(), "expected invalidate to be refused while locked for a failsafe action")
	assert.True(t, m.Current().Valid, "home should remain valid while locked")

	m.UnlockFailsafe()
	assert.True(t, m.Invalidate(), "expected invalidate to succeed once unlocked")
}

func TestSetRejectsNonFiniteCoordinates(t *testing.T) {
	m := New(nil)
	assert.True(t, m.set(1, 2, 3, 0, time.Now(), ReasonFirstArm), "sanity: normal set should succeed")

	m2 := New(nil)
	assert.False(t, m2.set(math.NaN(), 2, 3, 0, time.Now(), ReasonFirstArm), "expected non-finite latitude to be rejected")
	assert.False(t, m2.Current().Valid, "home should remain invalid after a rejected set")
}
