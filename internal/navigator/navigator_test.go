package navigator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

func TestTripletPreservedOnTakeoffToLoiter(t *testing.T) {
	d := New()
	home := vstatus.HomePosition{Valid: true}

	takeoffSp := vstatus.PositionSetpoint{Latitude: 1, Longitude: 2, Altitude: 50}
	d.Tick(vstatus.NavAutoTakeoff, true, home, RTLTarget{}, nil, vstatus.PositionSetpoint{}, takeoffSp, vstatus.PositionSetpoint{})
	before := d.Triplet()

	after := d.Tick(vstatus.NavAutoLoiter, true, home, RTLTarget{}, nil, vstatus.PositionSetpoint{}, takeoffSp, vstatus.PositionSetpoint{})
	assert.Equal(t, before.Current.Latitude, after.Current.Latitude, "expected triplet preserved across AUTO_TAKEOFF -> AUTO_LOITER")
	assert.Equal(t, before.Current.Longitude, after.Current.Longitude)
}

func TestTripletResetOnOtherTransitions(t *testing.T) {
	d := New()
	home := vstatus.HomePosition{Valid: true}

	loiterSp := vstatus.PositionSetpoint{Latitude: 9, Longitude: 9}
	d.Tick(vstatus.NavAutoLoiter, true, home, RTLTarget{}, nil, loiterSp, vstatus.PositionSetpoint{}, vstatus.PositionSetpoint{})

	rtlTarget := RTLTarget{Latitude: 1, Longitude: 1, Altitude: 10}
	out := d.Tick(vstatus.NavAutoRTL, true, home, rtlTarget, nil, loiterSp, vstatus.PositionSetpoint{}, vstatus.PositionSetpoint{})
	assert.Equal(t, rtlTarget.Latitude, out.Current.Latitude, "expected RTL triplet to reflect the RTL target")
}

func TestDisarmForcesNoneAndInvalidOnce(t *testing.T) {
	d := New()
	home := vstatus.HomePosition{Valid: true}
	d.Tick(vstatus.NavAutoLoiter, true, home, RTLTarget{}, nil, vstatus.PositionSetpoint{Latitude: 1}, vstatus.PositionSetpoint{}, vstatus.PositionSetpoint{})

	out := d.Tick(vstatus.NavManual, false, home, RTLTarget{}, nil, vstatus.PositionSetpoint{}, vstatus.PositionSetpoint{}, vstatus.PositionSetpoint{})
	require.Equal(t, KindNone, d.Kind())
	assert.False(t, out.Current.Valid, "expected an invalid triplet once disarmed")
}

func TestSelectRTLTypeFallsBackToDirectWithoutMissionLanding(t *testing.T) {
	got := SelectRTLType(params.RTLMissionLanding, false)
	assert.Equal(t, params.RTLDirect, got, "expected fallback to DIRECT when no mission land sequence is available")

	got = SelectRTLType(params.RTLClosest, false)
	assert.Equal(t, params.RTLClosest, got, "non-mission-landing types should pass through unchanged")
}
