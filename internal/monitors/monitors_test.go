package monitors

import (
	"testing"
	"time"

	geo "github.com/kellydunn/golang-geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightpath-dev/commander-core/internal/geofence"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

func TestLinkLostAndRegained(t *testing.T) {
	l := NewLink(RoleGCS, time.Second, 500*time.Millisecond, nil)
	now := time.Now()

	lost, _ := l.Update(0, now)
	assert.False(t, lost, "link should not be lost immediately")

	lost, _ = l.Update(2*time.Second, now.Add(time.Second))
	assert.False(t, lost, "the lost edge waits out the 500ms debounce hold")

	lost, changed := l.Update(2500*time.Millisecond, now.Add(1500*time.Millisecond))
	require.True(t, lost, "expected link lost after timeout")
	assert.True(t, changed)

	lost, changed = l.Update(0, now.Add(2*time.Second))
	assert.False(t, lost, "expected link regained")
	assert.True(t, changed)
}

func TestLinkUSBStickyNeverLost(t *testing.T) {
	l := NewLink(RoleOnboardController, time.Second, 0, nil)
	l.SetUSBSticky(true)
	lost, _ := l.Update(10*time.Second, time.Now())
	assert.False(t, lost, "USB sticky link must never report lost")
}

func TestBatteryLadderOnlyWorsensWhileArmed(t *testing.T) {
	b := NewBattery(0, nil)
	s := Sample{RemainingFraction: 0.1, LowThreshold: 0.3, CriticalThreshold: 0.15, EmergencyThreshold: 0.05, Armed: true}
	lvl := b.Update(s)
	require.Equal(t, vstatus.BatteryCritical, lvl)

	recovered := Sample{RemainingFraction: 0.9, LowThreshold: 0.3, CriticalThreshold: 0.15, EmergencyThreshold: 0.05, Armed: true}
	lvl = b.Update(recovered)
	assert.Equal(t, vstatus.BatteryCritical, lvl, "battery ladder must not improve while armed")
}

func TestBatteryWorsenedHeldForActionDelay(t *testing.T) {
	b := NewBattery(2*time.Second, nil)
	now := time.Now()
	s := Sample{RemainingFraction: 0.1, LowThreshold: 0.3, CriticalThreshold: 0.15, EmergencyThreshold: 0.05, Armed: true}
	b.Update(s)

	assert.False(t, b.WorsenedHeld(now), "worsened edge must wait out the action delay")
	assert.False(t, b.WorsenedHeld(now.Add(time.Second)))
	require.True(t, b.WorsenedHeld(now.Add(2100*time.Millisecond)), "expected the trigger once the delay elapsed")

	assert.False(t, b.WorsenedHeld(now.Add(5*time.Second)), "an acted-upon level must not re-trigger")

	b.Update(Sample{RemainingFraction: 0.02, LowThreshold: 0.3, CriticalThreshold: 0.15, EmergencyThreshold: 0.05, Armed: true})
	assert.False(t, b.WorsenedHeld(now.Add(6*time.Second)))
	assert.True(t, b.WorsenedHeld(now.Add(8100*time.Millisecond)), "a further worsening restarts the delay and triggers again")
}

func TestOffboardAvailabilityDebounce(t *testing.T) {
	o := NewOffboard(time.Second)
	now := time.Now()

	assert.False(t, o.Update(true, now), "a fresh stream is not yet available")
	assert.False(t, o.Update(true, now.Add(500*time.Millisecond)))
	require.True(t, o.Update(true, now.Add(1100*time.Millisecond)), "expected availability after the hold interval")

	assert.False(t, o.Update(false, now.Add(1200*time.Millisecond)), "a single missed tick drops availability immediately")
	assert.False(t, o.Update(true, now.Add(1300*time.Millisecond)), "the hold restarts from scratch after a drop")
}

func TestWindQuietPeriod(t *testing.T) {
	w := NewWind(60*time.Second, nil)
	now := time.Now()

	ev := w.Update(20, 10, 15, now)
	require.True(t, ev.RequestRTL, "expected RTL request on first max-exceed")

	ev = w.Update(20, 10, 15, now.Add(time.Second))
	assert.False(t, ev.RequestRTL, "expected no repeat RTL request within quiet period")

	ev = w.Update(20, 10, 15, now.Add(61*time.Second))
	assert.True(t, ev.RequestRTL, "expected RTL request again after quiet period elapses")
}

func TestAutoDisarmLandedTimer(t *testing.T) {
	a := NewAutoDisarm(time.Second, 5*time.Second, nil)
	now := time.Now()
	assert.False(t, a.Update(true, true, false, true, now), "should not disarm immediately on landing")
	assert.True(t, a.Update(true, true, false, true, now.Add(2*time.Second)), "expected auto-disarm after landed timer elapses")
}

// TestAutoDisarmNeverTakenOffDoesNotFire covers the landed timer's
// "never fires if the vehicle never took off" half: a vehicle armed and
// left sitting on the ground must not auto-disarm purely off the landed
// timer, since it never had a flight to land from.
func TestAutoDisarmNeverTakenOffDoesNotFire(t *testing.T) {
	a := NewAutoDisarm(time.Second, 5*time.Second, nil)
	now := time.Now()
	assert.False(t, a.Update(true, true, false, false, now), "should not disarm immediately on landing")
	assert.False(t, a.Update(true, true, false, false, now.Add(5*time.Second)), "must not auto-disarm when the vehicle never took off since arming")
}

func TestGeofenceMonitorRespectsCheckPeriod(t *testing.T) {
	fence := geofence.Fence{CircleRadiusM: 10}
	g := NewGeofenceMonitor(200*time.Millisecond, fence, nil)
	home := vstatus.HomePosition{Latitude: 0, Longitude: 0, Valid: true}
	now := time.Now()

	_, due := g.Tick(now, home, VehicleSample{Lat: 1, Lon: 1})
	require.True(t, due, "first tick should always evaluate")

	_, due = g.Tick(now.Add(50*time.Millisecond), home, VehicleSample{Lat: 1, Lon: 1})
	assert.False(t, due, "tick within the check period should be skipped")

	v, due := g.Tick(now.Add(250*time.Millisecond), home, VehicleSample{Lat: 1, Lon: 1})
	require.True(t, due, "tick past the check period should evaluate")
	assert.True(t, v.Breach, "expected breach far outside the 10m circle")
}

// TestGeofenceLoiterLatchesAndCorrects: a predicted
// breach latches `_geofence_loiter_on` and the corrective setpoint lands
// strictly inside the configured circle.
func TestGeofenceLoiterLatchesAndCorrects(t *testing.T) {
	fence := geofence.Fence{CircleRadiusM: 100}
	g := NewGeofenceMonitor(0, fence, nil)
	home := vstatus.HomePosition{Latitude: 0, Longitude: 0, Valid: true}
	now := time.Now()

	vs := VehicleSample{Lat: 0.002, Lon: 0, VelNorthMPS: 5}
	require.False(t, g.LoiterOn())

	v, _ := g.Tick(now, home, vs)
	require.True(t, v.OutsideCircle, "0.002 deg north (~222m) should sit outside a 100m circle")
	assert.True(t, g.LoiterOn(), "breach must latch the geofence loiter flag")

	sp := g.CorrectivePoint(home, vs, 15)
	require.True(t, sp.Valid)
	assert.Equal(t, vstatus.SetpointLoiter, sp.Type)

	corrected := geo.NewPoint(sp.Latitude, sp.Longitude)
	homePt := geo.NewPoint(home.Latitude, home.Longitude)
	distM := homePt.GreatCircleDistance(corrected) * 1000.0
	assert.Less(t, distM, fence.CircleRadiusM, "corrective loiter point must land inside the fence")

	g.Reset()
	assert.False(t, g.LoiterOn(), "Reset must clear the latch")
}
