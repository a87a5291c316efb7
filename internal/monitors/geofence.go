package monitors

import (
	"time"

	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/geofence"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// GeofenceMonitor periodically constructs the predicted test point and
// checks it against the configured fence.
type GeofenceMonitor struct {
	period    time.Duration
	lastCheck time.Time
	have      bool

	fence geofence.Fence
	sink  events.Sink

	// loiterOn latches once a breach first fires a LOITER correction; the
	// action is one-shot and does not self-cancel, so only an explicit Reset
	// clears it (the Commander loop calls Reset on the disarm edge).
	loiterOn bool
}

// NewGeofenceMonitor creates a monitor that re-checks at most every period.
func NewGeofenceMonitor(period time.Duration, fence geofence.Fence, sink events.Sink) *GeofenceMonitor {
	return &GeofenceMonitor{period: period, fence: fence, sink: sink}
}

// VehicleSample is the current kinematic state the monitor projects from.
type VehicleSample struct {
	Lat, Lon, AltAboveHome float64
	VelNorthMPS, VelEastMPS, VelDownMPS float64
	Braking geofence.BrakingParams
}

// Tick checks whether period has elapsed and, if so, evaluates the
// prediction. due reports whether an evaluation actually ran this call.
func (g *GeofenceMonitor) Tick(now time.Time, home vstatus.HomePosition, vs VehicleSample) (v geofence.Violation, due bool) {
	if g.have && now.Sub(g.lastCheck) < g.period {
		return geofence.Violation{}, false
	}
	g.lastCheck = now
	g.have = true

	predLat, predLon, predAlt := geofence.PredictedPoint(vs.Lat, vs.Lon, vs.AltAboveHome, vs.VelNorthMPS, vs.VelEastMPS, vs.VelDownMPS, vs.Braking)
	v = geofence.Check(g.fence, home, predLat, predLon, predAlt)
	if v.Breach {
		g.loiterOn = true
		if g.sink != nil {
			g.sink.Emit(events.Event{ID: events.IDGeofenceBreach, Severity: events.SeverityCritical, Template: "geofence breach predicted", Params: map[string]any{
				"max_altitude": v.MaxAltitude, "outside_circle": v.OutsideCircle, "outside_polygon": v.OutsidePolygon,
			}})
		}
	}
	return v, true
}

// LoiterOn reports whether a geofence-corrective loiter has latched on since
// the last Reset.
func (g *GeofenceMonitor) LoiterOn() bool {
	return g.loiterOn
}

// Reset clears the latched loiter flag, e.g. on disarm/re-arm.
func (g *GeofenceMonitor) Reset() {
	g.loiterOn = false
}

// SetFence replaces the fence configuration, e.g. after loading a fence
// file. Takes effect on the next due evaluation.
func (g *GeofenceMonitor) SetFence(f geofence.Fence) {
	g.fence = f
}

// CorrectivePoint computes the reposition LOITER setpoint for the most
// recently evaluated predicted point.
func (g *GeofenceMonitor) CorrectivePoint(home vstatus.HomePosition, vs VehicleSample, marginM float64) vstatus.PositionSetpoint {
	predLat, predLon, predAlt := geofence.PredictedPoint(vs.Lat, vs.Lon, vs.AltAboveHome, vs.VelNorthMPS, vs.VelEastMPS, vs.VelDownMPS, vs.Braking)
	clat, clon, calt := geofence.CorrectiveLoiterPoint(g.fence, home, predLat, predLon, predAlt, marginM)
	return vstatus.PositionSetpoint{Latitude: clat, Longitude: clon, Altitude: calt, Type: vstatus.SetpointLoiter, Valid: true}
}
