// Package geofence implements breach prediction and the corrective-loiter
// computation: a predicted test point
// projected by braking distance (horizontal) and vertical braking distance
// for rotary-wing vehicles, or fixed radii for fixed-wing, checked against
// distance-to-home, max-altitude, and polygon/circle containment.
//
// Containment and distance math is delegated to
// github.com/kellydunn/golang-geo; polygon containment math stays a
// consumed library rather than something the core reimplements.
package geofence

import (
	"math"

	geo "github.com/kellydunn/golang-geo"

	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Polygon is a closed ring of vertices defining the allowed area; containment
// uses golang-geo's point-in-polygon support.
type Polygon struct {
	Vertices []*geo.Point
}

// Fence is the geofence configuration: an optional polygon, an optional
// circular radius around home, and a maximum altitude above home.
type Fence struct {
	Polygon     *Polygon
	CircleRadiusM float64 // 0 disables
	MaxAltitudeM  float64 // 0 disables
}

// BrakingParams carries the physical constants used to project a predicted
// stopping point.
type BrakingParams struct {
	IsRotary            bool
	HorizontalDecelMPS2 float64 // rotary braking deceleration
	VerticalDecelMPS2   float64
	FixedWingHorRadiusM float64 // fixed radius substitute for fixed-wing
	FixedWingVerRadiusM float64
}

// PredictedPoint projects where the vehicle will stop given its current
// position, velocity, and braking characteristics.
func PredictedPoint(lat, lon, altAboveHomeM float64, velNorthMPS, velEastMPS, velDownMPS float64, bp BrakingParams) (predLat, predLon, predAlt float64) {
	speedHoriz := math.Hypot(velNorthMPS, velEastMPS)

	var brakingDistM, vertBrakingM float64
	if bp.IsRotary {
		if bp.HorizontalDecelMPS2 > 0 {
			brakingDistM = (speedHoriz * speedHoriz) / (2 * bp.HorizontalDecelMPS2)
		}
		if bp.VerticalDecelMPS2 > 0 {
			vertBrakingM = (velDownMPS * velDownMPS) / (2 * bp.VerticalDecelMPS2)
		}
	} else {
		brakingDistM = bp.FixedWingHorRadiusM
		vertBrakingM = bp.FixedWingVerRadiusM
	}

	if speedHoriz < 1e-6 {
		predLat, predLon = lat, lon
	} else {
		bearing := math.Atan2(velEastMPS, velNorthMPS)
		origin := geo.NewPoint(lat, lon)
		projected := origin.PointAtDistanceAndBearing(brakingDistM/1000.0, bearing*180/math.Pi)
		predLat, predLon = projected.Lat(), projected.Lng()
	}

	switch {
	case velDownMPS < 0:
		// climbing: braking distance adds altitude
		predAlt = altAboveHomeM + vertBrakingM
	case velDownMPS > 0:
		predAlt = altAboveHomeM - vertBrakingM
	default:
		predAlt = altAboveHomeM
	}
	return predLat, predLon, predAlt
}

// CorrectiveLoiterPoint computes the reposition LOITER setpoint the
// Navigator publishes when the geofence action is LOITER and a breach is
// predicted: a point back along the
// home-to-vehicle bearing, pulled inside the configured circle radius by
// marginM, or home itself when only a polygon (no radius) is configured.
func CorrectiveLoiterPoint(f Fence, home vstatus.HomePosition, lat, lon, altAboveHomeM, marginM float64) (clat, clon, calt float64) {
	if !home.Valid {
		return lat, lon, altAboveHomeM
	}
	if f.CircleRadiusM > 0 {
		homePt := geo.NewPoint(home.Latitude, home.Longitude)
		testPt := geo.NewPoint(lat, lon)
		bearing := homePt.BearingTo(testPt)
		safeDist := f.CircleRadiusM - marginM
		if safeDist < 0 {
			safeDist = 0
		}
		corrected := homePt.PointAtDistanceAndBearing(safeDist/1000.0, bearing)
		calt = altAboveHomeM
		if f.MaxAltitudeM > 0 && calt > f.MaxAltitudeM-marginM {
			calt = f.MaxAltitudeM - marginM
		}
		return corrected.Lat(), corrected.Lng(), calt
	}
	// Polygon-only fence: home is always a safe fallback interior point.
	calt = altAboveHomeM
	if f.MaxAltitudeM > 0 && calt > f.MaxAltitudeM-marginM {
		calt = f.MaxAltitudeM - marginM
	}
	return home.Latitude, home.Longitude, calt
}

// Violation describes which aspect of the fence, if any, a point violates.
type Violation struct {
	Breach        bool
	MaxAltitude   bool
	OutsideCircle bool
	OutsidePolygon bool
	DistanceToHomeM float64
}

// Check evaluates point (lat, lon, altAboveHomeM) against f, using home as
// the circle/polygon reference origin.
func Check(f Fence, home vstatus.HomePosition, lat, lon, altAboveHomeM float64) Violation {
	var v Violation
	if !home.Valid {
		return v
	}

	homePt := geo.NewPoint(home.Latitude, home.Longitude)
	testPt := geo.NewPoint(lat, lon)
	v.DistanceToHomeM = homePt.GreatCircleDistance(testPt) * 1000.0

	if f.MaxAltitudeM > 0 && altAboveHomeM > f.MaxAltitudeM {
		v.MaxAltitude = true
	}
	if f.CircleRadiusM > 0 && v.DistanceToHomeM > f.CircleRadiusM {
		v.OutsideCircle = true
	}
	if f.Polygon != nil && len(f.Polygon.Vertices) >= 3 {
		if !geo.NewPolygon(f.Polygon.Vertices).Contains(testPt) {
			v.OutsidePolygon = true
		}
	}

	v.Breach = v.MaxAltitude || v.OutsideCircle || v.OutsidePolygon
	return v
}
