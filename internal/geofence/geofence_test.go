package geofence

import (
	"testing"

	geo "github.com/kellydunn/golang-geo"
	"github.com/stretchr/testify/assert"

	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

func TestCheckCircleBreach(t *testing.T) {
	f := Fence{CircleRadiusM: 100, MaxAltitudeM: 50}
	home := vstatus.HomePosition{Latitude: 47.0, Longitude: 8.0, Valid: true}

	// ~0.01 degrees of latitude is roughly 1.1km, well outside a 100m fence.
	v := Check(f, home, 47.01, 8.0, 10)
	assert.True(t, v.Breach)
	assert.True(t, v.OutsideCircle)
	assert.False(t, v.MaxAltitude)
}

func TestCheckWithinCircleNoBreach(t *testing.T) {
	f := Fence{CircleRadiusM: 5000, MaxAltitudeM: 50}
	home := vstatus.HomePosition{Latitude: 47.0, Longitude: 8.0, Valid: true}

	v := Check(f, home, 47.001, 8.0, 10)
	assert.False(t, v.Breach)
}

func TestCheckMaxAltitudeBreach(t *testing.T) {
	f := Fence{CircleRadiusM: 5000, MaxAltitudeM: 50}
	home := vstatus.HomePosition{Latitude: 47.0, Longitude: 8.0, Valid: true}

	v := Check(f, home, 47.0, 8.0, 60)
	assert.True(t, v.Breach)
	assert.True(t, v.MaxAltitude)
}

func TestCheckInvalidHomeNeverBreaches(t *testing.T) {
	f := Fence{CircleRadiusM: 1, MaxAltitudeM: 1}
	home := vstatus.HomePosition{Valid: false}

	v := Check(f, home, 47.0, 8.0, 1000)
	assert.False(t, v.Breach)
}

func TestCheckPolygonBreach(t *testing.T) {
	square := []*geo.Point{
		geo.NewPoint(47.0, 8.0),
		geo.NewPoint(47.0, 8.01),
		geo.NewPoint(47.01, 8.01),
		geo.NewPoint(47.01, 8.0),
	}
	f := Fence{Polygon: &Polygon{Vertices: square}}
	home := vstatus.HomePosition{Latitude: 47.005, Longitude: 8.005, Valid: true}

	inside := Check(f, home, 47.005, 8.005, 10)
	assert.False(t, inside.Breach)

	outside := Check(f, home, 47.5, 8.5, 10)
	assert.True(t, outside.Breach)
	assert.True(t, outside.OutsidePolygon)
}

func TestPredictedPointRotaryStationary(t *testing.T) {
	bp := BrakingParams{IsRotary: true, HorizontalDecelMPS2: 3, VerticalDecelMPS2: 2}
	lat, lon, alt := PredictedPoint(47.0, 8.0, 50, 0, 0, 0, bp)
	assert.Equal(t, 47.0, lat)
	assert.Equal(t, 8.0, lon)
	assert.Equal(t, 50.0, alt)
}

func TestPredictedPointRotaryMovingProjectsForward(t *testing.T) {
	bp := BrakingParams{IsRotary: true, HorizontalDecelMPS2: 3, VerticalDecelMPS2: 2}
	lat, lon, _ := PredictedPoint(47.0, 8.0, 50, 5, 0, 0, bp)
	assert.NotEqual(t, 47.0, lat)
	assert.InDelta(t, 8.0, lon, 1e-6)
}

func TestPredictedPointRotaryDescendingLosesAltitude(t *testing.T) {
	bp := BrakingParams{IsRotary: true, HorizontalDecelMPS2: 3, VerticalDecelMPS2: 2}
	_, _, alt := PredictedPoint(47.0, 8.0, 50, 0, 0, 4, bp)
	assert.Less(t, alt, 50.0)
}

func TestPredictedPointFixedWingUsesConfiguredRadii(t *testing.T) {
	bp := BrakingParams{IsRotary: false, FixedWingHorRadiusM: 30, FixedWingVerRadiusM: 10}
	lat, lon, alt := PredictedPoint(47.0, 8.0, 50, 20, 0, 0, bp)
	assert.NotEqual(t, 47.0, lat)
	_ = lon
	assert.Equal(t, 50.0, alt)
}

func TestCorrectiveLoiterPointPullsInsideRadius(t *testing.T) {
	f := Fence{CircleRadiusM: 100}
	home := vstatus.HomePosition{Latitude: 47.0, Longitude: 8.0, Valid: true}

	clat, clon, _ := CorrectiveLoiterPoint(f, home, 47.01, 8.0, 10, 15)

	homePt := geo.NewPoint(home.Latitude, home.Longitude)
	correctedPt := geo.NewPoint(clat, clon)
	distM := homePt.GreatCircleDistance(correctedPt) * 1000.0
	assert.InDelta(t, 85, distM, 1)
}

func TestCorrectiveLoiterPointInvalidHomeReturnsInput(t *testing.T) {
	f := Fence{CircleRadiusM: 100}
	home := vstatus.HomePosition{Valid: false}

	clat, clon, calt := CorrectiveLoiterPoint(f, home, 47.01, 8.02, 33, 15)
	assert.Equal(t, 47.01, clat)
	assert.Equal(t, 8.02, clon)
	assert.Equal(t, 33.0, calt)
}

func TestCorrectiveLoiterPointPolygonOnlyFallsBackToHome(t *testing.T) {
	square := []*geo.Point{
		geo.NewPoint(47.0, 8.0),
		geo.NewPoint(47.0, 8.01),
		geo.NewPoint(47.01, 8.01),
		geo.NewPoint(47.01, 8.0),
	}
	f := Fence{Polygon: &Polygon{Vertices: square}}
	home := vstatus.HomePosition{Latitude: 47.005, Longitude: 8.005, Valid: true}

	clat, clon, _ := CorrectiveLoiterPoint(f, home, 47.5, 8.5, 10, 15)
	assert.Equal(t, home.Latitude, clat)
	assert.Equal(t, home.Longitude, clon)
}

func TestCorrectiveLoiterPointAltitudeClampedToMax(t *testing.T) {
	f := Fence{CircleRadiusM: 100, MaxAltitudeM: 50}
	home := vstatus.HomePosition{Latitude: 47.0, Longitude: 8.0, Valid: true}

	_, _, calt := CorrectiveLoiterPoint(f, home, 47.0001, 8.0, 80, 15)
	assert.Equal(t, 35.0, calt)
}
