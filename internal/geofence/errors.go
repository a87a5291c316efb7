package geofence

import "errors"

// Fence-file parse failures, as sentinel values for errors.Is comparison.
var (
	ErrMalformedFenceVertex  = errors.New("geofence: fence file line is not \"lat lon\"")
	ErrFenceVertexOutOfRange = errors.New("geofence: fence vertex outside valid lat/lon range")
	ErrFenceTooFewVertices   = errors.New("geofence: fence polygon needs at least three vertices")
)
