package params

import "errors"

// Validation failures, collected as sentinel values; each field-level
// problem is wrapped around one of these for errors.Is comparison by
// callers.
var (
	ErrInvalidPublishPeriod = errors.New("params: publish_period_ms out of range")
	ErrInvalidLogLevel      = errors.New("params: unrecognized log_level")
	ErrInvalidGeofenceRadius = errors.New("params: gf_max_hor_dist_m must be positive")
	ErrWindThresholdOrder   = errors.New("params: wind_max_ms must be >= wind_warn_ms")
	ErrInvalidRTLType       = errors.New("params: rtl_type out of range")
	ErrInvalidRTLReturnAlt  = errors.New("params: rtl_return_alt_m must be non-negative")
)
