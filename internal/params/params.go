// Package params holds the tunable configuration the supervisory core reads
// at startup and, for select fields, while disarmed (the Commander Loop
// only swaps a reloaded set in between flights).
package params

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// VehicleType gates which transitions and failsafe actions are legal.
type VehicleType int

const (
	VehicleUnknown VehicleType = iota
	VehicleRotary
	VehicleFixedWing
	VehicleRover
	VehicleVTOL
)

func (v VehicleType) String() string {
	switch v {
	case VehicleRotary:
		return "rotary"
	case VehicleFixedWing:
		return "fixed_wing"
	case VehicleRover:
		return "rover"
	case VehicleVTOL:
		return "vtol"
	default:
		return "unknown"
	}
}

// FailsafeAction mirrors the small action vocabulary PX4 parameters use to
// select what a monitor does once its condition fires.
type FailsafeAction int

const (
	ActionNone FailsafeAction = iota
	ActionWarn
	ActionHold
	ActionRTL
	ActionLand
	ActionTerminate
)

// RTLType selects the RTL sub-type strategy.
type RTLType int

const (
	RTLDirect RTLType = iota
	RTLClosest
	RTLMissionLanding
	RTLMissionLandingReversed
)

// Params is the full tunable set. Field names echo the PX4 parameters they
// stand in for.
type Params struct {
	Server ServerParams `yaml:"server"`

	VehicleType VehicleType `yaml:"-"`
	VehicleTypeName string `yaml:"vehicle_type"`

	// Link-loss thresholds and actions.
	ComDLLossT   time.Duration  `yaml:"-"`
	DLLossTSec   float64        `yaml:"com_dl_loss_t_sec"`
	NavDLLAct    FailsafeAction `yaml:"nav_dll_act"`
	ComRCLossT   time.Duration  `yaml:"-"`
	RCLossTSec   float64        `yaml:"com_rc_loss_t_sec"`
	ComRCLAct    FailsafeAction `yaml:"com_rcl_act"`
	ComRCLExcept bool           `yaml:"com_rcl_except_auto"`
	ComOBLAct    FailsafeAction `yaml:"com_obl_act"`
	ComOBLRCAct  FailsafeAction `yaml:"com_obl_rc_act"`
	ComOfHoldSec float64        `yaml:"com_of_hold_sec"`
	ComOfHold    time.Duration  `yaml:"-"`

	// Battery failsafe.
	ComLowBatAct  FailsafeAction `yaml:"com_low_bat_act"`
	ComCritBatAct FailsafeAction `yaml:"com_crit_bat_act"`
	BatActionDelaySec float64    `yaml:"bat_action_delay_sec"`
	BatActionDelay    time.Duration `yaml:"-"`

	// Geofence.
	GFAction        FailsafeAction `yaml:"gf_action"`
	GFMaxHorDistM   float64        `yaml:"gf_max_hor_dist_m"`
	GFMaxVerDistM   float64        `yaml:"gf_max_ver_dist_m"`
	GFPredict       bool           `yaml:"gf_predict"`
	GFLoiterMarginM float64        `yaml:"gf_loiter_margin_m"`
	MPCHorDecelMPS2 float64        `yaml:"mpc_hor_decel_mps2"`
	MPCVerDecelMPS2 float64        `yaml:"mpc_ver_decel_mps2"`
	FWFenceHorRadiusM float64      `yaml:"fw_fence_hor_radius_m"`
	FWFenceVerRadiusM float64      `yaml:"fw_fence_ver_radius_m"`

	// Wind.
	WindWarnMS float64       `yaml:"wind_warn_ms"`
	WindMaxMS  float64       `yaml:"wind_max_ms"`
	WindQuietSec float64     `yaml:"-"`
	WindQuiet  time.Duration `yaml:"-"`

	// Max flight time (0 disables).
	MaxFlightTimeSec float64       `yaml:"max_flight_time_sec"`
	MaxFlightTime    time.Duration `yaml:"-"`

	// RTL sub-type selection and return altitude above home.
	RTLTypeInt    int     `yaml:"rtl_type"`
	RTLTypeCfg    RTLType `yaml:"-"`
	RTLReturnAltM float64 `yaml:"rtl_return_alt_m"`

	// Quadchute.
	VTOLQuadchuteAct FailsafeAction `yaml:"vtol_quadchute_act"`

	// Auto-disarm hysteresis.
	ComDisarmLandSec float64       `yaml:"com_disarm_land_sec"`
	ComDisarmLand    time.Duration `yaml:"-"`
	ComKillDisarmSec float64       `yaml:"com_kill_disarm_sec"`
	ComKillDisarm    time.Duration `yaml:"-"`

	// In-air restart holdoff from boot.
	ComBootHoldoffMS int           `yaml:"com_boot_holdoff_ms"`
	ComBootHoldoff   time.Duration `yaml:"-"`

	// Circuit breakers (true disables the named safety check).
	CBFlightTerm bool `yaml:"cbrk_flightterm"`

	// In-air home update.
	ComHomeInAir bool `yaml:"com_home_in_air"`

	// Early-takeoff lockdown window.
	LockdownWindowSec float64       `yaml:"lockdown_window_sec"`
	LockdownWindow    time.Duration `yaml:"-"`

	// Publication period.
	PublishPeriodMS int           `yaml:"publish_period_ms"`
	PublishPeriod   time.Duration `yaml:"-"`

	// Geofence re-evaluation period.
	GeofenceCheckPeriodMS int           `yaml:"geofence_check_period_ms"`
	GeofenceCheckPeriod   time.Duration `yaml:"-"`
}

type ServerParams struct {
	ParamsPath     string `yaml:"params_path"`
	LogLevel       string `yaml:"log_level"`
	FlightUUIDPath string `yaml:"flight_uuid_path"`
	FenceFilePath  string `yaml:"fence_file_path"`
}

// Default returns sensible PX4-like defaults.
func Default() *Params {
	p := &Params{
		Server: ServerParams{
			ParamsPath:     "./data/config/params.yaml",
			LogLevel:       "info",
			FlightUUIDPath: "./data/flight_uuid",
		},
		VehicleTypeName:   "rotary",
		DLLossTSec:        10,
		NavDLLAct:         ActionRTL,
		RCLossTSec:        0.5,
		ComRCLAct:         ActionRTL,
		ComRCLExcept:      true,
		ComOBLAct:         ActionRTL,
		ComOBLRCAct:       ActionHold,
		ComOfHoldSec:      0.5,
		ComLowBatAct:      ActionWarn,
		ComCritBatAct:     ActionRTL,
		BatActionDelaySec: 5,
		GFAction:          ActionRTL,
		GFMaxHorDistM:     500,
		GFMaxVerDistM:     100,
		GFPredict:         true,
		GFLoiterMarginM:   15,
		MPCHorDecelMPS2:   3,
		MPCVerDecelMPS2:   2,
		FWFenceHorRadiusM: 30,
		FWFenceVerRadiusM: 10,
		WindWarnMS:        10,
		WindMaxMS:         15,
		MaxFlightTimeSec:  0,
		RTLTypeInt:        0,
		RTLReturnAltM:     60,
		VTOLQuadchuteAct:  ActionRTL,
		ComDisarmLandSec:  2,
		ComKillDisarmSec:  5,
		ComBootHoldoffMS:  500,
		CBFlightTerm:      false,
		ComHomeInAir:      false,
		LockdownWindowSec: 2.5,
		PublishPeriodMS:   500,
		GeofenceCheckPeriodMS: 200,
	}
	p.resolveDurations()
	return p
}

func (p *Params) resolveDurations() {
	p.VehicleType = parseVehicleType(p.VehicleTypeName)
	p.ComDLLossT = secs(p.DLLossTSec)
	p.ComRCLossT = secs(p.RCLossTSec)
	p.BatActionDelay = secs(p.BatActionDelaySec)
	p.ComOfHold = secs(p.ComOfHoldSec)
	p.WindQuietSec = 60
	p.WindQuiet = secs(p.WindQuietSec)
	p.MaxFlightTime = secs(p.MaxFlightTimeSec)
	p.RTLTypeCfg = RTLType(p.RTLTypeInt)
	p.ComDisarmLand = secs(p.ComDisarmLandSec)
	p.ComKillDisarm = secs(p.ComKillDisarmSec)
	p.ComBootHoldoff = time.Duration(p.ComBootHoldoffMS) * time.Millisecond
	p.LockdownWindow = secs(p.LockdownWindowSec)
	p.PublishPeriod = time.Duration(p.PublishPeriodMS) * time.Millisecond
	p.GeofenceCheckPeriod = time.Duration(p.GeofenceCheckPeriodMS) * time.Millisecond
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func parseVehicleType(s string) VehicleType {
	switch s {
	case "rotary", "multirotor", "copter":
		return VehicleRotary
	case "fixed_wing", "plane":
		return VehicleFixedWing
	case "rover", "ground":
		return VehicleRover
	case "vtol":
		return VehicleVTOL
	default:
		return VehicleUnknown
	}
}

// Load reads params from path, falling back to defaults for a missing file,
// then applies environment-variable overrides and validates the result.
func Load(path string) (*Params, error) {
	p := Default()
	if path != "" {
		p.Server.ParamsPath = path
	}

	if data, err := os.ReadFile(p.Server.ParamsPath); err == nil {
		if err := yaml.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("parse params file %s: %w", p.Server.ParamsPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read params file %s: %w", p.Server.ParamsPath, err)
	}

	applyEnvOverrides(p)
	p.resolveDurations()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func applyEnvOverrides(p *Params) {
	if v := os.Getenv("COMMANDER_VEHICLE_TYPE"); v != "" {
		p.VehicleTypeName = v
	}
	if v := os.Getenv("COMMANDER_LOG_LEVEL"); v != "" {
		p.Server.LogLevel = v
	}
	if v := os.Getenv("COMMANDER_GF_MAX_HOR_DIST_M"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.GFMaxHorDistM = f
		}
	}
}

// Validate checks invariants on the loaded parameter set.
func (p *Params) Validate() error {
	if p.PublishPeriodMS <= 0 || p.PublishPeriodMS > 2000 {
		return fmt.Errorf("%w: %d", ErrInvalidPublishPeriod, p.PublishPeriodMS)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[p.Server.LogLevel] {
		return fmt.Errorf("%w: %s", ErrInvalidLogLevel, p.Server.LogLevel)
	}
	if p.GFMaxHorDistM <= 0 {
		return fmt.Errorf("%w: %f", ErrInvalidGeofenceRadius, p.GFMaxHorDistM)
	}
	if p.WindMaxMS < p.WindWarnMS {
		return ErrWindThresholdOrder
	}
	if p.RTLTypeInt < int(RTLDirect) || p.RTLTypeInt > int(RTLMissionLandingReversed) {
		return fmt.Errorf("%w: %d", ErrInvalidRTLType, p.RTLTypeInt)
	}
	if p.RTLReturnAltM < 0 {
		return fmt.Errorf("%w: %f", ErrInvalidRTLReturnAlt, p.RTLReturnAltM)
	}
	return nil
}

// Save writes the current parameter set back to its params_path, the
// PREFLIGHT_STORAGE save variant. The write is atomic-enough for a config
// file: full marshal, single WriteFile.
func (p *Params) Save() error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	if err := os.WriteFile(p.Server.ParamsPath, data, 0o644); err != nil {
		return fmt.Errorf("write params file %s: %w", p.Server.ParamsPath, err)
	}
	return nil
}
