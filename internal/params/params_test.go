package params

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	p := Default()
	assert.NoError(t, p.Validate())
	assert.Equal(t, VehicleRotary, p.VehicleType)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().GFMaxHorDistM, p.GFMaxHorDistM)
}

func TestLoadParsesYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vehicle_type: fixed_wing\ngf_max_hor_dist_m: 750\n"), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VehicleFixedWing, p.VehicleType)
	assert.Equal(t, 750.0, p.GFMaxHorDistM)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte("not: [valid: yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverridesApplyOverYAML(t *testing.T) {
	t.Setenv("COMMANDER_VEHICLE_TYPE", "rover")
	t.Setenv("COMMANDER_GF_MAX_HOR_DIST_M", "123")
	defer os.Unsetenv("COMMANDER_VEHICLE_TYPE")
	defer os.Unsetenv("COMMANDER_GF_MAX_HOR_DIST_M")

	p, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, VehicleRover, p.VehicleType)
	assert.Equal(t, 123.0, p.GFMaxHorDistM)
}

func TestValidatePublishPeriodOutOfRange(t *testing.T) {
	p := Default()
	p.PublishPeriodMS = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidPublishPeriod)

	p.PublishPeriodMS = 5000
	assert.ErrorIs(t, p.Validate(), ErrInvalidPublishPeriod)
}

func TestValidateUnrecognizedLogLevel(t *testing.T) {
	p := Default()
	p.Server.LogLevel = "verbose"
	assert.ErrorIs(t, p.Validate(), ErrInvalidLogLevel)
}

func TestValidateNonPositiveGeofenceRadius(t *testing.T) {
	p := Default()
	p.GFMaxHorDistM = 0
	assert.ErrorIs(t, p.Validate(), ErrInvalidGeofenceRadius)
}

func TestValidateWindThresholdOrder(t *testing.T) {
	p := Default()
	p.WindWarnMS = 20
	p.WindMaxMS = 10
	assert.True(t, errors.Is(p.Validate(), ErrWindThresholdOrder))
}

func TestParseVehicleTypeAliases(t *testing.T) {
	assert.Equal(t, VehicleRotary, parseVehicleType("multirotor"))
	assert.Equal(t, VehicleFixedWing, parseVehicleType("plane"))
	assert.Equal(t, VehicleRover, parseVehicleType("ground"))
	assert.Equal(t, VehicleVTOL, parseVehicleType("vtol"))
	assert.Equal(t, VehicleUnknown, parseVehicleType("submarine"))
}
