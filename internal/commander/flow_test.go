package commander

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightpath-dev/commander-core/internal/mavcmd"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

func forceArm(t *testing.T, l *Loop) {
	t.Helper()
	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, SourceSystem: 255,
		Command: common.MAV_CMD_COMPONENT_ARM_DISARM,
		Param1:  1, Param2: mavcmd.ForceMagicNumber,
	})
	require.True(t, ok)
	require.Equal(t, vstatus.CommandAccepted, ack.Result)
	require.Equal(t, vstatus.ArmingArmed, l.arm.State())
}

// TestMissionStartIndexEqualSeqTotalDenied pins the documented conservative
// default: a start index equal to the plan length is denied, not dropped.
func TestMissionStartIndexEqualSeqTotalDenied(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true, GlobalPositionValid: true})

	l.Mission().SetItems([]vstatus.PositionSetpoint{
		{Latitude: 0, Longitude: 0}, {Latitude: 0, Longitude: 0.001},
	}, -1)

	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_MISSION_START, Param1: 2,
	})
	require.True(t, ok)
	assert.Equal(t, vstatus.CommandDenied, ack.Result)

	ack, _ = l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_MISSION_START, Param1: 0,
	})
	assert.Equal(t, vstatus.CommandAccepted, ack.Result)
	assert.Equal(t, vstatus.MainAutoMission, l.main.State())
}

// TestInvalidTripletPublishedExactlyOnceWhileDisarmed covers the
// single-publish rule for the disarmed navigator.
func TestInvalidTripletPublishedExactlyOnceWhileDisarmed(t *testing.T) {
	l := newTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})
	_, gen1, ok := l.out.PositionSetpointTriplet.Snapshot()
	require.True(t, ok, "expected the first tick to publish the invalid triplet")

	l.Tick(Telemetry{Now: now.Add(10 * time.Millisecond), Landed: true, PreflightChecksPass: true})
	_, gen2, _ := l.out.PositionSetpointTriplet.Snapshot()
	assert.Equal(t, gen1, gen2, "expected no triplet republish without a change")
}

func TestPowerButtonPressRequestsShutdown(t *testing.T) {
	l := newTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})
	require.Equal(t, vstatus.ArmingStandby, l.arm.State())

	require.True(t, l.NotifyPowerButton(PowerButtonEvent{Pressed: true, At: now}))
	l.Tick(Telemetry{Now: now.Add(10 * time.Millisecond), Landed: true, PreflightChecksPass: true})
	assert.Equal(t, vstatus.ArmingShutdown, l.arm.State())
}

func TestPowerButtonIgnoredWhileArmed(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})
	forceArm(t, l)

	l.NotifyPowerButton(PowerButtonEvent{Pressed: true, At: now})
	l.Tick(Telemetry{Now: now.Add(10 * time.Millisecond), Landed: false, PreflightChecksPass: true})
	assert.Equal(t, vstatus.ArmingArmed, l.arm.State(), "expected shutdown_if_allowed to refuse while armed")
}

func TestCalibrationDeniedWhileArmed(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})
	forceArm(t, l)

	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_PREFLIGHT_CALIBRATION, Param1: 1,
	})
	require.True(t, ok)
	assert.Equal(t, vstatus.CommandDenied, ack.Result)
}

func TestCalibrationRunsOnWorkerWhileDisarmed(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})

	ran := make(chan string, 1)
	l.SetCalibrationOp(func(kind string) error { ran <- kind; return nil })

	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_PREFLIGHT_CALIBRATION, Param1: 1,
	})
	require.True(t, ok)
	require.Equal(t, vstatus.CommandAccepted, ack.Result)

	select {
	case kind := <-ran:
		assert.Equal(t, "gyro", kind)
	case <-time.After(time.Second):
		t.Fatal("calibration op never ran on the worker")
	}
	require.Eventually(t, l.worker.HasResult, time.Second, time.Millisecond)
}

func TestStorageSaveWritesParamsFile(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})

	path := filepath.Join(t.TempDir(), "params.yaml")
	l.params.Server.ParamsPath = path

	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_PREFLIGHT_STORAGE, Param1: 1,
	})
	require.True(t, ok)
	require.Equal(t, vstatus.CommandAccepted, ack.Result)

	require.Eventually(t, l.worker.HasResult, time.Second, time.Millisecond)
	_, err := os.Stat(path)
	assert.NoError(t, err, "expected the save variant to write the params file")
}

func TestFlightUUIDIncrementsOnLandingEdge(t *testing.T) {
	l := newWiredTestLoop()
	path := filepath.Join(t.TempDir(), "flight_uuid")
	l.SetFlightUUID(LoadFlightUUID(path))

	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})
	forceArm(t, l)

	l.Tick(Telemetry{Now: now.Add(100 * time.Millisecond), Landed: false, PreflightChecksPass: true})
	require.Equal(t, uint64(0), l.flightUUID.Value(), "takeoff alone must not bump the counter")

	l.Tick(Telemetry{Now: now.Add(200 * time.Millisecond), Landed: true, PreflightChecksPass: true})
	assert.Equal(t, uint64(1), l.flightUUID.Value())
	assert.Equal(t, uint64(1), LoadFlightUUID(path).Value(), "expected the counter persisted to disk")

	l.Tick(Telemetry{Now: now.Add(300 * time.Millisecond), Landed: true, PreflightChecksPass: true})
	assert.Equal(t, uint64(1), l.flightUUID.Value(), "expected no bump without a fresh landing edge")
}

// TestMainStateChangePublishesImmediately: a mode switch with no
// actuator_armed change must publish on the very next tick, not wait out
// the publish period.
func TestMainStateChangePublishesImmediately(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true, GlobalPositionValid: true, LocalPositionValid: true, AltitudeValid: true, BatteryRemainingFraction: 1})

	mainMode, subMode := mavcmd.EncodeCustomMode(vstatus.MainPosctl)
	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1,
		Command: common.MAV_CMD_DO_SET_MODE, Param2: float32(mainMode), Param3: float32(subMode),
	})
	require.True(t, ok)
	require.Equal(t, vstatus.CommandAccepted, ack.Result)

	published := l.Tick(Telemetry{Now: now.Add(10 * time.Millisecond), Landed: true, PreflightChecksPass: true, GlobalPositionValid: true, LocalPositionValid: true, AltitudeValid: true, BatteryRemainingFraction: 1})
	assert.True(t, published, "expected a commander_state change to publish immediately")

	cs, _, ok := l.out.CommanderState.Snapshot()
	require.True(t, ok)
	assert.Equal(t, vstatus.MainPosctl, cs.MainState)
}

func TestMagQuickCalibrationDecodes(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})

	ran := make(chan string, 1)
	l.SetCalibrationOp(func(kind string) error { ran <- kind; return nil })

	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_PREFLIGHT_CALIBRATION, Param2: 2,
	})
	require.True(t, ok)
	require.Equal(t, vstatus.CommandAccepted, ack.Result)

	select {
	case kind := <-ran:
		assert.Equal(t, "mag_quick", kind)
	case <-time.After(time.Second):
		t.Fatal("calibration op never ran on the worker")
	}
}

func TestVTOLTransitionDeniedForNonVTOL(t *testing.T) {
	l := newWiredTestLoop()
	now := time.Now()
	l.Tick(Telemetry{Now: now, Landed: true, PreflightChecksPass: true})

	ack, ok := l.cmds.Dispatch(mavcmd.VehicleCommand{
		TargetSystem: 1, TargetComponent: 1, Command: common.MAV_CMD_DO_VTOL_TRANSITION,
		Param1: float32(common.MAV_VTOL_STATE_FW),
	})
	require.True(t, ok)
	assert.Equal(t, vstatus.CommandDenied, ack.Result, "a rotary airframe cannot transition")
}
