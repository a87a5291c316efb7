package commander

import (
	"flag"
	"fmt"
	"sort"

	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"

	"github.com/flightpath-dev/commander-core/internal/armstate"
	"github.com/flightpath-dev/commander-core/internal/geofence"
	"github.com/flightpath-dev/commander-core/internal/mainstate"
	"github.com/flightpath-dev/commander-core/internal/mavcmd"
	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

// Command is the CLI surface's registry entry, adapted from the pack's
// console-command pattern (Name/Help/Run) to a process-argv CLI instead of
// an in-app console.
type Command interface {
	Name() string
	Help() string
	Run(l *Loop, args []string) (string, error)
}

var registry = map[string]Command{}

func register(c Command) {
	registry[c.Name()] = c
}

func init() {
	register(&startCommand{})
	register(&armCommand{force: false})
	register(&disarmCommand{force: false})
	register(&modeCommand{})
	register(&lockdownCommand{})
	register(&checkCommand{})
	register(&takeoffCommand{})
	register(&landCommand{})
	register(&transitionCommand{})
	register(&poweroffCommand{})
	register(&fencefileCommand{})
	register(&calibrateCommand{})
}

// Lookup returns the registered command by name, or false if unknown.
func Lookup(name string) (Command, bool) {
	c, ok := registry[name]
	return c, ok
}

// Names returns every registered command name, sorted, for help output.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

type startCommand struct{}

func (c *startCommand) Name() string { return "start" }
func (c *startCommand) Help() string { return "start the commander loop" }
func (c *startCommand) Run(l *Loop, args []string) (string, error) {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	hil := fs.Bool("H", false, "hardware-in-the-loop mode")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	_ = hil
	return "commander loop starting", nil
}

type armCommand struct{ force bool }

func (c *armCommand) Name() string { return "arm" }
func (c *armCommand) Help() string { return "arm the vehicle" }
func (c *armCommand) Run(l *Loop, args []string) (string, error) {
	fs := flag.NewFlagSet("arm", flag.ContinueOnError)
	force := fs.Bool("f", false, "force arm, bypassing preflight checks")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	l.arm.UpdatePreflightOutcome(armstate.Inputs{PreflightChecksPass: true}, true)
	res := l.arm.TryArm(armstate.Inputs{Forced: *force, PreflightChecksPass: true})
	if res == armstate.Denied {
		return "", fmt.Errorf("arm denied")
	}
	return "armed", nil
}

type disarmCommand struct{ force bool }

func (c *disarmCommand) Name() string { return "disarm" }
func (c *disarmCommand) Help() string { return "disarm the vehicle" }
func (c *disarmCommand) Run(l *Loop, args []string) (string, error) {
	fs := flag.NewFlagSet("disarm", flag.ContinueOnError)
	force := fs.Bool("f", false, "force disarm, bypassing the landed check")
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	res := l.arm.TryDisarm(armstate.Inputs{Forced: *force, Landed: true})
	if res == armstate.Denied {
		return "", fmt.Errorf("disarm denied")
	}
	return "disarmed", nil
}

type modeCommand struct{}

func (c *modeCommand) Name() string { return "mode" }
func (c *modeCommand) Help() string { return "mode <name>: request a main flight mode" }
func (c *modeCommand) Run(l *Loop, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: mode <name>")
	}
	m, ok := parseMainState(args[0])
	if !ok {
		return "", fmt.Errorf("unknown mode %q", args[0])
	}
	l.main.Request(m, mainstate.Inputs{GlobalPositionValid: true, LocalPositionValid: true, AltitudeValid: true})
	return fmt.Sprintf("mode set to %s", m), nil
}

type lockdownCommand struct{}

func (c *lockdownCommand) Name() string { return "lockdown" }
func (c *lockdownCommand) Help() string { return "lockdown {on|off}: force or release actuator lockdown" }
func (c *lockdownCommand) Run(l *Loop, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: lockdown {on|off}")
	}
	switch args[0] {
	case "on":
		l.arm.NoteLockdown()
		return "lockdown engaged", nil
	case "off":
		l.arm.ClearLockdown()
		return "lockdown released", nil
	default:
		return "", fmt.Errorf("usage: lockdown {on|off}")
	}
}

type checkCommand struct{}

func (c *checkCommand) Name() string { return "check" }
func (c *checkCommand) Help() string { return "report the current arming state" }
func (c *checkCommand) Run(l *Loop, args []string) (string, error) {
	return fmt.Sprintf("arming_state=%s", l.arm.State()), nil
}

type takeoffCommand struct{}

func (c *takeoffCommand) Name() string { return "takeoff" }
func (c *takeoffCommand) Help() string { return "request an automatic takeoff" }
func (c *takeoffCommand) Run(l *Loop, args []string) (string, error) {
	target := vstatus.MainAutoTakeoff
	if l.params.VehicleType == params.VehicleVTOL {
		target = vstatus.MainAutoVTOLTakeoff
	}
	res := l.main.Request(target, mainstate.Inputs{
		GlobalPositionValid: true, LocalPositionValid: true, AltitudeValid: true,
		HomePositionValid: l.hm.Current().Valid, VehicleType: vehicleTypeOf(l.params.VehicleType),
	})
	if res == mainstate.Denied {
		return "", fmt.Errorf("takeoff denied")
	}
	return "takeoff requested", nil
}

type landCommand struct{}

func (c *landCommand) Name() string { return "land" }
func (c *landCommand) Help() string { return "request an automatic landing" }
func (c *landCommand) Run(l *Loop, args []string) (string, error) {
	res := l.main.Request(vstatus.MainAutoLand, mainstate.Inputs{
		GlobalPositionValid: true, LocalPositionValid: true, AltitudeValid: true,
		HomePositionValid: l.hm.Current().Valid, VehicleType: vehicleTypeOf(l.params.VehicleType),
	})
	if res == mainstate.Denied {
		return "", fmt.Errorf("land denied")
	}
	return "landing requested", nil
}

type transitionCommand struct{}

func (c *transitionCommand) Name() string { return "transition" }
func (c *transitionCommand) Help() string { return "toggle the VTOL transition direction" }
func (c *transitionCommand) Run(l *Loop, args []string) (string, error) {
	if l.params.VehicleType != params.VehicleVTOL {
		return "", fmt.Errorf("transition requires a vtol airframe")
	}
	target := common.MAV_VTOL_STATE_FW
	if l.inTransitionToFW {
		target = common.MAV_VTOL_STATE_MC
	}
	if res := l.handleVTOLTransition(mavcmd.VehicleCommand{Param1: float32(target)}); res != vstatus.CommandAccepted {
		return "", fmt.Errorf("transition denied")
	}
	return "transition requested", nil
}

type poweroffCommand struct{}

func (c *poweroffCommand) Name() string { return "poweroff" }
func (c *poweroffCommand) Help() string { return "shut the system down if the arm state machine allows it" }
func (c *poweroffCommand) Run(l *Loop, args []string) (string, error) {
	if !l.arm.ShutdownIfAllowed() {
		return "", fmt.Errorf("poweroff denied while armed")
	}
	if res := l.arm.TryShutdown(armstate.Inputs{ShutdownRequested: true}); res == armstate.Denied {
		return "", fmt.Errorf("poweroff denied")
	}
	return "shutting down", nil
}

type calibrateCommand struct{}

func (c *calibrateCommand) Name() string { return "calibrate" }
func (c *calibrateCommand) Help() string {
	return "calibrate {gyro|mag|magquick|baro|accel|accelquick|level|airspeed|esc}: start a calibration routine"
}
func (c *calibrateCommand) Run(l *Loop, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: %s", c.Help())
	}
	cmd := mavcmd.VehicleCommand{}
	switch args[0] {
	case "gyro":
		cmd.Param1 = 1
	case "mag":
		cmd.Param2 = 1
	case "magquick":
		cmd.Param2 = 2
	case "baro":
		cmd.Param3 = 1
	case "accel":
		cmd.Param5 = 1
	case "level":
		cmd.Param5 = 2
	case "accelquick":
		cmd.Param5 = 4
	case "airspeed":
		cmd.Param6 = 1
	case "esc":
		cmd.Param7 = 1
	default:
		return "", fmt.Errorf("unknown calibration %q", args[0])
	}
	if l.arm.State() == vstatus.ArmingArmed {
		return "", fmt.Errorf("calibration denied while armed")
	}
	if l.worker.Busy() {
		return "", fmt.Errorf("calibration worker busy")
	}
	if res := l.handleCalibration(cmd); res != vstatus.CommandAccepted {
		return "", fmt.Errorf("calibration rejected")
	}
	return fmt.Sprintf("%s calibration started", args[0]), nil
}

type fencefileCommand struct{}

func (c *fencefileCommand) Name() string { return "fencefile" }
func (c *fencefileCommand) Help() string { return "fencefile <path>: load a polygon fence file" }
func (c *fencefileCommand) Run(l *Loop, args []string) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("usage: fencefile <path>")
	}
	poly, err := geofence.LoadFenceFile(args[0])
	if err != nil {
		return "", err
	}
	l.geofenceMon.SetFence(geofence.Fence{
		Polygon:       poly,
		CircleRadiusM: l.params.GFMaxHorDistM,
		MaxAltitudeM:  l.params.GFMaxVerDistM,
	})
	return fmt.Sprintf("fence loaded: %d vertices", len(poly.Vertices)), nil
}

func parseMainState(name string) (vstatus.MainState, bool) {
	for m := vstatus.MainManual; m <= vstatus.MainAutoVTOLTakeoff; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}
