// Command commander is the composition root: it constructs every subsystem
// explicitly and wires them into the Commander Loop, with no package-level
// globals.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"

	"github.com/flightpath-dev/commander-core/internal/armstate"
	"github.com/flightpath-dev/commander-core/internal/bus"
	"github.com/flightpath-dev/commander-core/internal/commander"
	"github.com/flightpath-dev/commander-core/internal/events"
	"github.com/flightpath-dev/commander-core/internal/failsafe"
	"github.com/flightpath-dev/commander-core/internal/failure"
	"github.com/flightpath-dev/commander-core/internal/geofence"
	"github.com/flightpath-dev/commander-core/internal/home"
	"github.com/flightpath-dev/commander-core/internal/mainstate"
	"github.com/flightpath-dev/commander-core/internal/mavcmd"
	"github.com/flightpath-dev/commander-core/internal/monitors"
	"github.com/flightpath-dev/commander-core/internal/navigator"
	"github.com/flightpath-dev/commander-core/internal/params"
	"github.com/flightpath-dev/commander-core/internal/vstatus"
)

func main() {
	p, err := params.Load(os.Getenv("COMMANDER_PARAMS_PATH"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "load params: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(p.Server.LogLevel)}))
	sink := events.NewSlogSink(logger)

	loop := buildLoop(p, sink, logger)

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: commander <command> [args...]")
		fmt.Fprintf(os.Stderr, "commands: %v\n", commander.Names())
		os.Exit(1)
	}

	cmd, ok := commander.Lookup(os.Args[1])
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(1)
	}

	if os.Args[1] == "start" {
		runStart(loop, logger)
		return
	}

	out, err := cmd.Run(loop, os.Args[2:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
	fmt.Println(out)
}

func runStart(loop *commander.Loop, logger *slog.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		loop.RequestExit()
	}()

	loop.Run(func() commander.Telemetry {
		return commander.Telemetry{Now: time.Now(), Landed: true}
	})
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLoop(p *params.Params, sink events.Sink, logger *slog.Logger) *commander.Loop {
	out := commander.Outputs{
		ActuatorArmed:      bus.NewTopic[vstatus.ActuatorArmed](),
		VehicleControlMode: bus.NewTopic[vstatus.ControlMode](),
		VehicleStatus:      bus.NewTopic[vstatus.VehicleStatus](),
		StatusFlags:        bus.NewTopic[vstatus.StatusFlags](),
		CommanderState:     bus.NewTopic[vstatus.CommanderState](),
		FailureDetector:    bus.NewTopic[failure.Status](),
		CommandAck:         bus.NewTopic[mavcmd.Ack](),
		VehicleCommand:     bus.NewTopic[mavcmd.VehicleCommand](),
		TuneControl:        bus.NewTopic[events.Tune](),

		PositionSetpointTriplet: bus.NewTopic[vstatus.PositionSetpointTriplet](),
		MissionResult:           bus.NewTopic[vstatus.MissionResult](),
		GeofenceResult:          bus.NewTopic[geofence.Violation](),
	}

	linkGCS := monitors.NewLink(monitors.RoleGCS, p.ComDLLossT, 0, sink)
	linkRC := monitors.NewLink(monitors.RoleRC, p.ComRCLossT, 0, sink)

	fence := geofence.Fence{CircleRadiusM: p.GFMaxHorDistM, MaxAltitudeM: p.GFMaxVerDistM}
	if p.Server.FenceFilePath != "" {
		if poly, err := geofence.LoadFenceFile(p.Server.FenceFilePath); err == nil {
			fence.Polygon = poly
		} else {
			logger.Warn("fence file not loaded", "path", p.Server.FenceFilePath, "err", err)
		}
	}
	geofenceMon := monitors.NewGeofenceMonitor(p.GeofenceCheckPeriod, fence, sink)

	cmds := mavcmd.New(1, 1, sink)

	loop := commander.New(p, sink, logger,
		armstate.New(sink), mainstate.New(sink), failure.New(200*time.Millisecond, 500*time.Millisecond, 100*time.Millisecond, time.Second),
		failsafe.New(sink), home.New(sink), navigator.New(),
		linkGCS, linkRC, monitors.NewBattery(p.BatActionDelay, sink), monitors.NewWind(p.WindQuiet, sink),
		geofenceMon, monitors.NewAutoDisarm(p.ComDisarmLand, p.ComKillDisarm, sink),
		cmds, out)
	loop.SetFlightUUID(commander.LoadFlightUUID(p.Server.FlightUUIDPath))
	commander.RegisterDefaultHandlers(loop)
	return loop
}
