package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/daniacca/bouncefield/internal/bounce"
	"github.com/daniacca/bouncefield/internal/bounce/notifiers"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"
)

type options struct {
	configFile  string
	writeConfig string
	width       float64
	height      float64
	ticks       int
	seed        int64
	csvPath     string
	simID       string
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "path to a YAML physics config (optional)")
	flag.StringVar(&opts.writeConfig, "write-config", "", "write the effective config as YAML to this path and exit")
	flag.Float64Var(&opts.width, "width", 800, "field width")
	flag.Float64Var(&opts.height, "height", 600, "field height")
	flag.IntVar(&opts.ticks, "ticks", 600, "number of ticks to run")
	flag.Int64Var(&opts.seed, "seed", 1, "random seed for velocities and rotations")
	flag.StringVar(&opts.csvPath, "csv", "", "write every frame as CSV rows to this path (optional)")
	flag.StringVar(&opts.simID, "sim-id", "simulation", "simulation ID")
	flag.Parse()

	if err := run(opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer) error {
	cfg, err := bounce.LoadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if opts.writeConfig != "" {
		if err := cfg.WriteYAML(opts.writeConfig); err != nil {
			return err
		}
		fmt.Fprintf(out, "config written to %s\n", opts.writeConfig)
		return nil
	}

	if opts.ticks < 0 {
		return fmt.Errorf("ticks must not be negative, got %d", opts.ticks)
	}

	field := bounce.Field{Width: opts.width, Height: opts.height}
	engine, err := bounce.NewEngine(bounce.SimulationID(opts.simID), field, cfg, bounce.WithSeed(opts.seed))
	if err != nil {
		return fmt.Errorf("creating simulation: %w", err)
	}

	var trace *notifiers.CSVNotifier
	if opts.csvPath != "" {
		trace, err = notifiers.NewCSVFileNotifier("trace", opts.csvPath)
		if err != nil {
			return err
		}
		defer trace.Close()
		if err := trace.Write(engine.Frame()); err != nil {
			return err
		}
	}

	var totals bounce.StepStats
	for i := 0; i < opts.ticks; i++ {
		frame := engine.Step()
		totals.Reflections += frame.Stats.Reflections
		totals.Collisions += frame.Stats.Collisions
		if trace != nil {
			if err := trace.Write(frame); err != nil {
				return err
			}
		}
	}

	printSummary(out, summarize(engine, totals))
	return nil
}

// summary describes a finished headless run.
type summary struct {
	SimulationID bounce.SimulationID
	Field        bounce.Field
	Ticks        int64
	Bodies       int
	Totals       bounce.StepStats
	MeanSpeed    float64
	SpeedStdDev  float64
	Digest       uint64
}

func summarize(engine *bounce.Engine, totals bounce.StepStats) summary {
	bodies := engine.Bodies()
	speeds := make([]float64, len(bodies))
	for i, b := range bodies {
		speeds[i] = r2.Norm(b.Velocity)
	}

	s := summary{
		SimulationID: engine.ID(),
		Field:        engine.Field(),
		Bodies:       len(bodies),
		Totals:       totals,
	}
	switch {
	case len(speeds) > 1:
		s.MeanSpeed, s.SpeedStdDev = stat.MeanStdDev(speeds, nil)
	case len(speeds) == 1:
		// The sample deviation of a single value is undefined
		s.MeanSpeed = speeds[0]
	}

	frame := engine.Frame()
	s.Ticks = frame.Tick
	s.Digest = frame.Digest
	return s
}

func printSummary(out io.Writer, s summary) {
	fmt.Fprintf(out, "simulation:  %s\n", s.SimulationID)
	fmt.Fprintf(out, "field:       %gx%g\n", s.Field.Width, s.Field.Height)
	fmt.Fprintf(out, "ticks:       %d\n", s.Ticks)
	fmt.Fprintf(out, "bodies:      %d\n", s.Bodies)
	fmt.Fprintf(out, "reflections: %d\n", s.Totals.Reflections)
	fmt.Fprintf(out, "collisions:  %d\n", s.Totals.Collisions)
	fmt.Fprintf(out, "speed:       mean=%.4f stddev=%.4f\n", s.MeanSpeed, s.SpeedStdDev)
	fmt.Fprintf(out, "digest:      %016x\n", s.Digest)
}
