// Command jacobi relaxes grids on a simulated cluster and
// benchmarks the halo exchange strategies.
package main

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-jacobi/jacobi"
	"github.com/unixpickle/essentials"
)

type rootFlags struct {
	configPath string
	verbose    bool

	workers       int
	threshold     float64
	maxIterations int
	strategy      string
	norm          string
	flopTime      float64
	network       string
	latency       float64
	rate          float64
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		essentials.Die(err)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}
	defaults := jacobi.DefaultConfig()

	root := &cobra.Command{
		Use:           "jacobi",
		Short:         "Distributed Jacobi relaxation on a simulated network",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log every iteration")
	pf.IntVar(&flags.workers, "workers", defaults.Workers, "number of workers")
	pf.Float64Var(&flags.threshold, "threshold", defaults.Threshold, "convergence threshold")
	pf.IntVar(&flags.maxIterations, "max-iterations", defaults.MaxIterations,
		"iteration cap (0 for none)")
	pf.StringVar(&flags.strategy, "strategy", defaults.Strategy, "halo exchange (blocking or overlapped)")
	pf.StringVar(&flags.norm, "norm", defaults.Norm, "convergence norm (roots, global or max)")
	pf.Float64Var(&flags.flopTime, "flop-time", defaults.FlopTime, "virtual seconds per flop")
	pf.StringVar(&flags.network, "network", defaults.Network.Kind, "network model (link or random)")
	pf.Float64Var(&flags.latency, "latency", defaults.Network.Latency, "link latency")
	pf.Float64Var(&flags.rate, "rate", defaults.Network.Rate, "link rate in bytes per second")

	root.AddCommand(runCommand(flags), compareCommand(flags), benchCommand(flags))
	return root
}

// logger creates a console logger on w.
// Writes are serialized, so one logger may be shared by
// concurrent solvers.
func (r *rootFlags) logger(w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if r.verbose {
		level = zerolog.DebugLevel
	}
	_, isFile := w.(*os.File)
	out := zerolog.ConsoleWriter{
		Out:        zerolog.SyncWriter(w),
		TimeFormat: time.Kitchen,
		NoColor:    !isFile,
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// config loads the configuration file, if any, and applies
// every flag set on the command line on top of it.
func (r *rootFlags) config(cmd *cobra.Command) (jacobi.Config, error) {
	cfg := jacobi.DefaultConfig()
	if r.configPath != "" {
		f, err := os.Open(r.configPath)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		cfg, err = jacobi.LoadConfig(f)
		if err != nil {
			return cfg, essentials.AddCtx(r.configPath, err)
		}
	}
	changed := cmd.Flags().Changed
	if changed("workers") {
		cfg.Workers = r.workers
	}
	if changed("threshold") {
		cfg.Threshold = r.threshold
	}
	if changed("max-iterations") {
		cfg.MaxIterations = r.maxIterations
	}
	if changed("strategy") {
		cfg.Strategy = r.strategy
	}
	if changed("norm") {
		cfg.Norm = r.norm
	}
	if changed("flop-time") {
		cfg.FlopTime = r.flopTime
	}
	if changed("network") {
		cfg.Network.Kind = r.network
	}
	if changed("latency") {
		cfg.Network.Latency = r.latency
	}
	if changed("rate") {
		cfg.Network.Rate = r.rate
	}
	return cfg, cfg.Validate()
}
