package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-jacobi/grid"
	"github.com/unixpickle/dist-jacobi/jacobi"
)

// benchRun describes a specific network configuration.
type benchRun struct {
	Workers int
	Latency float64
	Rate    float64
}

var benchRuns = []benchRun{
	{Workers: 2, Latency: 0.1, Rate: 1e6},
	{Workers: 8, Latency: 1e-3, Rate: 1e6},
	{Workers: 16, Latency: 1e-3, Rate: 1e9},
	{Workers: 16, Latency: 1e-4, Rate: 1e9},
	{Workers: 32, Latency: 1e-4, Rate: 1e9},
}

func benchCommand(flags *rootFlags) *cobra.Command {
	var sizes []int
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Print a markdown table of virtual run times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 {
				return fmt.Errorf("bench needs at least one iteration, got %d", iterations)
			}
			base, err := flags.config(cmd)
			if err != nil {
				return err
			}
			base.Network.Kind = jacobi.NetworkLink
			base.MaxIterations = iterations
			base.Threshold = 1e-300
			strategies := []string{jacobi.StrategyBlocking, jacobi.StrategyOverlapped}

			// Markdown table header.
			fmt.Print("| Workers | Latency | Link rate | Size ")
			for _, s := range strategies {
				fmt.Printf("| %s ", s)
			}
			fmt.Println("|")
			for i := 0; i < 4+len(strategies); i++ {
				fmt.Print("|:--")
			}
			fmt.Println("|")

			// Markdown table body.
			for _, run := range benchRuns {
				for _, size := range sizes {
					if size%run.Workers != 0 {
						continue
					}
					g, err := (&grid.EdgeLoader{Size: size, Top: 1}).Load()
					if err != nil {
						return err
					}
					fmt.Printf(
						"| %d | %s | %s | %d ",
						run.Workers,
						strconv.FormatFloat(run.Latency, 'f', -1, 64),
						strconv.FormatFloat(run.Rate, 'E', -1, 64),
						size,
					)
					for _, strategy := range strategies {
						cfg := base
						cfg.Workers = run.Workers
						cfg.Strategy = strategy
						cfg.Network.Latency = run.Latency
						cfg.Network.Rate = run.Rate
						res, err := jacobi.NewSolver(cfg).Solve(g)
						if err != nil && !errors.Is(err, jacobi.ErrNotConverged) {
							return err
						}
						fmt.Printf("| %f ", res.VirtualTime)
					}
					fmt.Println("|")
				}
			}
			return nil
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{64, 256, 1024}, "grid sizes")
	cmd.Flags().IntVar(&iterations, "iterations", 20, "sweeps per run")
	return cmd
}
