package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-jacobi/grid"
	"github.com/unixpickle/dist-jacobi/jacobi"
	"golang.org/x/sync/errgroup"
)

func compareCommand(flags *rootFlags) *cobra.Command {
	var gf gridFlags
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Relax one grid with both exchange strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.config(cmd)
			if err != nil {
				return err
			}
			g, err := gf.load()
			if err != nil {
				return err
			}
			strategies := []string{jacobi.StrategyBlocking, jacobi.StrategyOverlapped}
			results := make([]*jacobi.Result, len(strategies))
			logger := flags.logger(cmd.ErrOrStderr())
			out := cmd.OutOrStdout()

			var eg errgroup.Group
			for i, strategy := range strategies {
				i, strategy := i, strategy
				eg.Go(func() error {
					c := cfg
					c.Strategy = strategy
					solver := jacobi.NewSolver(c)
					solver.Logger = logger
					res, err := solver.Solve(g)
					if err != nil && !errors.Is(err, jacobi.ErrNotConverged) {
						return err
					}
					results[i] = res
					return nil
				})
			}
			if err := eg.Wait(); err != nil {
				return err
			}

			fmt.Fprintln(out, "| Strategy | Iterations | Converged | Virtual time |")
			fmt.Fprintln(out, "|:--|:--|:--|:--|")
			for _, res := range results {
				fmt.Fprintf(out, "| %s | %d | %v | %f |\n", res.Strategy, res.Iterations, res.Converged,
					res.VirtualTime)
			}
			fmt.Fprintf(out, "\nmax abs diff: %e\n", grid.MaxAbsDiff(results[0].Grid, results[1].Grid))
			return nil
		},
	}
	gf.register(cmd)
	return cmd
}
