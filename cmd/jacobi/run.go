package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/unixpickle/dist-jacobi/grid"
	"github.com/unixpickle/dist-jacobi/jacobi"
	"gonum.org/v1/gonum/mat"
)

type gridFlags struct {
	input string
	init  string
	size  int
	value float64
}

func (g *gridFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&g.input, "input", "i", "", "text file with the initial grid")
	cmd.Flags().StringVar(&g.init, "init", "edges", "generated grid when there is no input (uniform or edges)")
	cmd.Flags().IntVarP(&g.size, "size", "n", 16, "grid side length")
	cmd.Flags().Float64Var(&g.value, "value", 1, "value of a uniform grid")
}

func (g *gridFlags) load() (*mat.Dense, error) {
	var loader grid.Loader
	switch {
	case g.input != "":
		f, err := os.Open(g.input)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		loader = &grid.TextLoader{Reader: f, Size: g.size}
	case g.init == "uniform":
		loader = &grid.UniformLoader{Size: g.size, Value: g.value}
	case g.init == "edges":
		loader = &grid.EdgeLoader{Size: g.size, Top: 1, Bottom: 0, Left: 0, Right: 0}
	default:
		return nil, fmt.Errorf("unknown grid kind %q", g.init)
	}
	return loader.Load()
}

func runCommand(flags *rootFlags) *cobra.Command {
	var gf gridFlags
	var verify bool
	var precision int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Relax one grid and print the result",
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
			solver := jacobi.NewSolver(cfg)
			solver.Logger = flags.logger(cmd.ErrOrStderr())
			res, err := solver.Solve(g)
			if err != nil && !errors.Is(err, jacobi.ErrNotConverged) {
				return err
			}
			if err := grid.Write(cmd.OutOrStdout(), res.Grid, precision); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "iterations: %d\nconverged: %v\nvirtual time: %f\n",
				res.Iterations, res.Converged, res.VirtualTime)
			if verify {
				expected, iters, _, verr := jacobi.ReferenceConfig(g, cfg)
				if verr != nil {
					return verr
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "reference iterations: %d\nmax abs diff: %e\n",
					iters, grid.MaxAbsDiff(expected, res.Grid))
			}
			return err
		},
	}
	gf.register(cmd)
	cmd.Flags().BoolVar(&verify, "verify", false, "compare against a sequential run")
	cmd.Flags().IntVar(&precision, "precision", 4, "digits printed after the decimal point")
	return cmd
}
