package jacobi

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/unixpickle/dist-jacobi/collcomm"
	"github.com/unixpickle/dist-jacobi/grid"
	"github.com/unixpickle/dist-jacobi/simulator"
	"github.com/unixpickle/essentials"
	"gonum.org/v1/gonum/mat"
)

// Result describes a finished run.
type Result struct {
	RunID    string
	Strategy string

	// Grid is the collected final iterate.
	Grid *mat.Dense

	Iterations int

	// Residuals holds the reduced norm of every iteration.
	Residuals []float64

	Converged bool

	// VirtualTime is the simulated duration of the run.
	VirtualTime float64
}

// A Solver relaxes grids with a fixed configuration.
type Solver struct {
	Config Config
	Logger zerolog.Logger

	// Exchanger, if non-nil, is used instead of the one
	// named by Config.Strategy.
	Exchanger Exchanger
}

// NewSolver creates a Solver that does not log.
func NewSolver(cfg Config) *Solver {
	return &Solver{Config: cfg, Logger: zerolog.Nop()}
}

// Solve distributes g across the configured workers and
// iterates until the norm of the change drops below the
// threshold.
//
// g is not modified.
// Invalid configurations are reported before any worker
// starts. If the iteration cap is hit, the last iterate is
// returned along with ErrNotConverged.
func (s *Solver) Solve(g *mat.Dense) (*Result, error) {
	if err := s.Config.Validate(); err != nil {
		return nil, err
	}
	rows, cols := g.Dims()
	if rows != cols {
		return nil, &grid.ConfigError{Size: rows, Workers: s.Config.Workers,
			Reason: fmt.Sprintf("grid is %dx%d, not square", rows, cols)}
	}
	part, err := grid.NewPartition(rows, s.Config.Workers)
	if err != nil {
		return nil, err
	}
	exchanger := s.Exchanger
	if exchanger == nil {
		if exchanger, err = NewExchanger(s.Config.Strategy); err != nil {
			return nil, err
		}
	}

	res := &Result{RunID: uuid.NewString(), Strategy: s.Config.Strategy}
	log := s.Logger.With().
		Str("run", res.RunID).
		Str("strategy", s.Config.Strategy).
		Int("size", rows).
		Int("workers", s.Config.Workers).
		Logger()
	log.Info().Float64("threshold", s.Config.Threshold).Msg("starting relaxation")

	loop := simulator.NewEventLoop()
	nodes := make([]*simulator.Node, s.Config.Workers)
	for i := range nodes {
		nodes[i] = simulator.NewNode()
	}
	workerErrs := make([]error, s.Config.Workers)
	collcomm.SpawnComms(loop, s.Config.Network.build(), nodes, func(c *collcomm.Comms) {
		if err := s.runWorker(c, part, exchanger, g, res, log); err != nil {
			err = essentials.AddCtx(fmt.Sprintf("rank %d", c.Rank()), err)
			workerErrs[c.Rank()] = err
			log.Error().Err(err).Int("rank", c.Rank()).Msg("worker failed")
			c.Handle.Abort(err)
		}
	})
	loopErr := loop.Run()
	res.VirtualTime = loop.Time()

	for _, err := range workerErrs {
		if err != nil {
			return nil, err
		}
	}
	if loopErr != nil {
		log.Error().Err(loopErr).Msg("run aborted")
		return nil, essentials.AddCtx("relaxation", loopErr)
	}

	done := log.Info()
	if !res.Converged {
		done = log.Warn()
	}
	done.Int("iterations", res.Iterations).
		Bool("converged", res.Converged).
		Float64("virtual_time", res.VirtualTime).
		Msg("finished relaxation")
	if !res.Converged {
		return res, ErrNotConverged
	}
	return res, nil
}

// runWorker is the program every rank executes.
// Only rank 0 reads g and writes res.
func (s *Solver) runWorker(c *collcomm.Comms, part *grid.Partition, ex Exchanger,
	g *mat.Dense, res *Result, log zerolog.Logger) error {
	w := newWorker(c, part.Layout(c.Rank()), s.Config.FlopTime)

	var chunks [][]float64
	if c.Rank() == 0 {
		chunks = part.Chunks(g)
	}
	if err := c.Scatter(chunks, w.Layout.OwnedSlice(w.cur)); err != nil {
		return err
	}
	copy(w.next, w.cur)

	for iteration := 1; ; iteration++ {
		localSum, err := ex.Sweep(w)
		if err != nil {
			return essentials.AddCtx(fmt.Sprintf("iteration %d", iteration), err)
		}
		d, norm, err := w.decide(localSum, iteration, &s.Config)
		if err != nil {
			return essentials.AddCtx(fmt.Sprintf("iteration %d", iteration), err)
		}
		if c.Rank() == 0 {
			res.Residuals = append(res.Residuals, norm)
			log.Debug().Int("iteration", iteration).Float64("diffnorm", norm).Msg("sweep")
		}
		if d != decisionContinue {
			if c.Rank() == 0 {
				res.Iterations = iteration
				res.Converged = d == decisionConverged
			}
			break
		}
	}

	owned, err := c.Gather(w.Layout.OwnedSlice(w.cur))
	if err != nil {
		return err
	}
	if c.Rank() == 0 {
		if res.Grid, err = part.Assemble(owned); err != nil {
			return err
		}
	}
	return c.CheckDrained()
}
