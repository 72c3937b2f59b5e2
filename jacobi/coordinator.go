package jacobi

import (
	"math"

	"github.com/unixpickle/dist-jacobi/collcomm"
	"github.com/unixpickle/essentials"
)

// A decision is rank 0's verdict after an iteration.
type decision int

const (
	decisionContinue decision = iota
	decisionConverged
	decisionCapped
)

// decide reduces the local squared change of every worker
// to rank 0, which compares the norm to the threshold and
// broadcasts its decision together with the norm.
//
// Every worker returns the same values, and none returns
// before rank 0 has decided.
func (w *Worker) decide(localSum float64, iteration int, cfg *Config) (decision, float64, error) {
	contribution := localSum
	fn := collcomm.Sum
	switch cfg.Norm {
	case NormRoots:
		contribution = math.Sqrt(localSum)
	case NormMax:
		contribution = math.Sqrt(localSum)
		fn = collcomm.Max
	}
	reduced, err := w.Comms.Reduce([]float64{contribution}, fn)
	if err != nil {
		return 0, 0, essentials.AddCtx("convergence", err)
	}

	verdict := make([]float64, 2)
	if w.Comms.Rank() == 0 {
		norm := reduced[0]
		if cfg.Norm == NormGlobal {
			norm = math.Sqrt(norm)
		}
		d := decisionContinue
		if norm < cfg.Threshold {
			d = decisionConverged
		} else if cfg.MaxIterations > 0 && iteration >= cfg.MaxIterations {
			d = decisionCapped
		}
		verdict[0], verdict[1] = float64(d), norm
	}
	if err := w.Comms.Bcast(verdict); err != nil {
		return 0, 0, essentials.AddCtx("convergence", err)
	}
	return decision(verdict[0]), verdict[1], nil
}
