package jacobi

import (
	"math"

	"github.com/unixpickle/dist-jacobi/grid"
	"gonum.org/v1/gonum/mat"
)

// RelaxOnce performs a single sequential Jacobi sweep of g
// and returns the new grid together with the norm of the
// change.
//
// The boundary rows and columns are copied unchanged.
func RelaxOnce(g *mat.Dense) (*mat.Dense, float64) {
	out, rowSums := relaxRows(g)
	var total float64
	for _, s := range rowSums {
		total += s
	}
	return out, math.Sqrt(total)
}

// relaxRows sweeps g once and returns the squared change
// of every row.
func relaxRows(g *mat.Dense) (*mat.Dense, []float64) {
	n, _ := g.Dims()
	out := mat.DenseCopyOf(g)
	rowSums := make([]float64, n)
	for i := 1; i < n-1; i++ {
		above := g.RawRowView(i - 1)
		row := g.RawRowView(i)
		below := g.RawRowView(i + 1)
		dst := out.RawRowView(i)

		var sum float64
		for j := 1; j < n-1; j++ {
			v := (above[j] + below[j] + row[j-1] + row[j+1]) / 4
			d := v - row[j]
			sum += d * d
			dst[j] = v
		}
		rowSums[i] = sum
	}
	return out, rowSums
}

// Reference relaxes g sequentially until the norm of the
// change drops below threshold, or until maxIter sweeps
// have run if maxIter is positive.
//
// It returns the final grid, the number of sweeps, and
// whether the threshold was reached.
func Reference(g *mat.Dense, threshold float64, maxIter int) (*mat.Dense, int, bool) {
	part, err := grid.NewPartition(rowsOf(g), 1)
	if err != nil {
		panic(err)
	}
	return reference(g, part, NormGlobal, threshold, maxIter)
}

// ReferenceConfig is like Reference, but it stops by the
// same rule a Solver with cfg would: the change is split
// into the row blocks of cfg.Workers workers and combined
// with cfg.Norm.
//
// The norms may differ from the Solver's in the last bits,
// since the Solver adds them up along a tree.
func ReferenceConfig(g *mat.Dense, cfg Config) (*mat.Dense, int, bool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, 0, false, err
	}
	part, err := grid.NewPartition(rowsOf(g), cfg.Workers)
	if err != nil {
		return nil, 0, false, err
	}
	res, iters, ok := reference(g, part, cfg.Norm, cfg.Threshold, cfg.MaxIterations)
	return res, iters, ok, nil
}

func reference(g *mat.Dense, part *grid.Partition, norm string, threshold float64,
	maxIter int) (*mat.Dense, int, bool) {
	cur := g
	for iter := 1; ; iter++ {
		next, rowSums := relaxRows(cur)
		cur = next
		if blockNorm(part, rowSums, norm) < threshold {
			return cur, iter, true
		}
		if maxIter > 0 && iter >= maxIter {
			return cur, iter, false
		}
	}
}

// blockNorm combines per-row squared changes the way the
// convergence test combines per-worker sums.
func blockNorm(part *grid.Partition, rowSums []float64, norm string) float64 {
	var res float64
	for rank := 0; rank < part.Workers; rank++ {
		l := part.Layout(rank)
		first, last := l.UpdateRows()
		var local float64
		for i := first; i <= last; i++ {
			local += rowSums[l.Global(i)]
		}
		switch norm {
		case NormGlobal:
			res += local
		case NormMax:
			res = math.Max(res, math.Sqrt(local))
		default:
			res += math.Sqrt(local)
		}
	}
	if norm == NormGlobal {
		return math.Sqrt(res)
	}
	return res
}

func rowsOf(g *mat.Dense) int {
	rows, _ := g.Dims()
	return rows
}
