package grid

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// MaxAbsDiff returns the largest absolute difference
// between corresponding entries of two equally sized
// grids.
func MaxAbsDiff(a, b *mat.Dense) float64 {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		panic("grid dimensions differ")
	}
	var res float64
	for i := 0; i < ar; i++ {
		res = math.Max(res, floats.Distance(a.RawRowView(i), b.RawRowView(i), math.Inf(1)))
	}
	return res
}
