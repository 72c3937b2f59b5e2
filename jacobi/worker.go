// Package jacobi runs a Jacobi relaxation of a square grid
// on a fixed set of simulated workers that exchange halo
// rows by message passing.
package jacobi

import (
	"github.com/unixpickle/dist-jacobi/collcomm"
	"github.com/unixpickle/dist-jacobi/grid"
)

// pointFlops is the number of floating-point operations
// the kernel spends per updated point.
const pointFlops = 7

// A Worker owns one row block of the grid and the two
// buffers it is relaxed in.
//
// Only the Worker's Goroutine may touch its buffers; rows
// reach other workers exclusively through Comms.
type Worker struct {
	Comms    *collcomm.Comms
	Layout   grid.Layout
	FlopTime float64

	// cur holds the previous iterate, including halos.
	// next receives the new iterate.
	cur  []float64
	next []float64

	// rowSums[i] is the squared change of local row i
	// during the current sweep.
	rowSums []float64
}

func newWorker(c *collcomm.Comms, layout grid.Layout, flopTime float64) *Worker {
	n := layout.Rows() * layout.Size
	return &Worker{
		Comms:    c,
		Layout:   layout,
		FlopTime: flopTime,
		cur:      make([]float64, n),
		next:     make([]float64, n),
		rowSums:  make([]float64, layout.Rows()),
	}
}

// row returns a local row of the current iterate.
func (w *Worker) row(local int) []float64 {
	return w.Layout.Row(w.cur, local)
}

// relax computes local rows first through last of the
// next iterate from the current one.
//
// Every row read must already hold this iteration's data;
// for rows next to a halo, that means the halo's receive
// has completed.
func (w *Worker) relax(first, last int) {
	if first > last {
		return
	}
	n := w.Layout.Size
	for i := first; i <= last; i++ {
		above := w.Layout.Row(w.cur, i-1)
		row := w.Layout.Row(w.cur, i)
		below := w.Layout.Row(w.cur, i+1)
		out := w.Layout.Row(w.next, i)

		var sum float64
		for j := 1; j < n-1; j++ {
			v := (above[j] + below[j] + row[j-1] + row[j+1]) / 4
			d := v - row[j]
			sum += d * d
			out[j] = v
		}
		w.rowSums[i] = sum
	}
	if n > 2 {
		w.Comms.Handle.Sleep(w.FlopTime * float64(pointFlops*(last-first+1)*(n-2)))
	}
}

// finishSweep adds up the row sums in row order and makes
// the next iterate current.
//
// The sum does not depend on the order the rows were
// relaxed in.
func (w *Worker) finishSweep() float64 {
	first, last := w.Layout.UpdateRows()
	var sum float64
	for i := first; i <= last; i++ {
		sum += w.rowSums[i]
	}
	w.cur, w.next = w.next, w.cur
	return sum
}
