// Package grid splits a square grid into row blocks for a
// fixed set of workers and loads or writes whole grids.
package grid

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// A ConfigError reports a grid size and worker count that
// cannot be partitioned.
type ConfigError struct {
	Size    int
	Workers int
	Reason  string
}

func (c *ConfigError) Error() string {
	return fmt.Sprintf("cannot split %dx%d grid across %d workers: %s",
		c.Size, c.Size, c.Workers, c.Reason)
}

// A Partition assigns contiguous blocks of Block rows of
// a Size x Size grid to Workers workers.
type Partition struct {
	Size    int
	Workers int
	Block   int
}

// NewPartition validates the grid size and worker count.
func NewPartition(size, workers int) (*Partition, error) {
	configErr := func(reason string) error {
		return &ConfigError{Size: size, Workers: workers, Reason: reason}
	}
	switch {
	case size < 1:
		return nil, configErr("grid must have at least one row")
	case workers < 1:
		return nil, configErr("need at least one worker")
	case workers > size:
		return nil, configErr("more workers than rows")
	case size%workers != 0:
		return nil, configErr("worker count does not divide the grid size")
	}
	return &Partition{Size: size, Workers: workers, Block: size / workers}, nil
}

// Layout returns the local buffer layout of a worker.
func (p *Partition) Layout(rank int) Layout {
	if rank < 0 || rank >= p.Workers {
		panic(fmt.Sprintf("rank %d out of range [0, %d)", rank, p.Workers))
	}
	return Layout{
		Rank:     rank,
		Workers:  p.Workers,
		Size:     p.Size,
		Block:    p.Block,
		HasUpper: rank > 0,
		HasLower: rank < p.Workers-1,
	}
}

// Chunks splits the backing array of g into one slice of
// Block rows per worker, in rank order.
// The slices alias g.
func (p *Partition) Chunks(g *mat.Dense) [][]float64 {
	data := rawData(g, p.Size)
	chunkLen := p.Block * p.Size
	chunks := make([][]float64, p.Workers)
	for i := range chunks {
		chunks[i] = data[i*chunkLen : (i+1)*chunkLen]
	}
	return chunks
}

// Assemble builds a grid from per-worker row blocks.
// It is the inverse of Chunks.
func (p *Partition) Assemble(chunks [][]float64) (*mat.Dense, error) {
	if len(chunks) != p.Workers {
		return nil, fmt.Errorf("assemble: got %d chunks for %d workers", len(chunks), p.Workers)
	}
	data := make([]float64, 0, p.Size*p.Size)
	for i, chunk := range chunks {
		if len(chunk) != p.Block*p.Size {
			return nil, fmt.Errorf("assemble: chunk %d has %d values, expected %d",
				i, len(chunk), p.Block*p.Size)
		}
		data = append(data, chunk...)
	}
	return mat.NewDense(p.Size, p.Size, data), nil
}

// A Layout describes one worker's local buffer: its owned
// rows plus up to two halo rows.
//
// Worker 0 has no upper halo, so its owned rows start at
// local row 0 and its lower halo (if any) sits at local
// row Block.
// Every other worker keeps its upper halo at local row 0
// and its owned rows at 1..Block, followed by a lower halo
// at Block+1 unless it is the last worker.
type Layout struct {
	Rank    int
	Workers int
	Size    int
	Block   int

	HasUpper bool
	HasLower bool
}

// Rows is the number of rows in the local buffer.
func (l Layout) Rows() int {
	rows := l.Offset() + l.Block
	if l.HasLower {
		rows++
	}
	return rows
}

// Offset is the local index of the first owned row.
func (l Layout) Offset() int {
	if l.HasUpper {
		return 1
	}
	return 0
}

// UpperHalo is the local index of the upper halo row, or
// -1 if there is none.
func (l Layout) UpperHalo() int {
	if !l.HasUpper {
		return -1
	}
	return 0
}

// LowerHalo is the local index of the lower halo row, or
// -1 if there is none.
func (l Layout) LowerHalo() int {
	if !l.HasLower {
		return -1
	}
	return l.Offset() + l.Block
}

// FirstOwned is the local index of the top owned row,
// which is sent to the upper neighbour.
func (l Layout) FirstOwned() int {
	return l.Offset()
}

// LastOwned is the local index of the bottom owned row,
// which is sent to the lower neighbour.
func (l Layout) LastOwned() int {
	return l.Offset() + l.Block - 1
}

// Owned returns the global row range [start, end) owned
// by the worker.
func (l Layout) Owned() (start, end int) {
	return l.Rank * l.Block, (l.Rank + 1) * l.Block
}

// Global converts a local row index to a global one.
func (l Layout) Global(local int) int {
	return l.Rank*l.Block + local - l.Offset()
}

// UpdateRows returns the local range [first, last] of rows
// whose interior points are relaxed.
// The global border rows 0 and Size-1 are excluded, so the
// range is empty (first > last) for a worker that owns
// nothing but border rows.
func (l Layout) UpdateRows() (first, last int) {
	first, last = l.FirstOwned(), l.LastOwned()
	if l.Global(first) == 0 {
		first++
	}
	if l.Global(last) == l.Size-1 {
		last--
	}
	return first, last
}

// OwnedSlice returns the owned rows of a local buffer.
func (l Layout) OwnedSlice(buf []float64) []float64 {
	return buf[l.FirstOwned()*l.Size : (l.LastOwned()+1)*l.Size]
}

// Row returns one row of a local buffer.
func (l Layout) Row(buf []float64, local int) []float64 {
	return buf[local*l.Size : (local+1)*l.Size]
}

func rawData(g *mat.Dense, size int) []float64 {
	rows, cols := g.Dims()
	if rows != size || cols != size {
		panic(fmt.Sprintf("grid is %dx%d, expected %dx%d", rows, cols, size, size))
	}
	raw := g.RawMatrix()
	if raw.Stride == size {
		return raw.Data[:size*size]
	}
	data := make([]float64, 0, size*size)
	for i := 0; i < size; i++ {
		data = append(data, g.RawRowView(i)...)
	}
	return data
}
