package grid

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// A Loader produces the initial grid.
type Loader interface {
	Load() (*mat.Dense, error)
}

// TextLoader reads Size*Size whitespace-separated numbers
// in row-major order.
type TextLoader struct {
	Reader io.Reader
	Size   int
}

// Load parses the grid.
func (t *TextLoader) Load() (*mat.Dense, error) {
	if t.Size < 1 {
		return nil, fmt.Errorf("load grid: invalid size %d", t.Size)
	}
	scanner := bufio.NewScanner(t.Reader)
	scanner.Split(bufio.ScanWords)
	data := make([]float64, 0, t.Size*t.Size)
	for len(data) < cap(data) && scanner.Scan() {
		x, err := strconv.ParseFloat(scanner.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("load grid: value %d: %w", len(data), err)
		}
		data = append(data, x)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load grid: %w", err)
	}
	if len(data) < t.Size*t.Size {
		return nil, fmt.Errorf("load grid: got %d values, expected %d", len(data), t.Size*t.Size)
	}
	return mat.NewDense(t.Size, t.Size, data), nil
}

// UniformLoader fills the grid with one value.
type UniformLoader struct {
	Size  int
	Value float64
}

// Load creates the grid.
func (u *UniformLoader) Load() (*mat.Dense, error) {
	if u.Size < 1 {
		return nil, fmt.Errorf("load grid: invalid size %d", u.Size)
	}
	data := make([]float64, u.Size*u.Size)
	for i := range data {
		data[i] = u.Value
	}
	return mat.NewDense(u.Size, u.Size, data), nil
}

// EdgeLoader creates a grid with a zero interior and fixed
// values along each edge.
// Corners take the Top or Bottom value.
type EdgeLoader struct {
	Size int

	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// Load creates the grid.
func (e *EdgeLoader) Load() (*mat.Dense, error) {
	if e.Size < 1 {
		return nil, fmt.Errorf("load grid: invalid size %d", e.Size)
	}
	g := mat.NewDense(e.Size, e.Size, nil)
	last := e.Size - 1
	for i := 0; i < e.Size; i++ {
		g.Set(i, 0, e.Left)
		g.Set(i, last, e.Right)
	}
	for j := 0; j < e.Size; j++ {
		g.Set(last, j, e.Bottom)
		g.Set(0, j, e.Top)
	}
	return g, nil
}

// Write prints a grid one row per line, each value with
// prec digits after the decimal point followed by a space.
func Write(w io.Writer, g mat.Matrix, prec int) error {
	bw := bufio.NewWriter(w)
	rows, cols := g.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			bw.WriteString(strconv.FormatFloat(g.At(i, j), 'f', prec, 64))
			bw.WriteByte(' ')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
