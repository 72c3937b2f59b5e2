package grid

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewPartitionErrors(t *testing.T) {
	cases := []struct {
		size, workers int
	}{
		{16, 3},
		{16, 0},
		{4, 8},
		{0, 1},
		{10, -1},
	}
	for _, c := range cases {
		_, err := NewPartition(c.size, c.workers)
		var configErr *ConfigError
		require.True(t, errors.As(err, &configErr), "size=%d workers=%d", c.size, c.workers)
		assert.Equal(t, c.size, configErr.Size)
		assert.Equal(t, c.workers, configErr.Workers)
	}
}

func TestPartitionCoverage(t *testing.T) {
	for size := 1; size <= 24; size++ {
		for workers := 1; workers <= size; workers++ {
			if size%workers != 0 {
				continue
			}
			p, err := NewPartition(size, workers)
			require.NoError(t, err)

			owner := make([]int, size)
			for i := range owner {
				owner[i] = -1
			}
			for rank := 0; rank < workers; rank++ {
				start, end := p.Layout(rank).Owned()
				for row := start; row < end; row++ {
					require.Equal(t, -1, owner[row], "row %d owned twice", row)
					owner[row] = rank
				}
			}
			for row, rank := range owner {
				require.NotEqual(t, -1, rank, "size=%d workers=%d: row %d unowned", size, workers, row)
			}
		}
	}
}

func TestLayoutOffsets(t *testing.T) {
	p, err := NewPartition(16, 4)
	require.NoError(t, err)

	first := p.Layout(0)
	assert.Equal(t, 0, first.Offset())
	assert.Equal(t, -1, first.UpperHalo())
	assert.Equal(t, 4, first.LowerHalo())
	assert.Equal(t, 5, first.Rows())
	assert.Equal(t, 3, first.LastOwned())

	middle := p.Layout(1)
	assert.Equal(t, 1, middle.Offset())
	assert.Equal(t, 0, middle.UpperHalo())
	assert.Equal(t, 5, middle.LowerHalo())
	assert.Equal(t, 6, middle.Rows())
	assert.Equal(t, 4, middle.Global(1))

	last := p.Layout(3)
	assert.Equal(t, 1, last.Offset())
	assert.Equal(t, -1, last.LowerHalo())
	assert.Equal(t, 5, last.Rows())
	assert.Equal(t, 15, last.Global(last.LastOwned()))

	single, err := NewPartition(16, 1)
	require.NoError(t, err)
	only := single.Layout(0)
	assert.Equal(t, 16, only.Rows())
	assert.Equal(t, -1, only.UpperHalo())
	assert.Equal(t, -1, only.LowerHalo())
}

func TestUpdateRows(t *testing.T) {
	cases := []struct {
		size, workers, rank int
		first, last         int
	}{
		{16, 4, 0, 1, 3},
		{16, 4, 1, 1, 4},
		{16, 4, 3, 1, 3},
		{16, 1, 0, 1, 14},
		{4, 4, 0, 1, 0},
		{4, 4, 1, 1, 1},
		{4, 4, 3, 1, 0},
		{2, 1, 0, 1, 0},
	}
	for _, c := range cases {
		t.Run(fmt.Sprintf("N=%d,P=%d,r=%d", c.size, c.workers, c.rank), func(t *testing.T) {
			p, err := NewPartition(c.size, c.workers)
			require.NoError(t, err)
			first, last := p.Layout(c.rank).UpdateRows()
			assert.Equal(t, c.first, first)
			assert.Equal(t, c.last, last)
		})
	}
}

func TestChunksAssemble(t *testing.T) {
	p, err := NewPartition(6, 3)
	require.NoError(t, err)

	data := make([]float64, 36)
	for i := range data {
		data[i] = float64(i)
	}
	g := mat.NewDense(6, 6, data)
	chunks := p.Chunks(g)
	require.Len(t, chunks, 3)
	assert.Equal(t, data[12:24], chunks[1])

	copied := make([][]float64, len(chunks))
	for i, c := range chunks {
		copied[i] = append([]float64{}, c...)
	}
	assembled, err := p.Assemble(copied)
	require.NoError(t, err)
	assert.True(t, mat.Equal(g, assembled))

	_, err = p.Assemble(copied[:2])
	assert.Error(t, err)
	copied[2] = copied[2][:5]
	_, err = p.Assemble(copied)
	assert.Error(t, err)
}

func TestOwnedSlice(t *testing.T) {
	p, err := NewPartition(4, 2)
	require.NoError(t, err)

	for rank := 0; rank < 2; rank++ {
		l := p.Layout(rank)
		buf := make([]float64, l.Rows()*4)
		for i := range buf {
			buf[i] = float64(i / 4)
		}
		owned := l.OwnedSlice(buf)
		require.Len(t, owned, 8)
		assert.Equal(t, float64(l.Offset()), owned[0])
		assert.Equal(t, float64(l.LastOwned()), owned[7])
	}
}
