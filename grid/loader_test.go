package grid

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestTextLoader(t *testing.T) {
	input := "1 2 3\n4 5 6\n7 8 9.5\n"
	g, err := (&TextLoader{Reader: strings.NewReader(input), Size: 3}).Load()
	require.NoError(t, err)
	assert.Equal(t, 9.5, g.At(2, 2))
	assert.Equal(t, 4.0, g.At(1, 0))

	_, err = (&TextLoader{Reader: strings.NewReader("1 2 3"), Size: 2}).Load()
	assert.Error(t, err)

	_, err = (&TextLoader{Reader: strings.NewReader("1 2 x 4"), Size: 2}).Load()
	assert.Error(t, err)
}

func TestEdgeLoader(t *testing.T) {
	g, err := (&EdgeLoader{Size: 4, Top: 1, Bottom: 2, Left: 3, Right: 4}).Load()
	require.NoError(t, err)
	assert.Equal(t, 1.0, g.At(0, 0))
	assert.Equal(t, 1.0, g.At(0, 3))
	assert.Equal(t, 2.0, g.At(3, 1))
	assert.Equal(t, 3.0, g.At(1, 0))
	assert.Equal(t, 4.0, g.At(2, 3))
	assert.Equal(t, 0.0, g.At(1, 1))
}

func TestWriteRoundTrip(t *testing.T) {
	g, err := (&UniformLoader{Size: 3, Value: 0.25}).Load()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, g, 4))
	assert.Equal(t, "0.2500 0.2500 0.2500 \n", strings.SplitAfter(buf.String(), "\n")[0])

	parsed, err := (&TextLoader{Reader: &buf, Size: 3}).Load()
	require.NoError(t, err)
	assert.True(t, mat.Equal(g, parsed))
}

func TestMaxAbsDiff(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	b := mat.NewDense(2, 2, []float64{1, 2.5, 3, 3})
	assert.Equal(t, 1.0, MaxAbsDiff(a, b))
	assert.Equal(t, 0.0, MaxAbsDiff(a, a))
}
