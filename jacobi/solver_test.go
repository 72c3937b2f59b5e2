package jacobi

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/unixpickle/dist-jacobi/grid"
	"gonum.org/v1/gonum/mat"
)

func edgeGrid(t *testing.T, size int) *mat.Dense {
	g, err := (&grid.EdgeLoader{Size: size, Top: 1, Bottom: -0.5, Left: 0.25, Right: 2}).Load()
	require.NoError(t, err)
	return g
}

func uniformGrid(t *testing.T, size int, value float64) *mat.Dense {
	g, err := (&grid.UniformLoader{Size: size, Value: value}).Load()
	require.NoError(t, err)
	return g
}

func testConfig(workers int, strategy string) Config {
	cfg := DefaultConfig()
	cfg.Workers = workers
	cfg.Strategy = strategy
	return cfg
}

func TestSolveUniform(t *testing.T) {
	input := uniformGrid(t, 16, 3.5)
	for _, workers := range []int{1, 4} {
		for _, strategy := range []string{StrategyBlocking, StrategyOverlapped} {
			res, err := NewSolver(testConfig(workers, strategy)).Solve(input)
			require.NoError(t, err, "workers=%d strategy=%s", workers, strategy)
			assert.True(t, res.Converged)
			assert.Equal(t, 1, res.Iterations)
			assert.Equal(t, []float64{0}, res.Residuals)
			assert.True(t, mat.Equal(input, res.Grid), "workers=%d strategy=%s", workers, strategy)
		}
	}
}

func TestSolveDoesNotModifyInput(t *testing.T) {
	input := edgeGrid(t, 16)
	orig := mat.DenseCopyOf(input)
	_, err := NewSolver(testConfig(4, StrategyOverlapped)).Solve(input)
	require.NoError(t, err)
	assert.True(t, mat.Equal(orig, input))
}

func TestStrategyEquivalence(t *testing.T) {
	input := edgeGrid(t, 16)
	for _, network := range []string{NetworkLink, NetworkRandom} {
		for _, workers := range []int{1, 2, 4, 8, 16} {
			t.Run(fmt.Sprintf("%s-%d", network, workers), func(t *testing.T) {
				cfg := testConfig(workers, StrategyBlocking)
				cfg.Network.Kind = network
				blocking, err := NewSolver(cfg).Solve(input)
				require.NoError(t, err)

				cfg.Strategy = StrategyOverlapped
				overlapped, err := NewSolver(cfg).Solve(input)
				require.NoError(t, err)

				assert.Equal(t, blocking.Iterations, overlapped.Iterations)
				assert.Equal(t, blocking.Residuals, overlapped.Residuals)
				assert.True(t, mat.Equal(blocking.Grid, overlapped.Grid))
				assert.Equal(t, StrategyOverlapped, overlapped.Strategy)
			})
		}
	}
}

func TestSingleWorkerMatchesReference(t *testing.T) {
	input := edgeGrid(t, 12)
	cfg := testConfig(1, StrategyOverlapped)
	res, err := NewSolver(cfg).Solve(input)
	require.NoError(t, err)

	expected, iters, converged := Reference(input, cfg.Threshold, cfg.MaxIterations)
	require.True(t, converged)
	assert.Equal(t, iters, res.Iterations)
	assert.True(t, mat.Equal(expected, res.Grid))
}

func TestReferenceConfigMatchesSolve(t *testing.T) {
	input := edgeGrid(t, 16)
	for _, norm := range []string{NormRoots, NormGlobal, NormMax} {
		for _, workers := range []int{1, 4} {
			cfg := DefaultConfig()
			cfg.Workers = workers
			cfg.Norm = norm
			res, err := NewSolver(cfg).Solve(input)
			require.NoError(t, err)

			expected, iters, converged, err := ReferenceConfig(input, cfg)
			require.NoError(t, err)
			assert.True(t, converged)
			assert.Equal(t, iters, res.Iterations, "norm=%s workers=%d", norm, workers)
			assert.True(t, mat.Equal(expected, res.Grid), "norm=%s workers=%d", norm, workers)
		}
	}

	_, _, _, err := ReferenceConfig(input, testConfig(3, StrategyBlocking))
	var configErr *grid.ConfigError
	assert.True(t, errors.As(err, &configErr), "unexpected error %v", err)
}

func TestDecompositionIndependence(t *testing.T) {
	input := edgeGrid(t, 16)
	cfg := testConfig(1, StrategyBlocking)
	cfg.Norm = NormGlobal
	single, err := NewSolver(cfg).Solve(input)
	require.NoError(t, err)

	expected, iters, _ := Reference(input, cfg.Threshold, cfg.MaxIterations)
	assert.Equal(t, iters, single.Iterations)
	assert.True(t, mat.Equal(expected, single.Grid))

	for _, workers := range []int{2, 4, 8} {
		cfg.Workers = workers
		res, err := NewSolver(cfg).Solve(input)
		require.NoError(t, err)
		assert.Equal(t, single.Iterations, res.Iterations, "workers=%d", workers)
		assert.LessOrEqual(t, grid.MaxAbsDiff(single.Grid, res.Grid), 1e-12, "workers=%d", workers)
		require.Len(t, res.Residuals, len(single.Residuals))
		for i, r := range res.Residuals {
			assert.InDelta(t, single.Residuals[i], r, 1e-12)
		}
	}
}

func TestTerminationResiduals(t *testing.T) {
	input := edgeGrid(t, 16)
	for _, norm := range []string{NormRoots, NormGlobal, NormMax} {
		cfg := testConfig(4, StrategyOverlapped)
		cfg.Norm = norm
		cfg.Threshold = 0.01
		res, err := NewSolver(cfg).Solve(input)
		require.NoError(t, err)
		require.Len(t, res.Residuals, res.Iterations)
		require.Greater(t, res.Iterations, 1)
		for _, r := range res.Residuals[:res.Iterations-1] {
			assert.GreaterOrEqual(t, r, cfg.Threshold, "norm=%s", norm)
		}
		assert.Less(t, res.Residuals[res.Iterations-1], cfg.Threshold, "norm=%s", norm)
	}
}

func TestConvergedIsIdempotent(t *testing.T) {
	input := edgeGrid(t, 16)
	cfg := testConfig(4, StrategyBlocking)
	res, err := NewSolver(cfg).Solve(input)
	require.NoError(t, err)
	next, _ := RelaxOnce(res.Grid)
	assert.LessOrEqual(t, grid.MaxAbsDiff(res.Grid, next), cfg.Threshold)
}

func TestIterationCap(t *testing.T) {
	cfg := testConfig(4, StrategyOverlapped)
	cfg.Threshold = 1e-12
	cfg.MaxIterations = 3
	res, err := NewSolver(cfg).Solve(edgeGrid(t, 16))
	require.True(t, errors.Is(err, ErrNotConverged), "unexpected error %v", err)
	require.NotNil(t, res)
	assert.False(t, res.Converged)
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.Residuals, 3)
	require.NotNil(t, res.Grid)

	expected, _, _ := Reference(edgeGrid(t, 16), cfg.Threshold, 3)
	assert.True(t, mat.Equal(expected, res.Grid))
}

func TestSolveConfigErrors(t *testing.T) {
	var configErr *grid.ConfigError

	_, err := NewSolver(testConfig(3, StrategyBlocking)).Solve(edgeGrid(t, 16))
	require.True(t, errors.As(err, &configErr), "unexpected error %v", err)
	assert.Equal(t, 16, configErr.Size)
	assert.Equal(t, 3, configErr.Workers)

	_, err = NewSolver(testConfig(32, StrategyBlocking)).Solve(edgeGrid(t, 16))
	require.True(t, errors.As(err, &configErr), "unexpected error %v", err)

	_, err = NewSolver(testConfig(2, StrategyBlocking)).Solve(mat.NewDense(4, 6, nil))
	require.True(t, errors.As(err, &configErr), "unexpected error %v", err)

	_, err = NewSolver(testConfig(2, "eager")).Solve(edgeGrid(t, 16))
	assert.True(t, errors.Is(err, ErrConfig), "unexpected error %v", err)
}

func TestOverlapSavesTime(t *testing.T) {
	input := edgeGrid(t, 32)
	cfg := testConfig(4, StrategyBlocking)
	cfg.Threshold = 1e-12
	cfg.MaxIterations = 5
	cfg.FlopTime = 1e-6
	cfg.Network = NetworkConfig{Kind: NetworkLink, Latency: 1e-3, Rate: 1e9}

	blocking, err := NewSolver(cfg).Solve(input)
	require.True(t, errors.Is(err, ErrNotConverged))
	cfg.Strategy = StrategyOverlapped
	overlapped, err := NewSolver(cfg).Solve(input)
	require.True(t, errors.Is(err, ErrNotConverged))

	assert.Less(t, overlapped.VirtualTime, blocking.VirtualTime)
	assert.True(t, mat.Equal(blocking.Grid, overlapped.Grid))
}

func TestSolverLogsRunID(t *testing.T) {
	var buf bytes.Buffer
	s := NewSolver(testConfig(2, StrategyBlocking))
	s.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	res, err := s.Solve(edgeGrid(t, 8))
	require.NoError(t, err)

	var sweeps int
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		assert.Equal(t, res.RunID, entry["run"])
		if entry["message"] == "sweep" {
			sweeps++
		}
	}
	assert.Equal(t, res.Iterations, sweeps)
}

// failingExchanger sweeps normally until one rank reaches
// a given iteration.
type failingExchanger struct {
	rank      int
	iteration int
	sweeps    []int
}

func (f *failingExchanger) Sweep(w *Worker) (float64, error) {
	f.sweeps[w.Layout.Rank]++
	if w.Layout.Rank == f.rank && f.sweeps[w.Layout.Rank] == f.iteration {
		return 0, errors.New("boom")
	}
	return Blocking{}.Sweep(w)
}

func TestWorkerFailureAborts(t *testing.T) {
	cfg := testConfig(4, StrategyBlocking)
	cfg.Threshold = 1e-12
	ex := &failingExchanger{rank: 2, iteration: 3, sweeps: make([]int, 4)}
	s := NewSolver(cfg)
	s.Exchanger = ex

	res, err := s.Solve(edgeGrid(t, 16))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "rank 2")
	assert.Contains(t, err.Error(), "iteration 3")
	assert.Contains(t, err.Error(), "boom")
	for rank, n := range ex.sweeps {
		assert.LessOrEqual(t, n, 4, "rank %d kept sweeping", rank)
	}
}
