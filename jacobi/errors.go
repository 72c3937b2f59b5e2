package jacobi

import "errors"

var (
	// ErrConfig wraps every invalid run parameter that is
	// not a grid partitioning problem.
	ErrConfig = errors.New("invalid configuration")

	// ErrNotConverged is returned with a complete Result
	// when the iteration cap was reached first.
	ErrNotConverged = errors.New("did not converge")
)
