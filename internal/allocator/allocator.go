package allocator

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const feasibilityTol = 1e-9

type simplexAllocator struct {
	tol float64
}

// Option configures the simplex allocator.
type Option func(*simplexAllocator)

// WithTolerance sets the simplex tolerance. Zero selects the solver default.
func WithTolerance(tol float64) Option {
	return func(a *simplexAllocator) {
		if tol >= 0 {
			a.tol = tol
		}
	}
}

// New creates an Allocator backed by gonum's simplex solver.
func New(opts ...Option) Allocator {
	a := &simplexAllocator{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate maximizes coeffs·x subject to sum(x) == budget and bounds[i].Lower <= x[i] <= bounds[i].Upper.
//
// Malformed input is reported as an error. Infeasible problems and solver failures are reported
// through the Result status, never as errors.
func (a *simplexAllocator) Allocate(coeffs []float64, budget float64, bounds []Bound) (Result, error) {
	if err := validate(coeffs, budget, bounds); err != nil {
		return Result{}, err
	}

	n := len(coeffs)
	lower := make([]float64, n)
	upper := make([]float64, n)
	for i, b := range bounds {
		lower[i] = b.Lower
		upper[i] = b.Upper
	}

	// Bound sums carry round-off, so they are compared against the budget with a relative slack.
	slack := feasibilityTol * math.Max(1, math.Abs(budget))
	sumLower := floats.Sum(lower)
	if sumLower > budget+slack {
		return infeasible(fmt.Sprintf("sum of lower bounds %g exceeds budget %g", sumLower, budget)), nil
	}
	sumUpper := floats.Sum(upper)
	if sumUpper < budget-slack {
		return infeasible(fmt.Sprintf("sum of upper bounds %g is below budget %g", sumUpper, budget)), nil
	}

	remaining := math.Min(math.Max(budget-sumLower, 0), sumUpper-sumLower)
	c, A, b := standardForm(coeffs, remaining, lower, upper)
	opt, x, err := lp.Simplex(c, A, b, a.tol, nil)
	if err != nil {
		if errors.Is(err, lp.ErrInfeasible) {
			return infeasible(err.Error()), nil
		}
		return Result{Status: StatusSolverError, Message: err.Error()}, nil
	}

	allocation := make([]float64, n)
	for i := range allocation {
		allocation[i] = math.Min(math.Max(lower[i]+x[i], lower[i]), upper[i])
	}

	return Result{
		Status:     StatusOptimal,
		Allocation: allocation,
		Objective:  -opt + floats.Dot(coeffs, lower),
		Message:    "optimal allocation found",
	}, nil
}

// standardForm builds min c·z s.t. A z = b, z >= 0 over z = [y, s], where x = lower + y and
// s is the slack of each upper bound:
//
//	y_i + s_i = upper_i - lower_i   for each channel
//	sum(y)    = remaining
func standardForm(coeffs []float64, remaining float64, lower, upper []float64) ([]float64, *mat.Dense, []float64) {
	n := len(coeffs)
	c := make([]float64, 2*n)
	for i, coef := range coeffs {
		c[i] = -coef
	}

	A := mat.NewDense(n+1, 2*n, nil)
	b := make([]float64, n+1)
	for i := 0; i < n; i++ {
		A.Set(i, i, 1)
		A.Set(i, n+i, 1)
		b[i] = upper[i] - lower[i]
		A.Set(n, i, 1)
	}
	b[n] = remaining

	return c, A, b
}

func infeasible(msg string) Result {
	return Result{Status: StatusInfeasible, Message: msg}
}

func validate(coeffs []float64, budget float64, bounds []Bound) error {
	if len(coeffs) == 0 {
		return ErrNoChannels
	}
	if len(coeffs) != len(bounds) {
		return fmt.Errorf("%w: %d coefficients, %d bounds", ErrLengthMismatch, len(coeffs), len(bounds))
	}
	if !isFinite(budget) || budget < 0 {
		return fmt.Errorf("%w: %g", ErrInvalidBudget, budget)
	}
	for i, coef := range coeffs {
		if !isFinite(coef) {
			return fmt.Errorf("%w: index %d", ErrInvalidCoefficient, i)
		}
	}
	for i, b := range bounds {
		if !isFinite(b.Lower) || !isFinite(b.Upper) || b.Lower < 0 || b.Lower > b.Upper {
			return fmt.Errorf("%w: index %d has [%g, %g]", ErrInvalidBounds, i, b.Lower, b.Upper)
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
