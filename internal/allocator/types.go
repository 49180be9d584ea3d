package allocator

// Bound is the inclusive range a single channel allocation must lie in.
type Bound struct {
	Lower float64
	Upper float64
}

// Status describes how a solve ended.
type Status int

const (
	// StatusOptimal means an optimal allocation was found.
	StatusOptimal Status = iota
	// StatusInfeasible means no allocation satisfies the budget and bounds together.
	StatusInfeasible
	// StatusSolverError means the LP solver failed for numerical reasons.
	StatusSolverError
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusSolverError:
		return "solver_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single Allocate call.
// Allocation has one entry per channel, in input order, and is nil unless Status is StatusOptimal.
type Result struct {
	Status     Status
	Allocation []float64
	Objective  float64
	Message    string
}

// Success reports whether the solve produced an optimal allocation.
func (r Result) Success() bool {
	return r.Status == StatusOptimal
}

// Allocator describes the behaviour required from a budget allocator.
type Allocator interface {
	Allocate(coeffs []float64, budget float64, bounds []Bound) (Result, error)
}
