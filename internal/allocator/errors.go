package allocator

import "errors"

var (
	// ErrNoChannels is returned when no coefficients are supplied.
	ErrNoChannels = errors.New("at least one channel is required")
	// ErrLengthMismatch is returned when coefficients and bounds differ in length.
	ErrLengthMismatch = errors.New("coefficients and bounds must have the same length")
	// ErrInvalidBudget is returned when the budget is negative or not a finite number.
	ErrInvalidBudget = errors.New("budget must be a finite non-negative number")
	// ErrInvalidBounds is returned when a bound pair is negative, non-finite or has lower > upper.
	ErrInvalidBounds = errors.New("bounds must be finite with 0 <= lower <= upper")
	// ErrInvalidCoefficient is returned when a coefficient is not a finite number.
	ErrInvalidCoefficient = errors.New("coefficients must be finite numbers")
)
