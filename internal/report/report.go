// Package report renders allocation results as the plain-text report printed by the CLI.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/eugenenazirov/budget-allocator/internal/allocator"
)

const (
	amountPlaces    = 2
	objectivePlaces = 4
)

// Write prints the per-channel allocation and the objective, or the solver message when the
// solve did not succeed.
func Write(w io.Writer, names []string, res allocator.Result) error {
	if !res.Success() {
		_, err := fmt.Fprintf(w, "Optimization failed: %s\n", res.Message)
		return err
	}
	if len(names) != len(res.Allocation) {
		return fmt.Errorf("report: %d channel names for %d allocations", len(names), len(res.Allocation))
	}

	if _, err := fmt.Fprintln(w, "Optimized Allocation (LP):"); err != nil {
		return err
	}
	for i, name := range names {
		if _, err := fmt.Fprintf(w, "%s: %s\n", name, Amount(res.Allocation[i])); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "\nMax Objective Value: %s\n", fixed(res.Objective, objectivePlaces))
	return err
}

// Amount formats a monetary allocation to cents.
func Amount(v float64) string {
	return fixed(v, amountPlaces)
}

// fixed rounds the exact binary value of v half to even, so 0.125 prints as 0.12
// and 2.675 (stored just below) as 2.67.
func fixed(v float64, places int32) string {
	// 767 significant digits spell out any float64 exactly.
	d, err := decimal.NewFromString(strconv.FormatFloat(v, 'e', 767, 64))
	if err != nil {
		return strconv.FormatFloat(v, 'f', int(places), 64)
	}
	return d.RoundBank(places).StringFixed(places)
}
