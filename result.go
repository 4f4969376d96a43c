/*
Copyright © 2015-2022 Leo Antunes <leo@costela.net>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program.  If not, see <http://www.gnu.org/licenses/>.
*/

package milpa

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

/* Types */

type SolveResult struct {
	name      string
	dir       direction
	names     []string
	status    Status
	values    []float64
	objective float64
	bound     float64
	pool      *Pool
	nodes     int
	runtime   time.Duration
}

// Status is the outcome of a solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
	// InfeasibleOrUnbounded is reported when the solver established that
	// the model has no optimal solution without telling which of the two
	// cases applies.
	InfeasibleOrUnbounded
	// UserInterrupted is reported when a time or node limit or a context
	// cancellation ended the search. A solution may still be available.
	UserInterrupted
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "Optimal"
	case Infeasible:
		return "Infeasible"
	case Unbounded:
		return "Unbounded"
	case InfeasibleOrUnbounded:
		return "InfeasibleOrUnbounded"
	case UserInterrupted:
		return "UserInterrupted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type SolveError int

const (
	ErrInvalidIndex SolveError = iota + 1
	ErrNumericalInstability
	ErrSolutionIndex
	ErrModelFeasible
	ErrNoSolution
)

// Error returns a string representation of the given error value.
func (e SolveError) Error() string {
	switch e {
	case ErrInvalidIndex:
		return "variable does not belong to the model"
	case ErrNumericalInstability:
		return "simplex did not converge within the iteration limit"
	case ErrSolutionIndex:
		return "solution index out of range"
	case ErrModelFeasible:
		return "model is feasible"
	case ErrNoSolution:
		return "no solution available"
	default:
		panic("unrecognized error")
	}
}

// ParseError reports a malformed LP file.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Status reports how the solve ended.
func (res SolveResult) Status() Status {
	return res.status
}

// HasSolution reports whether a feasible assignment is available. This can
// be the case even if Status is not Optimal.
func (res SolveResult) HasSolution() bool {
	return res.values != nil
}

// ProvenOptimal reports whether the best solution is proven optimal.
func (res SolveResult) ProvenOptimal() bool {
	return res.status == Optimal
}

// Value returns the computed value of the given variable for this
// optimization result, or NaN when no solution is available.
// This is a shorthand for PrimalValue.
func (res SolveResult) Value(v *Variable) float64 {
	return res.PrimalValue(v)
}

// PrimalValue returns the computed value of the given variable for
// this optimization result.
func (res SolveResult) PrimalValue(v *Variable) float64 {
	if v == nil || v.index >= len(res.values) {
		return math.NaN()
	}
	return res.values[v.index]
}

// Values returns a copy of the best solution, indexed like the model's
// variables.
func (res SolveResult) Values() ([]float64, error) {
	if res.values == nil {
		return nil, ErrNoSolution
	}
	return append([]float64(nil), res.values...), nil
}

// ObjectiveValue returns the value of the objective function for
// this optimization result. This value is only optimal if Status
// also returns Optimal; it is NaN when no solution is available.
func (res SolveResult) ObjectiveValue() float64 {
	if res.values == nil {
		return math.NaN()
	}
	return res.objective
}

// BestBound returns the best proven bound on the objective.
func (res SolveResult) BestBound() float64 {
	return res.bound
}

// Pool returns the solutions collected during the solve.
func (res SolveResult) Pool() *Pool {
	return res.pool
}

// NodeCount returns the number of branch-and-bound nodes solved.
func (res SolveResult) NodeCount() int {
	return res.nodes
}

// Runtime returns the wall clock time spent solving.
func (res SolveResult) Runtime() time.Duration {
	return res.runtime
}

// WriteSolution writes the best solution in the plain ".sol" layout: a
// comment with the objective followed by one "name value" line per
// variable.
func (res SolveResult) WriteSolution(w io.Writer) error {
	if res.values == nil {
		return ErrNoSolution
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# Solution for model %s\n", res.name)
	fmt.Fprintf(bw, "# Objective value = %s\n", formatFloat(res.objective))
	for j, name := range res.names {
		fmt.Fprintf(bw, "%s %s\n", name, formatFloat(res.values[j]))
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing solution: %w", err)
	}
	return nil
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == 0:
		// no "-0"
		v = 0
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
