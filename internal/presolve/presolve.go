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

// Package presolve shrinks a problem.Problem before it is handed to the
// simplex engine and maps reduced solutions back to the original columns.
//
// Reductions, repeated until nothing changes or MaxIterations is reached:
//   - bound propagation from the activity range of each row
//   - fixing of columns whose bounds collapse to a point
//   - removal of rows that can no longer be violated
//   - dual fixing of columns that no remaining row references
package presolve

import (
	"fmt"
	"math"

	"github.com/costela/milpa/internal/problem"
)

const (
	DefaultMaxIterations = 20

	// DefaultTolerance is the slack allowed when comparing bounds and
	// activities.
	DefaultTolerance = 1e-7
)

// Status is the outcome of a presolve pass.
type Status int

const (
	// Reduced means the returned problem is equivalent to the input.
	Reduced Status = iota
	Infeasible
	// InfeasibleOrUnbounded is reported when a column can improve the
	// objective without limit but the remaining rows were not solved.
	InfeasibleOrUnbounded
)

func (s Status) String() string {
	switch s {
	case Reduced:
		return "reduced"
	case Infeasible:
		return "infeasible"
	case InfeasibleOrUnbounded:
		return "infeasible or unbounded"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Config controls a presolve pass. Zero values select the defaults.
type Config struct {
	MaxIterations int
	Tolerance     float64
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	return c
}

// Stats counts the reductions performed.
type Stats struct {
	Iterations      int
	TightenedBounds int
	FixedColumns    int
	DroppedRows     int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d passes, %d bounds tightened, %d columns fixed, %d rows dropped",
		s.Iterations, s.TightenedBounds, s.FixedColumns, s.DroppedRows)
}

// Result of Presolve. Problem and Postsolve are only set when Status is
// Reduced.
type Result struct {
	Status    Status
	Problem   *problem.Problem
	Postsolve *Postsolve
	Stats     Stats
	// Reason describes why presolve gave up on the problem.
	Reason string
}

// Postsolve maps reduced columns back onto the original ones.
type Postsolve struct {
	index []int // reduced column of each original column, -1 when fixed
	value []float64
}

// Lift expands a reduced assignment into the original column space.
func (ps *Postsolve) Lift(x []float64) []float64 {
	out := make([]float64, len(ps.index))
	for j, k := range ps.index {
		if k < 0 {
			out[j] = ps.value[j]
		} else {
			out[j] = x[k]
		}
	}
	return out
}

// Column returns the reduced index of original column j, or false together
// with its fixed value when presolve removed it.
func (ps *Postsolve) Column(j int) (int, float64, bool) {
	if k := ps.index[j]; k >= 0 {
		return k, 0, true
	}
	return -1, ps.value[j], false
}

// Columns returns the number of original columns.
func (ps *Postsolve) Columns() int {
	return len(ps.index)
}

type presolver struct {
	p   *problem.Problem
	cfg Config

	lower, upper []float64
	active       []bool
	stats        Stats
}

// Presolve reduces p. The input is never modified.
func Presolve(p *problem.Problem, cfg Config) *Result {
	ps := &presolver{
		p:      p,
		cfg:    cfg.withDefaults(),
		lower:  append([]float64(nil), p.Lower...),
		upper:  append([]float64(nil), p.Upper...),
		active: make([]bool, p.NumRows()),
	}
	for i := range ps.active {
		ps.active[i] = true
	}
	return ps.run()
}

func (ps *presolver) run() *Result {
	for j := range ps.lower {
		if ps.p.Integer[j] {
			ps.lower[j] = math.Ceil(ps.lower[j] - ps.cfg.Tolerance)
			ps.upper[j] = math.Floor(ps.upper[j] + ps.cfg.Tolerance)
		}
		if ps.lower[j] > ps.upper[j]+ps.cfg.Tolerance {
			return ps.fail(Infeasible, "column %d has contradictory bounds [%g, %g]", j, ps.lower[j], ps.upper[j])
		}
	}

	for ps.stats.Iterations < ps.cfg.MaxIterations {
		ps.stats.Iterations++
		changed := false
		for i, r := range ps.p.Rows {
			if !ps.active[i] {
				continue
			}
			ch, res := ps.row(i, r)
			if res != nil {
				return res
			}
			changed = changed || ch
		}
		ch, res := ps.dualFix()
		if res != nil {
			return res
		}
		if !changed && !ch {
			break
		}
	}
	return ps.reduce()
}

func (ps *presolver) fail(st Status, format string, args ...interface{}) *Result {
	return &Result{
		Status: st,
		Stats:  ps.stats,
		Reason: fmt.Sprintf(format, args...),
	}
}

// activity is the range of a row's left-hand side over the current bounds.
// Infinite contributions are counted instead of summed so the range of the
// row without one of its terms can still be derived.
type activity struct {
	min, max       float64
	minInf, maxInf int
}

func (ps *presolver) activity(r problem.Row) activity {
	var a activity
	for k, j := range r.Index {
		lo, hi := term(r.Value[k], ps.lower[j], ps.upper[j])
		if math.IsInf(lo, -1) {
			a.minInf++
		} else {
			a.min += lo
		}
		if math.IsInf(hi, 1) {
			a.maxInf++
		} else {
			a.max += hi
		}
	}
	return a
}

// term returns the range of v*x for x in [l, u].
func term(v, l, u float64) (float64, float64) {
	switch {
	case v > 0:
		return v * l, v * u
	case v < 0:
		return v * u, v * l
	default:
		return 0, 0
	}
}

func (a activity) lowest() float64 {
	if a.minInf > 0 {
		return math.Inf(-1)
	}
	return a.min
}

func (a activity) highest() float64 {
	if a.maxInf > 0 {
		return math.Inf(1)
	}
	return a.max
}

// without returns the activity range of the row with term (lo, hi) removed.
func (a activity) without(lo, hi float64) (float64, float64) {
	rest := func(sum float64, infs int, v float64, isInf bool, sign float64) float64 {
		switch {
		case isInf && infs == 1:
			return sum
		case infs > 0:
			return math.Inf(int(sign))
		default:
			return sum - v
		}
	}
	return rest(a.min, a.minInf, lo, math.IsInf(lo, -1), -1),
		rest(a.max, a.maxInf, hi, math.IsInf(hi, 1), 1)
}

func (ps *presolver) slack(rhs float64) float64 {
	return ps.cfg.Tolerance * (1 + math.Abs(rhs))
}

// row checks a single row for infeasibility and redundancy and propagates
// its bounds onto its columns.
func (ps *presolver) row(i int, r problem.Row) (bool, *Result) {
	a := ps.activity(r)
	lo, hi := a.lowest(), a.highest()
	tol := ps.slack(r.RHS)

	le := r.Sense == problem.LessEqual || r.Sense == problem.Equal
	ge := r.Sense == problem.GreaterEqual || r.Sense == problem.Equal

	if le && lo > r.RHS+tol || ge && hi < r.RHS-tol {
		return false, ps.fail(Infeasible, "row %d: activity range [%g, %g] cannot satisfy %s %g", i, lo, hi, r.Sense, r.RHS)
	}
	if (!le || hi <= r.RHS+tol) && (!ge || lo >= r.RHS-tol) {
		ps.active[i] = false
		ps.stats.DroppedRows++
		return true, nil
	}

	changed := false
	for k, j := range r.Index {
		v := r.Value[k]
		if v == 0 {
			continue
		}
		tlo, thi := term(v, ps.lower[j], ps.upper[j])
		restLo, restHi := a.without(tlo, thi)

		// a*x <= rhs - restLo, a*x >= rhs - restHi
		if le && !math.IsInf(restLo, -1) {
			bound := (r.RHS - restLo) / v
			if v > 0 {
				changed = ps.tightenUpper(j, bound) || changed
			} else {
				changed = ps.tightenLower(j, bound) || changed
			}
		}
		if ge && !math.IsInf(restHi, 1) {
			bound := (r.RHS - restHi) / v
			if v > 0 {
				changed = ps.tightenLower(j, bound) || changed
			} else {
				changed = ps.tightenUpper(j, bound) || changed
			}
		}
		if ps.lower[j] > ps.upper[j]+ps.cfg.Tolerance {
			return false, ps.fail(Infeasible, "row %d implies contradictory bounds [%g, %g] on column %d", i, ps.lower[j], ps.upper[j], j)
		}
	}
	return changed, nil
}

// tightenUpper lowers the upper bound of column j to bound if that is a
// meaningful improvement. Bounds of integer columns are rounded.
func (ps *presolver) tightenUpper(j int, bound float64) bool {
	if ps.p.Integer[j] {
		bound = math.Floor(bound + ps.cfg.Tolerance)
	}
	if bound >= ps.upper[j]-ps.slack(bound) {
		return false
	}
	if bound < ps.lower[j] && ps.lower[j]-bound <= ps.slack(bound) {
		bound = ps.lower[j]
	}
	ps.upper[j] = bound
	ps.stats.TightenedBounds++
	return true
}

func (ps *presolver) tightenLower(j int, bound float64) bool {
	if ps.p.Integer[j] {
		bound = math.Ceil(bound - ps.cfg.Tolerance)
	}
	if bound <= ps.lower[j]+ps.slack(bound) {
		return false
	}
	if bound > ps.upper[j] && bound-ps.upper[j] <= ps.slack(bound) {
		bound = ps.upper[j]
	}
	ps.lower[j] = bound
	ps.stats.TightenedBounds++
	return true
}

func (ps *presolver) fixed(j int) bool {
	return ps.upper[j]-ps.lower[j] <= ps.cfg.Tolerance*(1+math.Abs(ps.lower[j]))
}

// dualFix pins columns that no active row references on the bound favoured
// by the objective.
func (ps *presolver) dualFix() (bool, *Result) {
	used := make([]bool, ps.p.NumCols())
	for i, r := range ps.p.Rows {
		if !ps.active[i] {
			continue
		}
		for k, j := range r.Index {
			if r.Value[k] != 0 {
				used[j] = true
			}
		}
	}

	changed := false
	for j, c := range ps.p.Cost {
		if used[j] || ps.fixed(j) {
			continue
		}
		var v float64
		switch {
		case c > 0:
			v = ps.lower[j]
		case c < 0:
			v = ps.upper[j]
		case !math.IsInf(ps.lower[j], -1):
			v = ps.lower[j]
		case !math.IsInf(ps.upper[j], 1):
			v = ps.upper[j]
		}
		if math.IsInf(v, 0) {
			return false, ps.fail(InfeasibleOrUnbounded, "column %d improves the objective without bound", j)
		}
		ps.lower[j], ps.upper[j] = v, v
		changed = true
	}
	return changed, nil
}

// reduce builds the reduced problem from the surviving rows and columns.
func (ps *presolver) reduce() *Result {
	p := ps.p
	post := &Postsolve{
		index: make([]int, p.NumCols()),
		value: make([]float64, p.NumCols()),
	}
	out := &problem.Problem{Offset: p.Offset}

	for j := range p.Cost {
		if ps.fixed(j) {
			v := ps.lower[j]
			if p.Integer[j] {
				v = math.Round(v)
			}
			post.index[j] = -1
			post.value[j] = v
			out.Offset += p.Cost[j] * v
			ps.stats.FixedColumns++
			continue
		}
		post.index[j] = len(out.Cost)
		out.Cost = append(out.Cost, p.Cost[j])
		out.Lower = append(out.Lower, ps.lower[j])
		out.Upper = append(out.Upper, ps.upper[j])
		out.Integer = append(out.Integer, p.Integer[j])
	}

	for i, r := range p.Rows {
		if !ps.active[i] {
			continue
		}
		nr := problem.Row{Sense: r.Sense, RHS: r.RHS}
		for k, j := range r.Index {
			if rj := post.index[j]; rj >= 0 {
				nr.Index = append(nr.Index, rj)
				nr.Value = append(nr.Value, r.Value[k])
			} else {
				nr.RHS -= r.Value[k] * post.value[j]
			}
		}
		if len(nr.Index) == 0 {
			if !nr.Satisfied(0, ps.slack(r.RHS)) {
				return ps.fail(Infeasible, "row %d is violated by the fixed columns", i)
			}
			ps.stats.DroppedRows++
			continue
		}
		out.Rows = append(out.Rows, nr)
	}

	return &Result{
		Status:    Reduced,
		Problem:   out,
		Postsolve: post,
		Stats:     ps.stats,
	}
}
