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

// Package simplex solves LP relaxations of problem.Problem snapshots with a
// bounded-variable simplex method on a dense tableau.
//
// Every row i of the snapshot gets a logical variable r_i so that the system
// becomes A*x - r = 0 with bounds on both x and r:
//
//	row  a*x <= b   →  r in (-inf, b]
//	row  a*x >= b   →  r in [b, +inf)
//	row  a*x  = b   →  r in [b, b]
//
// The initial basis consists of the logicals. Rows whose logical cannot take
// the activity of the starting point get an artificial column; phase 1
// drives the artificials to zero, phase 2 optimizes the real costs. A solved
// State can be cloned and re-solved with tightened bounds using the dual
// simplex, which is what branch-and-bound uses for child nodes.
package simplex

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/costela/milpa/internal/problem"
)

var (
	ErrNumericalInstability = errors.New("simplex: no convergence within the iteration limit")
	ErrInterrupted          = errors.New("simplex: interrupted")
)

const (
	// DefaultTolerance is used for reduced costs, pivot magnitudes and
	// objective comparisons when Config.Tolerance is zero.
	DefaultTolerance = 1e-9
	// DefaultFeasibilityTolerance bounds the allowed violation of variable
	// and row bounds when Config.FeasibilityTolerance is zero.
	DefaultFeasibilityTolerance = 1e-7

	// blandAfter is the number of consecutive degenerate pivots after which
	// pricing switches from Dantzig's rule to Bland's rule.
	blandAfter = 25
	// refreshEvery controls how often basic values are recomputed from the
	// nonbasic ones to limit drift.
	refreshEvery = 50
	// expelTol is the smallest entry accepted when pivoting artificial
	// variables out of the basis after phase 1.
	expelTol = 1e-7
)

// Status is the outcome of an LP solve.
type Status int

const (
	Optimal Status = iota
	Infeasible
	Unbounded
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	default:
		return "unknown"
	}
}

// Config holds the numeric settings of a solve.
type Config struct {
	Tolerance            float64
	FeasibilityTolerance float64
	// IterationLimit caps simplex iterations per call; zero picks a limit
	// proportional to the problem size.
	IterationLimit int
}

func (c Config) withDefaults(rows, cols int) Config {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.FeasibilityTolerance <= 0 {
		c.FeasibilityTolerance = DefaultFeasibilityTolerance
	}
	if c.IterationLimit <= 0 {
		c.IterationLimit = 1000 + 50*(rows+cols)
	}
	return c
}

// VarStatus is the position of a variable relative to the basis.
type VarStatus int8

const (
	Basic VarStatus = iota
	AtLower
	AtUpper
	// AtZero marks a nonbasic free variable resting at zero.
	AtZero
)

// Result is the outcome of Solve or Resolve.
type Result struct {
	Status Status
	// Objective is the minimization objective including the offset; only
	// meaningful when Status is Optimal.
	Objective  float64
	X          []float64
	Iterations int

	state *State
}

// WarmStart returns an independent copy of the final basis, suitable for
// State.Resolve with tightened bounds. It returns nil unless the result is
// optimal.
func (r *Result) WarmStart() *State {
	if r.Status != Optimal || r.state == nil {
		return nil
	}
	return r.state.Clone()
}

// Basis returns the basic variable of each row and the status of every
// column (structurals first, then one logical per row).
func (r *Result) Basis() (head []int, status []VarStatus) {
	if r.state == nil {
		return nil, nil
	}
	s := r.state
	return append([]int(nil), s.head...), append([]VarStatus(nil), s.status[:s.n+s.m]...)
}

// State is a simplex tableau together with its basis.
type State struct {
	prob *problem.Problem
	cfg  Config

	m, n int // rows, structural columns
	cols int // structural + logical + artificial columns

	tab    *mat.Dense // B^-1 * [A | -I | artificials], nil when m == 0
	cost   []float64
	lower  []float64
	upper  []float64
	x      []float64
	status []VarStatus
	head   []int
	art    []bool

	iterations int
}

// Solve runs the two-phase primal simplex on p from scratch.
func Solve(ctx context.Context, p *problem.Problem, cfg Config) (*Result, error) {
	s := newState(p, p.Lower, p.Upper, cfg)
	return s.solve(ctx)
}

func newState(p *problem.Problem, lower, upper []float64, cfg Config) *State {
	m, n := p.NumRows(), p.NumCols()
	s := &State{
		prob: p,
		cfg:  cfg.withDefaults(m, n),
		m:    m,
		n:    n,
	}

	// structurals start at a finite bound, or at zero when free
	s.lower = make([]float64, n+m, n+2*m)
	s.upper = make([]float64, n+m, n+2*m)
	s.x = make([]float64, n+m, n+2*m)
	s.status = make([]VarStatus, n+m, n+2*m)
	copy(s.lower, lower)
	copy(s.upper, upper)
	for j := 0; j < n; j++ {
		s.x[j], s.status[j] = restingPoint(s.lower[j], s.upper[j])
	}

	type artificial struct {
		row   int
		sigma float64
		value float64
	}
	var arts []artificial

	s.head = make([]int, m)
	for i, r := range p.Rows {
		lj := n + i
		switch r.Sense {
		case problem.LessEqual:
			s.lower[lj], s.upper[lj] = math.Inf(-1), r.RHS
		case problem.GreaterEqual:
			s.lower[lj], s.upper[lj] = r.RHS, math.Inf(1)
		default:
			s.lower[lj], s.upper[lj] = r.RHS, r.RHS
		}

		act := r.Activity(s.x)
		if act >= s.lower[lj]-s.cfg.FeasibilityTolerance && act <= s.upper[lj]+s.cfg.FeasibilityTolerance {
			s.x[lj] = act
			s.status[lj] = Basic
			s.head[i] = lj
			continue
		}

		// park the logical on the violated bound and let an artificial
		// absorb the residual
		if act > s.upper[lj] {
			s.x[lj], s.status[lj] = s.upper[lj], AtUpper
		} else {
			s.x[lj], s.status[lj] = s.lower[lj], AtLower
		}
		d := act - s.x[lj]
		sigma := 1.0
		if d < 0 {
			sigma = -1
		}
		arts = append(arts, artificial{row: i, sigma: sigma, value: math.Abs(d)})
	}

	s.cols = n + m + len(arts)
	s.art = make([]bool, s.cols)
	s.cost = make([]float64, s.cols)
	copy(s.cost, p.Cost)
	for _, a := range arts {
		k := len(s.x)
		s.lower = append(s.lower, 0)
		s.upper = append(s.upper, math.Inf(1))
		s.x = append(s.x, a.value)
		s.status = append(s.status, Basic)
		s.art[k] = true
		s.head[a.row] = k
	}

	if m == 0 {
		return s
	}

	// T = B^-1 * A_full where B is diagonal with -1 (logical) or -sigma
	// (artificial), so every row is just scaled by -1 or -sigma.
	s.tab = mat.NewDense(m, s.cols, nil)
	scale := make([]float64, m)
	for i := range scale {
		scale[i] = -1
	}
	for k, a := range arts {
		scale[a.row] = -a.sigma
		s.tab.Set(a.row, n+m+k, -a.sigma*scale[a.row])
	}
	for i, r := range p.Rows {
		row := s.tab.RawRowView(i)
		for k, j := range r.Index {
			row[j] += r.Value[k] * scale[i]
		}
		row[n+i] = -scale[i]
	}
	return s
}

// restingPoint picks the nonbasic position of a variable with the given
// bounds.
func restingPoint(l, u float64) (float64, VarStatus) {
	switch {
	case !math.IsInf(l, -1):
		return l, AtLower
	case !math.IsInf(u, 1):
		return u, AtUpper
	default:
		return 0, AtZero
	}
}

// Clone returns a deep copy of the state.
func (s *State) Clone() *State {
	c := *s
	if s.tab != nil {
		c.tab = mat.DenseCopyOf(s.tab)
	}
	c.cost = append([]float64(nil), s.cost...)
	c.lower = append([]float64(nil), s.lower...)
	c.upper = append([]float64(nil), s.upper...)
	c.x = append([]float64(nil), s.x...)
	c.status = append([]VarStatus(nil), s.status...)
	c.head = append([]int(nil), s.head...)
	c.art = append([]bool(nil), s.art...)
	c.iterations = 0
	return &c
}

func (s *State) solve(ctx context.Context) (*Result, error) {
	for j := 0; j < s.n; j++ {
		if s.lower[j] > s.upper[j] {
			return s.result(Infeasible), nil
		}
	}

	if s.hasArtificials() {
		phase1 := make([]float64, s.cols)
		for j, a := range s.art {
			if a {
				phase1[j] = 1
			}
		}
		if _, err := s.primal(ctx, phase1); err != nil {
			return nil, err
		}
		s.refresh()

		var infeasibility float64
		for j, a := range s.art {
			if a {
				infeasibility += math.Abs(s.x[j])
			}
		}
		if infeasibility > s.cfg.FeasibilityTolerance*math.Max(1, float64(s.m)) {
			return s.result(Infeasible), nil
		}
		s.retireArtificials()
	}

	st, err := s.primal(ctx, s.cost)
	if err != nil {
		return nil, err
	}
	s.refresh()
	return s.result(st), nil
}

func (s *State) hasArtificials() bool {
	return s.cols > s.n+s.m
}

// retireArtificials pivots zero-valued artificials out of the basis where
// possible and fixes all artificials at zero for good. An artificial that
// cannot be pivoted out marks a redundant row and stays basic at zero.
func (s *State) retireArtificials() {
	for r := 0; r < s.m; r++ {
		k := s.head[r]
		if !s.art[k] {
			continue
		}
		row := s.tab.RawRowView(r)
		q := -1
		for j := 0; j < s.n+s.m; j++ {
			if s.status[j] != Basic && math.Abs(row[j]) > expelTol {
				q = j
				break
			}
		}
		if q < 0 {
			continue
		}
		s.x[k] = 0
		s.status[k] = AtLower
		s.pivot(r, q)
	}
	for j, a := range s.art {
		if a {
			s.lower[j], s.upper[j] = 0, 0
			if s.status[j] != Basic {
				s.x[j] = 0
			}
		}
	}
}

// tick accounts for one iteration and checks for cancellation.
func (s *State) tick(ctx context.Context) error {
	s.iterations++
	if s.iterations > s.cfg.IterationLimit {
		return ErrNumericalInstability
	}
	if ctx.Err() != nil {
		return ErrInterrupted
	}
	if s.iterations%refreshEvery == 0 {
		s.refresh()
	}
	return nil
}

// primal runs the bounded primal simplex for the given costs, starting from
// a primal feasible basis.
func (s *State) primal(ctx context.Context, cost []float64) (Status, error) {
	degenerate := 0
	for {
		if err := s.tick(ctx); err != nil {
			return 0, err
		}

		d := s.reducedCosts(cost)
		bland := degenerate > blandAfter
		q, dir := s.price(d, bland)
		if q < 0 {
			return Optimal, nil
		}

		r, t, flip := s.ratio(q, dir, bland)
		if math.IsInf(t, 1) {
			return Unbounded, nil
		}
		if t <= s.cfg.Tolerance {
			degenerate++
		} else {
			degenerate = 0
		}

		s.step(q, dir, t)
		if flip {
			if dir > 0 {
				s.x[q], s.status[q] = s.upper[q], AtUpper
			} else {
				s.x[q], s.status[q] = s.lower[q], AtLower
			}
			continue
		}
		s.leave(r, -s.tab.At(r, q)*dir)
		s.pivot(r, q)
	}
}

// reducedCosts computes d = c - T^T c_B.
func (s *State) reducedCosts(cost []float64) []float64 {
	d := make([]float64, s.cols)
	copy(d, cost)
	if s.m == 0 {
		return d
	}
	cb := make([]float64, s.m)
	for i, b := range s.head {
		cb[i] = cost[b]
	}
	var y mat.VecDense
	y.MulVec(s.tab.T(), mat.NewVecDense(s.m, cb))
	floats.Sub(d, y.RawVector().Data)
	return d
}

func (s *State) fixed(j int) bool {
	return s.lower[j] == s.upper[j]
}

// price selects the entering variable and its direction of movement, or -1
// when the basis is optimal for the given reduced costs.
func (s *State) price(d []float64, bland bool) (int, float64) {
	q, dir, best := -1, 0.0, 0.0
	for j := 0; j < s.cols; j++ {
		st := s.status[j]
		if st == Basic || s.fixed(j) {
			continue
		}
		var score, jdir float64
		switch {
		case (st == AtLower || st == AtZero) && d[j] < -s.cfg.Tolerance:
			score, jdir = -d[j], 1
		case (st == AtUpper || st == AtZero) && d[j] > s.cfg.Tolerance:
			score, jdir = d[j], -1
		default:
			continue
		}
		if bland {
			return j, jdir
		}
		if score > best {
			q, dir, best = j, jdir, score
		}
	}
	return q, dir
}

// ratio performs the bounded ratio test for entering variable q moving in
// direction dir. It returns the blocking row (or -1), the step length and
// whether the step is a bound flip of q itself.
func (s *State) ratio(q int, dir float64, bland bool) (int, float64, bool) {
	tol := s.cfg.Tolerance
	r := -1
	best := math.Inf(1)
	if !math.IsInf(s.lower[q], -1) && !math.IsInf(s.upper[q], 1) {
		best = s.upper[q] - s.lower[q]
	}
	var bestAlpha float64

	for i := 0; i < s.m; i++ {
		alpha := -s.tab.At(i, q) * dir
		if math.Abs(alpha) <= tol {
			continue
		}
		b := s.head[i]
		var lim float64
		if alpha < 0 {
			if math.IsInf(s.lower[b], -1) {
				continue
			}
			lim = (s.x[b] - s.lower[b]) / -alpha
		} else {
			if math.IsInf(s.upper[b], 1) {
				continue
			}
			lim = (s.upper[b] - s.x[b]) / alpha
		}
		if lim < 0 {
			lim = 0
		}

		switch {
		case r < 0 && lim <= best+tol:
		case r >= 0 && lim < best-tol:
		case r >= 0 && lim <= best+tol:
			if bland {
				if b > s.head[r] {
					continue
				}
			} else if math.Abs(alpha) <= math.Abs(bestAlpha) {
				continue
			}
		default:
			continue
		}
		r, best, bestAlpha = i, lim, alpha
	}
	return r, best, r < 0 && !math.IsInf(best, 1)
}

// step moves nonbasic q by dir*t and updates the basic variables.
func (s *State) step(q int, dir, t float64) {
	if t == 0 {
		return
	}
	for i, b := range s.head {
		s.x[b] -= s.tab.At(i, q) * dir * t
	}
	s.x[q] += dir * t
}

// leave moves the basic variable of row r onto the bound it reached, given
// the rate alpha at which it was moving.
func (s *State) leave(r int, alpha float64) {
	b := s.head[r]
	if alpha < 0 || s.fixed(b) {
		s.x[b], s.status[b] = s.lower[b], AtLower
	} else {
		s.x[b], s.status[b] = s.upper[b], AtUpper
	}
}

// pivot makes q basic in row r.
func (s *State) pivot(r, q int) {
	pr := s.tab.RawRowView(r)
	floats.Scale(1/pr[q], pr)
	pr[q] = 1
	for i := 0; i < s.m; i++ {
		if i == r {
			continue
		}
		ri := s.tab.RawRowView(i)
		if f := ri[q]; f != 0 {
			floats.AddScaled(ri, -f, pr)
			ri[q] = 0
		}
	}
	s.head[r] = q
	s.status[q] = Basic
}

// refresh recomputes basic values from the nonbasic ones: x_B = -T_N x_N.
func (s *State) refresh() {
	for i := 0; i < s.m; i++ {
		row := s.tab.RawRowView(i)
		var v float64
		for j := 0; j < s.cols; j++ {
			if s.status[j] != Basic && s.x[j] != 0 {
				v -= row[j] * s.x[j]
			}
		}
		s.x[s.head[i]] = v
	}
}

func (s *State) result(st Status) *Result {
	res := &Result{
		Status:     st,
		Iterations: s.iterations,
		state:      s,
	}
	if st != Optimal {
		return res
	}
	res.X = make([]float64, s.n)
	for j := range res.X {
		v := s.x[j]
		switch {
		case math.Abs(v-s.lower[j]) <= s.cfg.FeasibilityTolerance:
			v = s.lower[j]
		case math.Abs(v-s.upper[j]) <= s.cfg.FeasibilityTolerance:
			v = s.upper[j]
		case math.Abs(v) <= s.cfg.Tolerance:
			v = 0
		}
		res.X[j] = v
	}
	res.Objective = s.prob.Objective(res.X)
	return res
}
