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

package simplex

import (
	"context"
	"math"
)

// Resolve re-optimizes a previously solved state after its structural bounds
// were replaced by lower/upper. The final basis of the parent is dual
// feasible for any bounds, so the dual simplex restores primal feasibility
// from there. If a nonbasic variable cannot be placed consistently with its
// reduced cost (a bound it rests on became infinite) the problem is solved
// from scratch instead.
func (s *State) Resolve(ctx context.Context, lower, upper []float64) (*Result, error) {
	s.iterations = 0
	for j := 0; j < s.n; j++ {
		if lower[j] > upper[j] {
			s.lower[j], s.upper[j] = lower[j], upper[j]
			return s.result(Infeasible), nil
		}
	}
	copy(s.lower[:s.n], lower)
	copy(s.upper[:s.n], upper)

	d := s.reducedCosts(s.cost)
	for j := 0; j < s.n; j++ {
		if s.status[j] == Basic {
			continue
		}
		if !s.place(j, d[j]) {
			return s.cold(ctx, lower, upper)
		}
	}
	s.refresh()

	if err := s.dual(ctx); err != nil {
		return nil, err
	}
	if s.primalInfeasible() {
		return s.result(Infeasible), nil
	}

	// clean up any dual infeasibility left by round-off
	st, err := s.primal(ctx, s.cost)
	if err != nil {
		return nil, err
	}
	s.refresh()
	return s.result(st), nil
}

// cold discards the basis and solves the problem with the given bounds from
// scratch.
func (s *State) cold(ctx context.Context, lower, upper []float64) (*Result, error) {
	fresh := newState(s.prob, lower, upper, s.cfg)
	return fresh.solve(ctx)
}

// place positions nonbasic j on a bound consistent with its reduced cost.
func (s *State) place(j int, d float64) bool {
	l, u := s.lower[j], s.upper[j]
	tol := s.cfg.Tolerance
	switch {
	case d > tol:
		if math.IsInf(l, -1) {
			return false
		}
		s.x[j], s.status[j] = l, AtLower
	case d < -tol:
		if math.IsInf(u, 1) {
			return false
		}
		s.x[j], s.status[j] = u, AtUpper
	case s.status[j] == AtUpper && !math.IsInf(u, 1):
		s.x[j] = u
	default:
		s.x[j], s.status[j] = restingPoint(l, u)
	}
	return true
}

// primalInfeasible reports whether some basic variable still violates its
// bounds.
func (s *State) primalInfeasible() bool {
	return s.leavingRow(false) >= 0
}

// leavingRow picks the basic variable with the largest bound violation, or
// the one with the smallest index when bland is set.
func (s *State) leavingRow(bland bool) int {
	r, worst := -1, 0.0
	for i, b := range s.head {
		v := s.violation(b)
		if v <= s.cfg.FeasibilityTolerance {
			continue
		}
		if bland {
			if r < 0 || b < s.head[r] {
				r = i
			}
			continue
		}
		if v > worst {
			r, worst = i, v
		}
	}
	return r
}

func (s *State) violation(j int) float64 {
	switch {
	case s.x[j] < s.lower[j]:
		return s.lower[j] - s.x[j]
	case s.x[j] > s.upper[j]:
		return s.x[j] - s.upper[j]
	default:
		return 0
	}
}

// dual runs the bounded dual simplex until the basis is primal feasible or
// a row proves infeasibility. On infeasibility the offending basic variable
// is left out of bounds so primalInfeasible reports it.
func (s *State) dual(ctx context.Context) error {
	degenerate := 0
	for {
		bland := degenerate > blandAfter
		r := s.leavingRow(bland)
		if r < 0 {
			return nil
		}
		if err := s.tick(ctx); err != nil {
			return err
		}

		b := s.head[r]
		toLower := s.x[b] < s.lower[b]
		d := s.reducedCosts(s.cost)
		row := s.tab.RawRowView(r)

		q, qdir := -1, 0.0
		bestRatio, bestAbs := math.Inf(1), 0.0
		for j := 0; j < s.cols; j++ {
			st := s.status[j]
			if st == Basic || s.fixed(j) {
				continue
			}
			a := row[j]
			if math.Abs(a) <= s.cfg.Tolerance {
				continue
			}
			// x_b moves by -a per unit increase of x_j
			dir := math.Copysign(1, a)
			if toLower {
				dir = -dir
			}
			if dir > 0 && st == AtUpper || dir < 0 && st == AtLower {
				continue
			}
			ratio := math.Abs(d[j]) / math.Abs(a)
			switch {
			case ratio < bestRatio-s.cfg.Tolerance:
			case ratio <= bestRatio+s.cfg.Tolerance && !bland && math.Abs(a) > bestAbs:
			default:
				continue
			}
			q, qdir, bestRatio, bestAbs = j, dir, ratio, math.Abs(a)
		}
		if q < 0 {
			return nil
		}

		target := s.upper[b]
		if toLower {
			target = s.lower[b]
		}
		rate := -row[q] * qdir
		t := (target - s.x[b]) / rate
		if bestRatio <= s.cfg.Tolerance {
			degenerate++
		} else {
			degenerate = 0
		}

		s.step(q, qdir, t)
		s.x[b] = target
		if toLower {
			s.status[b] = AtLower
		} else {
			s.status[b] = AtUpper
		}
		s.pivot(r, q)
	}
}
