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

// Package problem holds the immutable column/row snapshot of a model that
// the solver internals (presolve, simplex, branch-and-bound) operate on.
//
// The snapshot is always a minimization: callers negate the objective of
// maximization models before handing it over and negate the values they get
// back.
package problem

import (
	"fmt"
	"math"
)

// Sense is the relational operator of a row.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
	Equal
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	case Equal:
		return "="
	default:
		return fmt.Sprintf("Sense(%d)", int(s))
	}
}

// Row is a sparse linear constraint: sum(Value[k] * x[Index[k]]) Sense RHS.
type Row struct {
	Index []int
	Value []float64
	Sense Sense
	RHS   float64
}

// Problem is a minimization problem in column/row form.
type Problem struct {
	Cost    []float64
	Offset  float64
	Lower   []float64
	Upper   []float64
	Integer []bool
	Rows    []Row
}

// NumCols returns the number of variables.
func (p *Problem) NumCols() int {
	return len(p.Cost)
}

// NumRows returns the number of constraints.
func (p *Problem) NumRows() int {
	return len(p.Rows)
}

// HasIntegers reports whether any variable carries an integrality restriction.
func (p *Problem) HasIntegers() bool {
	for _, isInt := range p.Integer {
		if isInt {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the problem.
func (p *Problem) Clone() *Problem {
	c := &Problem{
		Cost:    append([]float64(nil), p.Cost...),
		Offset:  p.Offset,
		Lower:   append([]float64(nil), p.Lower...),
		Upper:   append([]float64(nil), p.Upper...),
		Integer: append([]bool(nil), p.Integer...),
		Rows:    make([]Row, len(p.Rows)),
	}
	for i, r := range p.Rows {
		c.Rows[i] = Row{
			Index: append([]int(nil), r.Index...),
			Value: append([]float64(nil), r.Value...),
			Sense: r.Sense,
			RHS:   r.RHS,
		}
	}
	return c
}

// Validate checks the structural invariants of the snapshot: consistent
// column slice lengths and in-range row indices.
func (p *Problem) Validate() error {
	n := p.NumCols()
	if len(p.Lower) != n || len(p.Upper) != n || len(p.Integer) != n {
		return fmt.Errorf("inconsistent column data: %d costs, %d lower, %d upper, %d integrality",
			n, len(p.Lower), len(p.Upper), len(p.Integer))
	}
	for i, r := range p.Rows {
		if len(r.Index) != len(r.Value) {
			return fmt.Errorf("row %d: inconsistent number of indices and coefficients: %d != %d", i, len(r.Index), len(r.Value))
		}
		for _, j := range r.Index {
			if j < 0 || j >= n {
				return fmt.Errorf("row %d: variable index %d out of range [0,%d)", i, j, n)
			}
		}
	}
	return nil
}

// Objective evaluates the objective (including offset) at x.
func (p *Problem) Objective(x []float64) float64 {
	z := p.Offset
	for j, c := range p.Cost {
		z += c * x[j]
	}
	return z
}

// Activity evaluates the left-hand side of row r at x.
func (r Row) Activity(x []float64) float64 {
	var a float64
	for k, j := range r.Index {
		a += r.Value[k] * x[j]
	}
	return a
}

// Satisfied reports whether activity a satisfies the row within tol.
func (r Row) Satisfied(a, tol float64) bool {
	switch r.Sense {
	case LessEqual:
		return a <= r.RHS+tol
	case GreaterEqual:
		return a >= r.RHS-tol
	default:
		return math.Abs(a-r.RHS) <= tol
	}
}

// Feasible reports whether x satisfies all bounds and rows within tol.
func (p *Problem) Feasible(x []float64, tol float64) bool {
	for j := range p.Cost {
		if x[j] < p.Lower[j]-tol || x[j] > p.Upper[j]+tol {
			return false
		}
	}
	for _, r := range p.Rows {
		if !r.Satisfied(r.Activity(x), tol*(1+math.Abs(r.RHS))) {
			return false
		}
	}
	return true
}
