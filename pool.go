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
	"math"
	"sync"
)

// Solution is an assignment recorded in a Pool. Values are indexed like the
// model's variables.
type Solution struct {
	Values    []float64
	Objective float64
	Feasible  bool
	// Seq is the insertion sequence number within the pool.
	Seq int
}

// Pool keeps the best distinct solutions found during a solve, ordered from
// best to worst according to the model's direction. Solutions with equal
// objective keep their insertion order.
type Pool struct {
	mu        sync.Mutex
	dir       direction
	capacity  int
	tol       float64
	solutions []Solution
	seq       int
	proven    bool
}

// NewPool returns an empty pool for a model with the given direction.
// Capacities below 1 select DefaultPoolSize; tol is the distance under
// which two assignments are considered the same.
func NewPool(dir direction, capacity int, tol float64) *Pool {
	if capacity < 1 {
		capacity = DefaultPoolSize
	}
	return &Pool{
		dir:      dir,
		capacity: capacity,
		tol:      tol,
	}
}

// Record adds s to the pool and reports whether it was kept. Duplicates of
// an already recorded assignment and solutions worse than a full pool's
// worst entry are dropped.
func (p *Pool) Record(s Solution) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, have := range p.solutions {
		if p.same(have.Values, s.Values) {
			return false
		}
	}

	s.Values = append([]float64(nil), s.Values...)
	s.Seq = p.seq
	p.seq++

	pos := len(p.solutions)
	for i, have := range p.solutions {
		if p.better(s.Objective, have.Objective) {
			pos = i
			break
		}
	}
	if pos >= p.capacity {
		return false
	}

	p.solutions = append(p.solutions, Solution{})
	copy(p.solutions[pos+1:], p.solutions[pos:])
	p.solutions[pos] = s
	if len(p.solutions) > p.capacity {
		p.solutions = p.solutions[:p.capacity]
	}
	return true
}

func (p *Pool) same(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for j := range a {
		if math.Abs(a[j]-b[j]) > p.tol*(1+math.Abs(a[j])) {
			return false
		}
	}
	return true
}

// better reports whether objective a is strictly better than b.
func (p *Pool) better(a, b float64) bool {
	eps := p.tol * (1 + math.Abs(b))
	if p.dir == Maximize {
		return a > b+eps
	}
	return a < b-eps
}

// Len returns the number of recorded solutions.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.solutions)
}

// Best returns the best recorded solution.
func (p *Pool) Best() (Solution, error) {
	return p.Kth(0)
}

// Kth returns the k-th best solution, counting from 0.
func (p *Pool) Kth(k int) (Solution, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if k < 0 || k >= len(p.solutions) {
		return Solution{}, ErrSolutionIndex
	}
	s := p.solutions[k]
	s.Values = append([]float64(nil), s.Values...)
	return s, nil
}

// Solutions returns copies of all recorded solutions, best first.
func (p *Pool) Solutions() []Solution {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Solution, len(p.solutions))
	for i, s := range p.solutions {
		s.Values = append([]float64(nil), s.Values...)
		out[i] = s
	}
	return out
}

// ProvenOptimal reports whether the best solution was proven optimal.
func (p *Pool) ProvenOptimal() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.proven
}

func (p *Pool) setProven(proven bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.proven = proven
}
