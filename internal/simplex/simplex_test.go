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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costela/milpa/internal/problem"
)

const (
	delta = 0.0000001 // acceptable numerical deviation for test results
)

var inf = math.Inf(1)

func row(sense problem.Sense, rhs float64, idx []int, vals []float64) problem.Row {
	return problem.Row{Index: idx, Value: vals, Sense: sense, RHS: rhs}
}

// maximize x1 + 2 x2 - x3, written as a minimization
func textbookLP() *problem.Problem {
	return &problem.Problem{
		Cost:    []float64{-1, -2, 1},
		Lower:   []float64{0, 0, 0},
		Upper:   []float64{inf, inf, inf},
		Integer: []bool{false, false, false},
		Rows: []problem.Row{
			row(problem.LessEqual, 14, []int{0, 1, 2}, []float64{2, 1, 1}),
			row(problem.LessEqual, 28, []int{0, 1, 2}, []float64{4, 2, 3}),
			row(problem.LessEqual, 30, []int{0, 1, 2}, []float64{2, 5, 5}),
		},
	}
}

func TestSolveLP(t *testing.T) {
	res, err := Solve(context.Background(), textbookLP(), Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)

	assert.InDelta(t, -13.0, res.Objective, delta)
	for i, expected := range []float64{5, 4, 0} {
		assert.InDelta(t, expected, res.X[i], delta)
	}
}

// min x0 + x1 + 3 with ranged and lower-bounded rows, which needs phase 1
func TestSolveNeedsPhaseOne(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1, 1},
		Offset:  3,
		Lower:   []float64{0, 1},
		Upper:   []float64{4, inf},
		Integer: []bool{false, false},
		Rows: []problem.Row{
			row(problem.LessEqual, 7, []int{1}, []float64{1}),
			row(problem.GreaterEqual, 5, []int{0, 1}, []float64{1, 2}),
			row(problem.LessEqual, 15, []int{0, 1}, []float64{1, 2}),
			row(problem.GreaterEqual, 6, []int{0, 1}, []float64{3, 2}),
		},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)

	assert.InDelta(t, 0.5, res.X[0], delta)
	assert.InDelta(t, 2.25, res.X[1], delta)
	assert.InDelta(t, 5.75, res.Objective, delta)
}

func TestSolveEquality(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1, 2},
		Lower:   []float64{0, 0},
		Upper:   []float64{10, 10},
		Integer: []bool{false, false},
		Rows: []problem.Row{
			row(problem.Equal, 4, []int{0, 1}, []float64{1, 1}),
			row(problem.LessEqual, 3, []int{0}, []float64{1}),
		},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)

	assert.InDelta(t, 3.0, res.X[0], delta)
	assert.InDelta(t, 1.0, res.X[1], delta)
	assert.InDelta(t, 5.0, res.Objective, delta)
}

func TestSolveFreeVariable(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1},
		Lower:   []float64{math.Inf(-1)},
		Upper:   []float64{inf},
		Integer: []bool{false},
		Rows: []problem.Row{
			row(problem.GreaterEqual, -5, []int{0}, []float64{1}),
		},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, -5.0, res.X[0], delta)
}

func TestSolveWithoutRows(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1, -1},
		Lower:   []float64{-2, 0},
		Upper:   []float64{3, 7},
		Integer: []bool{false, false},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, -9.0, res.Objective, delta)
}

func TestSolveInfeasible(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1, 1},
		Lower:   []float64{0, 0},
		Upper:   []float64{inf, inf},
		Integer: []bool{false, false},
		Rows: []problem.Row{
			row(problem.LessEqual, -1, []int{0, 1}, []float64{1, 1}),
		},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
	assert.Nil(t, res.WarmStart())
}

func TestSolveContradictoryBounds(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1},
		Lower:   []float64{5},
		Upper:   []float64{2},
		Integer: []bool{false},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
}

func TestSolveUnbounded(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{-1, 0},
		Lower:   []float64{0, 0},
		Upper:   []float64{inf, inf},
		Integer: []bool{false, false},
		Rows: []problem.Row{
			row(problem.LessEqual, 1, []int{0, 1}, []float64{1, -1}),
		},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	assert.Equal(t, Unbounded, res.Status)
}

// Beale's example cycles under the textbook largest-coefficient rule.
func TestSolveDegenerateCycling(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{-0.75, 20, -0.5, 6},
		Lower:   []float64{0, 0, 0, 0},
		Upper:   []float64{inf, inf, inf, inf},
		Integer: []bool{false, false, false, false},
		Rows: []problem.Row{
			row(problem.LessEqual, 0, []int{0, 1, 2, 3}, []float64{0.25, -8, -1, 9}),
			row(problem.LessEqual, 0, []int{0, 1, 2, 3}, []float64{0.5, -12, -0.5, 3}),
			row(problem.LessEqual, 1, []int{2}, []float64{1}),
		},
	}

	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, -1.25, res.Objective, delta)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Solve(ctx, textbookLP(), Config{})
	assert.ErrorIs(t, err, ErrInterrupted)
}

func TestSolveIterationLimit(t *testing.T) {
	_, err := Solve(context.Background(), textbookLP(), Config{IterationLimit: 1})
	assert.ErrorIs(t, err, ErrNumericalInstability)
}

func TestResolveMatchesColdSolve(t *testing.T) {
	p := textbookLP()
	ctx := context.Background()

	root, err := Solve(ctx, p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, root.Status)

	lower := append([]float64(nil), p.Lower...)
	upper := append([]float64(nil), p.Upper...)
	upper[0] = 4 // x1 was 5 at the root

	warm, err := root.WarmStart().Resolve(ctx, lower, upper)
	require.NoError(t, err)
	require.Equal(t, Optimal, warm.Status)

	q := p.Clone()
	q.Upper = upper
	cold, err := Solve(ctx, q, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, cold.Status)

	assert.InDelta(t, cold.Objective, warm.Objective, delta)
	assert.LessOrEqual(t, warm.X[0], 4.0+delta)

	// the root state must be untouched by the child
	assert.InDelta(t, -13.0, root.Objective, delta)
}

func TestResolveDetectsInfeasibility(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{-1, -1},
		Lower:   []float64{0, 0},
		Upper:   []float64{1, 1},
		Integer: []bool{false, false},
		Rows: []problem.Row{
			row(problem.GreaterEqual, 1.5, []int{0, 1}, []float64{1, 1}),
		},
	}
	ctx := context.Background()

	root, err := Solve(ctx, p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, root.Status)

	warm, err := root.WarmStart().Resolve(ctx, []float64{0, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.Equal(t, Infeasible, warm.Status)
}

// Fixing a variable at its relaxed optimum must not move the objective.
func TestFixingAtOptimumKeepsObjective(t *testing.T) {
	ctx := context.Background()
	p := textbookLP()

	root, err := Solve(ctx, p, Config{})
	require.NoError(t, err)
	require.Equal(t, Optimal, root.Status)

	for j := range p.Cost {
		lower := append([]float64(nil), p.Lower...)
		upper := append([]float64(nil), p.Upper...)
		lower[j], upper[j] = root.X[j], root.X[j]

		res, err := root.WarmStart().Resolve(ctx, lower, upper)
		require.NoError(t, err)
		require.Equal(t, Optimal, res.Status)
		assert.InDelta(t, root.Objective, res.Objective, DefaultTolerance*(1+math.Abs(root.Objective)))
	}
}

func TestBasis(t *testing.T) {
	p := textbookLP()
	res, err := Solve(context.Background(), p, Config{})
	require.NoError(t, err)

	head, status := res.Basis()
	assert.Len(t, head, p.NumRows())
	assert.Len(t, status, p.NumCols()+p.NumRows())

	basic := 0
	for _, st := range status {
		if st == Basic {
			basic++
		}
	}
	assert.Equal(t, p.NumRows(), basic)
}
