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
package bnb

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/costela/milpa/internal/problem"
)

const (
	delta = 0.0000001
)

var inf = math.Inf(1)

type collector struct {
	mu   sync.Mutex
	objs []float64
	xs   [][]float64
}

func (c *collector) Record(x []float64, objective float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.xs = append(c.xs, x)
	c.objs = append(c.objs, objective)
}

func binaries(n int) ([]float64, []float64, []bool) {
	lower, upper, integer := make([]float64, n), make([]float64, n), make([]bool, n)
	for j := range upper {
		upper[j] = 1
		integer[j] = true
	}
	return lower, upper, integer
}

// maximize x + 2y + 3z subject to x + 2y + 3z <= 4, x + y >= 1
func binaryExample() *problem.Problem {
	lower, upper, integer := binaries(3)
	return &problem.Problem{
		Cost:    []float64{-1, -2, -3},
		Lower:   lower,
		Upper:   upper,
		Integer: integer,
		Rows: []problem.Row{
			{Index: []int{0, 1, 2}, Value: []float64{1, 2, 3}, Sense: problem.LessEqual, RHS: 4},
			{Index: []int{0, 1}, Value: []float64{1, 1}, Sense: problem.GreaterEqual, RHS: 1},
		},
	}
}

func knapsack() *problem.Problem {
	lower, upper, integer := binaries(5)
	return &problem.Problem{
		Cost:    []float64{-10, -13, -7, -8, -9},
		Lower:   lower,
		Upper:   upper,
		Integer: integer,
		Rows: []problem.Row{
			{Index: []int{0, 1, 2, 3, 4}, Value: []float64{3, 4, 2, 3, 3}, Sense: problem.LessEqual, RHS: 10},
		},
	}
}

// maximize 5x + 4y subject to 6x + 4y <= 24, x + 2y <= 6, x and y integer
func generalIntegers() *problem.Problem {
	return &problem.Problem{
		Cost:    []float64{-5, -4},
		Lower:   []float64{0, 0},
		Upper:   []float64{inf, inf},
		Integer: []bool{true, true},
		Rows: []problem.Row{
			{Index: []int{0, 1}, Value: []float64{6, 4}, Sense: problem.LessEqual, RHS: 24},
			{Index: []int{0, 1}, Value: []float64{1, 2}, Sense: problem.LessEqual, RHS: 6},
		},
	}
}

func TestSearchBinaryExample(t *testing.T) {
	rec := &collector{}
	res, err := Search(context.Background(), binaryExample(), Config{}, rec)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	require.True(t, res.HasIncumbent())

	assert.InDelta(t, -4.0, res.Objective, delta)
	assert.InDeltaSlice(t, []float64{1, 0, 1}, res.X, delta)
	assert.InDelta(t, res.Objective, res.Bound, delta)
	assert.NotEmpty(t, rec.objs)
}

func TestSearchKnapsack(t *testing.T) {
	for _, br := range []Branching{MostFractional, FirstFractional} {
		t.Run(br.String(), func(t *testing.T) {
			res, err := Search(context.Background(), knapsack(), Config{Branching: br}, nil)
			require.NoError(t, err)
			require.Equal(t, Optimal, res.Status)
			assert.InDelta(t, -32.0, res.Objective, delta)
			assert.InDeltaSlice(t, []float64{1, 1, 0, 0, 1}, res.X, delta)
		})
	}
}

func TestSearchGeneralIntegers(t *testing.T) {
	res, err := Search(context.Background(), generalIntegers(), Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, -20.0, res.Objective, delta)
	assert.InDeltaSlice(t, []float64{4, 0}, res.X, delta)
	assert.Greater(t, res.Nodes, 1)
}

func TestSearchPureLP(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{-1, -2, 1},
		Lower:   []float64{0, 0, 0},
		Upper:   []float64{inf, inf, inf},
		Integer: []bool{false, false, false},
		Rows: []problem.Row{
			{Index: []int{0, 1, 2}, Value: []float64{2, 1, 1}, Sense: problem.LessEqual, RHS: 14},
			{Index: []int{0, 1, 2}, Value: []float64{4, 2, 3}, Sense: problem.LessEqual, RHS: 28},
			{Index: []int{0, 1, 2}, Value: []float64{2, 5, 5}, Sense: problem.LessEqual, RHS: 30},
		},
	}

	res, err := Search(context.Background(), p, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	assert.InDelta(t, -13.0, res.Objective, delta)
	assert.Equal(t, 1, res.Nodes)
}

func TestSearchNoColumns(t *testing.T) {
	rec := &collector{}
	res, err := Search(context.Background(), &problem.Problem{Offset: 2.5}, Config{}, rec)
	require.NoError(t, err)
	require.Equal(t, Optimal, res.Status)
	require.True(t, res.HasIncumbent())

	assert.NotNil(t, res.X)
	assert.Empty(t, res.X)
	assert.InDelta(t, 2.5, res.Objective, delta)
	assert.Equal(t, []float64{2.5}, rec.objs)
}

func TestSearchInfeasible(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{1},
		Lower:   []float64{0},
		Upper:   []float64{10},
		Integer: []bool{true},
		Rows: []problem.Row{
			{Index: []int{0}, Value: []float64{2}, Sense: problem.Equal, RHS: 1},
		},
	}

	res, err := Search(context.Background(), p, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Infeasible, res.Status)
	assert.False(t, res.HasIncumbent())
	assert.Equal(t, 3, res.Nodes)
}

func TestSearchUnboundedRelaxation(t *testing.T) {
	p := &problem.Problem{
		Cost:    []float64{-1, 0},
		Lower:   []float64{0, 0},
		Upper:   []float64{inf, inf},
		Integer: []bool{true, false},
		Rows: []problem.Row{
			{Index: []int{0, 1}, Value: []float64{1, -1}, Sense: problem.LessEqual, RHS: 1},
		},
	}

	res, err := Search(context.Background(), p, Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Unbounded, res.Status)
}

func TestSearchStopAtFirst(t *testing.T) {
	rec := &collector{}
	res, err := Search(context.Background(), knapsack(), Config{StopAtFirst: true}, rec)
	require.NoError(t, err)
	assert.Equal(t, Interrupted, res.Status)
	require.True(t, res.HasIncumbent())
	assert.Len(t, rec.objs, 1)
}

func TestSearchNodeLimit(t *testing.T) {
	res, err := Search(context.Background(), generalIntegers(), Config{NodeLimit: 1}, nil)
	require.NoError(t, err)
	assert.Equal(t, Interrupted, res.Status)
	assert.Equal(t, 1, res.Nodes)
	assert.False(t, res.HasIncumbent())
	assert.InDelta(t, -21.0, res.Bound, delta, "bound comes from the root relaxation")
}

func TestSearchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Search(ctx, knapsack(), Config{}, nil)
	require.NoError(t, err)
	assert.Equal(t, Interrupted, res.Status)
	assert.False(t, res.HasIncumbent())
}

func TestSearchParallel(t *testing.T) {
	serial, err := Search(context.Background(), knapsack(), Config{Threads: 1}, nil)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		rec := &collector{}
		res, err := Search(context.Background(), knapsack(), Config{Threads: 4}, rec)
		require.NoError(t, err)
		require.Equal(t, Optimal, res.Status)
		assert.InDelta(t, serial.Objective, res.Objective, delta)
		for k, obj := range rec.objs {
			assert.GreaterOrEqual(t, obj, res.Objective-delta, "recorded solution %d beats the optimum", k)
		}
	}
}

func TestSearchIncumbentNeverWorsens(t *testing.T) {
	var incumbents []float64
	logger := loggerFunc(func(v ...interface{}) {})
	rec := recorderFunc(func(x []float64, obj float64) {
		if len(incumbents) == 0 || obj < incumbents[len(incumbents)-1] {
			incumbents = append(incumbents, obj)
		}
	})

	res, err := Search(context.Background(), knapsack(), Config{Logger: logger}, rec)
	require.NoError(t, err)
	require.NotEmpty(t, incumbents)
	assert.InDelta(t, res.Objective, incumbents[len(incumbents)-1], delta)
}

func TestSearchTree(t *testing.T) {
	nodes := map[int]Node{}
	cfg := Config{
		OnNode: func(n Node) { nodes[n.ID] = n },
	}

	_, err := Search(context.Background(), generalIntegers(), cfg, nil)
	require.NoError(t, err)

	root, ok := nodes[0]
	require.True(t, ok)
	assert.Equal(t, -1, root.Parent)
	assert.Equal(t, 0, root.Depth)

	for id, n := range nodes {
		if id == 0 {
			continue
		}
		parent, ok := nodes[n.Parent]
		require.True(t, ok, "node %d has unknown parent %d", id, n.Parent)
		assert.Equal(t, parent.Depth+1, n.Depth)
		assert.NotEqual(t, Unsolved, n.Status)
	}
}

type loggerFunc func(v ...interface{})

func (f loggerFunc) Print(v ...interface{}) { f(v...) }

type recorderFunc func(x []float64, obj float64)

func (f recorderFunc) Record(x []float64, obj float64) { f(x, obj) }
