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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func objectives(p *Pool) []float64 {
	var out []float64
	for _, s := range p.Solutions() {
		out = append(out, s.Objective)
	}
	return out
}

func TestPoolOrdering(t *testing.T) {
	pool := NewPool(Minimize, 3, 1e-7)

	assert.True(t, pool.Record(Solution{Values: []float64{1}, Objective: 5}))
	assert.True(t, pool.Record(Solution{Values: []float64{2}, Objective: 3}))
	assert.True(t, pool.Record(Solution{Values: []float64{3}, Objective: 3}))
	assert.True(t, pool.Record(Solution{Values: []float64{4}, Objective: 4}))

	assert.Equal(t, []float64{3, 3, 4}, objectives(pool))

	// ties keep insertion order
	first, err := pool.Kth(0)
	require.NoError(t, err)
	second, err := pool.Kth(1)
	require.NoError(t, err)
	assert.Equal(t, []float64{2}, first.Values)
	assert.Equal(t, []float64{3}, second.Values)
	assert.Less(t, first.Seq, second.Seq)

	// worse than the worst entry of a full pool
	assert.False(t, pool.Record(Solution{Values: []float64{5}, Objective: 9}))
	assert.Equal(t, 3, pool.Len())
}

func TestPoolMaximize(t *testing.T) {
	pool := NewPool(Maximize, 0, 1e-7)

	pool.Record(Solution{Values: []float64{1}, Objective: 1})
	pool.Record(Solution{Values: []float64{2}, Objective: 7})
	pool.Record(Solution{Values: []float64{3}, Objective: 4})

	assert.Equal(t, []float64{7, 4, 1}, objectives(pool))

	best, err := pool.Best()
	require.NoError(t, err)
	assert.Equal(t, 7.0, best.Objective)
}

func TestPoolDeduplicates(t *testing.T) {
	pool := NewPool(Minimize, 5, 1e-7)

	assert.True(t, pool.Record(Solution{Values: []float64{1, 2}, Objective: 3}))
	assert.False(t, pool.Record(Solution{Values: []float64{1, 2 + 1e-9}, Objective: 3}))
	assert.True(t, pool.Record(Solution{Values: []float64{1, 3}, Objective: 4}))

	assert.Equal(t, 2, pool.Len())
}

func TestPoolKth(t *testing.T) {
	pool := NewPool(Minimize, 2, 1e-7)

	_, err := pool.Best()
	assert.ErrorIs(t, err, ErrSolutionIndex)

	values := []float64{1}
	pool.Record(Solution{Values: values, Objective: 1})
	values[0] = 42

	s, err := pool.Kth(0)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, s.Values)

	s.Values[0] = 42
	s, _ = pool.Kth(0)
	assert.Equal(t, []float64{1}, s.Values)

	_, err = pool.Kth(-1)
	assert.ErrorIs(t, err, ErrSolutionIndex)
	_, err = pool.Kth(1)
	assert.ErrorIs(t, err, ErrSolutionIndex)

	assert.False(t, pool.ProvenOptimal())
}
