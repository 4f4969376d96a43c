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

package archive

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, migrate(s.db))
	require.NoError(t, migrate(s.db))
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	first := &Run{
		Model:     "knap",
		File:      "knap.lp",
		Status:    "Optimal",
		Objective: 10,
		Nodes:     7,
		StartedAt: start,
		Duration:  1500 * time.Millisecond,
		Solutions: []Solution{
			{Objective: 10, Values: []float64{1, 1, 1}},
			{Objective: 9, Values: []float64{0, 2, 1}},
		},
	}
	id, err := s.Record(ctx, first)
	require.NoError(t, err)
	_, err = uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, first.ID)

	second := &Run{
		Model:     "infeasible",
		Status:    "Infeasible",
		Objective: math.NaN(),
		StartedAt: start.Add(time.Hour),
	}
	_, err = s.Record(ctx, second)
	require.NoError(t, err)

	runs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second.ID, runs[0].ID)
	assert.True(t, math.IsNaN(runs[0].Objective))
	assert.Equal(t, 0, runs[0].SolutionCount)

	got := runs[1]
	assert.Equal(t, "knap", got.Model)
	assert.Equal(t, "knap.lp", got.File)
	assert.Equal(t, "Optimal", got.Status)
	assert.Equal(t, 10.0, got.Objective)
	assert.Equal(t, 7, got.Nodes)
	assert.Equal(t, 2, got.SolutionCount)
	assert.True(t, start.Equal(got.StartedAt))
	assert.Equal(t, 1500*time.Millisecond, got.Duration)

	runs, err = s.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSolutions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &Run{
		Model:     "m",
		Status:    "Optimal",
		StartedAt: time.Now(),
		Solutions: []Solution{
			{Objective: -4, Values: []float64{1, 0, 1}},
			{Objective: -3, Values: []float64{1, 1, 0}},
		},
	}
	id, err := s.Record(ctx, run)
	require.NoError(t, err)

	sols, err := s.Solutions(ctx, id)
	require.NoError(t, err)
	require.Len(t, sols, 2)
	assert.Equal(t, Solution{Rank: 0, Objective: -4, Values: []float64{1, 0, 1}}, sols[0])
	assert.Equal(t, 1, sols[1].Rank)

	_, err = s.Solutions(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &Run{ID: "fixed", Model: "m", Status: "Optimal", StartedAt: time.Now(),
		Solutions: []Solution{{Objective: 1, Values: []float64{1}}}}
	_, err := s.Record(ctx, run)
	require.NoError(t, err)

	_, err = s.Record(ctx, run)
	assert.Error(t, err)

	// the failed insert left nothing behind
	sols, err := s.Solutions(ctx, "fixed")
	require.NoError(t, err)
	assert.Len(t, sols, 1)
}

func TestRecordFailureKeepsID(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := &Run{Model: "m", Status: "Optimal", StartedAt: time.Now()}
	_, err := s.Record(ctx, run)
	require.Error(t, err)
	assert.Empty(t, run.ID)
	assert.Zero(t, run.SolutionCount)

	id, err := s.Record(context.Background(), run)
	require.NoError(t, err)
	assert.Equal(t, id, run.ID)
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "runs.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Record(context.Background(), &Run{Model: "m", Status: "Optimal", StartedAt: time.Now()})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	runs, err := s.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
