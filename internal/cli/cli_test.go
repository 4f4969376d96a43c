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

package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/costela/milpa"
	"github.com/costela/milpa/internal/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const knapsackLP = `\ Model knap
Maximize
 obj: 3 x + 2 y + 4 z + 1
Subject To
 c1: x + y + 2 z <= 4
 c2: x + 3 y >= 1
Bounds
 y <= 3
Binaries
 x z
Generals
 y
End
`

const infeasibleLP = `\ Model broken
Minimize
 obj: x + y
Subject To
 sum: x + y <= 1
 low: x >= 2
 loose: y <= 5
End
`

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeLP(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("boom")))
	assert.Equal(t, 2, ExitCode(&ExitError{Code: 2}))
	assert.Equal(t, "exit status 3", (&ExitError{Code: 3}).Error())
}

func TestExampleCmd(t *testing.T) {
	out, err := executeCmd(t, "example")
	require.NoError(t, err)
	assert.Equal(t, "x=1\ny=0\nz=1\nObj: 4\n", out)
}

func TestExampleCmdVerbose(t *testing.T) {
	out, err := executeCmd(t, "example", "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "Obj: 4")
}

func TestLPCmdOptimal(t *testing.T) {
	path := writeLP(t, "knap.lp", knapsackLP)
	sol := filepath.Join(t.TempDir(), "knap.sol")

	out, err := executeCmd(t, "lp", path, "--sol", sol)
	require.NoError(t, err)
	assert.Contains(t, out, "Optimal objective: 10\n")

	data, err := os.ReadFile(sol)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "# Solution for model knap\n# Objective value = 10\n"))
}

func TestLPCmdInfeasible(t *testing.T) {
	path := writeLP(t, "broken.lp", infeasibleLP)
	ilp := filepath.Join(t.TempDir(), "broken.ilp")

	out, err := executeCmd(t, "lp", path, "--ilp", ilp)
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, out, "Model is infeasible")
	assert.Contains(t, out, "IIS written to file")

	iis, err := milpa.ReadLPFile(ilp)
	require.NoError(t, err)
	assert.Equal(t, "broken_iis", iis.Name())
	assert.Equal(t, 2, iis.ConstraintCount())
}

func TestLPCmdUnbounded(t *testing.T) {
	path := writeLP(t, "ray.lp", "Maximize\n x\nEnd\n")

	out, err := executeCmd(t, "lp", path)
	require.Error(t, err)
	assert.Equal(t, 3, ExitCode(err))
	assert.Contains(t, out, "solving again without presolve")
	assert.Contains(t, out, "Optimization was stopped with status Unbounded")
}

func TestLPCmdInfeasibleOrUnbounded(t *testing.T) {
	path := writeLP(t, "ray.lp", "Maximize\n x\nSubject To\n c: x - y <= 1\nGeneral\n y\nEnd\n")

	out, err := executeCmd(t, "lp", path)
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))
	assert.Contains(t, out, "solving again without presolve")
	assert.Contains(t, out, "Model is infeasible or unbounded\n")
	assert.NotContains(t, out, "Optimization was stopped")
}

func TestLPCmdMissingFile(t *testing.T) {
	_, err := executeCmd(t, "lp", filepath.Join(t.TempDir(), "nope.lp"))
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
}

func TestMIPCmd(t *testing.T) {
	path := writeLP(t, "knap.lp", knapsackLP)

	out, err := executeCmd(t, "mip", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Optimal objective: 10\n")
	assert.Contains(t, out, "Solution 0 has objective 10\n")
	assert.Contains(t, out, "Variable")
}

func TestMIPCmdRejectsLP(t *testing.T) {
	path := writeLP(t, "broken.lp", infeasibleLP)

	_, err := executeCmd(t, "mip", path)
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.EqualError(t, err, "Model is not a MIP")
}

func TestMIPCmdStatuses(t *testing.T) {
	tests := []struct {
		name string
		lp   string
		code int
		want string
	}{
		{"infeasible", "Minimize\n x\nSubject To\n c: 2 x = 3\nGeneral\n x\nEnd\n", 2, "Model is infeasible"},
		{"infeasible or unbounded", "Maximize\n x\nGeneral\n x\nEnd\n", 0, "Model is infeasible or unbounded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCmd(t, "mip", writeLP(t, "m.lp", tt.lp))
			assert.Equal(t, tt.code, ExitCode(err))
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestRunsCmd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := executeCmd(t, "example", "--archive", db)
	require.NoError(t, err)
	_, err = executeCmd(t, "mip", writeLP(t, "knap.lp", knapsackLP), "--archive", db)
	require.NoError(t, err)

	out, err := executeCmd(t, "runs", "--archive", db)
	require.NoError(t, err)
	assert.Contains(t, out, "mip1")
	assert.Contains(t, out, "knap")
	assert.Contains(t, out, "Optimal")

	store, err := archive.Open(db)
	require.NoError(t, err)
	runs, err := store.List(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.Len(t, runs, 2)

	out, err = executeCmd(t, "runs", runs[0].ID, "--archive", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Objective")
}

func TestRunsCmdEmpty(t *testing.T) {
	out, err := executeCmd(t, "runs", "--archive", filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	assert.Contains(t, out, "No runs archived.")
}

func TestRunsCmdRequiresArchive(t *testing.T) {
	_, err := executeCmd(t, "runs")
	assert.Error(t, err)
}
