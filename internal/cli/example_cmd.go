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
	"fmt"
	"time"

	"github.com/costela/milpa"
	"github.com/spf13/cobra"
)

// buildExample formulates
//
//	maximize    x + 2 y + 3 z
//	subject to  x + 2 y + 3 z <= 4
//	            x +   y       >= 1
//	            x, y, z binary
func buildExample(opts ...milpa.Option) (*milpa.Model, error) {
	model, err := milpa.NewModel("mip1", milpa.Maximize, opts...)
	if err != nil {
		return nil, err
	}

	vars := make([]*milpa.Variable, 3)
	for i, name := range []string{"x", "y", "z"} {
		if vars[i], err = model.AddBinaryVariable(name); err != nil {
			return nil, err
		}
	}
	if err := model.SetObjectiveFunction([]float64{1, 2, 3}, vars); err != nil {
		return nil, err
	}

	x, y, z := vars[0].Index(), vars[1].Index(), vars[2].Index()
	if _, err := model.AddLinearConstraint("c0", milpa.Expr{x: 1, y: 2, z: 3}, milpa.LessOrEqual, 4); err != nil {
		return nil, err
	}
	if _, err := model.AddLinearConstraint("c1", milpa.Expr{x: 1, y: 1}, milpa.GreaterOrEqual, 1); err != nil {
		return nil, err
	}
	return model, nil
}

func newExampleCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "example",
		Short: "Build and solve a small binary model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			model, err := buildExample(g.modelOptions(cmd)...)
			if err != nil {
				return err
			}

			started := time.Now()
			res, err := model.SolveWithContext(ctx, g.solveOptions()...)
			if err != nil {
				return err
			}
			if err := g.record(ctx, "", model, res, started); err != nil {
				return err
			}
			if !res.HasSolution() {
				return &ExitError{Code: exitStopped, Msg: fmt.Sprintf("no solution: %s", res.Status())}
			}

			for _, v := range model.Variables() {
				fmt.Fprintf(out, "%s=%g\n", v.Name(), res.Value(v))
			}
			fmt.Fprintf(out, "Obj: %g\n", res.ObjectiveValue())
			return nil
		},
	}
}
