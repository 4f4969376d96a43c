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
	"math"
	"time"

	"github.com/costela/milpa"
	"github.com/spf13/cobra"
)

// fixedModelTolerance is the relative objective difference accepted between
// a MIP and its fixed model.
const fixedModelTolerance = 1e-6

func newMIPCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "mip <file>",
		Short: "Solve a MIP file, list its solution pool and verify the fixed model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			st := newStyles(out)

			model, err := milpa.ReadLPFile(args[0], g.modelOptions(cmd)...)
			if err != nil {
				return err
			}
			if !model.IsMIP() {
				return &ExitError{Code: 1, Msg: "Model is not a MIP"}
			}

			started := time.Now()
			res, err := model.SolveWithContext(ctx, g.solveOptions()...)
			if err != nil {
				return err
			}
			if err := g.record(ctx, args[0], model, res, started); err != nil {
				return err
			}

			switch res.Status() {
			case milpa.Optimal:
				fmt.Fprintf(out, "Optimal objective: %g\n", res.ObjectiveValue())
			case milpa.InfeasibleOrUnbounded:
				fmt.Fprintln(out, st.warn.Render("Model is infeasible or unbounded"))
				return nil
			case milpa.Infeasible:
				fmt.Fprintln(out, st.bad.Render("Model is infeasible"))
				return &ExitError{Code: exitInfeasible}
			case milpa.Unbounded:
				fmt.Fprintln(out, st.bad.Render("Model is unbounded"))
				return &ExitError{Code: exitStopped}
			default:
				fmt.Fprintf(out, "Optimization ended with status %s\n", st.status(res.Status()))
				return &ExitError{Code: exitStopped}
			}

			fmt.Fprintln(out)
			for k, s := range res.Pool().Solutions() {
				fmt.Fprintf(out, "Solution %d has objective %g\n", k, s.Objective)
			}
			fmt.Fprintln(out)

			values, err := res.Values()
			if err != nil {
				return err
			}
			fixed, err := model.Fixed(values)
			if err != nil {
				return err
			}
			fres, err := fixed.SolveWithContext(ctx, append(g.solveOptions(), milpa.WithPresolve(false))...)
			if err != nil {
				return err
			}
			if fres.Status() != milpa.Optimal {
				return &ExitError{Code: 1, Msg: "fixed model isn't optimal"}
			}
			obj := res.ObjectiveValue()
			if diff := obj - fres.ObjectiveValue(); math.Abs(diff) > fixedModelTolerance*(1+math.Abs(obj)) {
				return &ExitError{Code: 1, Msg: "objective values are different"}
			}

			var rows [][]string
			for _, v := range fixed.Variables() {
				if x := fres.Value(v); x != 0 {
					rows = append(rows, []string{v.Name(), formatFloat(x)})
				}
			}
			fmt.Fprint(out, st.table([]string{"Variable", "Value"}, rows))
			return nil
		},
	}
}
