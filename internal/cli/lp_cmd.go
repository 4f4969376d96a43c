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
	"io"
	"os"
	"time"

	"github.com/costela/milpa"
	"github.com/spf13/cobra"
)

const (
	exitInfeasible = 2
	exitStopped    = 3
)

func newLPCmd(g *globals) *cobra.Command {
	var solPath, ilpPath string

	cmd := &cobra.Command{
		Use:   "lp <file>",
		Short: "Solve a model file, writing the solution or an IIS of an infeasible model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			st := newStyles(out)

			model, err := milpa.ReadLPFile(args[0], g.modelOptions(cmd)...)
			if err != nil {
				return err
			}

			started := time.Now()
			opts := g.solveOptions()
			res, err := model.SolveWithContext(ctx, opts...)
			if err != nil {
				return err
			}
			if res.Status() == milpa.InfeasibleOrUnbounded && !g.noPresolve {
				// without presolve the simplex tells the two cases apart
				fmt.Fprintln(out, st.dim.Render("Model is infeasible or unbounded, solving again without presolve"))
				res, err = model.SolveWithContext(ctx, append(opts, milpa.WithPresolve(false))...)
				if err != nil {
					return err
				}
			}
			if err := g.record(ctx, args[0], model, res, started); err != nil {
				return err
			}

			switch res.Status() {
			case milpa.Optimal:
				fmt.Fprintf(out, "Optimal objective: %g\n", res.ObjectiveValue())
				if err := writeFile(solPath, res.WriteSolution); err != nil {
					return err
				}
				fmt.Fprintf(out, "Solution written to file '%s'\n", solPath)
				return nil

			case milpa.Infeasible:
				fmt.Fprintln(out)
				fmt.Fprintln(out, st.bad.Render("Model is infeasible"))
				iis, err := model.ComputeIIS(ctx, opts...)
				if err != nil {
					return fmt.Errorf("computing IIS: %w", err)
				}
				if err := writeFile(ilpPath, iis.WriteLP); err != nil {
					return err
				}
				fmt.Fprintf(out, "IIS written to file '%s'\n", ilpPath)
				return &ExitError{Code: exitInfeasible}

			case milpa.InfeasibleOrUnbounded:
				fmt.Fprintln(out, st.warn.Render("Model is infeasible or unbounded"))
				return nil

			default:
				fmt.Fprintf(out, "Optimization was stopped with status %s\n", st.status(res.Status()))
				return &ExitError{Code: exitStopped}
			}
		},
	}

	cmd.Flags().StringVar(&solPath, "sol", "model.sol", "Where to write the solution")
	cmd.Flags().StringVar(&ilpPath, "ilp", "model.ilp", "Where to write the IIS of an infeasible model")

	return cmd
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}
