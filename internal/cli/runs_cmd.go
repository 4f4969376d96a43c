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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/costela/milpa/internal/archive"
	"github.com/spf13/cobra"
)

func newRunsCmd(g *globals) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List archived runs, or the solutions of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if g.archive == "" {
				return errors.New("--archive is required")
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			st := newStyles(out)

			store, err := archive.Open(g.archive)
			if err != nil {
				return err
			}
			defer store.Close()

			if len(args) == 1 {
				sols, err := store.Solutions(ctx, args[0])
				if err != nil {
					return err
				}
				var rows [][]string
				for _, s := range sols {
					values := make([]string, len(s.Values))
					for j, v := range s.Values {
						values[j] = formatFloat(v)
					}
					rows = append(rows, []string{strconv.Itoa(s.Rank), formatFloat(s.Objective), strings.Join(values, " ")})
				}
				fmt.Fprint(out, st.table([]string{"#", "Objective", "Values"}, rows))
				return nil
			}

			runs, err := store.List(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, st.dim.Render("No runs archived."))
				return nil
			}
			var rows [][]string
			for _, r := range runs {
				rows = append(rows, []string{
					r.ID,
					r.Model,
					r.Status,
					formatFloat(r.Objective),
					strconv.Itoa(r.SolutionCount),
					strconv.Itoa(r.Nodes),
					r.StartedAt.Local().Format(time.DateTime),
					r.Duration.String(),
				})
			}
			fmt.Fprint(out, st.table(
				[]string{"ID", "Model", "Status", "Objective", "Solutions", "Nodes", "Started", "Duration"}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of runs to list (0 = all)")

	return cmd
}
