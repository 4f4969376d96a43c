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

// Package cli implements the milpa command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/costela/milpa"
	"github.com/costela/milpa/internal/archive"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// ExitError carries a process exit code. An empty Msg means the command
// already reported the outcome.
type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Msg
}

// ExitCode maps the error returned by a command onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return 1
}

// globals holds the persistent flags shared by all subcommands.
type globals struct {
	noPresolve bool
	timeLimit  time.Duration
	nodeLimit  int
	threads    int
	verbose    bool
	archive    string
}

func (g *globals) register(fs *pflag.FlagSet) {
	fs.BoolVar(&g.noPresolve, "no-presolve", false, "Disable presolve")
	fs.DurationVar(&g.timeLimit, "time-limit", 0, "Stop the search after this long (0 = no limit)")
	fs.IntVar(&g.nodeLimit, "node-limit", 0, "Stop the search after this many branch-and-bound nodes (0 = no limit)")
	fs.IntVar(&g.threads, "threads", 1, "Number of branch-and-bound workers")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "Log solver progress to stderr")
	fs.StringVar(&g.archive, "archive", "", "Record runs in this SQLite database")
}

func (g *globals) solveOptions() []milpa.SolveOption {
	return []milpa.SolveOption{
		milpa.WithPresolve(!g.noPresolve),
		milpa.WithTimeLimit(g.timeLimit),
		milpa.WithNodeLimit(g.nodeLimit),
		milpa.WithThreads(g.threads),
	}
}

// modelOptions wires the --verbose logger into new models.
func (g *globals) modelOptions(cmd *cobra.Command) []milpa.Option {
	if !g.verbose {
		return nil
	}
	return []milpa.Option{milpa.WithLogger(newSlogLogger(cmd.ErrOrStderr()))}
}

// slogLogger adapts a slog.Logger to milpa.Logger.
type slogLogger struct {
	logger *slog.Logger
}

func newSlogLogger(w io.Writer) *slogLogger {
	return &slogLogger{
		logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

func (l *slogLogger) Print(v ...interface{}) {
	l.logger.Info(fmt.Sprint(v...))
}

// record archives a finished solve when --archive is set.
func (g *globals) record(ctx context.Context, file string, model *milpa.Model, res *milpa.SolveResult, started time.Time) error {
	if g.archive == "" {
		return nil
	}
	store, err := archive.Open(g.archive)
	if err != nil {
		return err
	}
	defer store.Close()

	run := &archive.Run{
		Model:     model.Name(),
		File:      file,
		Status:    res.Status().String(),
		Objective: res.ObjectiveValue(),
		Nodes:     res.NodeCount(),
		StartedAt: started,
		Duration:  res.Runtime(),
	}
	for _, s := range res.Pool().Solutions() {
		run.Solutions = append(run.Solutions, archive.Solution{Objective: s.Objective, Values: s.Values})
	}
	if _, err := store.Record(ctx, run); err != nil {
		return fmt.Errorf("archiving run: %w", err)
	}
	return nil
}

// NewRootCmd creates the top-level "milpa" command and registers all
// subcommands.
func NewRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "milpa",
		Short:         "Mixed-integer linear programming solver",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	g.register(root.PersistentFlags())

	root.AddCommand(
		newLPCmd(g),
		newMIPCmd(g),
		newExampleCmd(g),
		newRunsCmd(g),
	)

	return root
}
