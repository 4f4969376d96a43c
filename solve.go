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
	"context"
	"math"
	"time"

	"github.com/costela/milpa/internal/bnb"
	"github.com/costela/milpa/internal/presolve"
	"github.com/costela/milpa/internal/problem"
)

// Solve attempts to find an optimal solution to the model.
// Information about the solution can be queried from the returned
// SolveResult value. Infeasibility, unboundedness and interruption are
// reported through SolveResult.Status, not as errors.
func (model *Model) Solve(opts ...SolveOption) (*SolveResult, error) {
	return model.SolveWithContext(context.Background(), opts...)
}

// SolveWithContext wraps Solve() with a context. If the context is cancelled
// or times out, the solution search is aborted and the result has status
// UserInterrupted, carrying the best solution found so far if any.
func (model *Model) SolveWithContext(ctx context.Context, opts ...SolveOption) (*SolveResult, error) {
	cfg := newSolveConfig(opts)
	ctx, cancel := withLimits(ctx, cfg)
	defer cancel()

	start := time.Now()
	orig, names := model.snapshot()
	dir := model.Direction()

	res := &SolveResult{
		name:      model.Name(),
		dir:       dir,
		names:     names,
		objective: math.NaN(),
		bound:     math.NaN(),
		pool:      NewPool(dir, cfg.PoolSize, cfg.FeasibilityTolerance),
	}
	defer func() { res.runtime = time.Since(start) }()

	if err := orig.Validate(); err != nil {
		return nil, translateError(res.name, err)
	}

	prob := orig
	var post *presolve.Postsolve
	if cfg.Presolve {
		pre := presolve.Presolve(orig, presolve.Config{
			MaxIterations: cfg.PresolveIterations,
			Tolerance:     cfg.FeasibilityTolerance,
		})
		model.logf("presolve: %s: %s", pre.Status, pre.Stats)
		switch pre.Status {
		case presolve.Infeasible:
			model.logf("presolve: %s", pre.Reason)
			res.status = Infeasible
			return res, nil
		case presolve.InfeasibleOrUnbounded:
			model.logf("presolve: %s", pre.Reason)
			res.status = InfeasibleOrUnbounded
			return res, nil
		}
		prob, post = pre.Problem, pre.Postsolve
		model.logf("presolve: %d columns, %d rows left of %d, %d",
			prob.NumCols(), prob.NumRows(), orig.NumCols(), orig.NumRows())
	}

	rec := &poolRecorder{
		orig: orig,
		post: post,
		pool: res.pool,
		sign: res.sign(),
		tol:  cfg.FeasibilityTolerance,
	}
	out, err := bnb.Search(ctx, prob, cfg.bnb(model.logger), rec)
	if err != nil {
		if interrupted(err) {
			res.status = UserInterrupted
			return res, nil
		}
		return nil, translateError(res.name, err)
	}

	res.nodes = out.Nodes
	res.bound = res.sign() * out.Bound
	if out.HasIncumbent() {
		res.values = rec.lift(out.X)
		res.objective = res.sign() * orig.Objective(res.values)
	}

	switch out.Status {
	case bnb.Optimal:
		res.status = Optimal
		res.pool.setProven(true)
	case bnb.Infeasible:
		res.status = Infeasible
	case bnb.Unbounded:
		res.status = Unbounded
		if orig.HasIntegers() {
			res.status = InfeasibleOrUnbounded
		}
	case bnb.Interrupted:
		res.status = UserInterrupted
	}
	model.logf("solve: %s after %d nodes", res.status, res.nodes)

	return res, nil
}

// sign converts between the model's direction and the internal
// minimization.
func (res *SolveResult) sign() float64 {
	if res.dir == Maximize {
		return -1
	}
	return 1
}

// poolRecorder lifts branch-and-bound solutions back to the model's
// variables before recording them.
type poolRecorder struct {
	orig *problem.Problem
	post *presolve.Postsolve
	pool *Pool
	sign float64
	tol  float64
}

func (r *poolRecorder) lift(x []float64) []float64 {
	if r.post == nil {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	return r.post.Lift(x)
}

func (r *poolRecorder) Record(x []float64, _ float64) {
	values := r.lift(x)
	r.pool.Record(Solution{
		Values:    values,
		Objective: r.sign * r.orig.Objective(values),
		Feasible:  r.orig.Feasible(values, r.tol),
	})
}
