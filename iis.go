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
	"fmt"
	"io"
	"math"

	"github.com/costela/milpa/internal/bnb"
	"github.com/costela/milpa/internal/problem"
	"github.com/costela/milpa/internal/simplex"
)

// IIS is an irreducible infeasible subsystem: a set of constraints and
// variable bounds that is infeasible, while dropping any single member
// makes it feasible.
type IIS struct {
	model *Model

	// Constraints holds the indices of the member constraints.
	Constraints []int
	// LowerBounds and UpperBounds hold the indices of the variables whose
	// respective bound is a member.
	LowerBounds []int
	UpperBounds []int
}

type iisElement struct {
	kind  int
	index int
}

// iisNodeLimit bounds the integer feasibility check when no node limit is
// configured; unbounded integer variables can make it run forever.
const iisNodeLimit = 10000

const (
	iisRow = iota
	iisLower
	iisUpper
)

// ComputeIIS finds an irreducible infeasible subsystem of an infeasible
// model with a deletion filter over all constraints and finite variable
// bounds. Each member candidate costs one feasibility solve: an LP, plus a
// branch-and-bound search stopping at the first integer point when the
// model has integer variables and the LP is feasible.
//
// A feasible model yields ErrModelFeasible.
func (model *Model) ComputeIIS(ctx context.Context, opts ...SolveOption) (*IIS, error) {
	cfg := newSolveConfig(opts)
	ctx, cancel := withLimits(ctx, cfg)
	defer cancel()

	p, _ := model.snapshot()
	for j := range p.Cost {
		p.Cost[j] = 0
	}
	p.Offset = 0

	var elems []iisElement
	for i := range p.Rows {
		elems = append(elems, iisElement{iisRow, i})
	}
	for j := range p.Lower {
		if !math.IsInf(p.Lower[j], -1) {
			elems = append(elems, iisElement{iisLower, j})
		}
		if !math.IsInf(p.Upper[j], 1) {
			elems = append(elems, iisElement{iisUpper, j})
		}
	}

	active := make([]bool, len(elems))
	for k := range active {
		active[k] = true
	}

	feasible, err := model.iisFeasible(ctx, p, elems, active, cfg)
	if err != nil {
		return nil, err
	}
	if feasible {
		return nil, ErrModelFeasible
	}

	for k := range elems {
		active[k] = false
		feasible, err := model.iisFeasible(ctx, p, elems, active, cfg)
		if err != nil {
			return nil, err
		}
		if feasible {
			active[k] = true
		}
	}

	iis := &IIS{model: model}
	for k, e := range elems {
		if !active[k] {
			continue
		}
		switch e.kind {
		case iisRow:
			iis.Constraints = append(iis.Constraints, e.index)
		case iisLower:
			iis.LowerBounds = append(iis.LowerBounds, e.index)
		case iisUpper:
			iis.UpperBounds = append(iis.UpperBounds, e.index)
		}
	}
	model.logf("iis: %d constraints, %d lower bounds, %d upper bounds of %d candidates",
		len(iis.Constraints), len(iis.LowerBounds), len(iis.UpperBounds), len(elems))

	return iis, nil
}

// iisSubproblem restricts p to the active elements.
func iisSubproblem(p *problem.Problem, elems []iisElement, active []bool) *problem.Problem {
	sub := &problem.Problem{
		Cost:    p.Cost,
		Lower:   make([]float64, len(p.Lower)),
		Upper:   make([]float64, len(p.Upper)),
		Integer: p.Integer,
	}
	for j := range sub.Lower {
		sub.Lower[j], sub.Upper[j] = math.Inf(-1), math.Inf(1)
	}
	for k, e := range elems {
		if !active[k] {
			continue
		}
		switch e.kind {
		case iisRow:
			sub.Rows = append(sub.Rows, p.Rows[e.index])
		case iisLower:
			sub.Lower[e.index] = p.Lower[e.index]
		case iisUpper:
			sub.Upper[e.index] = p.Upper[e.index]
		}
	}
	return sub
}

func (model *Model) iisFeasible(ctx context.Context, p *problem.Problem, elems []iisElement, active []bool, cfg SolveConfig) (bool, error) {
	sub := iisSubproblem(p, elems, active)

	lp, err := simplex.Solve(ctx, sub, cfg.simplex())
	if err != nil {
		return false, translateError(model.Name(), err)
	}
	if lp.Status == simplex.Infeasible {
		return false, nil
	}
	if !sub.HasIntegers() {
		return true, nil
	}

	bcfg := cfg.bnb(noopLogger{})
	bcfg.StopAtFirst = true
	if bcfg.NodeLimit <= 0 {
		bcfg.NodeLimit = iisNodeLimit
	}
	out, err := bnb.Search(ctx, sub, bcfg, nil)
	if err != nil {
		return false, translateError(model.Name(), err)
	}
	switch {
	case out.HasIncumbent():
		return true, nil
	case out.Status == bnb.Infeasible:
		return false, nil
	case ctx.Err() != nil:
		return false, translateError(model.Name(), ctx.Err())
	default:
		// undecided within the node limit: keep the element
		return true, nil
	}
}

// Model returns the subsystem as a standalone model with a zero objective,
// keeping only the member constraints and bounds.
func (iis *IIS) Model() *Model {
	src := iis.model
	src.mu.RLock()
	defer src.mu.RUnlock()

	sub := &Model{
		name:     src.name + "_iis",
		dir:      Minimize,
		byName:   make(map[string]int),
		rowNames: make(map[string]int),
		logger:   src.logger,
	}
	lower := make(map[int]bool, len(iis.LowerBounds))
	for _, j := range iis.LowerBounds {
		lower[j] = true
	}
	upper := make(map[int]bool, len(iis.UpperBounds))
	for _, j := range iis.UpperBounds {
		upper[j] = true
	}

	for j, c := range src.cols {
		col := column{name: c.name, typ: c.typ, lower: math.Inf(-1), upper: math.Inf(1)}
		if col.typ == BinaryVariable {
			// binary implies [0,1]; keep the domain integral only
			col.typ = IntegerVariable
		}
		if lower[j] {
			col.lower = c.lower
		}
		if upper[j] {
			col.upper = c.upper
		}
		sub.vars = append(sub.vars, &Variable{model: sub, index: j})
		sub.cols = append(sub.cols, col)
		sub.byName[c.name] = j
	}
	for _, i := range iis.Constraints {
		r := src.rows[i]
		r.index = append([]int(nil), r.index...)
		r.value = append([]float64(nil), r.value...)
		sub.rowNames[r.name] = len(sub.rows)
		sub.rows = append(sub.rows, r)
	}
	return sub
}

// WriteLP writes the subsystem in LP format.
func (iis *IIS) WriteLP(w io.Writer) error {
	if err := iis.Model().WriteLP(w); err != nil {
		return fmt.Errorf("writing IIS: %w", err)
	}
	return nil
}
