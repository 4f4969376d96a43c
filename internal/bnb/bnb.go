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

// Package bnb implements best-bound-first branch-and-bound over LP
// relaxations solved by the simplex package.
package bnb

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/costela/milpa/internal/problem"
	"github.com/costela/milpa/internal/simplex"
)

const (
	DefaultTolerance            = 1e-9
	DefaultIntegralityTolerance = 1e-6
)

// Branching selects the variable a fractional node is split on.
type Branching int

const (
	// MostFractional picks the integer variable whose fractional part is
	// closest to 0.5, lowest index first.
	MostFractional Branching = iota
	// FirstFractional picks the lowest-index fractional variable.
	FirstFractional
)

func (b Branching) String() string {
	switch b {
	case MostFractional:
		return "most-fractional"
	case FirstFractional:
		return "first-fractional"
	default:
		return fmt.Sprintf("Branching(%d)", int(b))
	}
}

// Status is the outcome of a search.
type Status int

const (
	// Optimal means the search completed with an incumbent.
	Optimal Status = iota
	// Infeasible means the search completed without finding any integer
	// feasible point.
	Infeasible
	// Unbounded means an LP relaxation was unbounded.
	Unbounded
	// Interrupted means the search stopped early; the incumbent, if any, is
	// not proven optimal.
	Interrupted
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Infeasible:
		return "infeasible"
	case Unbounded:
		return "unbounded"
	case Interrupted:
		return "interrupted"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Recorder receives every integer feasible point found, in original column
// order of the searched problem, together with its objective. Calls are
// serialized.
type Recorder interface {
	Record(x []float64, objective float64)
}

// Logger receives progress messages.
type Logger interface {
	Print(v ...interface{})
}

// Config controls a search. Zero values select the defaults.
type Config struct {
	Simplex              simplex.Config
	Tolerance            float64
	IntegralityTolerance float64
	// MIPGap prunes nodes whose bound is within this relative distance of
	// the incumbent.
	MIPGap    float64
	NodeLimit int
	Threads   int
	Branching Branching
	// StopAtFirst ends the search at the first integer feasible point.
	StopAtFirst bool

	Logger Logger
	// OnNode is called, serialized, whenever a node changes status.
	OnNode func(Node)
}

func (c Config) withDefaults() Config {
	if c.Tolerance <= 0 {
		c.Tolerance = DefaultTolerance
	}
	if c.IntegralityTolerance <= 0 {
		c.IntegralityTolerance = DefaultIntegralityTolerance
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
	return c
}

type noopLogger struct{}

func (noopLogger) Print(v ...interface{}) {}

// Result of Search.
type Result struct {
	Status Status
	// X is the incumbent, nil when none was found.
	X         []float64
	Objective float64
	// Bound is the best proven lower bound on the objective.
	Bound float64
	Nodes int
}

// HasIncumbent reports whether an integer feasible point was found.
func (r *Result) HasIncumbent() bool {
	return r.X != nil
}

type search struct {
	ctx context.Context
	p   *problem.Problem
	cfg Config
	rec Recorder

	mu       sync.Mutex
	cond     *sync.Cond
	queue    nodeQueue
	inflight int
	nextID   int
	nodes    int

	incumbent []float64
	incObj    float64
	lost      float64 // best bound of nodes abandoned mid-solve

	done      bool
	stopped   bool
	unbounded bool
	err       error
}

// Search runs branch-and-bound on p. The recorder may be nil.
func Search(ctx context.Context, p *problem.Problem, cfg Config, rec Recorder) (*Result, error) {
	s := &search{
		ctx:    ctx,
		p:      p,
		cfg:    cfg.withDefaults(),
		rec:    rec,
		incObj: math.Inf(1),
		lost:   math.Inf(1),
	}
	s.cond = sync.NewCond(&s.mu)

	heap.Push(&s.queue, &node{
		Node:  Node{ID: s.id(), Parent: -1, Bound: math.Inf(-1)},
		lower: p.Lower,
		upper: p.Upper,
	})

	var wg sync.WaitGroup
	for i := 1; i < s.cfg.Threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.work()
		}()
	}
	s.work()
	wg.Wait()

	return s.result()
}

func (s *search) id() int {
	id := s.nextID
	s.nextID++
	return id
}

func (s *search) work() {
	for {
		n, ok := s.next()
		if !ok {
			return
		}
		out, err := s.solve(n)
		s.finish(n, out, err)
	}
}

// next blocks until a node is available or the search is over.
func (s *search) next() (*node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.done {
			return nil, false
		}
		if len(s.queue) == 0 {
			if s.inflight == 0 {
				s.stop(false)
				return nil, false
			}
			s.cond.Wait()
			continue
		}
		if s.ctx.Err() != nil || s.cfg.NodeLimit > 0 && s.nodes >= s.cfg.NodeLimit {
			s.stop(true)
			return nil, false
		}

		n := heap.Pop(&s.queue).(*node)
		if s.prunable(n.Bound) {
			s.observe(n, Pruned)
			continue
		}
		s.inflight++
		s.nodes++
		return n, true
	}
}

// stop ends the search and wakes all waiting workers. Must be called with
// the lock held.
func (s *search) stop(interrupted bool) {
	s.stopped = s.stopped || interrupted
	s.done = true
	s.cond.Broadcast()
}

// prunable reports whether a node with the given bound cannot improve on
// the incumbent. Must be called with the lock held.
func (s *search) prunable(bound float64) bool {
	if s.incumbent == nil {
		return false
	}
	gap := s.cfg.Tolerance * (1 + math.Abs(s.incObj))
	if rel := s.cfg.MIPGap * math.Abs(s.incObj); rel > gap {
		gap = rel
	}
	return bound >= s.incObj-gap
}

func (s *search) observe(n *node, st NodeStatus) {
	n.Status = st
	if s.cfg.OnNode != nil {
		s.cfg.OnNode(n.Node)
	}
}

type outcome struct {
	lp       *simplex.Result
	x        []float64 // rounded point when integer feasible
	children []*node
}

// solve processes a node outside the lock.
func (s *search) solve(n *node) (*outcome, error) {
	var (
		lp  *simplex.Result
		err error
	)
	if n.warm == nil {
		lp, err = simplex.Solve(s.ctx, s.p, s.cfg.Simplex)
	} else {
		lp, err = n.warm.Resolve(s.ctx, n.lower, n.upper)
		n.warm = nil
	}
	if err != nil {
		return nil, err
	}

	out := &outcome{lp: lp}
	if lp.Status != simplex.Optimal {
		return out, nil
	}

	j := s.branchVariable(lp.X)
	if j < 0 {
		// non-nil even without columns, nil means no integer point
		out.x = make([]float64, len(lp.X))
		copy(out.x, lp.X)
		for k, isInt := range s.p.Integer {
			if isInt {
				// + 0 turns -0 into 0
				out.x[k] = math.Round(out.x[k]) + 0
			}
		}
		return out, nil
	}

	v := lp.X[j]
	down := &node{
		Node:  Node{Parent: n.ID, Depth: n.Depth + 1, Bound: lp.Objective},
		lower: n.lower,
		upper: withBound(n.upper, j, math.Floor(v)),
		warm:  lp.WarmStart(),
	}
	up := &node{
		Node:  Node{Parent: n.ID, Depth: n.Depth + 1, Bound: lp.Objective},
		lower: withBound(n.lower, j, math.Ceil(v)),
		upper: n.upper,
		warm:  lp.WarmStart(),
	}
	out.children = []*node{down, up}
	return out, nil
}

// withBound returns a copy of bounds with entry j replaced.
func withBound(bounds []float64, j int, v float64) []float64 {
	out := append([]float64(nil), bounds...)
	out[j] = v
	return out
}

// branchVariable returns the integer variable to branch on, or -1 when x is
// integer feasible.
func (s *search) branchVariable(x []float64) int {
	best, bestScore := -1, 0.0
	for j, isInt := range s.p.Integer {
		if !isInt {
			continue
		}
		f := x[j] - math.Floor(x[j])
		score := math.Min(f, 1-f)
		if score <= s.cfg.IntegralityTolerance {
			continue
		}
		if s.cfg.Branching == FirstFractional {
			return j
		}
		if score > bestScore {
			best, bestScore = j, score
		}
	}
	return best
}

// finish merges the outcome of a node into the shared search state.
func (s *search) finish(n *node, out *outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.cond.Broadcast()
	s.inflight--

	if err != nil {
		if errors.Is(err, simplex.ErrInterrupted) {
			s.lost = math.Min(s.lost, n.Bound)
			s.stop(true)
			return
		}
		if s.err == nil {
			s.err = fmt.Errorf("node %d: %w", n.ID, err)
		}
		s.stop(true)
		return
	}

	lp := out.lp
	switch lp.Status {
	case simplex.Infeasible:
		s.observe(n, NodeInfeasible)
		return
	case simplex.Unbounded:
		s.unbounded = true
		s.stop(false)
		return
	}

	n.Bound = lp.Objective
	if n.Parent < 0 {
		s.cfg.Logger.Print(fmt.Sprintf("root relaxation: objective %g, %d iterations", lp.Objective, lp.Iterations))
	}

	if out.x != nil {
		s.observe(n, IntegerFeasible)
		obj := s.p.Objective(out.x)
		if s.rec != nil {
			s.rec.Record(out.x, obj)
		}
		if obj < s.incObj {
			s.incumbent, s.incObj = out.x, obj
			s.cfg.Logger.Print(fmt.Sprintf("node %d: new incumbent %g", n.ID, obj))
		}
		if s.cfg.StopAtFirst {
			s.stop(true)
		}
		return
	}

	if s.prunable(lp.Objective) {
		s.observe(n, Pruned)
		return
	}
	s.observe(n, Feasible)
	for _, c := range out.children {
		c.ID = s.id()
		heap.Push(&s.queue, c)
	}
}

func (s *search) result() (*Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &Result{
		X:         s.incumbent,
		Objective: s.incObj,
		Nodes:     s.nodes,
		Bound:     s.bound(),
	}
	switch {
	case s.unbounded:
		res.Status = Unbounded
	case s.stopped:
		res.Status = Interrupted
	case s.incumbent != nil:
		res.Status = Optimal
	default:
		res.Status = Infeasible
	}
	if res.X == nil {
		res.Objective = math.NaN()
	}
	s.cfg.Logger.Print(fmt.Sprintf("search %s after %d nodes", res.Status, res.Nodes))
	return res, nil
}

// bound returns the smallest objective any unexplored node could reach.
func (s *search) bound() float64 {
	switch {
	case s.unbounded:
		return math.Inf(-1)
	case !s.stopped:
		return s.incObj
	}
	b := math.Min(s.incObj, s.lost)
	for _, n := range s.queue {
		b = math.Min(b, n.Bound)
	}
	return b
}
