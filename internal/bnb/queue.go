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

package bnb

import (
	"container/heap"

	"github.com/costela/milpa/internal/simplex"
)

// NodeStatus is the life cycle state of a search node.
type NodeStatus int

const (
	Unsolved NodeStatus = iota
	Feasible
	IntegerFeasible
	NodeInfeasible
	Pruned
)

func (s NodeStatus) String() string {
	switch s {
	case Unsolved:
		return "unsolved"
	case Feasible:
		return "feasible"
	case IntegerFeasible:
		return "integer feasible"
	case NodeInfeasible:
		return "infeasible"
	case Pruned:
		return "pruned"
	default:
		return "unknown"
	}
}

// Node describes a search node to Config.OnNode observers.
type Node struct {
	ID     int
	Parent int // -1 for the root
	Depth  int
	// Bound is the relaxation objective of the parent, or of the node itself
	// once it has been solved.
	Bound  float64
	Status NodeStatus
}

type node struct {
	Node

	lower, upper []float64
	warm         *simplex.State // nil for the root
}

// nodeQueue orders nodes by bound, then by id.
type nodeQueue []*node

var _ heap.Interface = (*nodeQueue)(nil)

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].Bound != q[j].Bound {
		return q[i].Bound < q[j].Bound
	}
	return q[i].ID < q[j].ID
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x interface{}) { *q = append(*q, x.(*node)) }

func (q *nodeQueue) Pop() interface{} {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}
