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

/*
Milpa is a library for modelling and solving mixed-integer linear
programming problems, written in pure Go.

As an example of the API, the model of the following problem:

	Maximize:
	  z = x + 2 y + 3 z
	With:
	  x, y, z binary
	Subject to:
	  x + 2 y + 3 z <= 4
	  x + y >= 1

can be expressed with milpa like this:

	package main

	import (
		"fmt"

		"github.com/costela/milpa"
	)

	func main() {
		model, _ := milpa.NewModel("example", milpa.Maximize)
		x, _ := model.AddBinaryVariable("x")
		y, _ := model.AddBinaryVariable("y")
		z, _ := model.AddBinaryVariable("z")
		model.SetObjectiveFunction([]float64{1, 2, 3}, []*milpa.Variable{x, y, z})

		model.AddLinearConstraint("c0", milpa.Expr{x.Index(): 1, y.Index(): 2, z.Index(): 3}, milpa.LessOrEqual, 4)
		model.AddLinearConstraint("c1", milpa.Expr{x.Index(): 1, y.Index(): 1}, milpa.GreaterOrEqual, 1)

		result, _ := model.Solve() // you should check for errors

		fmt.Printf("solution optimal? %t\n", result.Status() == milpa.Optimal)
		fmt.Printf("z = %f\n", result.ObjectiveValue())
		fmt.Printf("x = %f\n", result.Value(x))
	}

Solving runs presolve, an LP relaxation with the bounded simplex method and
best-bound branch-and-bound for the integer variables. Every integer
feasible point found on the way is kept in the result's solution Pool.
*/
package milpa

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/costela/milpa/internal/problem"
)

/* Types */

type Model struct {
	mu       sync.RWMutex
	name     string
	dir      direction
	vars     []*Variable
	cols     []column
	rows     []row
	byName   map[string]int
	rowNames map[string]int
	offset   float64
	logger   Logger
}

type direction int

const (
	Minimize direction = iota
	Maximize
)

func (d direction) String() string {
	if d == Maximize {
		return "maximize"
	}
	return "minimize"
}

// Operator is the relation between a constraint's expression and its
// right-hand side.
type Operator int

const (
	LessOrEqual Operator = iota
	GreaterOrEqual
	Equal
)

func (op Operator) String() string {
	switch op {
	case LessOrEqual:
		return "<="
	case GreaterOrEqual:
		return ">="
	case Equal:
		return "="
	default:
		return fmt.Sprintf("Operator(%d)", int(op))
	}
}

func (op Operator) sense() problem.Sense {
	switch op {
	case GreaterOrEqual:
		return problem.GreaterEqual
	case Equal:
		return problem.Equal
	default:
		return problem.LessEqual
	}
}

// Expr is a sparse linear expression mapping variable indices to
// coefficients.
type Expr map[int]float64

// Constraint is a read-only copy of a model constraint.
type Constraint struct {
	Name     string
	Expr     Expr
	Operator Operator
	RHS      float64
}

type row struct {
	name  string
	index []int // ascending
	value []float64
	op    Operator
	rhs   float64
}

func (r row) expr() Expr {
	e := make(Expr, len(r.index))
	for k, j := range r.index {
		e[j] = r.value[k]
	}
	return e
}

/* Model related functions */

// NewModel instantiates a new linear programming model, providing a
// name (purely informational) and a optimization direction (either
// Minimize or Maximize)
func NewModel(name string, dir direction, opts ...Option) (*Model, error) {
	model := &Model{
		name:     name,
		dir:      dir,
		byName:   make(map[string]int),
		rowNames: make(map[string]int),
		logger:   noopLogger{},
	}

	for _, opt := range opts {
		if err := opt(model); err != nil {
			return nil, fmt.Errorf("applying model option: %w", err)
		}
	}

	return model, nil
}

// Clone returns a copy of the model. Variables of the copy belong to the
// copy.
func (model *Model) Clone() *Model {
	model.mu.RLock()
	defer model.mu.RUnlock()

	newModel := &Model{
		name:     model.name,
		dir:      model.dir,
		cols:     append([]column(nil), model.cols...),
		rows:     make([]row, len(model.rows)),
		byName:   make(map[string]int, len(model.byName)),
		rowNames: make(map[string]int, len(model.rowNames)),
		offset:   model.offset,
		logger:   model.logger,
	}
	newModel.vars = make([]*Variable, len(model.vars))
	for i, v := range model.vars {
		newModel.vars[i] = &Variable{
			model: newModel,
			index: v.index,
		}
	}
	for i, r := range model.rows {
		r.index = append([]int(nil), r.index...)
		r.value = append([]float64(nil), r.value...)
		newModel.rows[i] = r
	}
	for k, v := range model.byName {
		newModel.byName[k] = v
	}
	for k, v := range model.rowNames {
		newModel.rowNames[k] = v
	}

	return newModel
}

// Name returns the name provided upon instantiation of a model
func (model *Model) Name() string {
	model.mu.RLock()
	defer model.mu.RUnlock()

	return model.name
}

// SetDirection changes the direction of the model's optimization
func (model *Model) SetDirection(dir direction) {
	model.mu.Lock()
	defer model.mu.Unlock()

	model.dir = dir
}

// Direction returns the model's current optimization direction
func (model *Model) Direction() direction {
	model.mu.RLock()
	defer model.mu.RUnlock()

	return model.dir
}

// IsMIP reports whether any variable is integer or binary.
func (model *Model) IsMIP() bool {
	model.mu.RLock()
	defer model.mu.RUnlock()

	for _, c := range model.cols {
		if c.typ != ContinuousVariable {
			return true
		}
	}
	return false
}

/* Column-related functions */

func (model *Model) VariableCount() int {
	model.mu.RLock()
	defer model.mu.RUnlock()

	return len(model.vars)
}

// Variables returns a new slice with the model's variables. Changes to the
// slice will not be reflected in the model.
func (model *Model) Variables() []*Variable {
	model.mu.RLock()
	defer model.mu.RUnlock()

	return append([]*Variable(nil), model.vars...)
}

// VariableByName returns the variable with the given name, or nil.
func (model *Model) VariableByName(name string) *Variable {
	model.mu.RLock()
	defer model.mu.RUnlock()

	if i, ok := model.byName[name]; ok {
		return model.vars[i]
	}
	return nil
}

// AddVariable adds a variable to the linear programming model and
// returns a reference to it.
// A freshly instantiated variable has the default type of
// ContinuousVariable, no bounds and an objective coefficient of 1.
//
// A variable is bound to its model. Using it with a different model
// results in ErrInvalidIndex.
//
// Empty names will automatically replaced by a unique name.
func (model *Model) AddVariable(name string) (v *Variable, err error) {
	return model.AddDefinedVariable(name, ContinuousVariable, 1, math.Inf(-1), math.Inf(1))
}

// AddBinaryVariable is a convenience function for adding a single
// named binary variable to the model, with a default coefficient of 1.
// Empty names will automatically replaced by a unique name.
func (model *Model) AddBinaryVariable(name string) (v *Variable, err error) {
	return model.AddDefinedVariable(name, BinaryVariable, 1, 0, 1)
}

// AddIntegerVariable is a convenience function for adding a single
// named unbounded integer variable to the model, with a default
// objective coefficient of 1.
// Empty names will automatically replaced by a unique name.
func (model *Model) AddIntegerVariable(name string) (v *Variable, err error) {
	return model.AddDefinedVariable(name, IntegerVariable, 1, math.Inf(-1), math.Inf(1))
}

// AddDefinedVariable add a variable to the linear programming model
// with its attributes passed as arguments.
// If varType is BinaryVariable, the bounds are ignored.
// Empty names will automatically replaced by a unique name; names already
// in use are rejected.
func (model *Model) AddDefinedVariable(name string, varType VariableType, coefficient, lowerBound, upperBound float64) (*Variable, error) {
	model.mu.Lock()
	defer model.mu.Unlock()

	size := len(model.vars)
	if name == "" {
		name = fmt.Sprintf("V%d", size)
	}
	if _, ok := model.byName[name]; ok {
		return nil, fmt.Errorf("variable name %q already in use", name)
	}

	if varType == BinaryVariable {
		lowerBound, upperBound = 0, 1
	}
	if math.IsInf(lowerBound, 0) {
		lowerBound = math.Inf(-1)
	}
	if math.IsInf(upperBound, 0) {
		upperBound = math.Inf(1)
	}

	v := &Variable{
		model: model,
		index: size,
	}
	model.vars = append(model.vars, v)
	model.cols = append(model.cols, column{
		name:  name,
		typ:   varType,
		coef:  coefficient,
		lower: lowerBound,
		upper: upperBound,
	})
	model.byName[name] = size

	return v, nil
}

// SetObjectiveFunction defines the objective function for the model as
// a slice of coefficients and a slice of its respective variables.
// E.g.: an objective function of the form 2x+3y is passed as:
//
//	SetObjectiveFunction([]float64{2,3}, []*Variable{x, y})
//
// Where x and y are the return values of one of the Add*Variable
// functions.
func (model *Model) SetObjectiveFunction(coefs []float64, vars []*Variable) error {
	if len(vars) != len(coefs) {
		return fmt.Errorf("inconsistent number of variables and coefficients: %d != %d", len(vars), len(coefs))
	}
	for _, v := range vars {
		if !model.owns(v) {
			return ErrInvalidIndex
		}
	}
	for i, v := range vars {
		v.SetObjectiveCoefficient(coefs[i])
	}
	return nil
}

// SetObjectiveOffset sets the constant term of the objective function.
func (model *Model) SetObjectiveOffset(offset float64) {
	model.mu.Lock()
	defer model.mu.Unlock()

	model.offset = offset
}

// ObjectiveOffset returns the constant term of the objective function.
func (model *Model) ObjectiveOffset() float64 {
	model.mu.RLock()
	defer model.mu.RUnlock()

	return model.offset
}

func (model *Model) owns(v *Variable) bool {
	return v != nil && v.model == model && v.index >= 0 && v.index < model.VariableCount()
}

/* Constraint-related functions */

// ConstraintCount returns the number of individual constraints in
// the model
func (model *Model) ConstraintCount() int {
	model.mu.RLock()
	defer model.mu.RUnlock()

	return len(model.rows)
}

// Constraints returns copies of the model's constraints in insertion order.
func (model *Model) Constraints() []Constraint {
	model.mu.RLock()
	defer model.mu.RUnlock()

	out := make([]Constraint, len(model.rows))
	for i, r := range model.rows {
		out[i] = Constraint{
			Name:     r.name,
			Expr:     r.expr(),
			Operator: r.op,
			RHS:      r.rhs,
		}
	}
	return out
}

// AddLinearConstraint adds the constraint expr op rhs and returns its
// index. Every key of expr must be the index of an existing variable,
// otherwise ErrInvalidIndex is returned and the model is left unchanged.
// Zero coefficients are dropped. Empty names will automatically replaced by
// a unique name.
func (model *Model) AddLinearConstraint(name string, expr Expr, op Operator, rhs float64) (int, error) {
	model.mu.Lock()
	defer model.mu.Unlock()

	if op < LessOrEqual || op > Equal {
		return -1, fmt.Errorf("unknown operator %v", op)
	}

	r := row{op: op, rhs: rhs}
	for j, coef := range expr {
		if j < 0 || j >= len(model.vars) {
			return -1, fmt.Errorf("constraint %q references variable %d: %w", name, j, ErrInvalidIndex)
		}
		if coef != 0 {
			r.index = append(r.index, j)
		}
	}
	sort.Ints(r.index)
	r.value = make([]float64, len(r.index))
	for k, j := range r.index {
		r.value[k] = expr[j]
	}

	idx := len(model.rows)
	if name == "" {
		name = fmt.Sprintf("R%d", idx)
	}
	if _, ok := model.rowNames[name]; ok {
		return -1, fmt.Errorf("constraint name %q already in use", name)
	}
	r.name = name
	model.rows = append(model.rows, r)
	model.rowNames[name] = idx

	return idx, nil
}

// AddConstraint adds a constraint to the model as a lower and an upper
// bounds, a slice of variables and a slice of their respective
// coefficients. Ranges are split into a <= and a >= constraint.
func (model *Model) AddConstraint(lower, upper float64, vars []*Variable, coefs []float64) error {
	if len(vars) != len(coefs) {
		return fmt.Errorf("inconsistent number of variables and coefficients: %d != %d", len(vars), len(coefs))
	}

	expr := make(Expr, len(vars))
	for i, v := range vars {
		if !model.owns(v) {
			return ErrInvalidIndex
		}
		expr[v.index] += coefs[i]
	}

	var err error
	switch {
	case math.IsInf(lower, 0) && math.IsInf(upper, 0):
		// no constraints
	case math.IsInf(lower, 0):
		_, err = model.AddLinearConstraint("", expr, LessOrEqual, upper)
	case math.IsInf(upper, 0):
		_, err = model.AddLinearConstraint("", expr, GreaterOrEqual, lower)
	case upper == lower:
		_, err = model.AddLinearConstraint("", expr, Equal, upper)
	default:
		if _, err = model.AddLinearConstraint("", expr, LessOrEqual, upper); err == nil {
			_, err = model.AddLinearConstraint("", expr, GreaterOrEqual, lower)
		}
	}

	return err
}

// Fixed returns a copy of the model in which every integer variable is
// fixed at its (rounded) entry in values and relaxed to continuous. Solving
// the fixed model of an optimal MIP solution yields an LP with the same
// objective.
func (model *Model) Fixed(values []float64) (*Model, error) {
	fixed := model.Clone()
	if len(values) != len(fixed.cols) {
		return nil, fmt.Errorf("got %d values for %d variables", len(values), len(fixed.cols))
	}

	for j := range fixed.cols {
		col := &fixed.cols[j]
		if col.typ == ContinuousVariable {
			continue
		}
		v := math.Round(values[j])
		col.typ = ContinuousVariable
		col.lower, col.upper = v, v
	}
	fixed.name = model.Name() + "_fixed"

	return fixed, nil
}

// snapshot freezes the model into a minimization problem. The objective
// of maximization models is negated.
func (model *Model) snapshot() (*problem.Problem, []string) {
	model.mu.RLock()
	defer model.mu.RUnlock()

	sign := 1.0
	if model.dir == Maximize {
		sign = -1
	}

	n := len(model.cols)
	p := &problem.Problem{
		Cost:    make([]float64, n),
		Offset:  sign * model.offset,
		Lower:   make([]float64, n),
		Upper:   make([]float64, n),
		Integer: make([]bool, n),
		Rows:    make([]problem.Row, len(model.rows)),
	}
	names := make([]string, n)
	for j, c := range model.cols {
		p.Cost[j] = sign * c.coef
		p.Lower[j], p.Upper[j] = c.lower, c.upper
		p.Integer[j] = c.typ != ContinuousVariable
		names[j] = c.name
	}
	for i, r := range model.rows {
		p.Rows[i] = problem.Row{
			Index: append([]int(nil), r.index...),
			Value: append([]float64(nil), r.value...),
			Sense: r.op.sense(),
			RHS:   r.rhs,
		}
	}
	return p, names
}
