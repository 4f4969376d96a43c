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
	"fmt"
	"math"
)

type Variable struct {
	model *Model
	index int
}

type VariableType int

const (
	ContinuousVariable VariableType = iota
	IntegerVariable
	BinaryVariable
)

func (t VariableType) String() string {
	switch t {
	case ContinuousVariable:
		return "continuous"
	case IntegerVariable:
		return "integer"
	case BinaryVariable:
		return "binary"
	default:
		return fmt.Sprintf("VariableType(%d)", int(t))
	}
}

// column holds the attributes of a variable inside its model.
type column struct {
	name  string
	typ   VariableType
	coef  float64
	lower float64
	upper float64
}

/* Variable-related functions (model variables, as opposed to Go variables) */

// Index returns the position of the variable in its model. Indices are
// assigned in insertion order starting at 0.
func (v *Variable) Index() int {
	return v.index
}

func (v *Variable) Name() string {
	v.model.mu.RLock()
	defer v.model.mu.RUnlock()

	return v.model.cols[v.index].name
}

// SetType changes the domain of the variable. Switching to BinaryVariable
// also sets the bounds to [0, 1].
func (v *Variable) SetType(vartype VariableType) {
	v.model.mu.Lock()
	defer v.model.mu.Unlock()

	col := &v.model.cols[v.index]
	col.typ = vartype
	if vartype == BinaryVariable {
		col.lower, col.upper = 0, 1
	}
}

func (v *Variable) Type() VariableType {
	v.model.mu.RLock()
	defer v.model.mu.RUnlock()

	return v.model.cols[v.index].typ
}

// IsInteger reports whether the variable is restricted to integer values.
func (v *Variable) IsInteger() bool {
	return v.Type() != ContinuousVariable
}

// SetBounds sets the boundaries for the given variable.
// To set a bound to infinity, pass math.Inf(1) or math.Inf(-1). The
// signal of the infinity is ignored, as the lower and upper bounds are
// always assumed to be the negative and positive infinities,
// respectively.
func (v *Variable) SetBounds(lower, upper float64) {
	if math.IsInf(lower, 0) {
		lower = math.Inf(-1)
	}
	if math.IsInf(upper, 0) {
		upper = math.Inf(1)
	}

	v.model.mu.Lock()
	defer v.model.mu.Unlock()

	col := &v.model.cols[v.index]
	col.lower, col.upper = lower, upper
}

func (v *Variable) Bounds() (lower, upper float64) {
	v.model.mu.RLock()
	defer v.model.mu.RUnlock()

	col := v.model.cols[v.index]
	return col.lower, col.upper
}

func (v *Variable) SetObjectiveCoefficient(coef float64) {
	v.model.mu.Lock()
	defer v.model.mu.Unlock()

	v.model.cols[v.index].coef = coef
}

func (v *Variable) Coefficient() float64 {
	v.model.mu.RLock()
	defer v.model.mu.RUnlock()

	return v.model.cols[v.index].coef
}
