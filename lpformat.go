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
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

/* LP file format: the common subset of the CPLEX and Gurobi dialects */

type lpSection int

const (
	secNone lpSection = iota
	secObjective
	secConstraints
	secBounds
	secBinary
	secGeneral
	secEnd
)

var lpKeywords = map[string]lpSection{
	"maximize": secObjective, "maximise": secObjective, "maximum": secObjective, "max": secObjective,
	"minimize": secObjective, "minimise": secObjective, "minimum": secObjective, "min": secObjective,
	"subject to": secConstraints, "such that": secConstraints, "st": secConstraints, "s.t.": secConstraints, "st.": secConstraints,
	"bounds": secBounds, "bound": secBounds,
	"binaries": secBinary, "binary": secBinary, "bin": secBinary,
	"generals": secGeneral, "general": secGeneral, "gen": secGeneral, "integers": secGeneral, "integer": secGeneral,
	"end": secEnd,
}

type tokKind int

const (
	tokName tokKind = iota
	tokNumber
	tokOp
	tokPlus
	tokMinus
	tokColon
)

type token struct {
	kind tokKind
	text string
	num  float64
	line int
}

// ReadLPFile reads a model from an LP file. Without a model name comment
// the file name (minus extension) names the model.
func ReadLPFile(path string, opts ...Option) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening LP file: %w", err)
	}
	defer f.Close()

	model, err := ReadLP(f, opts...)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if model.Name() == "" {
		model.name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return model, nil
}

// ReadLP reads a model in LP format. Syntax errors are reported as
// *ParseError.
func ReadLP(r io.Reader, opts ...Option) (*Model, error) {
	model, err := NewModel("", Minimize, opts...)
	if err != nil {
		return nil, err
	}
	p := &lpParser{model: model}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if p.section == secNone && strings.HasPrefix(raw, `\`) {
			p.modelName(strings.TrimSpace(raw[1:]))
		}

		text := raw
		if i := strings.IndexByte(text, '\\'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		if sec, rest, ok := sectionKeyword(text); ok {
			if p.section == secNone && sec != secObjective {
				return nil, &ParseError{Line: line, Msg: "missing objective section"}
			}
			if err := p.flush(); err != nil {
				return nil, err
			}
			if sec == secObjective {
				dir := Minimize
				if strings.HasPrefix(strings.ToLower(text), "max") {
					dir = Maximize
				}
				model.SetDirection(dir)
			}
			p.section = sec
			text = rest
		}
		if p.section == secEnd {
			break
		}

		toks, err := lex(text, line)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		if err := p.consume(toks, line); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading LP: %w", err)
	}
	if err := p.flush(); err != nil {
		return nil, err
	}
	if !p.seenObjective {
		return nil, &ParseError{Line: line, Msg: "missing objective section"}
	}
	return model, nil
}

func sectionKeyword(text string) (lpSection, string, bool) {
	fields := strings.Fields(text)
	if len(fields) >= 2 {
		if sec, ok := lpKeywords[strings.ToLower(fields[0]+" "+fields[1])]; ok {
			return sec, strings.Join(fields[2:], " "), true
		}
	}
	if sec, ok := lpKeywords[strings.ToLower(fields[0])]; ok {
		return sec, strings.Join(fields[1:], " "), true
	}
	return secNone, "", false
}

func lex(s string, line int) ([]token, error) {
	var toks []token
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '+':
			toks = append(toks, token{kind: tokPlus, text: "+", line: line})
			i++
		case c == '-':
			toks = append(toks, token{kind: tokMinus, text: "-", line: line})
			i++
		case c == ':':
			toks = append(toks, token{kind: tokColon, text: ":", line: line})
			i++
		case c == '<' || c == '>' || c == '=':
			j := i + 1
			for j < len(s) && j < i+2 && strings.IndexByte("<>=", s[j]) >= 0 {
				j++
			}
			op := s[i:j]
			lt, gt := strings.Contains(op, "<"), strings.Contains(op, ">")
			switch {
			case lt && gt:
				return nil, &ParseError{Line: line, Msg: fmt.Sprintf("invalid operator %q", op)}
			case lt:
				op = "<="
			case gt:
				op = ">="
			default:
				op = "="
			}
			toks = append(toks, token{kind: tokOp, text: op, line: line})
			i = j
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
				j++
			}
			if j < len(s) && (s[j] == 'e' || s[j] == 'E') {
				k := j + 1
				if k < len(s) && (s[k] == '+' || s[k] == '-') {
					k++
				}
				if k < len(s) && s[k] >= '0' && s[k] <= '9' {
					for k < len(s) && s[k] >= '0' && s[k] <= '9' {
						k++
					}
					j = k
				}
			}
			v, err := strconv.ParseFloat(s[i:j], 64)
			if err != nil {
				return nil, &ParseError{Line: line, Msg: fmt.Sprintf("invalid number %q", s[i:j])}
			}
			toks = append(toks, token{kind: tokNumber, text: s[i:j], num: v, line: line})
			i = j
		case strings.IndexByte("[]^*", c) >= 0:
			return nil, &ParseError{Line: line, Msg: "quadratic terms are not supported"}
		default:
			j := i
			for j < len(s) && !strings.ContainsRune(" \t\r+-:<>=[]^*", rune(s[j])) {
				j++
			}
			toks = append(toks, token{kind: tokName, text: s[i:j], line: line})
			i = j
		}
	}
	return toks, nil
}

type lpParser struct {
	model         *Model
	section       lpSection
	pending       []token
	seenObjective bool
}

func (p *lpParser) modelName(comment string) {
	for _, prefix := range []string{"Model ", "Problem name:"} {
		if strings.HasPrefix(comment, prefix) && p.model.name == "" {
			p.model.name = strings.TrimSpace(comment[len(prefix):])
		}
	}
}

func (p *lpParser) consume(toks []token, line int) error {
	switch p.section {
	case secNone:
		return &ParseError{Line: line, Msg: "expected objective section"}
	case secObjective, secConstraints:
		// expressions may span lines
		p.pending = append(p.pending, toks...)
		return nil
	case secBounds:
		return p.bound(toks)
	case secBinary, secGeneral:
		for _, t := range toks {
			if t.kind != tokName {
				return &ParseError{Line: t.line, Msg: fmt.Sprintf("expected variable name, got %q", t.text)}
			}
			v := p.variable(t.text)
			if p.section == secBinary {
				v.SetType(BinaryVariable)
			} else if v.Type() != BinaryVariable {
				v.SetType(IntegerVariable)
			}
		}
		return nil
	}
	return nil
}

// flush parses the tokens collected for the current section.
func (p *lpParser) flush() error {
	toks := p.pending
	p.pending = nil
	switch p.section {
	case secObjective:
		p.seenObjective = true
		return p.objective(toks)
	case secConstraints:
		return p.constraints(toks)
	}
	return nil
}

// variable returns the variable with the given name, declaring it with the
// default bounds [0, +inf) on first use.
func (p *lpParser) variable(name string) *Variable {
	if v := p.model.VariableByName(name); v != nil {
		return v
	}
	v, _ := p.model.AddDefinedVariable(name, ContinuousVariable, 0, 0, math.Inf(1))
	return v
}

// expression parses a sum of terms up to a relational operator or the end
// of toks.
func (p *lpParser) expression(toks []token, pos int) (Expr, []*Variable, float64, int, error) {
	expr := Expr{}
	var order []*Variable
	var constant float64

	sign, signed, afterTerm := 1.0, false, false
	add := func(v *Variable, coef float64) {
		if _, ok := expr[v.index]; !ok {
			order = append(order, v)
		}
		expr[v.index] += coef
	}

	for pos < len(toks) {
		t := toks[pos]
		switch t.kind {
		case tokOp:
			return expr, order, constant, pos, nil
		case tokPlus:
			signed = true
			pos++
			continue
		case tokMinus:
			sign, signed = -sign, true
			pos++
			continue
		case tokColon:
			return nil, nil, 0, pos, &ParseError{Line: t.line, Msg: "unexpected ':'"}
		}

		if afterTerm && !signed {
			return nil, nil, 0, pos, &ParseError{Line: t.line, Msg: fmt.Sprintf("missing '+' or '-' before %q", t.text)}
		}
		if t.kind == tokNumber {
			pos++
			if pos < len(toks) && toks[pos].kind == tokName && !isInfinity(toks[pos].text) {
				add(p.variable(toks[pos].text), sign*t.num)
				pos++
			} else {
				constant += sign * t.num
			}
		} else {
			add(p.variable(t.text), sign)
			pos++
		}
		sign, signed, afterTerm = 1, false, true
	}
	if signed {
		return nil, nil, 0, pos, &ParseError{Line: toks[len(toks)-1].line, Msg: "dangling sign"}
	}
	return expr, order, constant, pos, nil
}

func isInfinity(s string) bool {
	s = strings.ToLower(s)
	return s == "inf" || s == "infinity"
}

// lpInfinity is the magnitude from which numbers count as infinite.
const lpInfinity = 1e30

// value parses a signed number or infinity.
func value(toks []token, pos int) (float64, int, bool) {
	sign := 1.0
	for pos < len(toks) && (toks[pos].kind == tokPlus || toks[pos].kind == tokMinus) {
		if toks[pos].kind == tokMinus {
			sign = -sign
		}
		pos++
	}
	if pos >= len(toks) {
		return 0, pos, false
	}
	switch t := toks[pos]; {
	case t.kind == tokNumber && t.num >= lpInfinity:
		return sign * math.Inf(1), pos + 1, true
	case t.kind == tokNumber:
		return sign * t.num, pos + 1, true
	case t.kind == tokName && isInfinity(t.text):
		return sign * math.Inf(1), pos + 1, true
	}
	return 0, pos, false
}

func (p *lpParser) objective(toks []token) error {
	pos := 0
	if len(toks) >= 2 && toks[0].kind == tokName && toks[1].kind == tokColon {
		pos = 2
	}
	expr, order, constant, pos, err := p.expression(toks, pos)
	if err != nil {
		return err
	}
	if pos < len(toks) {
		return &ParseError{Line: toks[pos].line, Msg: "relational operator in objective"}
	}
	for _, v := range order {
		v.SetObjectiveCoefficient(expr[v.index])
	}
	p.model.SetObjectiveOffset(constant)
	return nil
}

func (p *lpParser) constraints(toks []token) error {
	for pos := 0; pos < len(toks); {
		line := toks[pos].line
		name := ""
		if pos+1 < len(toks) && toks[pos].kind == tokName && toks[pos+1].kind == tokColon {
			name = toks[pos].text
			pos += 2
		}

		expr, _, constant, next, err := p.expression(toks, pos)
		if err != nil {
			return err
		}
		pos = next
		if pos >= len(toks) || toks[pos].kind != tokOp {
			return &ParseError{Line: line, Msg: fmt.Sprintf("constraint %q: missing relational operator", name)}
		}
		var op Operator
		switch toks[pos].text {
		case "<=":
			op = LessOrEqual
		case ">=":
			op = GreaterOrEqual
		default:
			op = Equal
		}
		pos++

		rhs, next, ok := value(toks, pos)
		if !ok {
			return &ParseError{Line: line, Msg: fmt.Sprintf("constraint %q: expected right-hand side", name)}
		}
		pos = next

		if _, err := p.model.AddLinearConstraint(name, expr, op, rhs-constant); err != nil {
			return &ParseError{Line: line, Msg: err.Error()}
		}
	}
	return nil
}

// bound parses one line of the bounds section.
func (p *lpParser) bound(toks []token) error {
	line := toks[0].line
	bad := func() error {
		return &ParseError{Line: line, Msg: "malformed bound"}
	}

	if len(toks) == 2 && toks[0].kind == tokName && strings.EqualFold(toks[1].text, "free") {
		p.variable(toks[0].text).SetBounds(math.Inf(-1), math.Inf(1))
		return nil
	}

	lead, pos, hasLead := value(toks, 0)
	var leadOp string
	if !hasLead {
		pos = 0
	} else {
		if pos >= len(toks) || toks[pos].kind != tokOp {
			return bad()
		}
		leadOp = toks[pos].text
		pos++
	}
	if pos >= len(toks) || toks[pos].kind != tokName {
		return bad()
	}
	v := p.variable(toks[pos].text)
	pos++
	lower, upper := v.Bounds()

	set := func(op string, val float64, varOnLeft bool) {
		switch {
		case op == "=":
			lower, upper = val, val
		case op == "<=" && varOnLeft, op == ">=" && !varOnLeft:
			upper = val
		default:
			lower = val
		}
	}
	if hasLead {
		set(leadOp, lead, false)
	}
	if pos < len(toks) {
		if toks[pos].kind != tokOp {
			return bad()
		}
		op := toks[pos].text
		val, next, ok := value(toks, pos+1)
		if !ok || next != len(toks) {
			return bad()
		}
		set(op, val, true)
	} else if !hasLead {
		return bad()
	}

	v.SetBounds(lower, upper)
	return nil
}

// WriteLP writes the model in LP format. Every variable appears in the
// objective, with a zero coefficient if necessary, so reading the output
// back yields the same variable order.
func (model *Model) WriteLP(w io.Writer) error {
	model.mu.RLock()
	defer model.mu.RUnlock()

	for _, c := range model.cols {
		if !validLPName(c.name) {
			return fmt.Errorf("variable name %q cannot be written in LP format", c.name)
		}
	}
	for _, r := range model.rows {
		if !validLPName(r.name) {
			return fmt.Errorf("constraint name %q cannot be written in LP format", r.name)
		}
	}

	bw := bufio.NewWriter(w)
	if model.name != "" {
		fmt.Fprintf(bw, "\\ Model %s\n", strings.ReplaceAll(model.name, "\n", " "))
	}
	if model.dir == Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}

	bw.WriteString(" obj:")
	idx := make([]int, len(model.cols))
	coefs := make([]float64, len(model.cols))
	for j, c := range model.cols {
		idx[j], coefs[j] = j, c.coef
	}
	model.writeTerms(bw, idx, coefs, true)
	if model.offset != 0 {
		writeSigned(bw, model.offset, "")
	}
	bw.WriteString("\n")

	bw.WriteString("Subject To\n")
	for _, r := range model.rows {
		fmt.Fprintf(bw, " %s:", r.name)
		if len(r.index) == 0 {
			bw.WriteString(" 0")
		}
		model.writeTerms(bw, r.index, r.value, false)
		fmt.Fprintf(bw, " %s %s\n", r.op, formatFloat(r.rhs))
	}

	var binaries, generals []string
	bw.WriteString("Bounds\n")
	for _, c := range model.cols {
		switch {
		case c.typ == BinaryVariable && c.lower == 0 && c.upper == 1:
			binaries = append(binaries, c.name)
			continue
		case c.typ != ContinuousVariable:
			generals = append(generals, c.name)
		}

		infLo, infUp := math.IsInf(c.lower, -1), math.IsInf(c.upper, 1)
		switch {
		case c.lower == 0 && infUp:
		case infLo && infUp:
			fmt.Fprintf(bw, " %s free\n", c.name)
		case c.lower == c.upper:
			fmt.Fprintf(bw, " %s = %s\n", c.name, formatFloat(c.lower))
		case infUp:
			fmt.Fprintf(bw, " %s >= %s\n", c.name, formatFloat(c.lower))
		default:
			fmt.Fprintf(bw, " %s <= %s <= %s\n", formatFloat(c.lower), c.name, formatFloat(c.upper))
		}
	}
	writeNames(bw, "Binaries", binaries)
	writeNames(bw, "Generals", generals)
	bw.WriteString("End\n")

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing LP: %w", err)
	}
	return nil
}

const lpTermsPerLine = 8

// writeTerms writes " + c name" terms. Zero coefficients are kept only when
// keepZero is set.
func (model *Model) writeTerms(bw *bufio.Writer, idx []int, coefs []float64, keepZero bool) {
	written := 0
	for k, j := range idx {
		c := coefs[k]
		if c == 0 && !keepZero {
			continue
		}
		if written > 0 && written%lpTermsPerLine == 0 {
			bw.WriteString("\n  ")
		}
		if written == 0 && c >= 0 {
			// no leading "+"
			if c == 1 {
				fmt.Fprintf(bw, " %s", model.cols[j].name)
			} else {
				fmt.Fprintf(bw, " %s %s", formatFloat(math.Abs(c)), model.cols[j].name)
			}
		} else {
			writeSigned(bw, c, model.cols[j].name)
		}
		written++
	}
}

func writeSigned(bw *bufio.Writer, c float64, name string) {
	sign := "+"
	if c < 0 {
		sign = "-"
	}
	switch {
	case name == "":
		fmt.Fprintf(bw, " %s %s", sign, formatFloat(math.Abs(c)))
	case math.Abs(c) == 1:
		fmt.Fprintf(bw, " %s %s", sign, name)
	default:
		fmt.Fprintf(bw, " %s %s %s", sign, formatFloat(math.Abs(c)), name)
	}
}

func writeNames(bw *bufio.Writer, section string, names []string) {
	if len(names) == 0 {
		return
	}
	bw.WriteString(section + "\n")
	for i, name := range names {
		if i > 0 && i%lpTermsPerLine == 0 {
			bw.WriteString("\n")
		}
		bw.WriteString(" " + name)
	}
	bw.WriteString("\n")
}

func validLPName(name string) bool {
	if name == "" || isInfinity(name) || strings.EqualFold(name, "free") {
		return false
	}
	if c := name[0]; c >= '0' && c <= '9' || c == '.' {
		return false
	}
	if _, _, ok := sectionKeyword(name); ok {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n+-:<>=[]^*\\")
}
