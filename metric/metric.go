// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package metric parses and evaluates derived metric formulas of the
// kind found in CPU event databases: arithmetic over named hardware
// event counts, for example
//
//	(UOPS_RETIRED.RETIRE_SLOTS / UOPS_ISSUED.ANY) * 100
//
// The grammar supports addition, subtraction, multiplication, division,
// parentheses, a variadic min function, and a trailing conditional in
// the form "x if cond else y". Names beginning with '#' refer to
// environment flags (such as #SMT_on) rather than hardware events.
package metric

import (
	"fmt"
	"sort"
)

// EnvSMTOn is the environment flag vendor metric files use to test
// whether simultaneous multithreading is enabled.
const EnvSMTOn = "#SMT_on"

// Expr is a parsed metric expression.
type Expr struct {
	src  string
	root node
}

// Parse parses a metric formula. A nil error means the whole input was
// consumed; otherwise the error is a *ParseError.
func Parse(src string) (*Expr, error) {
	p := &parser{lex: lexer{src: src}}
	p.next()
	root := p.parseExpr()
	if p.err != nil {
		return nil, p.err
	}
	if p.tok.kind != tokEOF {
		return nil, &ParseError{
			Src: src,
			Pos: p.tok.pos,
			Msg: fmt.Sprintf("unexpected %q", p.tok.text),
		}
	}
	return &Expr{src: src, root: root}, nil
}

// String returns the source text the expression was parsed from.
func (e *Expr) String() string {
	return e.src
}

// Events returns the names of the hardware events the expression
// depends on, sorted, without duplicates. Environment flags ('#'
// prefixed names) are not included: they describe the machine, not a
// counter to schedule.
func (e *Expr) Events() []string {
	seen := make(map[string]bool)
	e.root.collect(seen)
	events := make([]string, 0, len(seen))
	for name := range seen {
		if name[0] != '#' {
			events = append(events, name)
		}
	}
	sort.Strings(events)
	return events
}

// Evaluate computes the value of the expression. lookup resolves every
// name in the expression, hardware events and '#' flags alike; it
// reports false for names it does not know, which makes Evaluate fail
// with an *UnknownEventError. Division by zero fails with a
// *DivisionByZeroError. Only the taken branch of a conditional is
// evaluated.
func (e *Expr) Evaluate(lookup func(name string) (float64, bool)) (float64, error) {
	return e.root.eval(lookup)
}

// A ParseError describes a syntax error in a metric formula.
type ParseError struct {
	Src string // the formula being parsed
	Pos int    // byte offset of the error
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %q: at offset %d: %s", e.Src, e.Pos, e.Msg)
}

// An UnknownEventError is returned by Evaluate when the lookup function
// cannot resolve a name the expression depends on.
type UnknownEventError struct {
	Name string
}

func (e *UnknownEventError) Error() string {
	return fmt.Sprintf("metric: unknown event %q", e.Name)
}

// A DivisionByZeroError is returned by Evaluate when a denominator
// evaluates to zero.
type DivisionByZeroError struct {
	// Numerator is the value that was about to be divided.
	Numerator float64
}

func (e *DivisionByZeroError) Error() string {
	return fmt.Sprintf("metric: division of %v by zero", e.Numerator)
}

// node is a parsed expression tree node.
type node interface {
	eval(lookup func(string) (float64, bool)) (float64, error)
	collect(seen map[string]bool)
}

type numberNode float64

func (n numberNode) eval(func(string) (float64, bool)) (float64, error) {
	return float64(n), nil
}

func (n numberNode) collect(map[string]bool) {}

type eventNode string

func (n eventNode) eval(lookup func(string) (float64, bool)) (float64, error) {
	v, ok := lookup(string(n))
	if !ok {
		return 0, &UnknownEventError{Name: string(n)}
	}
	return v, nil
}

func (n eventNode) collect(seen map[string]bool) {
	seen[string(n)] = true
}

type binaryNode struct {
	op          byte // one of + - * /
	left, right node
}

func (n *binaryNode) eval(lookup func(string) (float64, bool)) (float64, error) {
	l, err := n.left.eval(lookup)
	if err != nil {
		return 0, err
	}
	r, err := n.right.eval(lookup)
	if err != nil {
		return 0, err
	}
	switch n.op {
	case '+':
		return l + r, nil
	case '-':
		return l - r, nil
	case '*':
		return l * r, nil
	default: // '/'
		if r == 0 {
			return 0, &DivisionByZeroError{Numerator: l}
		}
		return l / r, nil
	}
}

func (n *binaryNode) collect(seen map[string]bool) {
	n.left.collect(seen)
	n.right.collect(seen)
}

type negNode struct {
	operand node
}

func (n *negNode) eval(lookup func(string) (float64, bool)) (float64, error) {
	v, err := n.operand.eval(lookup)
	return -v, err
}

func (n *negNode) collect(seen map[string]bool) {
	n.operand.collect(seen)
}

type minNode struct {
	args []node
}

func (n *minNode) eval(lookup func(string) (float64, bool)) (float64, error) {
	best, err := n.args[0].eval(lookup)
	if err != nil {
		return 0, err
	}
	for _, arg := range n.args[1:] {
		v, err := arg.eval(lookup)
		if err != nil {
			return 0, err
		}
		if v < best {
			best = v
		}
	}
	return best, nil
}

func (n *minNode) collect(seen map[string]bool) {
	for _, arg := range n.args {
		arg.collect(seen)
	}
}

// condNode is "then if cond else otherwise". Only the branch selected
// by the condition is evaluated, so an event that appears exclusively
// in the untaken branch may be missing from the lookup.
type condNode struct {
	then, cond, otherwise node
}

func (n *condNode) eval(lookup func(string) (float64, bool)) (float64, error) {
	c, err := n.cond.eval(lookup)
	if err != nil {
		return 0, err
	}
	if c != 0 {
		return n.then.eval(lookup)
	}
	return n.otherwise.eval(lookup)
}

func (n *condNode) collect(seen map[string]bool) {
	n.then.collect(seen)
	n.cond.collect(seen)
	n.otherwise.collect(seen)
}
