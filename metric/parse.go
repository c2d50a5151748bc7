// Copyright 2026 The pmulib Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package metric

import (
	"fmt"
	"strconv"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokName   // event name, possibly '#' prefixed
	tokIf     // "if"
	tokElse   // "else"
	tokMin    // "min"
	tokLparen // (
	tokRparen // )
	tokComma  // ,
	tokOp     // one of + - * /
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer splits a formula into tokens. The token language is small:
// numbers, names, four operators, parentheses and commas; "if", "else"
// and "min" are keywords carved out of names.
type lexer struct {
	src string
	pos int
	err *ParseError
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isNameByte(c byte) bool {
	return c == '_' || c == '.' || c == '@' || isDigit(c) ||
		'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z'
}

func (l *lexer) token() token {
	for l.pos < len(l.src) && (l.src[l.pos] == ' ' || l.src[l.pos] == '\t') {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}
	}
	start := l.pos
	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLparen, text: "(", pos: start}
	case c == ')':
		l.pos++
		return token{kind: tokRparen, text: ")", pos: start}
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start}
	case c == '+' || c == '-' || c == '*' || c == '/':
		l.pos++
		return token{kind: tokOp, text: l.src[start:l.pos], pos: start}
	case isDigit(c):
		return l.number(start)
	case c == '#':
		l.pos++
		if l.pos >= len(l.src) || !isNameByte(l.src[l.pos]) {
			return l.fail(start, "'#' must prefix a name")
		}
		for l.pos < len(l.src) && isNameByte(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokName, text: l.src[start:l.pos], pos: start}
	case isNameByte(c):
		for l.pos < len(l.src) && isNameByte(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		switch text {
		case "if":
			return token{kind: tokIf, text: text, pos: start}
		case "else":
			return token{kind: tokElse, text: text, pos: start}
		case "min":
			return token{kind: tokMin, text: text, pos: start}
		}
		return token{kind: tokName, text: text, pos: start}
	}
	return l.fail(start, fmt.Sprintf("unexpected character %q", c))
}

func (l *lexer) number(start int) token {
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		// Only a well-formed exponent belongs to the number: a
		// trailing 'e' starts a name instead.
		mark := l.pos
		l.pos++
		if l.pos < len(l.src) && (l.src[l.pos] == '+' || l.src[l.pos] == '-') {
			l.pos++
		}
		if l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.pos++
			}
		} else {
			l.pos = mark
		}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], pos: start}
}

func (l *lexer) fail(pos int, msg string) token {
	if l.err == nil {
		l.err = &ParseError{Src: l.src, Pos: pos, Msg: msg}
	}
	return token{kind: tokEOF, pos: pos}
}

// parser is a recursive descent parser over the token stream.
// Precedence, loosest first: the "x if cond else y" conditional,
// additive operators, multiplicative operators. Commas appear only
// between min arguments.
type parser struct {
	lex lexer
	tok token
	err *ParseError
}

func (p *parser) next() {
	p.tok = p.lex.token()
	if p.lex.err != nil && p.err == nil {
		p.err = p.lex.err
	}
}

func (p *parser) fail(msg string) node {
	if p.err == nil {
		p.err = &ParseError{Src: p.lex.src, Pos: p.tok.pos, Msg: msg}
	}
	return numberNode(0)
}

// parseExpr parses a full expression, including a trailing conditional.
func (p *parser) parseExpr() node {
	then := p.parseAdditive()
	if p.err != nil || p.tok.kind != tokIf {
		return then
	}
	p.next()
	cond := p.parseAdditive()
	if p.err != nil {
		return then
	}
	if p.tok.kind != tokElse {
		return p.fail("expected 'else' after 'if' condition")
	}
	p.next()
	otherwise := p.parseExpr()
	return &condNode{then: then, cond: cond, otherwise: otherwise}
}

func (p *parser) parseAdditive() node {
	left := p.parseMultiplicative()
	for p.err == nil && p.tok.kind == tokOp && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text[0]
		p.next()
		right := p.parseMultiplicative()
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left
}

func (p *parser) parseMultiplicative() node {
	left := p.parseUnary()
	for p.err == nil && p.tok.kind == tokOp && (p.tok.text == "*" || p.tok.text == "/") {
		op := p.tok.text[0]
		p.next()
		right := p.parseUnary()
		left = &binaryNode{op: op, left: left, right: right}
	}
	return left
}

func (p *parser) parseUnary() node {
	if p.tok.kind == tokOp && p.tok.text == "-" {
		p.next()
		return &negNode{operand: p.parseUnary()}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() node {
	switch p.tok.kind {
	case tokNumber:
		v, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return p.fail(fmt.Sprintf("bad number %q", p.tok.text))
		}
		p.next()
		return numberNode(v)
	case tokName:
		n := eventNode(p.tok.text)
		p.next()
		return n
	case tokMin:
		return p.parseMin()
	case tokLparen:
		p.next()
		inner := p.parseExpr()
		if p.err != nil {
			return inner
		}
		if p.tok.kind != tokRparen {
			return p.fail("expected ')'")
		}
		p.next()
		return inner
	case tokEOF:
		return p.fail("unexpected end of expression")
	}
	return p.fail(fmt.Sprintf("unexpected %q", p.tok.text))
}

func (p *parser) parseMin() node {
	p.next()
	if p.tok.kind != tokLparen {
		return p.fail("expected '(' after 'min'")
	}
	p.next()
	args := []node{p.parseExpr()}
	for p.err == nil && p.tok.kind == tokComma {
		p.next()
		args = append(args, p.parseExpr())
	}
	if p.err != nil {
		return args[0]
	}
	if p.tok.kind != tokRparen {
		return p.fail("expected ')' closing 'min' arguments")
	}
	p.next()
	return &minNode{args: args}
}
