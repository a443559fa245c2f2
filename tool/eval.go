package tool

import (
	"fmt"
	"strconv"
	"strings"
)

// evalExpression evaluates a plain arithmetic expression consisting of
// numbers, + - * /, parentheses and spaces. Any other character is rejected
// before parsing, so no identifier, call or escape can ever reach the
// evaluator: arbitrary code execution is impossible by construction.
func evalExpression(expr string) (float64, error) {
	const allowed = "0123456789+-*/.() "
	for _, r := range expr {
		if !strings.ContainsRune(allowed, r) {
			return 0, fmt.Errorf("invalid character %q in expression", r)
		}
	}

	p := &exprParser{input: expr}
	p.skipSpaces()
	if p.eof() {
		return 0, fmt.Errorf("empty expression")
	}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if !p.eof() {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

// formatNumber renders a result without a trailing ".0" for integral values.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// exprParser is a small recursive descent parser over the validated charset.
// Grammar:
//
//	expr    = term   { ("+" | "-") term }
//	term    = unary  { ("*" | "/") unary }
//	unary   = { "-" } primary
//	primary = number | "(" expr ")"
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) eof() bool { return p.pos >= len(p.input) }

func (p *exprParser) peek() byte { return p.input[p.pos] }

func (p *exprParser) skipSpaces() {
	for !p.eof() && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *exprParser) parseExpr() (float64, error) {
	v, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		if p.eof() || (p.peek() != '+' && p.peek() != '-') {
			return v, nil
		}
		op := p.peek()
		p.pos++
		rhs, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			v += rhs
		} else {
			v -= rhs
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	v, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		p.skipSpaces()
		if p.eof() || (p.peek() != '*' && p.peek() != '/') {
			return v, nil
		}
		op := p.peek()
		p.pos++
		rhs, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '*' {
			v *= rhs
			continue
		}
		if rhs == 0 {
			return 0, fmt.Errorf("division by zero")
		}
		v /= rhs
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	p.skipSpaces()
	neg := false
	for !p.eof() && p.peek() == '-' {
		neg = !neg
		p.pos++
		p.skipSpaces()
	}
	v, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if neg {
		v = -v
	}
	return v, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	p.skipSpaces()
	if p.eof() {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	if p.peek() == '(' {
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		p.skipSpaces()
		if p.eof() || p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	return p.parseNumber()
}

func (p *exprParser) parseNumber() (float64, error) {
	start := p.pos
	seenDot := false
	for !p.eof() {
		c := p.peek()
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, fmt.Errorf("expected number at position %d", start)
	}
	v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q", p.input[start:p.pos])
	}
	return v, nil
}
