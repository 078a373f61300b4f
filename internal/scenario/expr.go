package scenario

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

var errSyntax = errors.New("scenario: expression syntax")

// Env resolves property names to integer values.
type Env func(name string) int

// Term is an integer-valued expression.
type Term interface {
	Eval(env Env) int
	String() string
}

type (
	literal int
	ref     string
	absTerm struct{ x Term }
	binTerm struct {
		op   byte
		l, r Term
	}
)

func (l literal) Eval(Env) int { return int(l) }

func (l literal) String() string { return strconv.Itoa(int(l)) }

func (r ref) Eval(env Env) int { return env(string(r)) }

func (r ref) String() string { return string(r) }

func (a absTerm) Eval(env Env) int { return abs(a.x.Eval(env)) }

func (a absTerm) String() string { return "abs(" + a.x.String() + ")" }

func (b binTerm) Eval(env Env) int {
	if b.op == '+' {
		return b.l.Eval(env) + b.r.Eval(env)
	}
	return b.l.Eval(env) - b.r.Eval(env)
}

func (b binTerm) String() string {
	return b.l.String() + " " + string(b.op) + " " + b.r.String()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Comparison is a compiled rule expression.
type Comparison struct {
	Op       string
	LHS, RHS Term
}

// Eval reports whether the comparison holds.
func (c *Comparison) Eval(env Env) bool {
	l, r := c.LHS.Eval(env), c.RHS.Eval(env)
	switch c.Op {
	case ">":
		return l > r
	case ">=":
		return l >= r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case "==":
		return l == r
	default:
		return l != r
	}
}

func (c *Comparison) String() string {
	return c.LHS.String() + " " + c.Op + " " + c.RHS.String()
}

// Refs returns the property names the comparison reads, in first-use order.
func (c *Comparison) Refs() []string {
	return refs(nil, c.LHS, c.RHS)
}

// TermRefs returns the property names t reads, in first-use order.
func TermRefs(t Term) []string {
	return refs(nil, t)
}

func refs(acc []string, terms ...Term) []string {
	for _, t := range terms {
		switch t := t.(type) {
		case ref:
			if !slices.Contains(acc, string(t)) {
				acc = append(acc, string(t))
			}
		case absTerm:
			acc = refs(acc, t.x)
		case binTerm:
			acc = refs(acc, t.l, t.r)
		}
	}
	return acc
}

// ParseComparison parses "<term> <op> <term>".
func ParseComparison(src string) (*Comparison, error) {
	p := &parser{src: src}
	lhs, err := p.term()
	if err != nil {
		return nil, err
	}
	op := p.op()
	if op == "" {
		return nil, p.errorf("expected a comparison operator")
	}
	rhs, err := p.term()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return &Comparison{Op: op, LHS: lhs, RHS: rhs}, nil
}

// ParseTerm parses an integer term such as "abs(a - b) + 1".
func ParseTerm(src string) (Term, error) {
	p := &parser{src: src}
	t, err := p.term()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return t, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d in %q: %s", errSyntax, p.pos, p.src, fmt.Sprintf(format, args...))
}

func (p *parser) skip() {
	for p.pos < len(p.src) && p.src[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() byte {
	p.skip()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) end() error {
	if p.peek() != 0 {
		return p.errorf("unexpected %q", p.src[p.pos:])
	}
	return nil
}

func (p *parser) op() string {
	p.skip()
	for _, op := range []string{">=", "<=", "==", "!=", ">", "<"} {
		if strings.HasPrefix(p.src[p.pos:], op) {
			p.pos += len(op)
			return op
		}
	}
	return ""
}

func (p *parser) term() (Term, error) {
	t, err := p.atom()
	if err != nil {
		return nil, err
	}
	for {
		c := p.peek()
		if c != '+' && c != '-' {
			return t, nil
		}
		p.pos++
		r, err := p.atom()
		if err != nil {
			return nil, err
		}
		t = binTerm{op: c, l: t, r: r}
	}
}

func (p *parser) atom() (Term, error) {
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of expression")
	case c == '(':
		p.pos++
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		return t, p.expect(')')
	case c == '-' || isDigit(c):
		return p.number()
	case isIdentStart(rune(c)):
		name := p.ident()
		if name != "abs" || p.peek() != '(' {
			return ref(name), nil
		}
		p.pos++
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		return absTerm{x: t}, p.expect(')')
	default:
		return nil, p.errorf("unexpected %q", string(c))
	}
}

func (p *parser) expect(c byte) error {
	if p.peek() != c {
		return p.errorf("expected %q", string(c))
	}
	p.pos++
	return nil
}

func (p *parser) number() (Term, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) {
		p.pos++
	}
	n, err := strconv.Atoi(p.src[start:p.pos])
	if err != nil {
		p.pos = start
		return nil, p.errorf("bad number")
	}
	return literal(n), nil
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		r := rune(p.src[p.pos])
		if !isIdentStart(r) && !unicode.IsDigit(r) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(r rune) bool {
	return r == '_' || (r < unicode.MaxASCII && unicode.IsLetter(r))
}
