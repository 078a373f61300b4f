package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vango-dev/bindery/pkg/bus"
)

// IntText is a string view over an int property, for text inputs bound to
// numbers. Text that does not parse leaves the number unchanged and makes the
// property invalid until a good value is set through either side.
type IntText struct {
	p    *Property[int]
	bad  string
	rule *Rule
}

// NewIntText attaches the parse rule to p and returns the view.
func NewIntText(p *Property[int]) (*IntText, error) {
	t := &IntText{p: p}
	t.rule = NewRule(p, fmt.Sprintf("%s must be a number", p.Name()), func() bool {
		return t.bad == ""
	})
	// A value set directly on the property replaces any unparsable text.
	if _, err := p.OnChange(func(*bus.ValueChanged) error {
		t.bad = ""
		return nil
	}); err != nil {
		return nil, err
	}
	return t, nil
}

// Get returns the unparsable text if there is one, otherwise the number.
func (t *IntText) Get() string {
	if t.bad != "" {
		return t.bad
	}
	return strconv.Itoa(t.p.Get())
}

// Set parses s into the property. Blank text sets zero.
func (t *IntText) Set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return t.accept(0)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		t.bad = s
		_, terr := t.p.Touch()
		return terr
	}
	return t.accept(n)
}

// Rule returns the parse rule.
func (t *IntText) Rule() *Rule {
	return t.rule
}

func (t *IntText) accept(n int) error {
	wasBad := t.bad != ""
	t.bad = ""
	if t.p.Get() == n {
		if wasBad {
			return t.p.Reassess()
		}
		return nil
	}
	return t.p.Set(n)
}
