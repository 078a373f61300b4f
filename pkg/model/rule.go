package model

import (
	"cmp"
	"errors"
	"fmt"
	"regexp"
	"runtime/debug"
	"unicode/utf8"

	"github.com/vango-dev/bindery/pkg/bus"
)

// Rule is a predicate bound to one property. The property is valid only when
// every attached rule's predicate holds.
type Rule struct {
	prop      Node
	message   string
	predicate func() bool

	// failure is the text of the latest failed evaluation for rules whose
	// message comes from a validator. It becomes message when announced.
	failure string

	conds     []func() bool
	triggered bool
}

// NewRule binds predicate to p with message and attaches it. The predicate may
// read any property, which is how cross-property constraints are written;
// derive p from those properties so it is reassessed when they change.
//
// Attaching a rule does not reassess p, so WasValid and Group.AllValid keep
// reporting the previous outcome. Call p.Reassess() once the rules are wired.
func NewRule(p Node, message string, predicate func() bool) *Rule {
	r := &Rule{prop: p, message: message, predicate: predicate}
	p.AddRule(r)
	return r
}

// OnlyIf adds a condition. While any condition is false the rule passes,
// untriggering it if needed.
func (r *Rule) OnlyIf(cond func() bool) *Rule {
	if cond != nil {
		r.conds = append(r.conds, cond)
	}
	return r
}

// Evaluate runs the predicate and the OnlyIf conditions.
func (r *Rule) Evaluate() bool {
	for _, cond := range r.conds {
		if !cond() {
			return true
		}
	}
	return r.predicate()
}

// Message returns the message shown while the rule is triggered. It is the
// text carried by the last RuleTriggered event and does not change until the
// rule is announced again.
func (r *Rule) Message() string { return r.message }

// Triggered reports whether the rule is in the failing state.
func (r *Rule) Triggered() bool { return r.triggered }

// Property returns the property the rule validates.
func (r *Rule) Property() Node { return r.prop }

// evaluate runs Evaluate and turns a panic into a *RuleError.
func (r *Rule) evaluate() (ok bool, err error) {
	defer func() {
		if v := recover(); v != nil {
			if iv, isIV := v.(*bus.InvariantViolation); isIV {
				panic(iv)
			}
			stack := debug.Stack()
			r.prop.Scope().logger.Error("model: rule panic",
				"property", r.prop.Name(),
				"rule", r.message,
				"panic", v,
				"stack", string(stack))
			err = &RuleError{Property: r.prop.Name(), Message: r.message, Value: v, Stack: stack}
		}
	}()
	return r.Evaluate(), nil
}

// settle records the outcome and fires an event when the triggered state
// changes. A failing rule only enters the triggered state once its property
// is touched.
//
// A validator-backed rule whose failure text changes while triggered is
// untriggered with the old text and triggered again with the new one.
func (r *Rule) settle(ok, touched bool) error {
	switch {
	case !ok && touched && !r.triggered:
		r.announce()
		r.triggered = true
		return r.prop.node().fire(&bus.RuleTriggered{Property: r.prop, Rule: r, Message: r.message})
	case !ok && r.triggered && r.failure != "" && r.failure != r.message:
		r.triggered = false
		errUntrigger := r.prop.node().fire(&bus.RuleUntriggered{Property: r.prop, Rule: r, Message: r.message})
		r.announce()
		r.triggered = true
		errTrigger := r.prop.node().fire(&bus.RuleTriggered{Property: r.prop, Rule: r, Message: r.message})
		return errors.Join(errUntrigger, errTrigger)
	case ok && r.triggered:
		r.triggered = false
		return r.prop.node().fire(&bus.RuleUntriggered{Property: r.prop, Rule: r, Message: r.message})
	}
	return nil
}

func (r *Rule) announce() {
	if r.failure != "" {
		r.message = r.failure
	}
}

// Check adapts v into a rule on p. value supplies what is validated, usually
// the property's own value. While triggered, the rule's message is the
// validator's error text from when it was last announced.
func Check(p Node, v Validator, value func() any) *Rule {
	r := &Rule{prop: p, message: fmt.Sprintf("%s is invalid", p.Name())}
	r.predicate = func() bool {
		if err := v.Validate(value()); err != nil {
			r.failure = err.Error()
			return false
		}
		return true
	}
	p.AddRule(r)
	return r
}

// Required fails while p holds an empty value: the zero value for comparable
// types and a blank string for strings.
func Required[T comparable](p *Property[T], message string) *Rule {
	if message == "" {
		message = fmt.Sprintf("%s is required", p.Name())
	}
	return NewRule(p, message, func() bool {
		var zero T
		v := p.Get()
		return v != zero && !isEmpty(v)
	})
}

// Length fails while the rune count of p is outside [min, max].
// A max below zero means no upper bound.
func Length(p *Property[string], min, max int, message string) *Rule {
	if message == "" {
		switch {
		case max < 0:
			message = fmt.Sprintf("%s must be at least %d characters", p.Name(), min)
		default:
			message = fmt.Sprintf("%s must be between %d and %d characters", p.Name(), min, max)
		}
	}
	return NewRule(p, message, func() bool {
		n := utf8.RuneCountInString(p.Get())
		return n >= min && (max < 0 || n <= max)
	})
}

// Matches fails while p is non-empty and does not match pattern.
// It panics if pattern does not compile.
func Matches(p *Property[string], pattern, message string) *Rule {
	re := regexp.MustCompile(pattern)
	if message == "" {
		message = fmt.Sprintf("%s has an invalid format", p.Name())
	}
	return NewRule(p, message, func() bool {
		s := p.Get()
		return s == "" || re.MatchString(s)
	})
}

// Range fails while p is outside [lo, hi].
func Range[T cmp.Ordered](p *Property[T], lo, hi T, message string) *Rule {
	if message == "" {
		message = fmt.Sprintf("%s must be between %v and %v", p.Name(), lo, hi)
	}
	return NewRule(p, message, func() bool {
		v := p.Get()
		return v >= lo && v <= hi
	})
}
