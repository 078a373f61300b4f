package model

import (
	"errors"
	"slices"
	"sync/atomic"

	"github.com/vango-dev/bindery/pkg/bus"
)

// Valid is the outcome of a property's most recent reassessment.
type Valid uint8

const (
	// Yes means every rule passed.
	Yes Valid = iota + 1

	// No means at least one rule failed.
	No
)

// String returns "yes" or "no".
func (v Valid) String() string {
	switch v {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "unknown"
	}
}

// Node is the untyped view of a property: the part of the graph that does not
// depend on the value type. Only this package implements it.
type Node interface {
	// Name is the diagnostic label given at construction.
	Name() string

	// ID is unique among all properties in the process.
	ID() uint64

	// Scope returns the scope the property belongs to.
	Scope() *Scope

	// Reassess re-runs the rules and propagates to derived properties.
	Reassess() error

	// Touch marks the property touched, reassesses it and returns the
	// resulting validity.
	Touch() (Valid, error)

	// Touched reports whether the property has been touched.
	Touched() bool

	// WasValid returns the validity from the last reassessment without
	// re-running any rule.
	WasValid() Valid

	// AddRule attaches r without reassessing. NewRule and the rule helpers
	// call it.
	AddRule(r *Rule)

	// AddDerived makes down reassess whenever this property does and
	// returns down.
	AddDerived(down Node) Node

	// Rules returns the attached rules in attachment order.
	Rules() []*Rule

	node() *core
}

// idCounter is the source of property IDs.
var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// core is the state and behavior shared by every property type.
type core struct {
	scope *Scope
	self  Node
	id    uint64
	name  string

	touched   bool
	lastValid Valid
	rules     []*Rule
	derived   []Node

	// refresh recomputes a derived value at the start of each reassessment.
	refresh func() error
}

func (c *core) init(s *Scope, self Node, name string) {
	if s == nil {
		s = NewScope(nil)
	}
	c.scope = s
	c.self = self
	c.id = nextID()
	c.name = name
	c.lastValid = Yes
}

// Name returns the property's label.
func (c *core) Name() string { return c.name }

// ID returns the property's unique ID.
func (c *core) ID() uint64 { return c.id }

// Scope returns the owning scope.
func (c *core) Scope() *Scope { return c.scope }

// Touched reports whether the property has been touched.
func (c *core) Touched() bool { return c.touched }

// WasValid returns the validity recorded by the last reassessment.
func (c *core) WasValid() Valid { return c.lastValid }

// Rules returns a copy of the attached rules.
func (c *core) Rules() []*Rule { return slices.Clone(c.rules) }

// Derived returns a copy of the derived properties in reassessment order.
func (c *core) Derived() []Node { return slices.Clone(c.derived) }

func (c *core) node() *core { return c }

// AddRule attaches r if it is bound to this property and not yet attached.
// It does not reassess; call Reassess after wiring rules so WasValid reflects
// them. Failures of an untouched property stay hidden.
func (c *core) AddRule(r *Rule) {
	if r == nil || r.prop.node() != c || slices.Contains(c.rules, r) {
		return
	}
	c.rules = append(c.rules, r)
}

// AddDerived registers down as derived from this property and returns it.
// Adding the same property twice keeps the first position.
func (c *core) AddDerived(down Node) Node {
	if down != nil && !slices.Contains(c.derived, down) {
		c.derived = append(c.derived, down)
	}
	return down
}

// Depends registers this property as derived from each of up.
func (c *core) Depends(up ...Node) {
	for _, u := range up {
		u.AddDerived(c.self)
	}
}

// Reassess opens a pass and reassesses the property and everything derived
// from it. Handler failures from the events fired are joined into the
// returned error after propagation finished.
func (c *core) Reassess() error {
	return c.guard(c.reassessPass)
}

// Touch marks the property and its derived properties touched, reassesses it
// and returns the resulting validity.
func (c *core) Touch() (Valid, error) {
	err := c.guard(func() error {
		return errors.Join(c.markTouched(), c.reassessPass())
	})
	return c.lastValid, err
}

// OnTrigger registers fn for rules of this property entering the failing state.
func (c *core) OnTrigger(fn func(*bus.RuleTriggered) error) (*bus.Registration, error) {
	return bus.SubscribeToSource(c.scope.bus, c.self, fn)
}

// OnUntrigger registers fn for rules of this property passing again.
func (c *core) OnUntrigger(fn func(*bus.RuleUntriggered) error) (*bus.Registration, error) {
	return bus.SubscribeToSource(c.scope.bus, c.self, fn)
}

// guard runs op as one counted operation of the scope.
func (c *core) guard(op func() error) error {
	leave, err := c.scope.enter(c.name)
	if err != nil {
		return err
	}
	defer leave()
	return op()
}

func (c *core) reassessPass() error {
	return c.scope.withPass(c.reassessIn)
}

func (c *core) fire(ev bus.Event) error {
	return c.scope.bus.FireFromSource(ev, c.self)
}

// markTouched sets the touched flag on c and on every property derived from
// it, then reassesses the derived properties that were not touched before so
// their failures surface.
func (c *core) markTouched() error {
	c.touched = true
	seen := map[*core]struct{}{c: {}}
	var fresh []*core
	var walk func(n *core)
	walk = func(n *core) {
		for _, d := range n.derived {
			dc := d.node()
			if _, ok := seen[dc]; ok {
				continue
			}
			seen[dc] = struct{}{}
			if !dc.touched {
				dc.touched = true
				fresh = append(fresh, dc)
			}
			walk(dc)
		}
	}
	walk(c)
	if len(fresh) == 0 {
		return nil
	}

	c.scope.logger.Debug("model: touched cascade",
		"property", c.name,
		"derived", len(fresh))
	return c.scope.withPass(func(p *pass) error {
		var errs []error
		for _, dc := range fresh {
			err := dc.reassessIn(p)
			errs = append(errs, err)
			if stopsPropagation(err) {
				break
			}
		}
		return errors.Join(errs...)
	})
}

// reassessIn reassesses c inside pass p and recurses into its derived
// properties. A property already visited in p is skipped.
func (c *core) reassessIn(p *pass) error {
	if _, seen := p.visited[c]; seen {
		c.scope.logger.Debug("model: cycle edge cut",
			"property", c.name,
			"pass", len(c.scope.passes))
		return nil
	}
	p.visited[c] = struct{}{}

	var errs []error
	if c.refresh != nil {
		errs = append(errs, c.refresh())
	}

	valid := Yes
	for _, r := range c.rules {
		ok, err := r.evaluate()
		if err != nil {
			return errors.Join(append(errs, err)...)
		}
		if !ok {
			valid = No
		}
		errs = append(errs, r.settle(ok, c.touched))
	}
	c.lastValid = valid

	for _, d := range c.derived {
		err := d.node().reassessIn(p)
		errs = append(errs, err)
		if stopsPropagation(err) {
			break
		}
	}
	return errors.Join(errs...)
}

func stopsPropagation(err error) bool {
	var re *RuleError
	return err != nil && errors.As(err, &re)
}
