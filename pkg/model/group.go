package model

import (
	"errors"
	"slices"
)

// Group aggregates the validity of a fixed set of properties, typically the
// fields of one form or model. It has no rules of its own.
type Group struct {
	name    string
	message string
	members []Node
}

// NewGroup creates an empty group. message is the summary shown when the
// group is invalid.
func NewGroup(name, message string) *Group {
	return &Group{name: name, message: message}
}

// Name returns the group's label.
func (g *Group) Name() string { return g.name }

// Message returns the group's summary message.
func (g *Group) Message() string { return g.message }

// Members returns the members in the order they were added.
func (g *Group) Members() []Node { return slices.Clone(g.members) }

// Add appends nodes to the group and returns g.
func (g *Group) Add(nodes ...Node) *Group {
	for _, n := range nodes {
		if n != nil {
			g.members = append(g.members, n)
		}
	}
	return g
}

// AllValid folds the members' last validity. No rule is re-run.
func (g *Group) AllValid() Valid {
	for _, m := range g.members {
		if m.WasValid() == No {
			return No
		}
	}
	return Yes
}

// Touch touches every member, so their failures surface, and returns the
// resulting aggregate validity.
func (g *Group) Touch() (Valid, error) {
	var errs []error
	for _, m := range g.members {
		if _, err := m.Touch(); err != nil {
			errs = append(errs, err)
		}
	}
	return g.AllValid(), errors.Join(errs...)
}

// Messages returns the messages of the members' triggered rules, member by
// member in rule order.
func (g *Group) Messages() []string {
	var msgs []string
	for _, m := range g.members {
		for _, r := range m.node().rules {
			if r.triggered {
				msgs = append(msgs, r.message)
			}
		}
	}
	return msgs
}
