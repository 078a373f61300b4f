package bind

import (
	"errors"
	"slices"

	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/model"
)

// TextList is a widget listing messages, such as an error list under a field.
type TextList interface {
	Add(text string)
	Remove(text string)
}

// Errors tracks the messages of one property's triggered rules in the order
// they triggered, and mirrors them into an optional TextList.
type Errors struct {
	messages []string
	target   TextList
	regs     []*bus.Registration
}

// NewErrors starts tracking n. target may be nil.
func NewErrors(n model.Node, target TextList) (*Errors, error) {
	e := &Errors{target: target}
	b := n.Scope().Bus()

	onTrigger, err := bus.SubscribeToSource(b, n, func(ev *bus.RuleTriggered) error {
		e.messages = append(e.messages, ev.Message)
		if e.target != nil {
			e.target.Add(ev.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	onUntrigger, err := bus.SubscribeToSource(b, n, func(ev *bus.RuleUntriggered) error {
		if i := slices.Index(e.messages, ev.Message); i >= 0 {
			e.messages = slices.Delete(e.messages, i, i+1)
			if e.target != nil {
				e.target.Remove(ev.Message)
			}
		}
		return nil
	})
	if err != nil {
		onTrigger.Remove()
		return nil, err
	}
	e.regs = []*bus.Registration{onTrigger, onUntrigger}

	// Rules already triggered before tracking started.
	for _, r := range n.Rules() {
		if r.Triggered() {
			e.messages = append(e.messages, r.Message())
			if e.target != nil {
				e.target.Add(r.Message())
			}
		}
	}
	return e, nil
}

// Messages returns the current messages.
func (e *Errors) Messages() []string {
	return slices.Clone(e.messages)
}

// HasErrors reports whether any message is shown.
func (e *Errors) HasErrors() bool {
	return len(e.messages) > 0
}

// Close stops tracking.
func (e *Errors) Close() error {
	if e.regs == nil {
		return errors.New("bind: errors already closed")
	}
	for _, r := range e.regs {
		r.Remove()
	}
	e.regs = nil
	return nil
}
