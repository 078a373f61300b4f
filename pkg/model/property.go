package model

import (
	"errors"

	"github.com/vango-dev/bindery/pkg/bus"
)

// Property is an observable, validated value cell.
type Property[T any] struct {
	core

	value  T
	last   T
	equals func(a, b T) bool
}

// NewProperty creates an untouched property holding initial. A nil scope
// gets a private one.
func NewProperty[T any](s *Scope, name string, initial T) *Property[T] {
	p := &Property[T]{value: initial, last: initial, equals: defaultEquals[T]}
	p.init(s, p, name)
	return p
}

// NewDerived creates a property whose value is recomputed by compute at the
// start of every reassessment. A recomputed value that differs from the
// current one fires ValueChanged.
//
//	total := model.NewDerived(s, "total", func() int { return a.Get() + b.Get() })
//	total.Depends(a, b)
func NewDerived[T any](s *Scope, name string, compute func() T) *Property[T] {
	p := NewProperty(s, name, compute())
	p.refresh = func() error {
		next := compute()
		if p.equals(p.value, next) {
			return nil
		}
		old := p.value
		p.last, p.value = old, next
		return p.fire(&bus.ValueChanged{Property: p, Old: old, New: next})
	}
	return p
}

// WithEquals replaces the equality used to detect changes and returns p.
func (p *Property[T]) WithEquals(fn func(a, b T) bool) *Property[T] {
	if fn != nil {
		p.equals = fn
	}
	return p
}

// Get returns the current value.
func (p *Property[T]) Get() T {
	return p.value
}

// Last returns the value held before the most recent accepted change.
func (p *Property[T]) Last() T {
	return p.last
}

// Set stores v and marks the property touched. Setting a value equal to the
// current one does nothing. Otherwise ValueChanged is fired from the
// property and the property is reassessed. Handler failures are joined into
// the returned error once propagation finished.
func (p *Property[T]) Set(v T) error {
	return p.set(v, true)
}

// SetUntouched is Set without marking the property touched.
func (p *Property[T]) SetUntouched(v T) error {
	return p.set(v, false)
}

func (p *Property[T]) set(v T, touch bool) error {
	if p.equals(p.value, v) {
		return nil
	}
	return p.guard(func() error {
		old := p.value
		p.last, p.value = old, v

		var errs []error
		if touch {
			errs = append(errs, p.markTouched())
		}
		errs = append(errs, p.fire(&bus.ValueChanged{Property: p, Old: old, New: v}))
		errs = append(errs, p.reassessPass())
		return errors.Join(errs...)
	})
}

// OnChange registers fn for ValueChanged events fired by p.
func (p *Property[T]) OnChange(fn func(*bus.ValueChanged) error) (*bus.Registration, error) {
	return bus.SubscribeToSource(p.scope.bus, p, fn)
}

// Depends registers p as derived from each of up and returns p.
func (p *Property[T]) Depends(up ...Node) *Property[T] {
	p.core.Depends(up...)
	return p
}
