package model

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vango-dev/bindery/pkg/bus"
)

// Model is an element of a ListProperty: a comparable handle (usually a
// pointer) over a DTO, with its own validation group.
type Model[D any] interface {
	comparable
	DTO() D
	AllValid() *Group
}

// ListProperty is a property whose value is a sequence of models backed by a
// slice of their DTOs. The two slices stay index-aligned: element i of the
// list wraps element i of the backing slice.
type ListProperty[E Model[D], D any] struct {
	core

	items   []E
	backing *[]D
	size    *Property[int]
}

// NewListProperty creates a list over backing, building one model per
// existing DTO with toModel. A nil backing gets a fresh slice.
func NewListProperty[E Model[D], D any](s *Scope, name string, backing *[]D, toModel func(D) E) *ListProperty[E, D] {
	if backing == nil {
		backing = new([]D)
	}
	l := &ListProperty[E, D]{backing: backing}
	l.init(s, l, name)
	l.items = make([]E, 0, len(*backing))
	for _, dto := range *backing {
		l.items = append(l.items, toModel(dto))
	}
	return l
}

// Get returns a copy of the current models.
func (l *ListProperty[E, D]) Get() []E {
	return slices.Clone(l.items)
}

// Len returns the number of models.
func (l *ListProperty[E, D]) Len() int {
	return len(l.items)
}

// Backing returns the DTO slice the list writes through to.
func (l *ListProperty[E, D]) Backing() *[]D {
	return l.backing
}

// Add appends item, marks the list touched, fires ValueAdded and reassesses.
func (l *ListProperty[E, D]) Add(item E) error {
	return l.add(item, true)
}

// AddUntouched is Add without marking the list touched.
func (l *ListProperty[E, D]) AddUntouched(item E) error {
	return l.add(item, false)
}

func (l *ListProperty[E, D]) add(item E, touch bool) error {
	return l.guard(func() error {
		l.items = append(l.items, item)
		*l.backing = append(*l.backing, item.DTO())

		var errs []error
		if touch {
			errs = append(errs, l.markTouched())
		}
		errs = append(errs, l.fire(&bus.ValueAdded{Property: l, Value: item, Index: len(l.items) - 1}))
		errs = append(errs, l.reassessPass())
		return errors.Join(errs...)
	})
}

// Remove removes the first occurrence of item from the list and its DTO from
// the same position of the backing slice, marks the list touched, fires
// ValueRemoved and reassesses. Removing an absent item does nothing.
func (l *ListProperty[E, D]) Remove(item E) error {
	idx := slices.Index(l.items, item)
	if idx < 0 {
		return nil
	}
	return l.guard(func() error {
		l.removeAt(idx)

		var errs []error
		errs = append(errs, l.markTouched())
		errs = append(errs, l.fire(&bus.ValueRemoved{Property: l, Value: item, Index: idx}))
		errs = append(errs, l.reassessPass())
		return errors.Join(errs...)
	})
}

// Clear removes every model from the tail backward, firing one ValueRemoved
// per element, then reassesses once.
func (l *ListProperty[E, D]) Clear() error {
	return l.guard(func() error {
		var errs []error
		for i := len(l.items) - 1; i >= 0; i-- {
			item := l.items[i]
			l.removeAt(i)
			errs = append(errs, l.fire(&bus.ValueRemoved{Property: l, Value: item, Index: i}))
		}
		errs = append(errs, l.reassessPass())
		return errors.Join(errs...)
	})
}

// Set replaces the models and the backing DTOs. A sequence equal to the
// current one does nothing; otherwise the list is touched, ValueChanged is
// fired with the old and new sequences and the list is reassessed.
func (l *ListProperty[E, D]) Set(items []E) error {
	if slices.Equal(l.items, items) {
		return nil
	}
	return l.guard(func() error {
		old := l.items
		l.items = slices.Clone(items)
		dtos := make([]D, len(items))
		for i, item := range items {
			dtos[i] = item.DTO()
		}
		*l.backing = dtos

		var errs []error
		errs = append(errs, l.markTouched())
		errs = append(errs, l.fire(&bus.ValueChanged{Property: l, Old: old, New: l.Get()}))
		errs = append(errs, l.reassessPass())
		return errors.Join(errs...)
	})
}

func (l *ListProperty[E, D]) removeAt(i int) {
	l.items = slices.Delete(l.items, i, i+1)
	*l.backing = slices.Delete(*l.backing, i, i+1)
}

// Size returns a property derived from the list holding its length. It is
// recomputed on every reassessment of the list.
func (l *ListProperty[E, D]) Size() *Property[int] {
	if l.size == nil {
		l.size = NewDerived(l.scope, l.name+".size", func() int { return len(l.items) })
		l.AddDerived(l.size)
	}
	return l.size
}

// RequireAllValid adds a rule that touches every model's group and fails if
// any of them is invalid. While the list is untouched the rule fails without
// being announced.
func (l *ListProperty[E, D]) RequireAllValid(message string) *Rule {
	if message == "" {
		message = "Some models are invalid"
	}
	return NewRule(l, message, func() bool {
		if !l.touched {
			return false
		}
		all := true
		for _, m := range l.items {
			valid, err := m.AllValid().Touch()
			if err != nil {
				l.scope.logger.Warn("model: touching list element failed",
					"property", l.name,
					"error", err)
			}
			if valid == No {
				all = false
			}
		}
		return all
	})
}

// OnAdded registers fn for ValueAdded events fired by the list.
func (l *ListProperty[E, D]) OnAdded(fn func(item E, index int) error) (*bus.Registration, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil handler", bus.ErrInvalidArgument)
	}
	return bus.SubscribeToSource(l.scope.bus, l, func(ev *bus.ValueAdded) error {
		item, _ := ev.Value.(E)
		return fn(item, ev.Index)
	})
}

// OnRemoved registers fn for ValueRemoved events fired by the list.
func (l *ListProperty[E, D]) OnRemoved(fn func(item E, index int) error) (*bus.Registration, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil handler", bus.ErrInvalidArgument)
	}
	return bus.SubscribeToSource(l.scope.bus, l, func(ev *bus.ValueRemoved) error {
		item, _ := ev.Value.(E)
		return fn(item, ev.Index)
	})
}

// OnChange registers fn for ValueChanged events fired by Set.
func (l *ListProperty[E, D]) OnChange(fn func(*bus.ValueChanged) error) (*bus.Registration, error) {
	return bus.SubscribeToSource(l.scope.bus, l, fn)
}
