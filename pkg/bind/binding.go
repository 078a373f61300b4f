package bind

import (
	"errors"

	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/model"
)

// ErrUnbound is returned by Push after Unbind.
var ErrUnbound = errors.New("bind: binding was removed")

// Binding keeps a widget value in step with a property.
type Binding[T any] struct {
	prop   *model.Property[T]
	target TakesValue[T]
	reg    *bus.Registration
}

// Bind copies p's value into target now and whenever p changes.
func Bind[T any](p *model.Property[T], target TakesValue[T]) (*Binding[T], error) {
	b := &Binding[T]{prop: p, target: target}
	reg, err := p.OnChange(func(ev *bus.ValueChanged) error {
		if v, ok := ev.New.(T); ok {
			target.SetValue(v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.reg = reg
	target.SetValue(p.Get())
	return b, nil
}

// Push copies the widget's value into the property, as when the user edits
// the widget.
func (b *Binding[T]) Push() error {
	if b.reg == nil {
		return ErrUnbound
	}
	return b.prop.Set(b.target.Value())
}

// Unbind stops copying property changes into the widget.
func (b *Binding[T]) Unbind() {
	if b.reg != nil {
		b.reg.Remove()
		b.reg = nil
	}
}

// IntBinding binds an int property to a text widget through model.IntText,
// so text that does not parse marks the property invalid.
type IntBinding struct {
	text   *model.IntText
	target TakesValue[string]
	reg    *bus.Registration
}

// BindInt binds p to a text widget.
func BindInt(p *model.Property[int], target TakesValue[string]) (*IntBinding, error) {
	text, err := model.NewIntText(p)
	if err != nil {
		return nil, err
	}
	b := &IntBinding{text: text, target: target}
	reg, err := p.OnChange(func(*bus.ValueChanged) error {
		target.SetValue(text.Get())
		return nil
	})
	if err != nil {
		return nil, err
	}
	b.reg = reg
	target.SetValue(text.Get())
	return b, nil
}

// Push parses the widget's text into the property.
func (b *IntBinding) Push() error {
	if b.reg == nil {
		return ErrUnbound
	}
	return b.text.Set(b.target.Value())
}

// Rule returns the rule that fails while the text does not parse.
func (b *IntBinding) Rule() *model.Rule {
	return b.text.Rule()
}

// Unbind stops copying property changes into the widget.
func (b *IntBinding) Unbind() {
	if b.reg != nil {
		b.reg.Remove()
		b.reg = nil
	}
}
