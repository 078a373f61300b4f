package bind

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidField is returned by Field.Validate.
var ErrInvalidField = errors.New("bind: invalid field")

// Field is what the view generator knows about one declared field: its
// logical name, its declared type and whether it is a typed widget rather
// than a plain element.
type Field struct {
	Name   string
	Type   string
	Widget bool
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks that the field can be emitted as a Go identifier with a
// declared type.
func (f Field) Validate() error {
	if !identPattern.MatchString(f.Name) {
		return fmt.Errorf("%w: name %q is not an identifier", ErrInvalidField, f.Name)
	}
	if f.Type == "" {
		return fmt.Errorf("%w: %s has no type", ErrInvalidField, f.Name)
	}
	return nil
}

// String renders the field as "name type", with a "widget" suffix for
// typed widgets.
func (f Field) String() string {
	if f.Widget {
		return f.Name + " " + f.Type + " widget"
	}
	return f.Name + " " + f.Type
}
