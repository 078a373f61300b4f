package bus

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidArgument is returned when a registration or firing is attempted
// with an absent kind, handler, event or source. Nothing is mutated.
var ErrInvalidArgument = errors.New("bus: invalid argument")

var (
	errNilKind    = fmt.Errorf("%w: cannot add a handler with an absent kind", ErrInvalidArgument)
	errNilHandler = fmt.Errorf("%w: cannot add a nil handler", ErrInvalidArgument)
	errNilSource  = fmt.Errorf("%w: source cannot be nil", ErrInvalidArgument)
	errBadSource  = fmt.Errorf("%w: source must be comparable", ErrInvalidArgument)
	errNilEvent   = fmt.Errorf("%w: cannot fire a nil event", ErrInvalidArgument)
)

// HandlerFailure is the umbrella error returned by Fire when one or more
// handlers failed. Every handler of the firing ran before it was returned.
type HandlerFailure struct {
	Kind   Kind
	Causes []error
}

// Error summarizes the failures.
func (e *HandlerFailure) Error() string {
	if len(e.Causes) == 1 {
		return fmt.Sprintf("bus: handler failed dispatching %s: %v", e.Kind, e.Causes[0])
	}
	msgs := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("bus: %d handlers failed dispatching %s: %s",
		len(e.Causes), e.Kind, strings.Join(msgs, "; "))
}

// Unwrap exposes every cause to errors.Is and errors.As.
func (e *HandlerFailure) Unwrap() []error {
	return e.Causes
}

// HandlerPanic wraps a panic recovered from a handler.
type HandlerPanic struct {
	Kind     Kind
	Position int
	Value    any
	Stack    []byte
}

// Error returns the error message.
func (e *HandlerPanic) Error() string {
	return fmt.Sprintf("bus: handler %d panicked dispatching %s: %v", e.Position, e.Kind, e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *HandlerPanic) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// InvariantViolation signals a bookkeeping bug in the registry, such as
// removing a handler that is not registered. It is raised with panic and is
// not meant to be recovered by callers.
type InvariantViolation struct {
	Op     string
	Detail string
}

// Error returns the error message.
func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("bus: invariant violated in %s: %s", e.Op, e.Detail)
}

func violate(op, format string, args ...any) {
	panic(&InvariantViolation{Op: op, Detail: fmt.Sprintf(format, args...)})
}
