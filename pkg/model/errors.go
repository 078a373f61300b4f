package model

import (
	"errors"
	"fmt"
)

// ErrCycleLimit is returned when reassessments keep nesting past the scope's
// maximum pass depth, which happens when handlers keep mutating properties
// that feed back into each other.
var ErrCycleLimit = errors.New("model: reassessment cycle limit exceeded")

// ErrUnknownValidator is returned by ParseTag for a rule name it does not know.
var ErrUnknownValidator = errors.New("model: unknown validator")

// RuleError reports a rule predicate that panicked during reassessment.
// Propagation to derived properties stops when one is raised.
type RuleError struct {
	Property string
	Message  string
	Value    any
	Stack    []byte
}

// Error returns the error message.
func (e *RuleError) Error() string {
	return fmt.Sprintf("model: rule %q on %s panicked: %v", e.Message, e.Property, e.Value)
}

// Unwrap returns the panic value when it was an error.
func (e *RuleError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
