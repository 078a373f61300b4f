package model

import (
	"fmt"
	"log/slog"

	"github.com/vango-dev/bindery/pkg/bus"
)

// DefaultMaxPassDepth is the number of nested operations (Set, Touch,
// Reassess and the list mutators) allowed before ErrCycleLimit is returned.
const DefaultMaxPassDepth = 64

// Scope owns the bus properties publish on and the reassessment passes in
// progress. It replaces any process-wide registry: components that publish or
// subscribe receive the scope explicitly.
type Scope struct {
	bus          *bus.Bus
	logger       *slog.Logger
	maxPassDepth int
	strict       bool

	// depth counts the mutating operations in progress on the call stack.
	depth int

	// passes is the stack of open reassessment passes.
	passes []*pass
}

// pass is one top-level reassessment. visited holds every property already
// reassessed in it.
type pass struct {
	visited map[*core]struct{}
}

// Option configures a Scope.
type Option func(*Scope)

// WithLogger sets the scope's logger. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxPassDepth bounds the number of nested operations.
// Values below 1 keep DefaultMaxPassDepth.
func WithMaxPassDepth(n int) Option {
	return func(s *Scope) {
		if n > 0 {
			s.maxPassDepth = n
		}
	}
}

// WithStrict makes exceeding the pass depth panic with *bus.InvariantViolation
// instead of returning ErrCycleLimit.
func WithStrict(strict bool) Option {
	return func(s *Scope) {
		s.strict = strict
	}
}

// NewScope creates a scope publishing on b. A nil bus gets a new one that
// shares the scope's logger.
func NewScope(b *bus.Bus, opts ...Option) *Scope {
	s := &Scope{
		logger:       slog.Default(),
		maxPassDepth: DefaultMaxPassDepth,
	}
	for _, opt := range opts {
		opt(s)
	}
	if b == nil {
		b = bus.New(bus.WithLogger(s.logger))
	}
	s.bus = b
	return s
}

// Bus returns the bus the scope's properties fire on.
func (s *Scope) Bus() *bus.Bus {
	return s.bus
}

// Logger returns the scope's logger.
func (s *Scope) Logger() *slog.Logger {
	return s.logger
}

// Depth returns the number of nested operations in progress.
func (s *Scope) Depth() int {
	return s.depth
}

// enter counts one nested operation on the scope's properties. The returned
// function must be called when the operation finishes.
func (s *Scope) enter(origin string) (func(), error) {
	if s.depth >= s.maxPassDepth {
		err := fmt.Errorf("%w: %d nested operations at %s", ErrCycleLimit, s.depth, origin)
		s.logger.Warn("model: cycle limit reached",
			"property", origin,
			"depth", s.depth)
		if s.strict {
			panic(&bus.InvariantViolation{Op: "reassess", Detail: err.Error()})
		}
		return nil, err
	}
	s.depth++
	return func() { s.depth-- }, nil
}

// withPass runs fn in a new reassessment pass.
func (s *Scope) withPass(fn func(*pass) error) error {
	p := &pass{visited: make(map[*core]struct{})}
	s.passes = append(s.passes, p)
	defer func() {
		s.passes = s.passes[:len(s.passes)-1]
	}()
	return fn(p)
}
