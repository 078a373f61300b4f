package bus

import "log/slog"

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used for handler failures and registry
// bookkeeping. A nil logger keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithObserver adds an observer notified around every firing.
func WithObserver(o Observer) Option {
	return func(b *Bus) {
		if o != nil {
			b.observers = append(b.observers, o)
		}
	}
}

// FireStats summarizes one firing for observers.
type FireStats struct {
	// Invoked is the number of handlers called.
	Invoked int

	// Failures is the number of handlers that returned an error or panicked.
	Failures int

	// Panics is the subset of Failures that panicked.
	Panics int

	// Pending is the number of handler lists awaiting compaction when the
	// firing finished.
	Pending int
}

// Observer is notified around every firing. BeginFire is called before the
// first handler runs; the returned function, if non-nil, is called once the
// walk is complete, before deferred removals are compacted.
//
// Observers must not fire events or mutate the registry.
type Observer interface {
	BeginFire(ev Event, source any, depth int) func(stats FireStats, err error)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev Event, source any, depth int) func(stats FireStats, err error)

// BeginFire calls f.
func (f ObserverFunc) BeginFire(ev Event, source any, depth int) func(FireStats, error) {
	return f(ev, source, depth)
}
