// Package model provides the reactive property graph: observable, validated
// values that propagate change and validity to the properties derived from
// them.
//
// # Core Types
//
// A Scope owns the event bus and the reassessment bookkeeping. Every property
// is created inside one:
//
//	s := model.NewScope(bus.New())
//	a := model.NewProperty(s, "a", 1)
//	b := model.NewProperty(s, "b", 2)
//
// Rules bind a predicate and a message to one property:
//
//	model.NewRule(a, "a must be greater than b", func() bool {
//	    return a.Get() > b.Get()
//	})
//	a.AddDerived(b)
//
// Set stores the value, fires a ValueChanged event from the property and
// reassesses it. Reassessment evaluates the rules in attachment order, fires
// RuleTriggered or RuleUntriggered on transitions only, records the validity
// returned by WasValid and then reassesses every derived property in the
// order AddDerived was called.
//
// # Touched
//
// Failures of an untouched property count toward its validity but are not
// announced. Set, Touch and the list mutators mark a property touched; the
// flag never reverts and cascades to derived properties.
//
// # Cycles
//
// Each top-level Reassess opens a pass. A property already reassessed in the
// pass is not visited again, so mutually derived properties terminate.
// Handlers that mutate properties while an operation is running nest further
// operations; nesting deeper than the scope's maximum depth yields
// ErrCycleLimit and leaves the rejected mutation unapplied.
//
// # Thread Safety
//
// A Scope and its properties are not safe for concurrent use. They are meant
// to be driven from a single event loop.
package model
