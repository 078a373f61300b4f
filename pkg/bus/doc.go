// Package bus provides the synchronous event bus that the property graph and
// application code use to notify listeners.
//
// Handlers are registered per event Kind, either globally or scoped to a
// single source identity:
//
//	b := bus.New()
//	reg, err := b.AddHandler(bus.KindValueChanged, bus.HandlerFunc(func(ev bus.Event) error {
//	    fmt.Println(bus.Describe(ev))
//	    return nil
//	}))
//	...
//	reg.Remove()
//
// Typed subscriptions use the generic helpers, which pick the Kind from the
// event type:
//
//	bus.Subscribe(b, func(ev *bus.ValueChanged) error { ... })
//
// # Dispatch
//
// Fire and FireFromSource dispatch synchronously. For a firing from a source
// the dispatch list is the handlers registered for that source followed by
// the global handlers, each in registration order. The list is walked by
// position over the live registry, so a handler added during a firing runs in
// the same pass once the cursor reaches it.
//
// # Reentrancy
//
// Handlers may register, remove, or fire from inside a dispatch. A handler
// removed while any firing is in progress stays in its list as a tombstone:
// firings already under way still reach it, firings that start afterwards
// skip it, and the registry is compacted when the outermost firing returns.
//
// # Errors
//
// A failing handler (returned error or panic) does not stop the walk. All
// failures of one firing are returned together as a *HandlerFailure.
//
// A Bus is not safe for concurrent use. It is meant to be owned by a single
// event loop and passed explicitly to the components that publish on it.
package bus
