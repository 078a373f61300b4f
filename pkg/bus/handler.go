package bus

// Handler receives dispatched events. A returned error is collected into the
// firing's *HandlerFailure; it does not stop the remaining handlers.
type Handler interface {
	Handle(ev Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ev Event) error

// Handle calls f(ev).
func (f HandlerFunc) Handle(ev Event) error {
	return f(ev)
}

// On adapts a typed function to a Handler. Events of other variants are
// ignored, so the handler is safe to register for any kind.
func On[E Event](fn func(E) error) Handler {
	return HandlerFunc(func(ev Event) error {
		if e, ok := ev.(E); ok {
			return fn(e)
		}
		return nil
	})
}

// KindOf returns the Kind of the event variant E.
func KindOf[E Event]() Kind {
	var zero E
	return zero.Kind()
}

// Subscribe registers fn as a global handler for the kind of E.
//
//	bus.Subscribe(b, func(ev *bus.RuleTriggered) error {
//	    log.Println(ev.Message)
//	    return nil
//	})
func Subscribe[E Event](b *Bus, fn func(E) error) (*Registration, error) {
	if fn == nil {
		return nil, errNilHandler
	}
	return b.AddHandler(KindOf[E](), On(fn))
}

// SubscribeToSource registers fn for the kind of E, scoped to source.
func SubscribeToSource[E Event](b *Bus, source any, fn func(E) error) (*Registration, error) {
	if fn == nil {
		return nil, errNilHandler
	}
	return b.AddHandlerToSource(KindOf[E](), source, On(fn))
}

func isNilHandler(h Handler) bool {
	if h == nil {
		return true
	}
	if f, ok := h.(HandlerFunc); ok && f == nil {
		return true
	}
	return false
}
