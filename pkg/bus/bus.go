package bus

import (
	"log/slog"
	"reflect"
	"runtime/debug"
	"slices"
)

// globalKey is the source key of handlers registered without a source.
type globalKey struct{}

var global any = globalKey{}

// entry is one registered handler. Registrations hold the *entry, so removal
// matches by identity. A removed entry stays in its bucket as a tombstone
// until the outermost firing returns.
type entry struct {
	h Handler

	// removedAt is the id of the most recent pass started when the entry
	// was removed. Passes that started later skip it.
	removedAt uint64
	removed   bool
}

// bucketKey addresses one handler list in the registry.
type bucketKey struct {
	kind   Kind
	source any
}

// Bus is a kind- and source-keyed handler registry with reentrant-safe
// registration and fault-isolated synchronous dispatch.
type Bus struct {
	// handlers maps kind -> source key -> ordered handler slots.
	// A bucket is deleted as soon as it holds no handlers.
	handlers map[Kind]map[any][]*entry

	// firingDepth counts nested Fire calls on the current stack.
	firingDepth int

	// passes numbers firings; each firing takes the next id.
	passes uint64

	// needsCleaning lists buckets holding tombstones, in first-marked order.
	needsCleaning []bucketKey
	pending       map[bucketKey]struct{}

	logger    *slog.Logger
	observers []Observer
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[Kind]map[any][]*entry),
		pending:  make(map[bucketKey]struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registration is returned by AddHandler and AddHandlerToSource.
type Registration struct {
	bus   *Bus
	key   bucketKey
	entry *entry
}

// Remove unregisters the handler. During a firing the handler is tombstoned:
// passes already in progress still invoke it, later passes skip it, and the
// list is compacted when the outermost firing returns. Outside a firing
// removal is immediate. Removing the same registration twice panics with
// *InvariantViolation.
func (r *Registration) Remove() {
	if r.bus.firingDepth > 0 {
		r.bus.removeDeferred(r.key, r.entry)
	} else {
		r.bus.removeNow(r.key, r.entry)
	}
}

// Kind returns the kind the handler was registered for.
func (r *Registration) Kind() Kind {
	return r.key.kind
}

// AddHandler registers h for every event of kind, regardless of source.
func (b *Bus) AddHandler(kind Kind, h Handler) (*Registration, error) {
	if !kind.Valid() {
		return nil, errNilKind
	}
	if isNilHandler(h) {
		return nil, errNilHandler
	}
	return b.doAdd(kind, global, h), nil
}

// AddHandlerToSource registers h for events of kind fired from source.
// The source must be comparable; pointers are the usual choice.
func (b *Bus) AddHandlerToSource(kind Kind, source any, h Handler) (*Registration, error) {
	if !kind.Valid() {
		return nil, errNilKind
	}
	if err := checkSource(source); err != nil {
		return nil, err
	}
	if isNilHandler(h) {
		return nil, errNilHandler
	}
	return b.doAdd(kind, source, h), nil
}

// Fire dispatches ev to the global handlers of its kind.
func (b *Bus) Fire(ev Event) error {
	if ev == nil || !ev.Kind().Valid() {
		return errNilEvent
	}
	return b.doFire(ev, nil)
}

// FireFromSource dispatches ev to the handlers registered for source, then
// to the global handlers of its kind.
func (b *Bus) FireFromSource(ev Event, source any) error {
	if ev == nil || !ev.Kind().Valid() {
		return errNilEvent
	}
	if err := checkSource(source); err != nil {
		return err
	}
	return b.doFire(ev, source)
}

// HandlerCount returns the number of live handlers for kind and source.
// A nil source counts the global handlers.
func (b *Bus) HandlerCount(kind Kind, source any) int {
	if source == nil {
		source = global
	} else if !hashable(source) {
		return 0
	}
	n := 0
	for _, e := range b.list(kind, source) {
		if !e.removed {
			n++
		}
	}
	return n
}

// Buckets returns the number of handler lists currently held.
func (b *Bus) Buckets() int {
	n := 0
	for _, sources := range b.handlers {
		n += len(sources)
	}
	return n
}

// Depth returns the current firing depth.
func (b *Bus) Depth() int {
	return b.firingDepth
}

func (b *Bus) doAdd(kind Kind, source any, h Handler) *Registration {
	key := bucketKey{kind: kind, source: source}
	e := &entry{h: h}
	sources := b.handlers[kind]
	if sources == nil {
		sources = make(map[any][]*entry)
		b.handlers[kind] = sources
	}
	sources[source] = append(sources[source], e)
	return &Registration{bus: b, key: key, entry: e}
}

func (b *Bus) doFire(ev Event, source any) (err error) {
	b.firingDepth++
	b.passes++
	pass := b.passes

	var stats FireStats
	finishers := make([]func(FireStats, error), 0, len(b.observers))
	for _, o := range b.observers {
		finishers = append(finishers, o.BeginFire(ev, source, b.firingDepth))
	}

	defer func() {
		stats.Pending = len(b.needsCleaning)
		for _, finish := range finishers {
			if finish != nil {
				finish(stats, err)
			}
		}
		b.firingDepth--
		if b.firingDepth == 0 {
			b.executeCleaning()
		}
	}()

	kind := ev.Kind()
	var causes []error
	position := 0

	walk := func(key any) {
		// Re-read the bucket on every step: handlers added during the
		// pass land past the cursor and must be visited.
		for i := 0; ; i++ {
			l := b.list(kind, key)
			if i >= len(l) {
				return
			}
			e := l[i]
			if e.removed && e.removedAt < pass {
				continue
			}
			position++
			stats.Invoked++
			if herr := b.dispatch(e, ev, position); herr != nil {
				stats.Failures++
				if _, ok := herr.(*HandlerPanic); ok {
					stats.Panics++
				}
				b.logger.Warn("bus: handler failed",
					"kind", kind.String(),
					"position", position,
					"depth", b.firingDepth,
					"error", herr)
				causes = append(causes, herr)
			}
		}
	}

	if source != nil {
		walk(source)
	}
	walk(global)

	if len(causes) > 0 {
		return &HandlerFailure{Kind: kind, Causes: causes}
	}
	return nil
}

// dispatch invokes one handler, turning a panic into a *HandlerPanic.
// Invariant violations are re-raised.
func (b *Bus) dispatch(e *entry, ev Event, position int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if iv, ok := r.(*InvariantViolation); ok {
				panic(iv)
			}
			stack := debug.Stack()
			b.logger.Error("bus: handler panic",
				"kind", ev.Kind().String(),
				"position", position,
				"panic", r,
				"stack", string(stack))
			err = &HandlerPanic{Kind: ev.Kind(), Position: position, Value: r, Stack: stack}
		}
	}()
	return e.h.Handle(ev)
}

func (b *Bus) removeNow(key bucketKey, e *entry) {
	l := b.list(key.kind, key.source)
	idx := slices.Index(l, e)
	if idx < 0 || e.removed {
		violate("remove", "handler was not registered for %s", key.kind)
	}
	e.removed = true
	l = slices.Delete(l, idx, idx+1)
	b.handlers[key.kind][key.source] = l
	if len(l) == 0 {
		b.prune(key)
	}
}

func (b *Bus) removeDeferred(key bucketKey, e *entry) {
	l := b.list(key.kind, key.source)
	if slices.Index(l, e) < 0 || e.removed {
		violate("remove", "handler was not registered for %s", key.kind)
	}
	e.removed = true
	e.removedAt = b.passes
	if _, ok := b.pending[key]; !ok {
		b.pending[key] = struct{}{}
		b.needsCleaning = append(b.needsCleaning, key)
	}
	b.logger.Debug("bus: removal deferred",
		"kind", key.kind.String(),
		"depth", b.firingDepth)
}

// executeCleaning compacts tombstoned buckets once no firing is in progress.
func (b *Bus) executeCleaning() {
	if len(b.needsCleaning) == 0 {
		return
	}
	defer func() {
		b.needsCleaning = b.needsCleaning[:0]
		clear(b.pending)
	}()
	for _, key := range b.needsCleaning {
		l := slices.DeleteFunc(b.list(key.kind, key.source), func(e *entry) bool {
			return e.removed
		})
		b.handlers[key.kind][key.source] = l
		if len(l) == 0 {
			b.prune(key)
		}
	}
	b.logger.Debug("bus: compacted handler lists", "buckets", len(b.needsCleaning))
}

func (b *Bus) prune(key bucketKey) {
	sources := b.handlers[key.kind]
	pruned, ok := sources[key.source]
	if !ok {
		violate("prune", "no handler list for %s", key.kind)
	}
	if slices.ContainsFunc(pruned, func(e *entry) bool { return !e.removed }) {
		violate("prune", "pruned a non-empty handler list for %s", key.kind)
	}
	delete(sources, key.source)
	if len(sources) == 0 {
		delete(b.handlers, key.kind)
	}
}

// list returns the bucket for kind and source without creating it.
func (b *Bus) list(kind Kind, source any) []*entry {
	sources := b.handlers[kind]
	if sources == nil {
		return nil
	}
	return sources[source]
}

func checkSource(source any) error {
	if source == nil {
		return errNilSource
	}
	if !hashable(source) {
		return errBadSource
	}
	return nil
}

// hashable reports whether source can be used as a map key. A comparable
// struct type may still hold an uncomparable value in an interface field,
// which only shows when the value is hashed.
func hashable(source any) (ok bool) {
	if !reflect.TypeOf(source).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	keys := map[any]struct{}{}
	keys[source] = struct{}{}
	return true
}
