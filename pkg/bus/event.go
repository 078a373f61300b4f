package bus

import "fmt"

// Kind identifies the variant of an Event. It keys the handler registry.
type Kind uint8

const (
	// KindNone is the zero Kind. It is never a valid registration key.
	KindNone Kind = iota

	// KindValueChanged is fired when a property accepts a new value.
	KindValueChanged

	// KindValueAdded is fired when an element is added to a list property.
	KindValueAdded

	// KindValueRemoved is fired when an element is removed from a list property.
	KindValueRemoved

	// KindRuleTriggered is fired when a rule transitions into the failing state.
	KindRuleTriggered

	// KindRuleUntriggered is fired when a triggered rule passes again.
	KindRuleUntriggered

	// KindNotice carries application-defined topics.
	KindNotice

	kindCount
)

// Kinds lists every valid Kind in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount-1)
	for k := KindNone + 1; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// Valid reports whether k names an event variant.
func (k Kind) Valid() bool {
	return k > KindNone && k < kindCount
}

// String returns the kind name used in logs, metrics and span names.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValueChanged:
		return "value_changed"
	case KindValueAdded:
		return "value_added"
	case KindValueRemoved:
		return "value_removed"
	case KindRuleTriggered:
		return "rule_triggered"
	case KindRuleUntriggered:
		return "rule_untriggered"
	case KindNotice:
		return "notice"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Named is implemented by the originators carried in event payloads.
type Named interface {
	Name() string
}

// Messenger is implemented by rules carried in rule events.
type Messenger interface {
	Message() string
}

// Event is the closed set of events the bus dispatches. The variants are
// *ValueChanged, *ValueAdded, *ValueRemoved, *RuleTriggered,
// *RuleUntriggered and *Notice.
type Event interface {
	Kind() Kind
	event()
}

// ValueChanged reports an accepted value change on a property.
type ValueChanged struct {
	Property Named
	Old      any
	New      any
}

// ValueAdded reports an element appended to a list property.
type ValueAdded struct {
	Property Named
	Value    any
	Index    int
}

// ValueRemoved reports an element removed from a list property.
// Index is the position the element occupied before removal.
type ValueRemoved struct {
	Property Named
	Value    any
	Index    int
}

// RuleTriggered reports a rule entering the failing state.
type RuleTriggered struct {
	Property Named
	Rule     Messenger
	Message  string
}

// RuleUntriggered reports a rule leaving the failing state.
type RuleUntriggered struct {
	Property Named
	Rule     Messenger
	Message  string
}

// Notice is an application-defined event.
type Notice struct {
	Topic   string
	Payload any
}

func (*ValueChanged) Kind() Kind    { return KindValueChanged }
func (*ValueAdded) Kind() Kind      { return KindValueAdded }
func (*ValueRemoved) Kind() Kind    { return KindValueRemoved }
func (*RuleTriggered) Kind() Kind   { return KindRuleTriggered }
func (*RuleUntriggered) Kind() Kind { return KindRuleUntriggered }
func (*Notice) Kind() Kind          { return KindNotice }

func (*ValueChanged) event()    {}
func (*ValueAdded) event()      {}
func (*ValueRemoved) event()    {}
func (*RuleTriggered) event()   {}
func (*RuleUntriggered) event() {}
func (*Notice) event()          {}

// Describe renders ev as a single human-readable line.
func Describe(ev Event) string {
	switch e := ev.(type) {
	case *ValueChanged:
		return fmt.Sprintf("%s %s: %v -> %v", e.Kind(), nameOf(e.Property), e.Old, e.New)
	case *ValueAdded:
		return fmt.Sprintf("%s %s[%d]: %v", e.Kind(), nameOf(e.Property), e.Index, e.Value)
	case *ValueRemoved:
		return fmt.Sprintf("%s %s[%d]: %v", e.Kind(), nameOf(e.Property), e.Index, e.Value)
	case *RuleTriggered:
		return fmt.Sprintf("%s %s: %s", e.Kind(), nameOf(e.Property), e.Message)
	case *RuleUntriggered:
		return fmt.Sprintf("%s %s: %s", e.Kind(), nameOf(e.Property), e.Message)
	case *Notice:
		return fmt.Sprintf("%s %s: %v", e.Kind(), e.Topic, e.Payload)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%s %T", ev.Kind(), ev)
	}
}

func nameOf(n Named) string {
	if n == nil {
		return "<anonymous>"
	}
	return n.Name()
}
