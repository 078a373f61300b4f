package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/vango-dev/bindery/pkg/bus"
)

func TestPropertyBasic(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "count", 0)

	if p.Get() != 0 {
		t.Errorf("expected initial value 0, got %d", p.Get())
	}
	if p.Touched() {
		t.Error("new property should be untouched")
	}
	if p.WasValid() != Yes {
		t.Errorf("new property WasValid() = %v, want yes", p.WasValid())
	}

	if err := p.Set(5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if p.Get() != 5 || p.Last() != 0 {
		t.Errorf("got value %d last %d, want 5 and 0", p.Get(), p.Last())
	}
	if !p.Touched() {
		t.Error("Set should touch the property")
	}
	if p.Scope() != s || p.Name() != "count" || p.ID() == 0 {
		t.Errorf("unexpected identity: scope %p name %q id %d", p.Scope(), p.Name(), p.ID())
	}
}

func TestPropertyIDsAreUnique(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	if a.ID() == b.ID() {
		t.Errorf("both properties got ID %d", a.ID())
	}
}

func TestSetIsIdempotent(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "p", 0)
	rec := record(t, s)

	if err := p.Set(5); err != nil {
		t.Fatal(err)
	}
	if err := p.Set(5); err != nil {
		t.Fatal(err)
	}

	if got := rec.count(bus.KindValueChanged); got != 1 {
		t.Errorf("expected 1 value-changed event, got %d", got)
	}
}

func TestSetFiresOldAndNew(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "name", "ada")

	var got *bus.ValueChanged
	if _, err := p.OnChange(func(ev *bus.ValueChanged) error {
		got = ev
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	_ = p.Set("grace")

	if got == nil {
		t.Fatal("expected a value-changed event")
	}
	if got.Old != "ada" || got.New != "grace" || got.Property != p {
		t.Errorf("got %+v", got)
	}
}

func TestSetUntouchedDoesNotSurfaceFailures(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "age", 0)
	NewRule(p, "age must be positive", func() bool { return p.Get() > 0 })
	rec := record(t, s)

	if err := p.SetUntouched(-1); err != nil {
		t.Fatal(err)
	}
	if p.Touched() {
		t.Error("SetUntouched should not touch")
	}
	if p.WasValid() != No {
		t.Errorf("WasValid() = %v, want no", p.WasValid())
	}
	if len(rec.messages()) != 0 {
		t.Errorf("untouched failure was announced: %v", rec.messages())
	}

	valid, err := p.Touch()
	if err != nil {
		t.Fatal(err)
	}
	if valid != No {
		t.Errorf("Touch() = %v, want no", valid)
	}
	if got := rec.messages(); !equalStrings(got, []string{"age must be positive"}) {
		t.Errorf("messages = %v", got)
	}
}

func TestTriggerEdgeSensitivity(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "p", 0)
	r := NewRule(p, "p must be positive", func() bool { return p.Get() > 0 })

	if _, err := p.Touch(); err != nil {
		t.Fatal(err)
	}
	if !r.Triggered() {
		t.Fatal("rule should be triggered after Touch")
	}

	rec := record(t, s)
	for _, v := range []int{-1, 1, -2} {
		if err := p.Set(v); err != nil {
			t.Fatal(err)
		}
	}

	transitions := rec.count(bus.KindRuleTriggered) + rec.count(bus.KindRuleUntriggered)
	if transitions != 2 {
		t.Errorf("expected 2 trigger/untrigger events, got %d", transitions)
	}
	if !r.Triggered() {
		t.Error("rule should end triggered")
	}
}

func TestPropagation(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 10)
	b := NewProperty(s, "b", 5)
	NewRule(b, "b must be less than a", func() bool { return b.Get() < a.Get() })
	a.AddDerived(b)

	if err := b.Reassess(); err != nil {
		t.Fatal(err)
	}
	if b.WasValid() != Yes {
		t.Fatalf("b.WasValid() = %v, want yes", b.WasValid())
	}

	if err := a.Set(1); err != nil {
		t.Fatal(err)
	}
	if b.WasValid() != No {
		t.Errorf("b.WasValid() = %v after a changed, want no", b.WasValid())
	}
}

func TestCrossValidationMessages(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 1)
	b := NewProperty(s, "b", 2)
	rec := record(t, s)

	NewRule(a, "a must be greater than b", func() bool { return a.Get() > b.Get() })
	a.AddDerived(b)
	NewRule(b, "b must be within 5 of a", func() bool { return abs(a.Get()-b.Get()) <= 5 })
	b.AddDerived(a)

	if err := a.Reassess(); err != nil {
		t.Fatal(err)
	}
	if got := rec.messages(); len(got) != 0 {
		t.Fatalf("messages before set = %v, want none", got)
	}

	if err := a.Set(-10); err != nil {
		t.Fatal(err)
	}

	want := []string{"b must be within 5 of a", "a must be greater than b"}
	if got := rec.messages(); !equalStrings(got, want) {
		t.Errorf("messages = %v, want %v", got, want)
	}
	if a.WasValid() != No || b.WasValid() != No {
		t.Errorf("WasValid() a=%v b=%v, want no and no", a.WasValid(), b.WasValid())
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d after Set, want 0", s.Depth())
	}
}

func TestTouchCascadesToDerived(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", "")
	b := NewProperty(s, "b", "")
	c := NewProperty(s, "c", "")
	Required(c, "")
	a.AddDerived(b).(*Property[string]).AddDerived(c)
	rec := record(t, s)

	if _, err := a.Touch(); err != nil {
		t.Fatal(err)
	}
	if !b.Touched() || !c.Touched() {
		t.Errorf("touched b=%v c=%v, want both", b.Touched(), c.Touched())
	}
	if got := rec.messages(); !equalStrings(got, []string{"c is required"}) {
		t.Errorf("messages = %v", got)
	}
}

func TestReassessFollowsAddDerivedOrder(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	var order []string
	for _, name := range []string{"c", "b", "d"} {
		p := NewProperty(s, name, 0)
		NewRule(p, name, func() bool {
			order = append(order, name)
			return true
		})
		a.AddDerived(p)
	}

	if err := a.Reassess(); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(order, ","); got != "c,b,d" {
		t.Errorf("reassessment order = %q, want c,b,d", got)
	}
}

func TestAddDerivedReturnsArgument(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)

	if got := a.AddDerived(b); got != Node(b) {
		t.Errorf("AddDerived returned %v, want b", got)
	}
	a.AddDerived(b)
	if n := len(a.Derived()); n != 1 {
		t.Errorf("len(Derived()) = %d, want 1", n)
	}
}

func TestWasValidHasNoSideEffects(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "p", 0)
	calls := 0
	NewRule(p, "counted", func() bool {
		calls++
		return false
	})

	_ = p.Reassess()
	for range 3 {
		if p.WasValid() != No {
			t.Fatal("expected no")
		}
	}
	if calls != 1 {
		t.Errorf("predicate ran %d times, want 1", calls)
	}
}

func TestDerivedRecomputes(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 1)
	b := NewProperty(s, "b", 1)
	total := NewDerived(s, "total", func() int { return a.Get() + b.Get() }).Depends(a, b)

	changes := 0
	if _, err := total.OnChange(func(*bus.ValueChanged) error {
		changes++
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	if total.Get() != 2 {
		t.Fatalf("total = %d, want 2", total.Get())
	}
	if err := a.Set(2); err != nil {
		t.Fatal(err)
	}
	if total.Get() != 3 || total.Last() != 2 {
		t.Errorf("total = %d last %d, want 3 and 2", total.Get(), total.Last())
	}
	if changes != 1 {
		t.Errorf("total fired %d changes, want 1", changes)
	}
}

func TestWithEquals(t *testing.T) {
	s := newTestScope()
	p := NewProperty(s, "p", "Ada").WithEquals(strings.EqualFold)
	rec := record(t, s)

	_ = p.Set("ADA")
	if rec.count(bus.KindValueChanged) != 0 || p.Get() != "Ada" {
		t.Errorf("equal value by custom equality was stored: %q", p.Get())
	}
	_ = p.Set("Grace")
	if rec.count(bus.KindValueChanged) != 1 {
		t.Errorf("expected 1 change, got %d", rec.count(bus.KindValueChanged))
	}
}

func TestHandlerErrorsReturnedAfterPropagation(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	a.AddDerived(b)
	reassessed := false
	NewRule(b, "b", func() bool {
		reassessed = true
		return true
	})

	sentinel := errors.New("listener failed")
	if _, err := a.OnChange(func(*bus.ValueChanged) error { return sentinel }); err != nil {
		t.Fatal(err)
	}

	err := a.Set(1)
	if !errors.Is(err, sentinel) {
		t.Fatalf("Set error = %v, want it to wrap the handler error", err)
	}
	var failure *bus.HandlerFailure
	if !errors.As(err, &failure) {
		t.Errorf("Set error = %T, want a *bus.HandlerFailure inside", err)
	}
	if a.Get() != 1 || !reassessed {
		t.Errorf("Set must complete despite the failure: value %d reassessed %v", a.Get(), reassessed)
	}
}

func TestOnlyIf(t *testing.T) {
	s := newTestScope()
	enabled := NewProperty(s, "enabled", true)
	name := NewProperty(s, "name", "")
	r := Required(name, "").OnlyIf(enabled.Get)
	enabled.AddDerived(name)

	if _, err := name.Touch(); err != nil {
		t.Fatal(err)
	}
	if !r.Triggered() {
		t.Fatal("rule should trigger while enabled")
	}

	if err := enabled.Set(false); err != nil {
		t.Fatal(err)
	}
	if r.Triggered() || name.WasValid() != Yes {
		t.Errorf("rule should pass while disabled: triggered %v valid %v", r.Triggered(), name.WasValid())
	}
}

func TestOnTriggerIsScopedToProperty(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	Range(a, 1, 10, "")
	Range(b, 1, 10, "")

	var triggered, untriggered []string
	if _, err := a.OnTrigger(func(ev *bus.RuleTriggered) error {
		triggered = append(triggered, ev.Message)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := a.OnUntrigger(func(ev *bus.RuleUntriggered) error {
		untriggered = append(untriggered, ev.Message)
		return nil
	}); err != nil {
		t.Fatal(err)
	}

	_ = b.Set(20)
	_ = a.Set(20)
	_ = a.Set(5)

	if !equalStrings(triggered, []string{"a must be between 1 and 10"}) {
		t.Errorf("triggered = %v", triggered)
	}
	if !equalStrings(untriggered, []string{"a must be between 1 and 10"}) {
		t.Errorf("untriggered = %v", untriggered)
	}
}

func TestAddRuleIgnoresForeignRules(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	r := NewRule(a, "a", func() bool { return true })

	b.AddRule(r)
	a.AddRule(r)
	if len(b.Rules()) != 0 || len(a.Rules()) != 1 {
		t.Errorf("rules a=%d b=%d, want 1 and 0", len(a.Rules()), len(b.Rules()))
	}
	if r.Property() != Node(a) {
		t.Error("rule bound to wrong property")
	}
}

func TestRulePanicStopsPropagation(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	a.AddDerived(b)
	NewRule(a, "explodes", func() bool { panic("boom") })
	reached := false
	NewRule(b, "b", func() bool {
		reached = true
		return true
	})

	err := a.Reassess()
	var re *RuleError
	if !errors.As(err, &re) {
		t.Fatalf("Reassess error = %v, want *RuleError", err)
	}
	if re.Value != "boom" || re.Property != "a" || len(re.Stack) == 0 {
		t.Errorf("RuleError = %+v", re)
	}
	if reached {
		t.Error("derived property reassessed after a rule panic")
	}
	if s.Depth() != 0 {
		t.Errorf("Depth() = %d, want 0", s.Depth())
	}
}

func TestCycleLimitStopsHandlerPingPong(t *testing.T) {
	s := newTestScope(WithMaxPassDepth(8))
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	_, _ = a.OnChange(func(*bus.ValueChanged) error { return b.Set(b.Get() + 1) })
	_, _ = b.OnChange(func(*bus.ValueChanged) error { return a.Set(a.Get() + 1) })

	err := a.Set(1)
	if !errors.Is(err, ErrCycleLimit) {
		t.Fatalf("Set error = %v, want ErrCycleLimit", err)
	}
	if a.Get() != 4 || b.Get() != 4 {
		t.Errorf("a=%d b=%d, want 4 and 4", a.Get(), b.Get())
	}
	if s.Depth() != 0 || s.Bus().Depth() != 0 {
		t.Errorf("depths not restored: scope %d bus %d", s.Depth(), s.Bus().Depth())
	}
}

func TestStrictCycleLimitPanics(t *testing.T) {
	s := newTestScope(WithMaxPassDepth(4), WithStrict(true))
	a := NewProperty(s, "a", 0)
	_, _ = a.OnChange(func(*bus.ValueChanged) error { return a.Set(a.Get() + 1) })

	defer func() {
		r := recover()
		if _, ok := r.(*bus.InvariantViolation); !ok {
			t.Fatalf("recovered %v, want *bus.InvariantViolation", r)
		}
		if s.Depth() != 0 || s.Bus().Depth() != 0 {
			t.Errorf("depths not restored: scope %d bus %d", s.Depth(), s.Bus().Depth())
		}
	}()
	_ = a.Set(1)
}

func TestMutualDerivationTerminates(t *testing.T) {
	s := newTestScope()
	a := NewProperty(s, "a", 0)
	b := NewProperty(s, "b", 0)
	c := NewProperty(s, "c", 0)
	a.AddDerived(b)
	b.AddDerived(c)
	c.AddDerived(a)
	visits := 0
	for _, p := range []*Property[int]{a, b, c} {
		NewRule(p, p.Name(), func() bool {
			visits++
			return true
		})
	}

	if err := a.Reassess(); err != nil {
		t.Fatal(err)
	}
	if visits != 3 {
		t.Errorf("rules ran %d times in one pass, want 3", visits)
	}
}

func TestNilScopeGetsPrivateBus(t *testing.T) {
	p := NewProperty(nil, "p", 1)
	if p.Scope() == nil || p.Scope().Bus() == nil {
		t.Fatal("expected a private scope and bus")
	}
	if err := p.Set(2); err != nil {
		t.Fatal(err)
	}
}

func TestValidString(t *testing.T) {
	if Yes.String() != "yes" || No.String() != "no" || Valid(0).String() != "unknown" {
		t.Errorf("unexpected names: %s %s %s", Yes, No, Valid(0))
	}
}
