package model

import (
	"io"
	"log/slog"
	"testing"

	"github.com/vango-dev/bindery/pkg/bus"
)

func newTestScope(opts ...Option) *Scope {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	b := bus.New(bus.WithLogger(logger))
	return NewScope(b, append([]Option{WithLogger(logger)}, opts...)...)
}

// recorder collects every event fired on a bus.
type recorder struct {
	events []bus.Event
}

func record(t *testing.T, s *Scope) *recorder {
	t.Helper()
	r := &recorder{}
	for _, k := range bus.Kinds() {
		if _, err := s.Bus().AddHandler(k, bus.HandlerFunc(func(ev bus.Event) error {
			r.events = append(r.events, ev)
			return nil
		})); err != nil {
			t.Fatalf("AddHandler(%v): %v", k, err)
		}
	}
	return r
}

// messages returns the messages of the RuleTriggered events, in order.
func (r *recorder) messages() []string {
	var msgs []string
	for _, ev := range r.events {
		if rt, ok := ev.(*bus.RuleTriggered); ok {
			msgs = append(msgs, rt.Message)
		}
	}
	return msgs
}

// count returns the number of recorded events of kind k.
func (r *recorder) count(k bus.Kind) int {
	n := 0
	for _, ev := range r.events {
		if ev.Kind() == k {
			n++
		}
	}
	return n
}

func (r *recorder) reset() {
	r.events = nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
