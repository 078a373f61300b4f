package scenario

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/vango-dev/bindery/internal/errors"
	"github.com/vango-dev/bindery/pkg/bus"
	"github.com/vango-dev/bindery/pkg/model"
)

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger    *slog.Logger
	busOpts   []bus.Option
	scopeOpts []model.Option
}

// WithLogger sets the logger handed to the bus and the scope.
func WithLogger(logger *slog.Logger) Option {
	return func(c *runConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBusOptions adds options for the bus the run creates, such as
// observers.
func WithBusOptions(opts ...bus.Option) Option {
	return func(c *runConfig) {
		c.busOpts = append(c.busOpts, opts...)
	}
}

// WithScopeOptions adds options for the scope the run creates.
func WithScopeOptions(opts ...model.Option) Option {
	return func(c *runConfig) {
		c.scopeOpts = append(c.scopeOpts, opts...)
	}
}

// slot adapts one typed property to the untyped scenario values.
type slot struct {
	decl *PropertyDecl
	node model.Node
	get  func() any
	set  func(any) error
}

func newSlot[T any](d *PropertyDecl, p *model.Property[T]) *slot {
	return &slot{
		decl: d,
		node: p,
		get:  func() any { return p.Get() },
		set:  func(v any) error { return p.Set(v.(T)) },
	}
}

type graph struct {
	scope  *model.Scope
	props  map[string]*slot
	groups map[string]*model.Group
}

func (g *graph) env(name string) int {
	if s := g.props[name]; s != nil {
		n, _ := s.get().(int)
		return n
	}
	return 0
}

// build creates the properties, rules, edges and groups of sc in s.
func build(sc *Scenario, s *model.Scope) (*graph, error) {
	g := &graph{
		scope:  s,
		props:  make(map[string]*slot, len(sc.Properties)),
		groups: make(map[string]*model.Group, len(sc.Groups)),
	}

	for i := range sc.Properties {
		d := &sc.Properties[i]
		switch {
		case d.term != nil:
			term := d.term
			g.props[d.Name] = newSlot(d, model.NewDerived(s, d.Name, func() int { return term.Eval(g.env) }))
		case d.Type == TypeInt:
			g.props[d.Name] = newSlot(d, model.NewProperty(s, d.Name, d.initial.(int)))
		case d.Type == TypeBool:
			g.props[d.Name] = newSlot(d, model.NewProperty(s, d.Name, d.initial.(bool)))
		default:
			g.props[d.Name] = newSlot(d, model.NewProperty(s, d.Name, d.initial.(string)))
		}
	}

	var computed []model.Node
	for i := range sc.Properties {
		d := &sc.Properties[i]
		if d.term == nil {
			continue
		}
		n := g.props[d.Name].node
		for _, name := range TermRefs(d.term) {
			g.props[name].node.AddDerived(n)
		}
		computed = append(computed, n)
	}

	for i := range sc.Rules {
		g.addRule(&sc.Rules[i])
	}
	for _, d := range sc.Derived {
		g.props[d.From].node.AddDerived(g.props[d.To].node)
	}
	for _, gd := range sc.Groups {
		grp := model.NewGroup(gd.Name, gd.Message)
		for _, m := range gd.Members {
			grp.Add(g.props[m].node)
		}
		g.groups[gd.Name] = grp
	}

	// Computed values read at construction may be stale when they depend
	// on a property declared after them.
	for _, n := range computed {
		if err := n.Reassess(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *graph) addRule(d *RuleDecl) {
	sl := g.props[d.Property]
	var rules []*model.Rule
	switch {
	case d.cmp != nil:
		cmp := d.cmp
		rules = append(rules, model.NewRule(sl.node, d.Message, func() bool { return cmp.Eval(g.env) }))
	case d.Message != "":
		for _, v := range d.validators {
			rules = append(rules, model.NewRule(sl.node, d.Message, func() bool { return v.Validate(sl.get()) == nil }))
		}
	default:
		for _, v := range d.validators {
			rules = append(rules, model.Check(sl.node, v, sl.get))
		}
	}
	if d.cond != nil {
		cond := d.cond
		for _, r := range rules {
			r.OnlyIf(func() bool { return cond.Eval(g.env) })
		}
	}
}

// Run validates sc, builds its graph on a fresh bus and scope, and runs its
// steps in order. Failed expectations and action errors are recorded in the
// report; the returned error is reserved for scenarios that cannot run and
// for ctx being done between steps.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Report, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	rep := &Report{Name: sc.Name, Run: uuid.Must(uuid.NewV7()).String()}
	logger := cfg.logger.With("scenario", sc.Name, "run", rep.Run)

	b := bus.New(append([]bus.Option{bus.WithLogger(logger)}, cfg.busOpts...)...)
	s := model.NewScope(b, append([]model.Option{model.WithLogger(logger)}, cfg.scopeOpts...)...)
	g, err := build(sc, s)
	if err != nil {
		return nil, errors.Classify(err, "X002")
	}

	var cur *StepResult
	for _, k := range bus.Kinds() {
		_, err := b.AddHandler(k, bus.HandlerFunc(func(ev bus.Event) error {
			if cur != nil {
				cur.Events = append(cur.Events, bus.Describe(ev))
			}
			return nil
		}))
		if err != nil {
			return nil, err
		}
	}

	lastAction := -1
	for i := range sc.Steps {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		step := &sc.Steps[i]
		rep.Steps = append(rep.Steps, StepResult{
			Step:   i + 1,
			Line:   step.Pos.Line,
			Action: describe(step),
		})
		cur = &rep.Steps[i]

		if err := g.apply(step); err != nil {
			coded := errors.Classify(err, "X002")
			cur.Error, cur.Code = err.Error(), coded.Code
			logger.Warn("scenario: step failed", "step", cur.Step, "code", coded.Code, "error", err)
		}

		var last *StepResult
		if lastAction >= 0 {
			last = &rep.Steps[lastAction]
		}
		switch step.Kind() {
		case "set", "touch", "touchGroup", "reassess":
			lastAction = i
		case "expectEvents":
			cur.fail(checkEvents(*step.ExpectEvents, last)...)
		case "expectError":
			cur.fail(checkError(step.ExpectError.Code, last)...)
		default:
			cur.fail(g.check(step)...)
		}
		cur = nil
	}
	return rep, nil
}

// apply performs an action step. Check steps do nothing here.
func (g *graph) apply(step *Step) error {
	switch step.Kind() {
	case "set":
		return g.props[step.Set].set(step.value)
	case "touch":
		_, err := g.props[step.Touch].node.Touch()
		return err
	case "touchGroup":
		_, err := g.groups[step.TouchGroup].Touch()
		return err
	case "reassess":
		return g.props[step.Reassess].node.Reassess()
	}
	return nil
}

func (g *graph) check(step *Step) []string {
	var out []string
	switch {
	case step.Expect != nil:
		e := step.Expect
		sl := g.props[e.Property]
		if e.Valid != nil {
			if got := sl.node.WasValid() == model.Yes; got != *e.Valid {
				out = append(out, mismatch(e.Property+" valid", *e.Valid, got))
			}
		}
		if e.value != nil {
			if got := sl.get(); got != e.value {
				out = append(out, mismatch(e.Property+" value", e.value, got))
			}
		}
		if e.Touched != nil {
			if got := sl.node.Touched(); got != *e.Touched {
				out = append(out, mismatch(e.Property+" touched", *e.Touched, got))
			}
		}
		if e.Messages != nil {
			var got []string
			for _, r := range sl.node.Rules() {
				if r.Triggered() {
					got = append(got, r.Message())
				}
			}
			if !slices.Equal(got, *e.Messages) {
				out = append(out, mismatch(e.Property+" messages", *e.Messages, got))
			}
		}
	case step.ExpectGroup != nil:
		e := step.ExpectGroup
		grp := g.groups[e.Group]
		if e.Valid != nil {
			if got := grp.AllValid() == model.Yes; got != *e.Valid {
				out = append(out, mismatch(e.Group+" valid", *e.Valid, got))
			}
		}
		if e.Messages != nil {
			if got := grp.Messages(); !slices.Equal(got, *e.Messages) {
				out = append(out, mismatch(e.Group+" messages", *e.Messages, got))
			}
		}
	}
	return out
}

func checkEvents(want []string, last *StepResult) []string {
	var got []string
	if last != nil {
		got = last.Events
	}
	if slices.Equal(got, want) {
		return nil
	}
	return []string{mismatch("events", want, got)}
}

func checkError(code string, last *StepResult) []string {
	var got string
	if last != nil {
		got = last.Code
	}
	if got != code {
		return []string{mismatch("error code", code, got)}
	}
	if last != nil && code != "" {
		last.Expected = true
	}
	return nil
}

func mismatch(what string, want, got any) string {
	return fmt.Sprintf("%s: want %v, got %v", what, format(want), format(got))
}

func format(v any) any {
	switch v := v.(type) {
	case []string:
		if len(v) == 0 {
			return "[]"
		}
		return "[" + strings.Join(v, "; ") + "]"
	case string:
		return fmt.Sprintf("%q", v)
	default:
		return v
	}
}

func describe(step *Step) string {
	switch step.Kind() {
	case "set":
		return fmt.Sprintf("set %s = %v", step.Set, format(step.value))
	case "touch":
		return "touch " + step.Touch
	case "touchGroup":
		return "touch group " + step.TouchGroup
	case "reassess":
		return "reassess " + step.Reassess
	case "expect":
		return "expect " + step.Expect.Property
	case "expectGroup":
		return "expect group " + step.ExpectGroup.Group
	case "expectEvents":
		return "expect events"
	default:
		code := step.ExpectError.Code
		if code == "" {
			return "expect no error"
		}
		return "expect error " + code
	}
}
