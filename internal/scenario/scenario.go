package scenario

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"regexp"
	"strconv"

	"github.com/vango-dev/bindery/internal/errors"
	"github.com/vango-dev/bindery/pkg/model"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Property types.
const (
	TypeInt    = "int"
	TypeString = "string"
	TypeBool   = "bool"
)

// Position is a line and column in the scenario file.
type Position struct {
	Line   int
	Column int
}

// Scenario is a parsed scenario file.
type Scenario struct {
	// Name identifies the scenario in reports.
	Name string `yaml:"name"`

	// Description is free text.
	Description string `yaml:"description,omitempty"`

	Properties []PropertyDecl `yaml:"properties"`
	Rules      []RuleDecl     `yaml:"rules,omitempty"`
	Derived    []DerivedDecl  `yaml:"derived,omitempty"`
	Groups     []GroupDecl    `yaml:"groups,omitempty"`
	Steps      []Step         `yaml:"steps"`

	// Path is the file the scenario was loaded from, if any.
	Path string `yaml:"-"`

	validated bool
}

// PropertyDecl declares a property. Compute makes an int property derived
// from the properties its term reads.
type PropertyDecl struct {
	Name    string `yaml:"name"`
	Type    string `yaml:"type"`
	Value   any    `yaml:"value,omitempty"`
	Compute string `yaml:"compute,omitempty"`

	Pos     Position `yaml:"-"`
	initial any
	term    Term
}

// RuleDecl attaches a rule to a property. Exactly one of Expr and Validate
// is set.
type RuleDecl struct {
	Property string `yaml:"property"`
	Message  string `yaml:"message,omitempty"`
	Expr     string `yaml:"expr,omitempty"`
	Validate string `yaml:"validate,omitempty"`

	// OnlyIf is an optional comparison gating the rule.
	OnlyIf string `yaml:"onlyIf,omitempty"`

	Pos        Position `yaml:"-"`
	cmp        *Comparison
	cond       *Comparison
	validators []model.Validator
}

// DerivedDecl declares that To is reassessed whenever From is.
type DerivedDecl struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`

	Pos Position `yaml:"-"`
}

// GroupDecl declares a property group.
type GroupDecl struct {
	Name    string   `yaml:"name"`
	Message string   `yaml:"message,omitempty"`
	Members []string `yaml:"members"`

	Pos Position `yaml:"-"`
}

// Step is one action or check. Exactly one field other than Value is set.
type Step struct {
	Set          string         `yaml:"set,omitempty"`
	Value        any            `yaml:"value,omitempty"`
	Touch        string         `yaml:"touch,omitempty"`
	TouchGroup   string         `yaml:"touchGroup,omitempty"`
	Reassess     string         `yaml:"reassess,omitempty"`
	Expect       *Expect        `yaml:"expect,omitempty"`
	ExpectGroup  *ExpectGroup   `yaml:"expectGroup,omitempty"`
	ExpectEvents *[]string      `yaml:"expectEvents,omitempty"`
	ExpectError  *ExpectedError `yaml:"expectError,omitempty"`

	Pos   Position `yaml:"-"`
	value any
}

// Expect checks one property. Unset fields are not checked.
type Expect struct {
	Property string    `yaml:"property"`
	Valid    *bool     `yaml:"valid,omitempty"`
	Value    any       `yaml:"value,omitempty"`
	Messages *[]string `yaml:"messages,omitempty"`
	Touched  *bool     `yaml:"touched,omitempty"`

	value any
}

// ExpectGroup checks a group's aggregate validity and messages.
type ExpectGroup struct {
	Group    string    `yaml:"group"`
	Valid    *bool     `yaml:"valid,omitempty"`
	Messages *[]string `yaml:"messages,omitempty"`
}

// ExpectedError checks the error returned by the previous action step.
// An empty Code expects no error.
type ExpectedError struct {
	Code string `yaml:"code"`
}

// Kind returns the step's action name.
func (s *Step) Kind() string {
	switch {
	case s.Set != "":
		return "set"
	case s.Touch != "":
		return "touch"
	case s.TouchGroup != "":
		return "touchGroup"
	case s.Reassess != "":
		return "reassess"
	case s.Expect != nil:
		return "expect"
	case s.ExpectGroup != nil:
		return "expectGroup"
	case s.ExpectEvents != nil:
		return "expectEvents"
	case s.ExpectError != nil:
		return "expectError"
	default:
		return ""
	}
}

func (s *Step) actions() int {
	n := 0
	for _, set := range []bool{
		s.Set != "", s.Touch != "", s.TouchGroup != "", s.Reassess != "",
		s.Expect != nil, s.ExpectGroup != nil, s.ExpectEvents != nil, s.ExpectError != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// ----------------------------------------------------------------------------
// Loading
// ----------------------------------------------------------------------------

// Load reads, parses and validates the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("S001").WithDetail(path)
		}
		return nil, errors.New("S001").Wrap(err)
	}
	sc, err := parse(data, path)
	if err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Parse parses and validates a scenario held in memory.
func Parse(data []byte) (*Scenario, error) {
	sc, err := parse(data, "")
	if err != nil {
		return nil, err
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

var yamlLine = regexp.MustCompile(`line (\d+):`)

func parse(data []byte, path string) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, errors.New("S002").WithDetail("the file is empty")
		}
		e := errors.New("S002").WithDetail(err.Error())
		if m := yamlLine.FindStringSubmatch(err.Error()); m != nil && path != "" {
			line, _ := strconv.Atoi(m[1])
			e.WithLocation(path, line, 0)
		}
		return nil, e
	}
	sc.Path = path

	// The strict decode above cannot report positions; a second pass over
	// the node tree records them for error locations.
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err == nil {
		sc.locate(&root)
	}
	return &sc, nil
}

func (sc *Scenario) locate(root *yaml.Node) {
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	at := func(key string, n int, set func(i int, p Position)) {
		items := sequence(root, key)
		for i := 0; i < n && i < len(items); i++ {
			set(i, Position{Line: items[i].Line, Column: items[i].Column})
		}
	}
	at("properties", len(sc.Properties), func(i int, p Position) { sc.Properties[i].Pos = p })
	at("rules", len(sc.Rules), func(i int, p Position) { sc.Rules[i].Pos = p })
	at("derived", len(sc.Derived), func(i int, p Position) { sc.Derived[i].Pos = p })
	at("groups", len(sc.Groups), func(i int, p Position) { sc.Groups[i].Pos = p })
	at("steps", len(sc.Steps), func(i int, p Position) { sc.Steps[i].Pos = p })
}

// sequence returns the items of the sequence stored under key in mapping m.
func sequence(m *yaml.Node, key string) []*yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key && m.Content[i+1].Kind == yaml.SequenceNode {
			return m.Content[i+1].Content
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// Validation
// ----------------------------------------------------------------------------

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks names, types, expressions and steps, and compiles the
// expressions for Run. It returns the first problem as a coded error.
func (sc *Scenario) Validate() error {
	if sc.validated {
		return nil
	}
	props := make(map[string]*PropertyDecl, len(sc.Properties))

	if len(sc.Properties) == 0 {
		return errors.New("S007").WithDetail("a scenario declares at least one property")
	}
	for i := range sc.Properties {
		d := &sc.Properties[i]
		if err := sc.validateProperty(d, props); err != nil {
			return err
		}
		props[d.Name] = d
	}
	for i := range sc.Properties {
		if err := sc.validateCompute(&sc.Properties[i], props); err != nil {
			return err
		}
	}

	for i := range sc.Rules {
		if err := sc.validateRule(&sc.Rules[i], props); err != nil {
			return err
		}
	}

	for _, d := range sc.Derived {
		for _, name := range []string{d.From, d.To} {
			if props[name] == nil {
				return sc.at(errors.New("S003"), d.Pos).WithDetailf("derived edge references %q", name)
			}
		}
	}

	groups := make(map[string]bool, len(sc.Groups))
	for _, g := range sc.Groups {
		if !identPattern.MatchString(g.Name) || groups[g.Name] {
			return sc.at(errors.New("S008"), g.Pos).WithDetailf("group name %q is invalid or repeated", g.Name)
		}
		groups[g.Name] = true
		for _, m := range g.Members {
			if props[m] == nil {
				return sc.at(errors.New("S003"), g.Pos).WithDetailf("group %s lists %q", g.Name, m)
			}
		}
	}

	for i := range sc.Steps {
		if err := sc.validateStep(i, &sc.Steps[i], props, groups); err != nil {
			return err
		}
	}

	sc.validated = true
	return nil
}

func (sc *Scenario) validateProperty(d *PropertyDecl, props map[string]*PropertyDecl) error {
	if !identPattern.MatchString(d.Name) {
		return sc.at(errors.New("S007"), d.Pos).WithDetailf("%q is not a valid property name", d.Name)
	}
	if props[d.Name] != nil {
		return sc.at(errors.New("S007"), d.Pos).WithDetailf("property %s is declared twice", d.Name)
	}
	switch d.Type {
	case TypeInt, TypeString, TypeBool:
	default:
		return sc.at(errors.New("S007"), d.Pos).WithDetailf("property %s has type %q", d.Name, d.Type)
	}
	if d.Compute != "" && d.Type != TypeInt {
		return sc.at(errors.New("S007"), d.Pos).WithDetailf("computed property %s must be an int", d.Name)
	}
	v, err := coerce(d.Type, d.Value)
	if err != nil {
		return sc.at(errors.New("S007"), d.Pos).WithDetailf("property %s: %v", d.Name, err)
	}
	d.initial = v
	return nil
}

func (sc *Scenario) validateCompute(d *PropertyDecl, props map[string]*PropertyDecl) error {
	if d.Compute == "" {
		return nil
	}
	t, err := ParseTerm(d.Compute)
	if err != nil {
		return sc.at(errors.New("S004"), d.Pos).Wrap(err)
	}
	for _, name := range TermRefs(t) {
		if err := sc.checkIntRef(name, props, d.Pos); err != nil {
			return err
		}
		if name == d.Name {
			return sc.at(errors.New("S004"), d.Pos).WithDetailf("%s is computed from itself", d.Name)
		}
	}
	d.term = t
	return nil
}

func (sc *Scenario) validateRule(r *RuleDecl, props map[string]*PropertyDecl) error {
	target := props[r.Property]
	if target == nil {
		return sc.at(errors.New("S003"), r.Pos).WithDetailf("rule targets %q", r.Property)
	}
	switch {
	case (r.Expr == "") == (r.Validate == ""):
		return sc.at(errors.New("S004"), r.Pos).WithDetail("a rule has exactly one of expr and validate")
	case r.Expr != "":
		c, err := sc.compile(r.Expr, props, r.Pos)
		if err != nil {
			return err
		}
		if r.Message == "" {
			r.Message = fmt.Sprintf("%s must satisfy %s", r.Property, c)
		}
		r.cmp = c
	default:
		vs, err := model.ParseTag(r.Validate, kindOf(target.Type))
		if err != nil {
			return sc.at(errors.New("S005"), r.Pos).Wrap(err)
		}
		r.validators = vs
	}
	if r.OnlyIf != "" {
		c, err := sc.compile(r.OnlyIf, props, r.Pos)
		if err != nil {
			return err
		}
		r.cond = c
	}
	return nil
}

func (sc *Scenario) compile(src string, props map[string]*PropertyDecl, pos Position) (*Comparison, error) {
	c, err := ParseComparison(src)
	if err != nil {
		return nil, sc.at(errors.New("S004"), pos).Wrap(err)
	}
	for _, name := range c.Refs() {
		if err := sc.checkIntRef(name, props, pos); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (sc *Scenario) checkIntRef(name string, props map[string]*PropertyDecl, pos Position) error {
	d := props[name]
	if d == nil {
		return sc.at(errors.New("S003"), pos).WithDetailf("expression references %q", name)
	}
	if d.Type != TypeInt {
		return sc.at(errors.New("S004"), pos).WithDetailf("%s is a %s; expressions read int properties", name, d.Type)
	}
	return nil
}

func (sc *Scenario) validateStep(i int, s *Step, props map[string]*PropertyDecl, groups map[string]bool) error {
	bad := func(format string, args ...any) error {
		return sc.at(errors.New("S006"), s.Pos).WithDetailf("step %d: "+format, append([]any{i + 1}, args...)...)
	}
	if s.actions() != 1 {
		return bad("exactly one action is required, found %d", s.actions())
	}
	if s.Value != nil && s.Set == "" {
		return bad("value is only allowed with set")
	}

	prop := func(name string) (*PropertyDecl, error) {
		if d := props[name]; d != nil {
			return d, nil
		}
		return nil, sc.at(errors.New("S003"), s.Pos).WithDetailf("step %d references %q", i+1, name)
	}
	group := func(name string) error {
		if groups[name] {
			return nil
		}
		return sc.at(errors.New("S008"), s.Pos).WithDetailf("step %d references group %q", i+1, name)
	}

	switch s.Kind() {
	case "set":
		d, err := prop(s.Set)
		if err != nil {
			return err
		}
		if d.Compute != "" {
			return bad("%s is computed and cannot be set", d.Name)
		}
		v, err := coerce(d.Type, s.Value)
		if err != nil {
			return bad("%v", err)
		}
		s.value = v
	case "touch":
		_, err := prop(s.Touch)
		return err
	case "reassess":
		_, err := prop(s.Reassess)
		return err
	case "touchGroup":
		return group(s.TouchGroup)
	case "expect":
		d, err := prop(s.Expect.Property)
		if err != nil {
			return err
		}
		if s.Expect.Valid == nil && s.Expect.Value == nil && s.Expect.Messages == nil && s.Expect.Touched == nil {
			return bad("expect checks nothing")
		}
		if s.Expect.Value != nil {
			v, err := coerce(d.Type, s.Expect.Value)
			if err != nil {
				return bad("%v", err)
			}
			s.Expect.value = v
		}
	case "expectGroup":
		if err := group(s.ExpectGroup.Group); err != nil {
			return err
		}
		if s.ExpectGroup.Valid == nil && s.ExpectGroup.Messages == nil {
			return bad("expectGroup checks nothing")
		}
	case "expectError":
		if c := s.ExpectError.Code; c != "" {
			if _, ok := errors.Lookup(c); !ok {
				return bad("unknown error code %q", c)
			}
		}
	}
	return nil
}

func (sc *Scenario) at(e *errors.Error, pos Position) *errors.Error {
	if sc.Path != "" && pos.Line > 0 {
		return e.WithLocation(sc.Path, pos.Line, pos.Column)
	}
	return e
}

func kindOf(typ string) reflect.Kind {
	switch typ {
	case TypeInt:
		return reflect.Int
	case TypeBool:
		return reflect.Bool
	default:
		return reflect.String
	}
}

// coerce converts a decoded YAML scalar to the Go value of typ. A nil value
// is the zero value. Strings are NFC-normalized so that composed and
// decomposed spellings compare equal.
func coerce(typ string, v any) (any, error) {
	switch typ {
	case TypeInt:
		switch n := v.(type) {
		case nil:
			return 0, nil
		case int:
			return n, nil
		case float64:
			if n == float64(int(n)) {
				return int(n), nil
			}
		}
		return nil, fmt.Errorf("%v is not an int", v)
	case TypeBool:
		switch b := v.(type) {
		case nil:
			return false, nil
		case bool:
			return b, nil
		}
		return nil, fmt.Errorf("%v is not a bool", v)
	default:
		switch s := v.(type) {
		case nil:
			return "", nil
		case string:
			return norm.NFC.String(s), nil
		case int, float64, bool:
			return fmt.Sprint(s), nil
		}
		return nil, fmt.Errorf("%v is not a string", v)
	}
}
