package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// StepResult is what one step did and whether its checks held.
type StepResult struct {
	Step   int    `json:"step"`
	Line   int    `json:"line,omitempty"`
	Action string `json:"action"`

	// Events are the bus events dispatched while the step ran, described
	// one per line.
	Events []string `json:"events,omitempty"`

	// Failures are the checks of the step that did not hold.
	Failures []string `json:"failures,omitempty"`

	// Error is the error returned by an action step, with its code.
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`

	// Expected is set when a following expectError step matched Code.
	Expected bool `json:"expected,omitempty"`
}

func (r *StepResult) fail(msgs ...string) {
	r.Failures = append(r.Failures, msgs...)
}

// OK reports whether the step's checks held and any error was expected.
func (r *StepResult) OK() bool {
	return len(r.Failures) == 0 && (r.Error == "" || r.Expected)
}

// Report is the outcome of a scenario run.
type Report struct {
	Name string `json:"name"`

	// Run identifies this run in logs. It is a version 7 UUID.
	Run string `json:"run"`

	Steps []StepResult `json:"steps"`
}

// OK reports whether every step is OK.
func (r *Report) OK() bool {
	for i := range r.Steps {
		if !r.Steps[i].OK() {
			return false
		}
	}
	return true
}

// Events returns the event log of the whole run.
func (r *Report) Events() []string {
	var out []string
	for _, s := range r.Steps {
		out = append(out, s.Events...)
	}
	return out
}

// Failures returns every failed check and unexpected error, prefixed with
// the step number.
func (r *Report) Failures() []string {
	var out []string
	for _, s := range r.Steps {
		for _, f := range s.Failures {
			out = append(out, fmt.Sprintf("step %d: %s", s.Step, f))
		}
		if s.Error != "" && !s.Expected {
			out = append(out, fmt.Sprintf("step %d: %s %s", s.Step, s.Code, s.Error))
		}
	}
	return out
}

// WriteText writes the report as indented plain text.
func (r *Report) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario %s\n", r.Name)
	for _, s := range r.Steps {
		status := "ok"
		if !s.OK() {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "%3d %-4s %s\n", s.Step, status, s.Action)
		for _, ev := range s.Events {
			fmt.Fprintf(&b, "         %s\n", ev)
		}
		if s.Error != "" {
			fmt.Fprintf(&b, "         error %s: %s\n", s.Code, s.Error)
		}
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "         %s\n", f)
		}
	}

	failed := len(r.Failures())
	if failed == 0 {
		fmt.Fprintf(&b, "PASS %d steps, %d events\n", len(r.Steps), len(r.Events()))
	} else {
		fmt.Fprintf(&b, "FAIL %d of %d steps\n", r.failedSteps(), len(r.Steps))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (r *Report) failedSteps() int {
	n := 0
	for i := range r.Steps {
		if !r.Steps[i].OK() {
			n++
		}
	}
	return n
}

// WriteJSON writes the report as an indented JSON document.
func (r *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		*Report
		OK bool `json:"ok"`
	}{r, r.OK()})
}
