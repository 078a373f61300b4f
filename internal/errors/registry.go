package errors

import "slices"

// Template defines a registered error code.
type Template struct {
	Category   Category
	Message    string
	Suggestion string
}

var registry = map[string]Template{
	// Bus (B001-B099)
	"B001": {
		Category: CategoryBus,
		Message:  "Handler failed",
		Suggestion: "Handlers run synchronously inside Set; " +
			"check the causes listed below for the failing handler",
	},
	"B002": {
		Category:   CategoryBus,
		Message:    "Handler panicked",
		Suggestion: "Recovered panics are reported with the handler position and stack",
	},
	"B003": {
		Category: CategoryBus,
		Message:  "Invalid bus argument",
	},

	// Model (M001-M099)
	"M001": {
		Category:   CategoryModel,
		Message:    "Reassessment cycle limit reached",
		Suggestion: "Look for handlers that set each other's properties, or raise scope.maxPassDepth",
	},
	"M002": {
		Category: CategoryModel,
		Message:  "Rule predicate panicked",
	},

	// Scenario (S001-S099)
	"S001": {
		Category:   CategoryScenario,
		Message:    "Scenario file not found",
		Suggestion: "Pass the path to a .yaml scenario file",
	},
	"S002": {
		Category:   CategoryScenario,
		Message:    "Invalid scenario YAML",
		Suggestion: "Check indentation and quoting; expressions containing ':' need quotes",
	},
	"S003": {
		Category: CategoryScenario,
		Message:  "Unknown property",
	},
	"S004": {
		Category:   CategoryScenario,
		Message:    "Invalid rule expression",
		Suggestion: `Use "<lhs> <op> <rhs>" or "abs(<x> - <y>) <op> <n>" with op one of > >= < <= == !=`,
	},
	"S005": {
		Category:   CategoryScenario,
		Message:    "Invalid validate tag",
		Suggestion: "Supported: required, min=N, max=N, email, url, pattern=RE",
	},
	"S006": {
		Category:   CategoryScenario,
		Message:    "Invalid step",
		Suggestion: "Each step has exactly one of set, touch, reassess, expect, expectGroup",
	},
	"S007": {
		Category:   CategoryScenario,
		Message:    "Invalid property declaration",
		Suggestion: "Property types are int, string and bool; names must be unique",
	},
	"S008": {
		Category: CategoryScenario,
		Message:  "Unknown group",
	},
	"S009": {
		Category: CategoryScenario,
		Message:  "Expectation failed",
	},

	// Config (C001-C099)
	"C001": {
		Category:   CategoryConfig,
		Message:    "Invalid configuration",
		Suggestion: "Check that bindery.json is valid JSON",
	},
	"C002": {
		Category:   CategoryConfig,
		Message:    "Config file not found",
		Suggestion: "Create bindery.json or omit --config to use the defaults",
	},
	"C003": {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},

	// CLI (X001-X099)
	"X001": {
		Category: CategoryCLI,
		Message:  "Invalid arguments",
	},
	"X002": {
		Category: CategoryCLI,
		Message:  "Scenario run failed",
	},
}

// Codes returns the registered codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	return codes
}

// Lookup returns the template for code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}

// Register adds or replaces a template.
func Register(code string, template Template) {
	registry[code] = template
}
