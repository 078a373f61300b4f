// Package errors provides coded, actionable errors for the bindery tools.
//
// The library packages under pkg/ return plain sentinel and structured
// errors. This package is for the command line, the config loader and the
// scenario runner, where an error ends up in front of a person and should
// say where it happened and what to do about it.
//
// # Error Categories
//
//   - bus: event bus failures surfaced by a scenario run (B0xx)
//   - model: property graph failures such as a cycle limit (M0xx)
//   - scenario: scenario file parse and validation errors (S0xx)
//   - config: bindery.json errors (C0xx)
//   - cli: command line usage errors (X0xx)
//
// # Usage
//
//	err := errors.New("S003").
//	    WithLocation("forms/signup.yaml", 12, 7).
//	    WithDetail(`rule on "age" references unknown property "agee"`)
//
//	fmt.Println(err.Format())
//	// ERROR S003: Unknown property
//	//
//	//   forms/signup.yaml:12:7
//	//
//	//       11 │ rules:
//	//   →   12 │   - {property: age, expr: "agee > 0"}
//	//          │       ^
//	//       13 │ steps:
//	//
//	//   rule on "age" references unknown property "agee"
package errors
