// Package scenario drives a property graph from a YAML file.
//
// A scenario declares typed properties, rules, derivation edges and groups,
// then runs a list of steps against them and checks expectations along the
// way. The event log of the run is what the bus dispatched, in order.
//
//	name: cross-validation
//	properties:
//	  - {name: a, type: int, value: 1}
//	  - {name: b, type: int, value: 2}
//	rules:
//	  - {property: a, message: "a must be greater than b", expr: "a > b"}
//	  - {property: b, message: "b must be within 5 of a", expr: "abs(a - b) <= 5"}
//	derived:
//	  - {from: a, to: b}
//	  - {from: b, to: a}
//	steps:
//	  - {set: a, value: -10}
//	  - expectEvents:
//	      - "rule_triggered b: b must be within 5 of a"
//	      - "rule_triggered a: a must be greater than b"
//	      - "value_changed a: 1 -> -10"
//	  - {expect: {property: a, valid: false}}
//
// Rule expressions compare integer terms. A term is an int property, an
// integer literal, abs(term), or a sum or difference of those. A rule may
// instead carry a validate tag such as "required,min=3".
//
// Every run gets a version 7 UUID in Report.Run, which is also attached to
// the logger handed to the bus and the scope.
package scenario
