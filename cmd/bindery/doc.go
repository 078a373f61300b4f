// Command bindery runs and checks YAML scenarios against a reactive
// property graph.
//
// Usage:
//
//	bindery run <scenario.yaml> [--config bindery.json] [--json] [--metrics] [--trace]
//	bindery check <scenario.yaml>
//	bindery version [--short]
package main
