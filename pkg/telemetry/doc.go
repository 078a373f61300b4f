// Package telemetry exports bus activity to Prometheus and OpenTelemetry.
//
// Both exporters are bus observers and are attached when the bus is built:
//
//	m := telemetry.NewMetrics(telemetry.WithNamespace("myapp"))
//	tr := telemetry.NewTracing(telemetry.WithTracerName("myapp"))
//	b := bus.New(bus.WithObserver(m), bus.WithObserver(tr))
//
// Metrics collected:
//   - bindery_fires_total: firings by event kind and status
//   - bindery_fire_errors_total: failed firings by event kind and error type
//   - bindery_handler_invocations_total: handlers called, by event kind
//   - bindery_handler_failures_total: failing handlers by event kind and type
//   - bindery_fire_duration_seconds: firing duration, nested firings included
//   - bindery_firing_depth: current firing depth
//   - bindery_pending_removals: handler lists awaiting compaction
//
// Tracing opens one span per firing, named "bindery.fire <kind>". A firing
// started by a handler becomes a child of the firing that invoked it.
package telemetry
