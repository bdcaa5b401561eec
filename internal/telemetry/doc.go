// Package telemetry wires OpenTelemetry tracing and metrics for shelld.
//
// Spans and metrics go over OTLP (gRPC or HTTP) to a collector. Exporter
// failures degrade the instance instead of failing startup; Health exposes
// the state on /health.
//
// A nil or disabled *Telemetry is usable and hands out the otel globals.
// Tests use NewTestTelemetry, whose Recorder keeps spans and metrics in
// memory:
//
//	tel, rec := telemetry.NewTestTelemetry()
//	srv, _ := mcp.NewServer(&mcp.Config{Telemetry: tel, ...})
//	span, ok := rec.Span("mcp.tool.run_command")
package telemetry
