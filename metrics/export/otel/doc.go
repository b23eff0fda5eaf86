// Package otel bridges engine metrics into OpenTelemetry observable
// instruments. Values are pulled from a snapshot inside the meter's
// collection callback, so the engine hot path stays free of OTel calls.
package otel
