// Package telemetry wires OpenTelemetry exporters and meters for the
// mission pipeline.
//
// It centralises trace provider setup, applies service resource attributes,
// and offers recording helpers that attach stage counters and safety verdicts
// to spans and metrics so operators can correlate rejected missions with the
// scripts that produced them.
package telemetry
