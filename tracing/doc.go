// Package tracing wraps OpenTelemetry so that services record spans through
// StartSpan/EndSpan without importing the SDK directly.
package tracing
