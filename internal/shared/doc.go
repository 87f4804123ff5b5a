// Package shared holds helpers used across respondkit packages that do not
// belong to any single layer.
//
// The testutil subpackage provides:
//
//	- a buffered slog handler for asserting on log output
//	- in-memory OpenTelemetry readers for asserting on metrics and spans
//	- a fixed clock for deterministic acceptedAt values
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    tel := testutil.NewTelemetry(t)
//	    ...
//	    testutil.AssertLogContains(t, logs, slog.LevelWarn, "request failed")
//	}
package shared
