// Package clock is the time source for approval and snapshot timestamps.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns the current time in UTC, truncated to milliseconds to match the
// precision persisted in JSON records.
func Now() time.Time { return NowFunc().UTC().Truncate(time.Millisecond) }
