package clock

import "time"

// Func is a time source
type Func func() time.Time

// Now returns the current wall-clock time truncated to milliseconds, the
// resolution reminders are persisted at.
func Now() time.Time {
	return time.UnixMilli(time.Now().UnixMilli()).UTC()
}

// Fixed returns a time source frozen at t
func Fixed(t time.Time) Func {
	return func() time.Time { return t }
}
