package runner

import "time"

// SetClock replaces the time source used for receipt timestamps.
// This is exported for testing purposes only.
func (r *Runner) SetClock(now func() time.Time) {
	r.now = now
}
