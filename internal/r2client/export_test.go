package r2client

import "time"

// SetClock replaces the lease clock.
func SetClock(l *Lock, now func() time.Time) {
	l.now = now
}
