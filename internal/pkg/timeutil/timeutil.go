package timeutil

import "time"

// Now returns the current UTC time at the precision postgres keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
