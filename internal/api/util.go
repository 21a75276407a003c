package api

import "time"

// durationFromMillis converts a millisecond count from a JSON body into a
// time.Duration, treating zero/negative as "unknown".
func durationFromMillis(ms int64) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
