package core

import "time"

// Clock supplies wall-clock time to the round engine.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the host clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// SecondsPerDay is the length of one day index.
const SecondsPerDay = 86400

// DayIndex converts a unix timestamp to a day index, shifted by offset
// seconds so the day boundary can be placed at any hour.
func DayIndex(unix, offset int64) int64 {
	d := unix - offset
	if d < 0 {
		return 0
	}
	return d / SecondsPerDay
}
