package common

import "time"

// Timestamp converts t into the millisecond Unix time carried by elements.
func Timestamp(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}

// Millis converts a duration into milliseconds, the unit of timestamps.
func Millis(d time.Duration) int64 {
	return int64(d / time.Millisecond)
}

// FromTimestamp is the inverse of Timestamp.
func FromTimestamp(ts int64) time.Time {
	return time.Unix(0, ts*int64(time.Millisecond))
}
