package domain

import (
	"fmt"
	"time"
)

// DayFormat is the canonical UTC calendar day layout.
const DayFormat = "2006-01-02"

// DayFromMs returns the UTC calendar day containing a timestamp.
func DayFromMs(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format(DayFormat)
}

// DayBounds returns the inclusive start and exclusive end of a UTC day in
// milliseconds. Returns an error if day does not parse.
func DayBounds(day string) (startMs, endMs int64, err error) {
	t, err := time.ParseInLocation(DayFormat, day, time.UTC)
	if err != nil {
		return 0, 0, fmt.Errorf("parse day %q: %w", day, err)
	}
	start := t.UnixMilli()
	return start, start + 24*time.Hour.Milliseconds(), nil
}
