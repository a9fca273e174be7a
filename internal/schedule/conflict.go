// Package schedule resolves bookable checkout windows and detects collisions
// between time windows.
package schedule

import "time"

// Overlaps is strict half-open overlap: windows that only touch at an
// endpoint do not conflict.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Within reports whether [start, end) lies inside [outerStart, outerEnd).
func Within(start, end, outerStart, outerEnd time.Time) bool {
	return !start.Before(outerStart) && !end.After(outerEnd)
}
