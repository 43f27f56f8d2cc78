package core

import "time"

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd)
// share any instant. Intervals that only touch at a boundary do not overlap.
func Overlaps(aStart time.Time, aEnd time.Time, bStart time.Time, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// OverlapsInclusive is the closed-interval variant used by date range filters,
// where an event ending exactly at the range start is still part of the range.
func OverlapsInclusive(aStart time.Time, aEnd time.Time, bStart time.Time, bEnd time.Time) bool {
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// IsAvailable reports whether [start, end) is free of every event except the one
// identified by excludeId, which may be empty.
func IsAvailable(start time.Time, end time.Time, events []Event, excludeId string) bool {
	for _, e := range events {
		if excludeId != "" && e.Id == excludeId {
			continue
		}

		if Overlaps(e.StartTime, e.EndTime, start, end) {
			return false
		}
	}

	return true
}
