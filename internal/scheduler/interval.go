package scheduler

import (
	"sort"
	"time"
)

// Interval is a half-open time span [Start, End) held or requested for a room.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has a strictly positive length.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.Start.Before(i.End)
}

// Overlaps reports whether two half-open intervals share any instant.
// Intervals that only touch at a boundary do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Conflicts reports whether candidate intersects any of the booked intervals.
func Conflicts(candidate Interval, booked []Interval) bool {
	_, found := FirstConflict(candidate, booked)
	return found
}

// FirstConflict returns the earliest booked interval that intersects candidate.
// Zero-length or inverted candidates never conflict; callers reject them as
// invalid input before reaching this point.
func FirstConflict(candidate Interval, booked []Interval) (Interval, bool) {
	if !candidate.Valid() || len(booked) == 0 {
		return Interval{}, false
	}
	for _, existing := range SortByStart(booked) {
		if !existing.Start.Before(candidate.End) {
			break
		}
		if Overlaps(candidate, existing) {
			return existing, true
		}
	}
	return Interval{}, false
}

// SortByStart returns a copy of intervals ordered by start, then end.
func SortByStart(intervals []Interval) []Interval {
	if len(intervals) == 0 {
		return nil
	}
	out := make([]Interval, len(intervals))
	copy(out, intervals)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Start.Equal(out[j].Start) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].Start.Before(out[j].Start)
	})
	return out
}
