package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

const (
	// DateLayout is the day-month-year format dates use on the wire.
	DateLayout = "02-01-2006"
	// ClockLayout is the zero-padded 24 hour format of reservation times.
	ClockLayout = "15:04"
)

// Calendar interprets dates and times in the single canonical zone.
type Calendar struct {
	loc *time.Location
}

// NewCalendar returns a Calendar for loc. A nil loc means UTC.
func NewCalendar(loc *time.Location) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return Calendar{loc: loc}
}

// Location returns the canonical zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

// Day returns midnight of the day containing t in the canonical zone.
func (c Calendar) Day(t time.Time) time.Time {
	t = t.In(c.Location())
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.Location())
}

// At returns the instant hour:minute on day.
func (c Calendar) At(day time.Time, hour, minute int) time.Time {
	day = c.Day(day)
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, c.Location())
}

// ParseDate parses a DD-MM-YYYY date.
func (c Calendar) ParseDate(value string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(value), c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("date must use the DD-MM-YYYY format")
	}
	return day, nil
}

// ParseClock parses an HH:MM time and places it on day.
func (c Calendar) ParseClock(day time.Time, value string) (time.Time, error) {
	clock, err := time.Parse(ClockLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("time must use the HH:MM format")
	}
	return c.At(day, clock.Hour(), clock.Minute()), nil
}

// ParseSlot parses the wire form of a slot. Field errors are reported under
// date, start_time and end_time.
func (c Calendar) ParseSlot(date, start, end string) (time.Time, scheduler.Interval, error) {
	vErr := &ValidationError{}

	day, err := c.ParseDate(date)
	if err != nil {
		vErr.add("date", err.Error())
		return time.Time{}, scheduler.Interval{}, vErr
	}

	var slot scheduler.Interval
	if slot.Start, err = c.ParseClock(day, start); err != nil {
		vErr.add("start_time", err.Error())
	}
	if slot.End, err = c.ParseClock(day, end); err != nil {
		vErr.add("end_time", err.Error())
	}
	if vErr.HasErrors() {
		return time.Time{}, scheduler.Interval{}, vErr
	}
	if !slot.Valid() {
		vErr.add("end_time", "end time must be after start time")
		return time.Time{}, scheduler.Interval{}, vErr
	}
	return day, slot, nil
}
