package reference

import (
	"time"
)

// HolidaySet is an immutable set of calendar dates treated as non-business days.
// The zero value is an empty set.
type HolidaySet struct {
	days map[civilDate]struct{}
}

type civilDate struct {
	y int
	m time.Month
	d int
}

func civil(t time.Time) civilDate {
	y, m, d := t.Date()
	return civilDate{y, m, d}
}

// NewHolidaySet builds a set from the given dates; only the calendar date of each is kept.
func NewHolidaySet(dates ...time.Time) HolidaySet {
	days := make(map[civilDate]struct{}, len(dates))
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		days[civil(d)] = struct{}{}
	}
	return HolidaySet{days: days}
}

// Contains reports whether t's calendar date is a holiday.
func (h HolidaySet) Contains(t time.Time) bool {
	if h.days == nil {
		return false
	}
	_, ok := h.days[civil(t)]
	return ok
}

// Len returns the number of distinct dates.
func (h HolidaySet) Len() int {
	return len(h.days)
}
