// Package sla counts business days between sale and delivery and labels each
// transaction against a delivery-time threshold.
package sla

import (
	"time"

	"github.com/rotisserie/eris"
)

// WeekendPolicy selects which weekdays are never business days. Holidays
// are excluded under every policy.
type WeekendPolicy string

const (
	// PolicySunday excludes Sundays only.
	PolicySunday WeekendPolicy = "sunday"
	// PolicySaturdaySunday excludes Saturdays and Sundays.
	PolicySaturdaySunday WeekendPolicy = "saturday_sunday"
)

// ParseWeekendPolicy validates a configured policy. There is no implicit default.
func ParseWeekendPolicy(s string) (WeekendPolicy, error) {
	switch p := WeekendPolicy(s); p {
	case PolicySunday, PolicySaturdaySunday:
		return p, nil
	default:
		return "", eris.Errorf("sla: unknown weekend policy %q (valid: sunday, saturday_sunday)", s)
	}
}

// Weekend reports whether d falls on an excluded weekday.
func (p WeekendPolicy) Weekend(d time.Weekday) bool {
	switch d {
	case time.Sunday:
		return true
	case time.Saturday:
		return p == PolicySaturdaySunday
	default:
		return false
	}
}
