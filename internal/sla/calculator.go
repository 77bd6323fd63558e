package sla

import (
	"time"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/reference"
)

type span struct {
	from, to time.Time
}

// Cache memoizes business-day counts and range labels for one batch.
type Cache struct {
	days   map[span]int
	ranges map[int]string
}

func (c *Cache) reset() {
	c.days = make(map[span]int)
	c.ranges = make(map[int]string)
}

// Calculator computes business days and SLA labels. It is not safe for
// concurrent use; call Reset at the start of every batch.
type Calculator struct {
	Policy     WeekendPolicy
	Holidays   reference.HolidaySet
	Offset     int
	Thresholds Thresholds
	Labels     Labels
	Buckets    []Bucket
	Now        func() time.Time // defaults to time.Now
	Location   *time.Location   // defaults to UTC

	cache Cache
}

// Reset drops memoized results.
func (c *Calculator) Reset() {
	c.cache.reset()
}

func (c *Calculator) loc() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

// date returns the calendar date of t in the calculator's zone as a UTC
// midnight, so stepping by one day is never affected by DST.
func (c *Calculator) date(t time.Time) time.Time {
	y, m, d := t.In(c.loc()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (c *Calculator) today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return c.date(now())
}

func (c *Calculator) excluded(d time.Time) bool {
	return c.Policy.Weekend(d.Weekday()) || c.Holidays.Contains(d)
}

// BusinessDays counts the non-excluded dates from sale to end inclusive,
// minus one, never below zero. A nil sale yields 0; a nil end means today.
func (c *Calculator) BusinessDays(sale, end *time.Time) int {
	if sale == nil {
		return 0
	}
	to := c.today()
	if end != nil {
		to = c.date(*end)
	}
	from := c.date(*sale)
	if to.Before(from) {
		return 0
	}

	key := span{from, to}
	if c.cache.days == nil {
		c.cache.reset()
	}
	if n, ok := c.cache.days[key]; ok {
		return n
	}

	n := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if !c.excluded(d) {
			n++
		}
	}
	n = max(n-1, 0)
	c.cache.days[key] = n
	return n
}

// Label returns the within/out label for days under the threshold matched by
// the given keys, or "" when no threshold applies.
func (c *Calculator) Label(days int, partner, channel, category, productType string) string {
	limit, _, ok := c.Thresholds.Lookup(partner, channel, category, productType)
	if !ok {
		return ""
	}
	labels := c.Labels
	if labels.Within == "" && labels.Out == "" {
		labels = DefaultLabels
	}
	if days <= limit {
		return labels.Within
	}
	return labels.Out
}

// Range returns the bucket label for days, or "" when no bucket covers it.
func (c *Calculator) Range(days int) string {
	if len(c.Buckets) == 0 {
		return ""
	}
	if c.cache.ranges == nil {
		c.cache.reset()
	}
	if l, ok := c.cache.ranges[days]; ok {
		return l
	}
	label := ""
	for _, b := range c.Buckets {
		if b.Max < 0 || days <= b.Max {
			label = b.Label
			break
		}
	}
	c.cache.ranges[days] = label
	return label
}

// Evaluate tags tx with its business days (offset applied), SLA label and
// range label. The product type is read from the header, or from slot 1
// when the header does not carry it.
func (c *Calculator) Evaluate(tx *model.Transaction, f model.FieldMap) {
	days := c.BusinessDays(tx.SaleDate, tx.DeliveryDate) + c.Offset

	productType := tx.Field(f.ProductType)
	if _, inHeader := tx.Header[f.ProductType]; !inHeader && f.ProductType != "" {
		productType = tx.SlotField(1, f.ProductType)
	}

	tx.BusinessDays = days
	tx.SLA = c.Label(days, tx.Field(f.Partner), tx.Channel, tx.Field(f.Category), productType)
	tx.DaysRange = c.Range(days)
}
