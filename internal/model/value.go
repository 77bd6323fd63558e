package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Text coerces an exported cell value to its canonical text form.
// Missing and nil values become the empty string.
func Text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		if x.IsZero() {
			return ""
		}
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339)
	case *time.Time:
		if x == nil {
			return ""
		}
		return Text(*x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// excelEpoch is day zero of the spreadsheet serial date system.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

const (
	// minTextSerial (1954-10-03) keeps stray numbers like "2024" in a text
	// cell from reading as a date. Numeric cells accept any serial.
	minTextSerial = 20000
	maxSerial     = 2958466
)

// ParseDate parses a date value using the given layouts. Unparseable or empty
// values return nil rather than an error: a bad date only degrades SLA math.
// Spreadsheet serial numbers (e.g. "45352") are accepted as well; serials in
// text cells must be at least minTextSerial.
func ParseDate(v any, layouts []string, loc *time.Location) *time.Time {
	if loc == nil {
		loc = time.UTC
	}
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		d := dateOf(x.In(loc), loc)
		return &d
	case *time.Time:
		if x == nil {
			return nil
		}
		return ParseDate(*x, layouts, loc)
	case float64, float32, int, int64, int32, json.Number:
		serial, err := strconv.ParseFloat(Text(x), 64)
		if err != nil || serial < 1 || serial >= maxSerial {
			return nil
		}
		return serialDate(serial, loc)
	}

	s := strings.TrimSpace(Text(v))
	if s == "" {
		return nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			d := dateOf(t, loc)
			return &d
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minTextSerial && serial < maxSerial {
		return serialDate(serial, loc)
	}
	return nil
}

func serialDate(serial float64, loc *time.Location) *time.Time {
	t := excelEpoch.AddDate(0, 0, int(serial))
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return &d
}

// dateOf truncates t to midnight in loc.
func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
