package pivot

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/salesops-cli/internal/model"
)

// ParsePriceValue parses a raw price cell. Numeric cells are taken at face
// value; only text goes through the separator rules of ParsePrice.
func ParsePriceValue(v any) decimal.Decimal {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero
		}
		return decimal.NewFromFloat(x)
	case float32:
		return ParsePriceValue(float64(x))
	case int:
		return decimal.NewFromInt(int64(x))
	case int64:
		return decimal.NewFromInt(x)
	case int32:
		return decimal.NewFromInt(int64(x))
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return decimal.Zero
		}
		return d
	case string:
		return ParsePrice(x)
	default:
		return ParsePrice(model.Text(v))
	}
}

// ParsePrice parses a price cell. Currency symbols, spaces and thousands
// separators are ignored; a decimal comma is accepted ("1.234,50"). A lone
// separator followed by exactly three digits ("1.500", "1,500") is read as a
// thousands separator. Blank or unparseable values are zero.
func ParsePrice(s string) decimal.Decimal {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			return r
		default:
			return -1
		}
	}, s)
	if s == "" {
		return decimal.Zero
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// "1,5" is a decimal comma; "1,500" and "1,500,000" are thousands.
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 || len(s)-lastDot-1 == 3 {
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
