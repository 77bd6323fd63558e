package sla

import (
	"github.com/sells-group/salesops-cli/internal/reference"
)

// KeyKind names which table a threshold came from.
type KeyKind string

const (
	KeyPartner     KeyKind = "partner"
	KeyChannel     KeyKind = "channel"
	KeyCategory    KeyKind = "category"
	KeyProductType KeyKind = "product_type"
)

// Thresholds holds the maximum allowed business days per key, in four tables
// consulted in precedence order: partner, channel, category, product type.
// Keys are normalized like branch names.
type Thresholds struct {
	tables [4]map[string]int
}

// NewThresholds builds the threshold tables. Nil maps are allowed.
func NewThresholds(partner, channel, category, productType map[string]int) Thresholds {
	var t Thresholds
	for i, src := range []map[string]int{partner, channel, category, productType} {
		m := make(map[string]int, len(src))
		for k, v := range src {
			if key := reference.NormalizeKey(k); key != "" {
				m[key] = v
			}
		}
		t.tables[i] = m
	}
	return t
}

var kinds = [4]KeyKind{KeyPartner, KeyChannel, KeyCategory, KeyProductType}

// Lookup returns the first threshold matching the given keys in precedence
// order, and the kind of key that matched.
func (t Thresholds) Lookup(partner, channel, category, productType string) (int, KeyKind, bool) {
	keys := [4]string{partner, channel, category, productType}
	for i, k := range keys {
		key := reference.NormalizeKey(k)
		if key == "" || t.tables[i] == nil {
			continue
		}
		if limit, ok := t.tables[i][key]; ok {
			return limit, kinds[i], true
		}
	}
	return 0, "", false
}

// Len returns the total number of keys across all tables.
func (t Thresholds) Len() int {
	n := 0
	for _, m := range t.tables {
		n += len(m)
	}
	return n
}

// Labels are the two SLA outcomes.
type Labels struct {
	Within string `yaml:"within"`
	Out    string `yaml:"out"`
}

// DefaultLabels is used when a rules file names none.
var DefaultLabels = Labels{Within: "CUMPLE", Out: "NO CUMPLE"}

// Bucket labels business-day counts up to Max inclusive. A negative Max is
// the open-ended last bucket.
type Bucket struct {
	Max   int    `yaml:"max"`
	Label string `yaml:"label"`
}
