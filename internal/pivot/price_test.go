package pivot

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"500", "500"},
		{"$ 1.500.000", "1500000"},
		{"1,500,000", "1500000"},
		{"1.234,50", "1234.5"},
		{"1,234.50", "1234.5"},
		{"99.99", "99.99"},
		{"12,5", "12.5"},
		{"1.500", "1500"},
		{"1,500", "1500"},
		{"-20", "-20"},
		{"", "0"},
		{"N/A", "0"},
		{"-", "0"},
		{"COP 2.000", "2000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePrice(tt.in).String())
		})
	}
}

func TestParsePriceValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"three decimal float", 12.345, "12.345"},
		{"small float", 0.125, "0.125"},
		{"whole float", 300000.0, "300000"},
		{"int", 42, "42"},
		{"json number", json.Number("12.345"), "12.345"},
		{"text thousands", "12.345", "12345"},
		{"text decimal", "999.99", "999.99"},
		{"nil", nil, "0"},
		{"nan", math.NaN(), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePriceValue(tt.in).String())
		})
	}
}
