package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want string
	}{
		{"nil", nil, ""},
		{"string", "TIENDA A", "TIENDA A"},
		{"string keeps spaces", " X ", " X "},
		{"integral float", 500.0, "500"},
		{"fractional float", 12.5, "12.5"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool", true, "true"},
		{"json number", json.Number("3.10"), "3.10"},
		{"date", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{"timestamp", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), "2024-03-01T10:30:00Z"},
		{"zero time", time.Time{}, ""},
		{"nil time pointer", (*time.Time)(nil), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Text(tt.v))
		})
	}
}

func TestParseDate(t *testing.T) {
	layouts := []string{time.DateOnly, "02/01/2006", "02/01/2006 15:04"}

	tests := []struct {
		name string
		v    any
		want string // "" means nil
	}{
		{"iso", "2024-03-01", "2024-03-01"},
		{"day first", "15/03/2024", "2024-03-15"},
		{"day first with time", "15/03/2024 17:45", "2024-03-15"},
		{"padded", "  2024-03-01 ", "2024-03-01"},
		{"excel serial", "45352", "2024-03-01"},
		{"excel serial float", 45352.0, "2024-03-01"},
		{"time value", time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC), "2024-03-01"},
		{"empty", "", ""},
		{"nil", nil, ""},
		{"garbage", "not a date", ""},
		{"negative number", "-3", ""},
		{"bare year text", "2024", ""},
		{"small text number", "12", ""},
		{"small numeric serial", 61.0, "1900-03-01"},
		{"json number serial", json.Number("45352"), "2024-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseDate(tt.v, layouts, time.UTC)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Format(time.DateOnly))
			assert.Zero(t, got.Hour())
		})
	}
}

func TestNewTransactionCode(t *testing.T) {
	assert.Equal(t, TransactionCode("C0000001"), NewTransactionCode(1))
	assert.Equal(t, TransactionCode("C0012345"), NewTransactionCode(12345))
}

func TestRowGet(t *testing.T) {
	r := Row{"SEDE": "TIENDA A", "PRECIO": 300.0, "VACIO": nil}
	assert.Equal(t, "TIENDA A", r.Get("SEDE"))
	assert.Equal(t, "300", r.Get("PRECIO"))
	assert.Equal(t, "", r.Get("VACIO"))
	assert.Equal(t, "", r.Get("MISSING"))
}

func TestTransactionSlotField(t *testing.T) {
	tx := &Transaction{
		Header: map[string]string{"SEDE": "TIENDA A"},
		Slots: []ProductSlot{
			{Index: 1, Fields: map[string]string{"PRODUCTO": "SOFA"}},
			{Index: 2, Fields: map[string]string{"PRODUCTO": "MESA"}},
		},
	}
	assert.Equal(t, "MESA", tx.SlotField(2, "PRODUCTO"))
	assert.Equal(t, "", tx.SlotField(3, "PRODUCTO"))
	assert.Equal(t, "TIENDA A", tx.Field("SEDE"))
	assert.Equal(t, "", tx.Field(""))
}
