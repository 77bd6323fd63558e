package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/reference"
)

func d(s string) *time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestParseWeekendPolicy(t *testing.T) {
	p, err := ParseWeekendPolicy("sunday")
	require.NoError(t, err)
	assert.Equal(t, PolicySunday, p)

	p, err = ParseWeekendPolicy("saturday_sunday")
	require.NoError(t, err)
	assert.Equal(t, PolicySaturdaySunday, p)

	_, err = ParseWeekendPolicy("")
	assert.Error(t, err)
	_, err = ParseWeekendPolicy("friday")
	assert.Error(t, err)
}

func TestBusinessDays(t *testing.T) {
	// 2024-03-01 is a Friday.
	tests := []struct {
		name     string
		policy   WeekendPolicy
		holidays []time.Time
		sale     *time.Time
		end      *time.Time
		want     int
	}{
		{"same day", PolicySaturdaySunday, nil, d("2024-03-01"), d("2024-03-01"), 0},
		{"friday to monday, sat+sun", PolicySaturdaySunday, nil, d("2024-03-01"), d("2024-03-04"), 1},
		{"friday to monday, sunday only", PolicySunday, nil, d("2024-03-01"), d("2024-03-04"), 2},
		{"two weeks, sat+sun", PolicySaturdaySunday, nil, d("2024-03-01"), d("2024-03-15"), 10},
		{"two weeks, sunday only", PolicySunday, nil, d("2024-03-01"), d("2024-03-15"), 12},
		{"holiday excluded", PolicySaturdaySunday, []time.Time{*d("2024-03-25")}, d("2024-03-22"), d("2024-03-26"), 1},
		{"sale on saturday", PolicySaturdaySunday, nil, d("2024-03-02"), d("2024-03-04"), 0},
		{"end before sale", PolicySunday, nil, d("2024-03-10"), d("2024-03-01"), 0},
		{"nil sale", PolicySunday, nil, nil, d("2024-03-01"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Calculator{Policy: tt.policy, Holidays: reference.NewHolidaySet(tt.holidays...)}
			assert.Equal(t, tt.want, c.BusinessDays(tt.sale, tt.end))
		})
	}
}

func TestBusinessDays_NilDeliveryUsesNow(t *testing.T) {
	bogota := time.FixedZone("COT", -5*3600)

	c := &Calculator{
		Policy:   PolicySaturdaySunday,
		Location: bogota,
		// 02:00 UTC on Tuesday is still Monday evening in Bogota.
		Now: func() time.Time { return time.Date(2024, 3, 5, 2, 0, 0, 0, time.UTC) },
	}
	sale := time.Date(2024, 3, 1, 0, 0, 0, 0, bogota)
	assert.Equal(t, 1, c.BusinessDays(&sale, nil))
}

func TestBusinessDays_Monotonic(t *testing.T) {
	for _, p := range []WeekendPolicy{PolicySunday, PolicySaturdaySunday} {
		c := &Calculator{Policy: p, Holidays: reference.NewHolidaySet(*d("2024-03-28"), *d("2024-03-29"))}
		sale := d("2024-03-01")
		prev := 0
		for i := range 90 {
			end := sale.AddDate(0, 0, i)
			n := c.BusinessDays(sale, &end)
			assert.GreaterOrEqual(t, n, prev, "policy %s day %d", p, i)
			prev = n
		}
	}
}

func TestBusinessDays_CacheReset(t *testing.T) {
	c := &Calculator{Policy: PolicySaturdaySunday}
	assert.Equal(t, 1, c.BusinessDays(d("2024-03-01"), d("2024-03-04")))

	// Holidays changing between batches must not see stale counts.
	c.Holidays = reference.NewHolidaySet(*d("2024-03-04"))
	c.Reset()
	assert.Equal(t, 0, c.BusinessDays(d("2024-03-01"), d("2024-03-04")))
}

func TestThresholds_Precedence(t *testing.T) {
	th := NewThresholds(
		map[string]int{"Muebles SAS": 2},
		map[string]int{"DIGITAL": 5},
		map[string]int{"COLCHONES": 8},
		map[string]int{"IMPORTADO": 15},
	)
	assert.Equal(t, 4, th.Len())

	tests := []struct {
		name                                string
		partner, channel, category, product string
		want                                int
		kind                                KeyKind
		ok                                  bool
	}{
		{"partner first", "muebles sas", "DIGITAL", "COLCHONES", "IMPORTADO", 2, KeyPartner, true},
		{"channel over category", "OTRO", "digital", "COLCHONES", "IMPORTADO", 5, KeyChannel, true},
		{"category over product", "", "RETAIL", "Colchones", "IMPORTADO", 8, KeyCategory, true},
		{"product type last", "", "RETAIL", "", "IMPORTADO", 15, KeyProductType, true},
		{"no key", "", "RETAIL", "SILLAS", "NACIONAL", 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind, ok := th.Lookup(tt.partner, tt.channel, tt.category, tt.product)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestEvaluate(t *testing.T) {
	fields := model.FieldMap{Partner: "ALIADO", Category: "CATEGORIA", ProductType: "TIPO_PRODUCTO"}
	c := &Calculator{
		Policy:     PolicySaturdaySunday,
		Thresholds: NewThresholds(nil, map[string]int{"DIGITAL": 3}, nil, map[string]int{"IMPORTADO": 10}),
		Labels:     Labels{Within: "A TIEMPO", Out: "TARDE"},
		Buckets:    []Bucket{{Max: 2, Label: "0-2"}, {Max: 5, Label: "3-5"}, {Max: -1, Label: "6+"}},
	}
	c.Reset()

	within := &model.Transaction{Channel: "DIGITAL", Header: map[string]string{}, SaleDate: d("2024-03-01"), DeliveryDate: d("2024-03-06")}
	c.Evaluate(within, fields)
	assert.Equal(t, 3, within.BusinessDays)
	assert.Equal(t, "A TIEMPO", within.SLA)
	assert.Equal(t, "3-5", within.DaysRange)

	late := &model.Transaction{Channel: "DIGITAL", Header: map[string]string{}, SaleDate: d("2024-03-01"), DeliveryDate: d("2024-03-07")}
	c.Evaluate(late, fields)
	assert.Equal(t, 4, late.BusinessDays)
	assert.Equal(t, "TARDE", late.SLA)

	fromSlot := &model.Transaction{
		Channel:      "RETAIL",
		Header:       map[string]string{},
		Slots:        []model.ProductSlot{{Index: 1, Fields: map[string]string{"TIPO_PRODUCTO": "IMPORTADO"}}},
		SaleDate:     d("2024-03-01"),
		DeliveryDate: d("2024-03-29"),
	}
	c.Evaluate(fromSlot, fields)
	assert.Equal(t, 20, fromSlot.BusinessDays)
	assert.Equal(t, "TARDE", fromSlot.SLA)
	assert.Equal(t, "6+", fromSlot.DaysRange)

	noKey := &model.Transaction{Channel: "RETAIL", Header: map[string]string{"TIPO_PRODUCTO": ""}, SaleDate: d("2024-03-01"), DeliveryDate: d("2024-03-01")}
	c.Evaluate(noKey, fields)
	assert.Equal(t, "", noKey.SLA)
	assert.Equal(t, "0-2", noKey.DaysRange)
}

func TestEvaluate_OffsetAndMissingDates(t *testing.T) {
	c := &Calculator{Policy: PolicySunday, Offset: 1, Thresholds: NewThresholds(nil, map[string]int{"RETAIL": 0}, nil, nil)}

	tx := &model.Transaction{Channel: "RETAIL", Header: map[string]string{}}
	c.Evaluate(tx, model.FieldMap{})
	assert.Equal(t, 1, tx.BusinessDays)
	assert.Equal(t, DefaultLabels.Out, tx.SLA)
	assert.Empty(t, tx.DaysRange)
}
