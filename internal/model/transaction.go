package model

import "time"

// ProductSlot holds the product fields of one raw row placed at a 1-based slot index.
type ProductSlot struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"fields"`
}

// Transaction is one logical sale: the header of its first row plus its pivoted
// product slots and the channel and SLA tags computed for it.
type Transaction struct {
	Code   TransactionCode   `json:"code"`
	Header map[string]string `json:"header"`
	Rows   []int             `json:"-"` // indexes into Batch.Rows, in appearance order
	Slots  []ProductSlot     `json:"slots,omitempty"`

	Channel     string `json:"channel"`
	ChannelRule string `json:"channel_rule,omitempty"`

	SaleDate     *time.Time `json:"sale_date,omitempty"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	BusinessDays int        `json:"business_days"`
	SLA          string     `json:"sla"`
	DaysRange    string     `json:"days_range,omitempty"`
}

// Field returns a header value, or "" when the field is not declared.
func (t *Transaction) Field(name string) string {
	if name == "" {
		return ""
	}
	return t.Header[name]
}

// SlotField returns a field of the given 1-based slot, or "".
func (t *Transaction) SlotField(index int, name string) string {
	for _, s := range t.Slots {
		if s.Index == index {
			return s.Fields[name]
		}
	}
	return ""
}

// Dataset is the accepted, one-row-per-transaction output of a batch.
type Dataset struct {
	Columns      []string       `json:"columns"`
	Records      [][]string     `json:"records"`
	Transactions []*Transaction `json:"-"`
}

// Len returns the number of records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}
