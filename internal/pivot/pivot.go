// Package pivot redistributes the product lines of each transaction into a
// fixed number of ordered column slots.
package pivot

import (
	"slices"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/salesops-cli/internal/model"
)

// SlotOrder decides which product lands in which slot.
type SlotOrder string

const (
	// OrderAppearance keeps the order rows appear in the export.
	OrderAppearance SlotOrder = "appearance"
	// OrderPriceDesc puts the highest-priced product in slot 1.
	OrderPriceDesc SlotOrder = "price_desc"
)

// ParseSlotOrder validates a configured ordering; empty means appearance.
func ParseSlotOrder(s string) (SlotOrder, error) {
	switch SlotOrder(s) {
	case "", OrderAppearance:
		return OrderAppearance, nil
	case OrderPriceDesc:
		return OrderPriceDesc, nil
	default:
		return "", eris.Errorf("pivot: unknown slot order %q (valid: appearance, price_desc)", s)
	}
}

// Pivoter places up to Slots products per transaction. Products beyond the
// cap are dropped, never merged into another slot.
type Pivoter struct {
	Fields     []string // product fields, in output order
	Slots      int
	Order      SlotOrder
	PriceField string // required for OrderPriceDesc
}

type candidate struct {
	fields map[string]string
	price  decimal.Decimal
}

// Apply fills tx.Slots for every transaction from the batch rows it groups.
// Every row takes a slot, including one whose product fields are all empty.
func (p *Pivoter) Apply(batch model.Batch, txs []*model.Transaction) {
	for _, tx := range txs {
		cands := make([]candidate, 0, len(tx.Rows))
		for _, idx := range tx.Rows {
			row := batch.Rows[idx]
			c := candidate{fields: p.productOf(row)}
			if p.Order == OrderPriceDesc {
				c.price = ParsePriceValue(row[p.PriceField])
			}
			cands = append(cands, c)
		}

		if p.Order == OrderPriceDesc {
			slices.SortStableFunc(cands, func(a, b candidate) int {
				return b.price.Cmp(a.price)
			})
		}

		n := min(len(cands), p.Slots)
		tx.Slots = make([]model.ProductSlot, 0, n)
		for i := range n {
			tx.Slots = append(tx.Slots, model.ProductSlot{Index: i + 1, Fields: cands[i].fields})
		}
	}
}

func (p *Pivoter) productOf(row model.Row) map[string]string {
	fields := make(map[string]string, len(p.Fields))
	for _, f := range p.Fields {
		fields[f] = row.Get(f)
	}
	return fields
}

// Columns returns the slot columns grouped by slot first, then by field in
// declared order: PRODUCTO_1, PRECIO_1, PRODUCTO_2, PRECIO_2, ...
func (p *Pivoter) Columns() []string {
	cols := make([]string, 0, p.Slots*len(p.Fields))
	for i := 1; i <= p.Slots; i++ {
		suffix := "_" + strconv.Itoa(i)
		for _, f := range p.Fields {
			cols = append(cols, f+suffix)
		}
	}
	return cols
}

// Values returns the slot cells of tx aligned with Columns. The result is
// always Slots*len(Fields) wide; absent slots are empty.
func (p *Pivoter) Values(tx *model.Transaction) []string {
	vals := make([]string, p.Slots*len(p.Fields))
	for _, s := range tx.Slots {
		if s.Index < 1 || s.Index > p.Slots {
			continue
		}
		base := (s.Index - 1) * len(p.Fields)
		for j, f := range p.Fields {
			vals[base+j] = s.Fields[f]
		}
	}
	return vals
}
