// Package model defines the rows, transactions and datasets that flow through the engine.
package model

import "fmt"

// Row is one exported line, keyed by column name.
type Row map[string]any

// Get returns the canonical text of a column, or "" when it is missing.
func (r Row) Get(field string) string {
	return Text(r[field])
}

// Batch is an ordered, immutable snapshot of exported rows processed as a unit.
type Batch struct {
	Source string `json:"source"`
	Rows   []Row  `json:"rows"`
}

// TransactionCode identifies one logical sale within a single batch.
// Codes are assigned by first appearance and are not stable across runs.
type TransactionCode string

// NewTransactionCode formats the seq'th code of a batch (1-based).
func NewTransactionCode(seq int) TransactionCode {
	return TransactionCode(fmt.Sprintf("C%07d", seq))
}
