// Package grouper collapses rows that share identical header fields into one
// transaction with a sequential, batch-local code.
package grouper

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Fingerprint hashes the header fields of a row after coercing each value to
// text (missing and nil become ""). Each value is length-prefixed, so
// {"AB", "C"} and {"A", "BC"} never collide.
func Fingerprint(row model.Row, headerFields []string) string {
	h := sha256.New()
	var n [8]byte
	for _, f := range headerFields {
		v := model.Text(row[f])
		binary.BigEndian.PutUint64(n[:], uint64(len(v)))
		h.Write(n[:])
		h.Write([]byte(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Grouper assigns transaction codes. A Grouper is meant for one batch; Group
// always starts from an empty fingerprint map.
type Grouper struct {
	HeaderFields []string
}

// Result is the output of grouping one batch.
type Result struct {
	Transactions []*model.Transaction
	Codes        []model.TransactionCode // parallel to Batch.Rows
}

// Group walks the batch in order, creating one transaction per distinct
// fingerprint. The header of a transaction is taken from its first row.
// Rows with entirely empty headers share a single transaction.
func (g *Grouper) Group(batch model.Batch) *Result {
	byPrint := make(map[string]*model.Transaction)
	res := &Result{Codes: make([]model.TransactionCode, len(batch.Rows))}

	for i, row := range batch.Rows {
		fp := Fingerprint(row, g.HeaderFields)
		tx, ok := byPrint[fp]
		if !ok {
			tx = &model.Transaction{
				Code:   model.NewTransactionCode(len(res.Transactions) + 1),
				Header: headerOf(row, g.HeaderFields),
			}
			byPrint[fp] = tx
			res.Transactions = append(res.Transactions, tx)
		}
		tx.Rows = append(tx.Rows, i)
		res.Codes[i] = tx.Code
	}
	return res
}

func headerOf(row model.Row, fields []string) map[string]string {
	h := make(map[string]string, len(fields))
	for _, f := range fields {
		h[f] = model.Text(row[f])
	}
	return h
}
