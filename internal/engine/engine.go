// Package engine turns one batch of exported rows into the channel- and
// SLA-tagged one-row-per-transaction dataset, or rejects it whole.
package engine

import (
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/channel"
	"github.com/sells-group/salesops-cli/internal/grouper"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/pivot"
	"github.com/sells-group/salesops-cli/internal/sla"
)

// Columns names the computed output columns.
type Columns struct {
	Code         string
	Channel      string
	BusinessDays string
	SLA          string
	Range        string
}

// Engine runs the stages over one batch at a time. It is not safe for
// concurrent use; build one Engine per goroutine.
type Engine struct {
	HeaderFields []string
	Fields       model.FieldMap
	Layouts      []string
	Location     *time.Location

	Pivoter      *pivot.Pivoter
	Classifier   *channel.Classifier
	LinkedOrders bool
	Relabel      map[string]string
	SLA          *sla.Calculator
	Columns      Columns
}

// Run groups, pivots, classifies and evaluates batch. When any transaction
// is left without a channel it returns a *channel.UnresolvedError and no
// dataset.
func (e *Engine) Run(batch model.Batch) (*model.Dataset, error) {
	log := zap.L().With(zap.String("component", "engine"), zap.String("source", batch.Source))
	start := time.Now()

	e.SLA.Reset()

	g := &grouper.Grouper{HeaderFields: e.HeaderFields}
	txs := g.Group(batch).Transactions
	e.parseDates(batch, txs)

	e.Pivoter.Apply(batch, txs)

	unresolved := e.Classifier.ClassifyAll(txs)
	linked := 0
	if e.LinkedOrders {
		linked = channel.PropagateLinkedOrders(txs, e.Fields.LinkedOrder, e.Fields.OriginalOrder)
	}
	relabeled := channel.Relabel(txs, e.Relabel)

	log.Debug("classified",
		zap.Int("rows", len(batch.Rows)),
		zap.Int("transactions", len(txs)),
		zap.Int("unresolved_before_linked", unresolved),
		zap.Int("linked", linked),
		zap.Int("relabeled", relabeled),
	)

	if err := channel.Gate(txs, e.Fields); err != nil {
		log.Warn("batch rejected", zap.Error(err))
		return nil, err
	}

	for _, tx := range txs {
		e.SLA.Evaluate(tx, e.Fields)
	}

	ds := e.dataset(txs)
	log.Info("batch accepted",
		zap.Int("rows", len(batch.Rows)),
		zap.Int("transactions", ds.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return ds, nil
}

// parseDates reads the sale and delivery dates from each transaction's
// first row. Unparseable values are left nil.
func (e *Engine) parseDates(batch model.Batch, txs []*model.Transaction) {
	for _, tx := range txs {
		if len(tx.Rows) == 0 {
			continue
		}
		row := batch.Rows[tx.Rows[0]]
		if e.Fields.SaleDate != "" {
			tx.SaleDate = model.ParseDate(row[e.Fields.SaleDate], e.Layouts, e.Location)
		}
		if e.Fields.DeliveryDate != "" {
			tx.DeliveryDate = model.ParseDate(row[e.Fields.DeliveryDate], e.Layouts, e.Location)
		}
	}
}

// OutputColumns returns the dataset header.
func (e *Engine) OutputColumns() []string {
	cols := make([]string, 0, 1+len(e.HeaderFields)+len(e.Pivoter.Fields)*e.Pivoter.Slots+4)
	cols = append(cols, e.Columns.Code)
	cols = append(cols, e.HeaderFields...)
	cols = append(cols, e.Pivoter.Columns()...)
	cols = append(cols, e.Columns.Channel, e.Columns.BusinessDays, e.Columns.SLA)
	if len(e.SLA.Buckets) > 0 {
		cols = append(cols, e.Columns.Range)
	}
	return cols
}

func (e *Engine) dataset(txs []*model.Transaction) *model.Dataset {
	ds := &model.Dataset{
		Columns:      e.OutputColumns(),
		Records:      make([][]string, 0, len(txs)),
		Transactions: txs,
	}
	withRange := len(e.SLA.Buckets) > 0
	for _, tx := range txs {
		rec := make([]string, 0, len(ds.Columns))
		rec = append(rec, string(tx.Code))
		for _, f := range e.HeaderFields {
			rec = append(rec, tx.Header[f])
		}
		rec = append(rec, e.Pivoter.Values(tx)...)
		rec = append(rec, tx.Channel, strconv.Itoa(tx.BusinessDays), tx.SLA)
		if withRange {
			rec = append(rec, tx.DaysRange)
		}
		ds.Records = append(ds.Records, rec)
	}
	return ds
}
