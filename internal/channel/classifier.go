package channel

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/reference"
)

// Resolution names recorded in Transaction.ChannelRule for non-rule paths.
const (
	ResolvedByBranch = "fallback:sede"
	ResolvedByLinked = "linked_order"
)

// Classifier evaluates Rules in order; the first match wins. Unmatched
// transactions fall back to the branch table.
type Classifier struct {
	Rules  []Rule
	Table  reference.ChannelTable
	Fields model.FieldMap
}

// Classify sets the channel of tx and reports whether it was resolved.
// A transaction that already carries a channel is left untouched.
func (c *Classifier) Classify(tx *model.Transaction) bool {
	if tx.Channel != "" {
		return true
	}
	for _, r := range c.Rules {
		if r.Match(tx, c.Fields) {
			tx.Channel = r.Channel()
			tx.ChannelRule = r.Name()
			return true
		}
	}
	if ch, ok := c.Table.Lookup(tx.Field(c.Fields.Branch)); ok {
		tx.Channel = ch
		tx.ChannelRule = ResolvedByBranch
		return true
	}
	return false
}

// ClassifyAll classifies every transaction and returns the number left unresolved.
func (c *Classifier) ClassifyAll(txs []*model.Transaction) int {
	hits := make(map[string]int)
	unresolved := 0
	for _, tx := range txs {
		if !c.Classify(tx) {
			unresolved++
			continue
		}
		hits[tx.ChannelRule]++
	}

	log := zap.L().With(zap.String("component", "channel"))
	if ce := log.Check(zap.DebugLevel, "rule hits"); ce != nil {
		fields := make([]zap.Field, 0, len(c.Rules)+2)
		for _, r := range c.Rules {
			fields = append(fields, zap.Int(r.Name(), hits[r.Name()]))
		}
		fields = append(fields,
			zap.Int(ResolvedByBranch, hits[ResolvedByBranch]),
			zap.Int("unresolved", unresolved),
		)
		ce.Write(fields...)
	}
	return unresolved
}

// PropagateLinkedOrders copies channels across sales that reference each
// other: a transaction whose linked-order value equals another transaction's
// original-order value takes that transaction's resolved channel. The first
// resolved match in batch order is used. It returns the number of
// transactions updated.
func PropagateLinkedOrders(txs []*model.Transaction, linkedField, originalField string) int {
	if linkedField == "" || originalField == "" {
		return 0
	}
	byOriginal := make(map[string]*model.Transaction)
	for _, tx := range txs {
		key := strings.TrimSpace(tx.Field(originalField))
		if key == "" || tx.Channel == "" {
			continue
		}
		if _, ok := byOriginal[key]; !ok {
			byOriginal[key] = tx
		}
	}

	n := 0
	for _, tx := range txs {
		key := strings.TrimSpace(tx.Field(linkedField))
		if key == "" {
			continue
		}
		src, ok := byOriginal[key]
		if !ok || src == tx {
			continue
		}
		tx.Channel = src.Channel
		tx.ChannelRule = ResolvedByLinked
		n++
	}
	return n
}

// Relabel renames legacy channel names to their current names. It runs last
// so no legacy label survives classification. Keys of names must be
// normalized with reference.NormalizeKey.
func Relabel(txs []*model.Transaction, names map[string]string) int {
	if len(names) == 0 {
		return 0
	}
	n := 0
	for _, tx := range txs {
		if current, ok := names[reference.NormalizeKey(tx.Channel)]; ok && current != tx.Channel {
			tx.Channel = current
			n++
		}
	}
	return n
}

// UnresolvedError rejects a batch in which some transactions have no channel.
type UnresolvedError struct {
	Branches []string // distinct, normalized, sorted
	Count    int      // transactions without channel
}

func (e *UnresolvedError) Error() string {
	names := make([]string, len(e.Branches))
	for i, b := range e.Branches {
		if b == "" {
			b = "(blank)"
		}
		names[i] = b
	}
	return fmt.Sprintf("channel: %d transactions without channel, unresolved branches: %s",
		e.Count, strings.Join(names, ", "))
}

// Gate returns an *UnresolvedError listing every branch with at least one
// unresolved transaction, or nil when all transactions have a channel.
func Gate(txs []*model.Transaction, f model.FieldMap) error {
	seen := make(map[string]struct{})
	count := 0
	for _, tx := range txs {
		if tx.Channel != "" {
			continue
		}
		count++
		seen[reference.NormalizeKey(tx.Field(f.Branch))] = struct{}{}
	}
	if count == 0 {
		return nil
	}
	return &UnresolvedError{Branches: slices.Sorted(maps.Keys(seen)), Count: count}
}
