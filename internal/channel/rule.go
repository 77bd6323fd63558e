// Package channel attributes each transaction to a sales channel using an
// ordered rule list, a branch lookup table and a completeness gate.
package channel

import (
	"slices"
	"strings"
	"time"

	"github.com/sells-group/salesops-cli/internal/model"
)

// Rule is one override evaluated before the branch lookup. Rules compare
// trimmed values exactly.
type Rule interface {
	Name() string
	Channel() string
	Match(tx *model.Transaction, f model.FieldMap) bool
}

func field(tx *model.Transaction, name string) string {
	return strings.TrimSpace(tx.Field(name))
}

func in(set []string, v string) bool {
	return slices.ContainsFunc(set, func(s string) bool { return strings.TrimSpace(s) == v })
}

// DateGate assigns a channel to sales made on or after Since by one of the
// listed responsibles. Several gates with different cutoffs may coexist.
type DateGate struct {
	ID           string
	Assign       string
	Since        time.Time
	Responsibles []string
}

func (r DateGate) Name() string    { return r.ID }
func (r DateGate) Channel() string { return r.Assign }

func (r DateGate) Match(tx *model.Transaction, f model.FieldMap) bool {
	if tx.SaleDate == nil || tx.SaleDate.Before(r.Since) {
		return false
	}
	return in(r.Responsibles, field(tx, f.Responsible))
}

// Category assigns a channel to one category unless the responsible party is excluded.
type Category struct {
	ID                  string
	Assign              string
	Category            string
	ExcludeResponsibles []string
}

func (r Category) Name() string    { return r.ID }
func (r Category) Channel() string { return r.Assign }

func (r Category) Match(tx *model.Transaction, f model.FieldMap) bool {
	if field(tx, f.Category) != strings.TrimSpace(r.Category) {
		return false
	}
	return !in(r.ExcludeResponsibles, field(tx, f.Responsible))
}

// CategorySet is Category over a family of categories.
type CategorySet struct {
	ID                  string
	Assign              string
	Categories          []string
	ExcludeResponsibles []string
}

func (r CategorySet) Name() string    { return r.ID }
func (r CategorySet) Channel() string { return r.Assign }

func (r CategorySet) Match(tx *model.Transaction, f model.FieldMap) bool {
	cat := field(tx, f.Category)
	if cat == "" || !in(r.Categories, cat) {
		return false
	}
	return !in(r.ExcludeResponsibles, field(tx, f.Responsible))
}

// PartnerCategory matches an exact partner and category pair.
type PartnerCategory struct {
	ID       string
	Assign   string
	Partner  string
	Category string
}

func (r PartnerCategory) Name() string    { return r.ID }
func (r PartnerCategory) Channel() string { return r.Assign }

func (r PartnerCategory) Match(tx *model.Transaction, f model.FieldMap) bool {
	partner := field(tx, f.Partner)
	return partner != "" &&
		partner == strings.TrimSpace(r.Partner) &&
		field(tx, f.Category) == strings.TrimSpace(r.Category)
}
