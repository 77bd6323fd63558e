// Package monitoring summarizes the run ledger and raises alerts when
// batches are rejected or fail more often than configured.
package monitoring

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/store"
)

// BranchCount is how many rejected runs listed a branch as unresolved.
type BranchCount struct {
	Branch string `json:"branch"`
	Runs   int    `json:"runs"`
}

// MetricsSnapshot holds a point-in-time view of batch outcomes.
type MetricsSnapshot struct {
	Total        int     `json:"total"`
	Accepted     int     `json:"accepted"`
	Rejected     int     `json:"rejected"`
	Failed       int     `json:"failed"`
	RejectRate   float64 `json:"reject_rate"`
	Transactions int     `json:"transactions"`

	// Unresolved branches across rejected runs, most frequent first.
	Unresolved []BranchCount `json:"unresolved,omitempty"`

	Profile       string    `json:"profile,omitempty"`
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of store.Ledger the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers metrics from the ledger.
type Collector struct {
	ledger RunLister
	now    func() time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector(ledger RunLister) *Collector {
	return &Collector{ledger: ledger, now: time.Now}
}

// Collect summarizes runs created within the lookback window. An empty
// profile covers every profile.
func (c *Collector) Collect(ctx context.Context, profile string, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.now().UTC()
	snap := &MetricsSnapshot{
		Profile:       profile,
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}

	filter := store.RunFilter{Profile: profile, Limit: 10000}
	if lookbackHours > 0 {
		filter.CreatedAfter = now.Add(-time.Duration(lookbackHours) * time.Hour)
	}
	runs, err := c.ledger.ListRuns(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	branches := make(map[string]int)
	for _, r := range runs {
		snap.Total++
		switch r.Status {
		case model.RunStatusAccepted:
			snap.Accepted++
			snap.Transactions += r.Transactions
		case model.RunStatusRejected:
			snap.Rejected++
			for _, b := range r.Unresolved {
				branches[b]++
			}
		case model.RunStatusFailed:
			snap.Failed++
		}
	}
	if decided := snap.Accepted + snap.Rejected; decided > 0 {
		snap.RejectRate = float64(snap.Rejected) / float64(decided)
	}

	for b, n := range branches {
		snap.Unresolved = append(snap.Unresolved, BranchCount{Branch: b, Runs: n})
	}
	slices.SortFunc(snap.Unresolved, func(a, b BranchCount) int {
		if d := cmp.Compare(b.Runs, a.Runs); d != 0 {
			return d
		}
		return cmp.Compare(a.Branch, b.Branch)
	})

	return snap, nil
}
