// Package store persists the run ledger and bulk-loads accepted datasets.
package store

import (
	"context"
	"time"

	"github.com/sells-group/salesops-cli/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Profile      string          `json:"profile,omitempty"`
	CreatedAfter time.Time       `json:"created_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Ledger records every processed batch, accepted or not.
type Ledger interface {
	RecordRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Nop is a Ledger that keeps nothing; used when store.driver is "none".
type Nop struct{}

func (Nop) RecordRun(context.Context, *model.Run) error              { return nil }
func (Nop) GetRun(context.Context, string) (*model.Run, error)       { return nil, nil }
func (Nop) ListRuns(context.Context, RunFilter) ([]model.Run, error) { return nil, nil }
func (Nop) Migrate(context.Context) error                            { return nil }
func (Nop) Close() error                                             { return nil }
