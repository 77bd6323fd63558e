package model

import "time"

// RunStatus is the outcome of processing one batch.
type RunStatus string

const (
	RunStatusAccepted RunStatus = "accepted"
	RunStatusRejected RunStatus = "rejected"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one batch execution in the ledger.
type Run struct {
	ID           string    `json:"id"`
	Profile      string    `json:"profile"`
	Source       string    `json:"source"`
	Status       RunStatus `json:"status"`
	Rows         int       `json:"rows"`
	Transactions int       `json:"transactions"`
	Unresolved   []string  `json:"unresolved,omitempty"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}
