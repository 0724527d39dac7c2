// internal/model/task_log.go
package model

import "time"

// Task log statuses. The log is the durable record of scheduled background
// work, independent of the broker's own bookkeeping.
const (
	LogStatusScheduled = "scheduled"
	LogStatusStarted   = "started"
	LogStatusSuccess   = "success"
	LogStatusFailure   = "failure"
)

type TaskLogEntry struct {
	TaskID     string `db:"task_id" json:"task_id"` // primary key
	Name       string `db:"name" json:"name"`
	Args       string `db:"args" json:"args"` // serialized payload
	BusinessID string `db:"business_id" json:"business_id"`
	Status     string `db:"status" json:"status"`
	Result     string `db:"result" json:"result,omitempty"`

	ETA        *time.Time `db:"eta" json:"eta,omitempty"`
	StartedAt  *time.Time `db:"started_at" json:"started_at,omitempty"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// BestTimestamp is the retention reference: finished, else started, else eta.
// Entries with none of the three represent still-pending work and are never
// purged by age.
func (e *TaskLogEntry) BestTimestamp() *time.Time {
	if e.FinishedAt != nil {
		return e.FinishedAt
	}
	if e.StartedAt != nil {
		return e.StartedAt
	}
	return e.ETA
}
