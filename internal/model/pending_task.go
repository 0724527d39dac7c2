// internal/model/pending_task.go
package model

import "time"

// PendingTask statuses. pending: in the store, waiting for its send time.
// waiting: handed to the broker. sending: claimed by exactly one executor.
// sent/failed/cancelled are terminal and never transition again.
const (
	TaskStatusPending   = "pending"
	TaskStatusWaiting   = "waiting"
	TaskStatusSending   = "sending"
	TaskStatusSent      = "sent"
	TaskStatusFailed    = "failed"
	TaskStatusCancelled = "cancelled"
)

type PendingTask struct {
	ID         string   `db:"id" json:"id"` // uuid, shared with the task log
	LeadID     string   `db:"lead_id" json:"lead_id"`
	BusinessID string   `db:"business_id" json:"business_id"`
	Seq        int      `db:"seq" json:"seq"` // 0 = greeting, 1..N = follow-ups
	Scenario   Scenario `db:"scenario" json:"scenario"`

	// Content may stay empty until generated at dispatch time. Non-empty
	// content is unique per (lead, content) among active tasks.
	Content      string `db:"content" json:"content"`
	TemplateBody string `db:"template_body" json:"template_body"`
	UseAI        bool   `db:"use_ai" json:"use_ai"`

	Status       string  `db:"status" json:"status"`
	Active       bool    `db:"active" json:"active"`
	CancelReason string  `db:"cancel_reason" json:"cancel_reason,omitempty"`
	LastError    string  `db:"last_error" json:"last_error,omitempty"`
	PrevTaskID   *string `db:"prev_task_id" json:"prev_task_id,omitempty"`

	SendAt    time.Time  `db:"send_at" json:"send_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	SentAt    *time.Time `db:"sent_at" json:"sent_at,omitempty"`
}

// Terminal reports whether the task has reached a state it can never leave.
func (t *PendingTask) Terminal() bool {
	switch t.Status {
	case TaskStatusSent, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}
