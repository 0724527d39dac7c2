// internal/errors/errors.go
package appErrors

import "fmt"

// ErrLeadNotFound is a sentinel error
type ErrLeadNotFound struct {
	LeadID string
}

func (e *ErrLeadNotFound) Error() string {
	return fmt.Sprintf("lead %s not found", e.LeadID)
}

// Helper constructor
func NewLeadNotFound(id string) error {
	return &ErrLeadNotFound{LeadID: id}
}

// ErrTaskNotFound is returned when a task id has no pending-task row.
type ErrTaskNotFound struct {
	TaskID string
}

func (e *ErrTaskNotFound) Error() string {
	return fmt.Sprintf("task %s not found", e.TaskID)
}

func NewTaskNotFound(id string) error {
	return &ErrTaskNotFound{TaskID: id}
}

// ErrTaskAlreadyScheduled is the recovered form of a unique-constraint
// violation on (lead, seq) or (lead, content): the loser of a race between
// two concurrent webhook deliveries sees this, never a raw DB error.
type ErrTaskAlreadyScheduled struct {
	LeadID string
	Seq    int
}

func (e *ErrTaskAlreadyScheduled) Error() string {
	return fmt.Sprintf("task for lead %s at seq %d already scheduled", e.LeadID, e.Seq)
}

func NewTaskAlreadyScheduled(leadID string, seq int) error {
	return &ErrTaskAlreadyScheduled{LeadID: leadID, Seq: seq}
}

// ErrSettingsNotFound is returned when a business has no auto-response
// settings row.
type ErrSettingsNotFound struct {
	BusinessID string
}

func (e *ErrSettingsNotFound) Error() string {
	return fmt.Sprintf("auto-response settings for business %s not found", e.BusinessID)
}

func NewSettingsNotFound(businessID string) error {
	return &ErrSettingsNotFound{BusinessID: businessID}
}
