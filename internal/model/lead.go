// internal/model/lead.go
package model

import "time"

// Lead state progression. A lead is created on its first inbound event and
// never deleted.
const (
	LeadStateNew     = "new"
	LeadStateEngaged = "engaged"
)

type Lead struct {
	ID          string `db:"id" json:"id"` // externally assigned, opaque
	BusinessID  string `db:"business_id" json:"business_id"`
	State       string `db:"state" json:"state"`
	Name        string `db:"name" json:"name,omitempty"` // consumer display name, if upstream provides one
	PhoneNumber string `db:"phone_number" json:"phone_number,omitempty"`

	// Monotonic: once true they stay true for the lifetime of the lead.
	PhoneOptIn            bool `db:"phone_opt_in" json:"phone_opt_in"`
	PhoneInText           bool `db:"phone_in_text" json:"phone_in_text"`
	PhoneInDialog         bool `db:"phone_in_dialog" json:"phone_in_dialog"`
	PhoneInAdditionalInfo bool `db:"phone_in_additional_info" json:"phone_in_additional_info"`

	// ProcessedAsOf is the watermark: events stamped at or before it are
	// historical and must not trigger cancellation side effects.
	ProcessedAsOf *time.Time `db:"processed_as_of" json:"processed_as_of,omitempty"`
	LastCursor    string     `db:"last_cursor" json:"last_cursor,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt *time.Time `db:"updated_at" json:"updated_at,omitempty"`
}

// PhoneAvailable reports whether any signal has produced a usable phone.
func (l *Lead) PhoneAvailable() bool {
	return l.PhoneInText || l.PhoneInDialog || l.PhoneInAdditionalInfo || l.PhoneNumber != ""
}

// IsHistorical reports whether an event timestamp falls at or before the
// lead's watermark.
func (l *Lead) IsHistorical(eventTime time.Time) bool {
	return l.ProcessedAsOf != nil && !eventTime.After(*l.ProcessedAsOf)
}
