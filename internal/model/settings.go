// internal/model/settings.go
package model

import "time"

// AutoResponseSettings is the per-business configuration snapshot. It is
// fetched once per scenario classification and treated as immutable for the
// duration of that transition.
type AutoResponseSettings struct {
	BusinessID           string    `db:"business_id" json:"business_id"`
	Enabled              bool      `db:"enabled" json:"enabled"`
	UseAI                bool      `db:"use_ai" json:"use_ai"`
	GreetingDelayMinutes int       `db:"greeting_delay_minutes" json:"greeting_delay_minutes"`
	HoursStart           int       `db:"hours_start" json:"hours_start"` // send window, local hour
	HoursEnd             int       `db:"hours_end" json:"hours_end"`
	SMSFrom              string    `db:"sms_from" json:"sms_from"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}
