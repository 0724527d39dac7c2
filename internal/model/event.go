// internal/model/event.go
package model

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Conversation event types and actor kinds as delivered by the upstream API.
const (
	EventNewLead    = "NEW_LEAD"
	EventNewMessage = "NEW_MESSAGE"
	EventPhoneOptIn = "PHONE_OPT_IN"

	UserTypeConsumer = "CONSUMER"
	UserTypeBusiness = "BUSINESS"
)

type Event struct {
	LeadID      string          `json:"lead_id"`
	BusinessID  string          `json:"business_id"`
	EventType   string          `json:"event_type"`
	UserType    string          `json:"user_type"`
	TimeCreated time.Time       `json:"time_created"`
	Text        string          `json:"text"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

// FromBackend reports whether this event was authored by this backend
// itself (an auto-response echoed back through the conversation API). Such
// events must never be mistaken for a manual business reply.
func (e *Event) FromBackend() bool {
	if len(e.Raw) == 0 {
		return false
	}
	if gjson.GetBytes(e.Raw, "backend_sent").Bool() {
		return true
	}
	return gjson.GetBytes(e.Raw, "task_id").String() != ""
}

// ConsumerName pulls the consumer display name out of the raw payload.
func (e *Event) ConsumerName() string {
	if len(e.Raw) == 0 {
		return ""
	}
	return gjson.GetBytes(e.Raw, "consumer_name").String()
}

// PhoneFromAdditionalInfo pulls a phone value out of the raw payload's
// structured fields, if the upstream attached one.
func (e *Event) PhoneFromAdditionalInfo() string {
	if len(e.Raw) == 0 {
		return ""
	}
	return gjson.GetBytes(e.Raw, "additional_info.phone").String()
}
