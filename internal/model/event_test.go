package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventFromBackend(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{"no raw payload", "", false},
		{"unrelated payload", `{"foo": "bar"}`, false},
		{"backend_sent true", `{"backend_sent": true}`, true},
		{"backend_sent false", `{"backend_sent": false}`, false},
		{"task_id marker", `{"task_id": "abc-123"}`, true},
		{"empty task_id", `{"task_id": ""}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := Event{}
			if tt.raw != "" {
				e.Raw = json.RawMessage(tt.raw)
			}
			assert.Equal(t, tt.want, e.FromBackend())
		})
	}
}

func TestEventRawAccessors(t *testing.T) {
	e := Event{Raw: json.RawMessage(`{"consumer_name": "Alice", "additional_info": {"phone": "+15551234567"}}`)}
	assert.Equal(t, "Alice", e.ConsumerName())
	assert.Equal(t, "+15551234567", e.PhoneFromAdditionalInfo())

	empty := Event{}
	assert.Equal(t, "", empty.ConsumerName())
	assert.Equal(t, "", empty.PhoneFromAdditionalInfo())
}
