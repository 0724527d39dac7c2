// internal/controller/webhook_controller.go
package controller

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/unclebandit/leadengage-backend/internal/service"
)

type WebhookController struct {
	Ingest *service.IngestService

	// SyncTimeout bounds the background processing of one lead.
	SyncTimeout time.Duration
}

type leadStub struct {
	LeadID    string `json:"lead_id"`
	EventType string `json:"event_type"`
}

type webhookPayload struct {
	BusinessID string     `json:"business_id"`
	Leads      []leadStub `json:"leads"`
}

// HandleConversationWebhook acknowledges immediately and processes each lead
// asynchronously. The sender must never be retried into an error state:
// failures surface in the task log, not here.
func (c *WebhookController) HandleConversationWebhook(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if payload.BusinessID == "" {
		http.Error(w, "business_id is required", http.StatusBadRequest)
		return
	}

	timeout := c.SyncTimeout
	if timeout == 0 {
		timeout = time.Minute
	}

	for _, stub := range payload.Leads {
		if stub.LeadID == "" {
			continue
		}
		go func(businessID, leadID string) {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := c.Ingest.SyncLead(ctx, businessID, leadID); err != nil {
				log.Println("⚠️ Webhook sync failed for lead", leadID, ":", err)
			}
		}(payload.BusinessID, stub.LeadID)
	}

	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"accepted": len(payload.Leads),
	})
}
