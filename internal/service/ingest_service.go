// internal/service/ingest_service.go
package service

import (
	"context"
	"log"

	"github.com/unclebandit/leadengage-backend/internal/model"
	"github.com/unclebandit/leadengage-backend/internal/repository"
)

// EventSource is the upstream conversation API: one page of events for a
// lead from the given cursor, plus the next cursor ("" when exhausted).
type EventSource interface {
	FetchEvents(ctx context.Context, leadID, cursor string) ([]*model.Event, string, error)
}

// IngestService drives the per-lead state machine from inbound conversation
// events. Arrival order is not chronological order: each event carries its
// own timestamp and is compared against the lead's watermark, so duplicate
// webhook deliveries degrade to flag updates instead of replayed
// transitions.
type IngestService struct {
	Leads   repository.LeadRepositoryInterface
	TaskSvc *TaskService
	Events  EventSource
}

// SyncLead pulls every unprocessed event page for the lead and feeds it
// through ProcessEvent, advancing the stored cursor as pages complete.
func (s *IngestService) SyncLead(ctx context.Context, businessID, leadID string) error {
	lead, _, err := s.Leads.GetOrCreate(leadID, businessID)
	if err != nil {
		return err
	}

	cursor := lead.LastCursor
	for {
		events, next, err := s.Events.FetchEvents(ctx, leadID, cursor)
		if err != nil {
			return err
		}

		for _, e := range events {
			e.LeadID = leadID
			e.BusinessID = businessID
			if err := s.ProcessEvent(ctx, e); err != nil {
				log.Println("⚠️ Failed to process event for lead", leadID, ":", err)
			}
		}

		if next == "" || next == cursor {
			break
		}
		cursor = next
		if err := s.Leads.UpdateCursor(leadID, cursor); err != nil {
			return err
		}
	}

	return nil
}

// ProcessEvent applies one event to the lead. Flag merges always happen;
// queue transitions (creation, cancellation) are skipped for historical
// events whose timestamp does not advance past the watermark.
func (s *IngestService) ProcessEvent(ctx context.Context, e *model.Event) (err error) {
	lead, created, err := s.Leads.GetOrCreate(e.LeadID, e.BusinessID)
	if err != nil {
		return err
	}

	wasAvailable := lead.PhoneAvailable()
	historical := !created && lead.IsHistorical(e.TimeCreated)

	update, phoneSeen := flagsFromEvent(e)
	if phoneSeen || update.PhoneOptIn || update.Name != "" {
		lead, err = s.Leads.MergeFlags(e.LeadID, update)
		if err != nil {
			return err
		}
	}

	if historical {
		// Flags merged above; no transition side effects for replays.
		return nil
	}

	// The watermark moves only when every transition side effect landed.
	// A failed transition leaves the event non-historical so the upstream's
	// redelivery can complete it.
	defer func() {
		if err != nil {
			return
		}
		if wErr := s.Leads.AdvanceWatermark(e.LeadID, e.TimeCreated); wErr != nil {
			log.Println("⚠️ Failed to advance watermark for lead", e.LeadID, ":", wErr)
		}
	}()

	if created {
		scenario := model.ClassifyScenario(lead)
		if _, err := s.TaskSvc.CreateQueue(lead, scenario); err != nil {
			return err
		}
		return nil
	}

	// Phone discovered on an existing lead: retire the no_phone queue and
	// start the phone_available one from sequence 0. Re-detection on an
	// already phone_available lead changes nothing here.
	if lead.PhoneAvailable() && !wasAvailable {
		if _, err := s.TaskSvc.CancelScenario(lead.ID, model.ScenarioNoPhone, ReasonPhoneDiscovered); err != nil {
			return err
		}
		if _, err := s.TaskSvc.CreateQueue(lead, model.ScenarioPhoneAvailable); err != nil {
			return err
		}
	}

	// A non-historical NEW_LEAD for a lead that already exists and has not
	// engaged is a redelivery of a creation whose queue build did not
	// complete. CreateQueue is idempotent, so build it again.
	if e.EventType == model.EventNewLead && lead.State == model.LeadStateNew {
		if _, err := s.TaskSvc.CreateQueue(lead, model.ClassifyScenario(lead)); err != nil {
			return err
		}
	}

	if e.EventType != model.EventNewMessage {
		return nil
	}

	// Auto-responses echoed back through the conversation API are our own
	// messages; they must never count as a reply.
	if e.FromBackend() {
		return nil
	}

	switch e.UserType {
	case model.UserTypeBusiness:
		// A human at the business answered. Nothing we scheduled should
		// race them; in-flight sends complete on their own.
		if n, err := s.TaskSvc.CancelUnclaimed(lead.ID, ReasonManualReply); err != nil {
			return err
		} else if n > 0 {
			log.Printf("Cancelled %d task(s) for lead %s after manual reply", n, lead.ID)
		}
		return s.Leads.UpdateState(lead.ID, model.LeadStateEngaged)

	case model.UserTypeConsumer:
		if phoneSeen {
			return nil // handled by the phone-discovery branch above
		}
		// The customer engaged before the greeting went out; a greeting
		// now would read stale. Follow-ups stay.
		if lead.State == model.LeadStateNew {
			if _, err := s.TaskSvc.CancelGreeting(lead.ID, ReasonCustomerReplied); err != nil {
				return err
			}
		}
		return s.Leads.UpdateState(lead.ID, model.LeadStateEngaged)
	}

	return nil
}

// flagsFromEvent maps one event onto the lead's monotonic signal flags.
// Phone in the original inquiry text marks phone_in_text; phone in any later
// message (either direction) marks phone_in_dialog; structured payload phone
// marks phone_in_additional_info.
func flagsFromEvent(e *model.Event) (repository.FlagUpdate, bool) {
	var f repository.FlagUpdate
	phoneSeen := false

	if phone := ExtractPhone(e.Text); phone != "" {
		f.PhoneNumber = phone
		phoneSeen = true
		if e.EventType == model.EventNewLead {
			f.PhoneInText = true
		} else {
			f.PhoneInDialog = true
		}
	}

	if phone := e.PhoneFromAdditionalInfo(); phone != "" {
		f.PhoneInAdditionalInfo = true
		phoneSeen = true
		if f.PhoneNumber == "" {
			f.PhoneNumber = phone
		}
	}

	if e.EventType == model.EventPhoneOptIn {
		f.PhoneOptIn = true
	}

	f.Name = e.ConsumerName()
	return f, phoneSeen
}
