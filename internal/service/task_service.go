// internal/service/task_service.go
package service

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/unclebandit/leadengage-backend/internal/config"
	appErrors "github.com/unclebandit/leadengage-backend/internal/errors"
	"github.com/unclebandit/leadengage-backend/internal/model"
	"github.com/unclebandit/leadengage-backend/internal/repository"
)

// Cancellation reasons recorded on pending tasks for audit.
const (
	ReasonPhoneDiscovered = "phone_discovered"
	ReasonCustomerReplied = "customer_replied"
	ReasonManualReply     = "manual_reply"
	ReasonDuplicateText   = "duplicate_content"
)

// TaskScheduler is the slice of the scheduler the task service needs.
type TaskScheduler interface {
	Schedule(t *model.PendingTask) error
}

// TaskService owns the pending-task queue for a lead: building it from the
// scenario's template set and tearing parts of it down when events supersede
// it.
type TaskService struct {
	Tasks     repository.PendingTaskRepositoryInterface
	Settings  repository.SettingsRepositoryInterface
	Templates *config.TemplateStore
	Scheduler TaskScheduler

	Now func() time.Time
}

func (s *TaskService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// CreateQueue builds the scenario's queue for a lead: ascending sequence
// numbers from 0, chained prev pointers, send times accumulated from the
// template delays and clamped into the business send window.
//
// A uniqueness collision on the greeting means another delivery already
// built this queue; the whole call is then a no-op, not an error. A
// collision on a later step skips just that step.
func (s *TaskService) CreateQueue(lead *model.Lead, scenario model.Scenario) ([]*model.PendingTask, error) {
	settings, err := s.Settings.Get(lead.BusinessID)
	if err != nil {
		if _, ok := err.(*appErrors.ErrSettingsNotFound); ok {
			// No settings row means the business never enabled auto-responses.
			return nil, nil
		}
		return nil, err
	}
	if !settings.Enabled {
		return nil, nil
	}

	templates := s.Templates.ForScenario(scenario)
	if len(templates) == 0 {
		log.Printf("No templates configured for scenario %s, business %s", scenario, lead.BusinessID)
		return nil, nil
	}

	base := s.now()
	created := []*model.PendingTask{}
	var prevID *string

	for i, tpl := range templates {
		delay := time.Duration(tpl.DelayMinutes) * time.Minute
		if i == 0 && settings.GreetingDelayMinutes > 0 {
			delay = time.Duration(settings.GreetingDelayMinutes) * time.Minute
		}
		base = ClampToBusinessHours(base.Add(delay), settings.HoursStart, settings.HoursEnd)

		t := &model.PendingTask{
			ID:           uuid.NewString(),
			LeadID:       lead.ID,
			BusinessID:   lead.BusinessID,
			Seq:          tpl.Seq,
			Scenario:     scenario,
			TemplateBody: tpl.Body,
			UseAI:        tpl.UseAI && settings.UseAI,
			PrevTaskID:   prevID,
			SendAt:       base,
		}

		if err := s.Tasks.Create(t); err != nil {
			if _, ok := err.(*appErrors.ErrTaskAlreadyScheduled); ok {
				if i == 0 {
					// Another delivery won the race for this queue.
					return nil, nil
				}
				continue
			}
			return nil, err
		}

		if err := s.Scheduler.Schedule(t); err != nil {
			log.Println("⚠️ Failed to record schedule for task", t.ID, ":", err)
		}

		id := t.ID
		prevID = &id
		created = append(created, t)
	}

	return created, nil
}

// CancelScenario cancels every unclaimed task tagged with the scenario.
func (s *TaskService) CancelScenario(leadID string, scenario model.Scenario, reason string) (int, error) {
	return s.Tasks.CancelMatching(leadID, reason, repository.CancelFilter{Scenario: &scenario})
}

// CancelGreeting cancels the greeting-stage task only (sequence 0),
// preserving follow-ups. Used when a customer reply makes the greeting
// stale.
func (s *TaskService) CancelGreeting(leadID, reason string) (int, error) {
	zero := 0
	return s.Tasks.CancelMatching(leadID, reason, repository.CancelFilter{MaxSeq: &zero})
}

// CancelUnclaimed cancels everything not yet claimed by an executor. Tasks
// already in flight complete normally.
func (s *TaskService) CancelUnclaimed(leadID, reason string) (int, error) {
	return s.Tasks.CancelMatching(leadID, reason, repository.CancelFilter{})
}
