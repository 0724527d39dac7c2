// internal/service/dispatch_service.go
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	appErrors "github.com/unclebandit/leadengage-backend/internal/errors"
	"github.com/unclebandit/leadengage-backend/internal/model"
	"github.com/unclebandit/leadengage-backend/internal/repository"
	"github.com/unclebandit/leadengage-backend/internal/scheduler"
	"github.com/unclebandit/leadengage-backend/internal/sms"
)

// DispatchService is the delivery executor. HandleTask runs once per queue
// delivery; at-least-once redelivery from the broker is collapsed to
// at-most-one send by the claim compare-and-swap.
type DispatchService struct {
	Tasks     repository.PendingTaskRepositoryInterface
	Leads     repository.LeadRepositoryInterface
	Settings  repository.SettingsRepositoryInterface
	Lifecycle scheduler.Lifecycle
	Sender    sms.Sender
	Generator Generator // optional; nil disables AI generation entirely

	RequeueDelay time.Duration
}

// HandleTask executes one task id from the dispatch queue. Returning nil
// acks the delivery; error asks the broker for a bounded redelivery.
func (d *DispatchService) HandleTask(ctx context.Context, taskID string) error {
	if err := d.Lifecycle.OnStart(taskID); err != nil {
		log.Println("⚠️ Failed to record start for task", taskID, ":", err)
	}

	t, err := d.Tasks.GetByID(taskID)
	if err != nil {
		return err
	}
	if t == nil {
		// Ledger row exists (the start hook above upserted it) but no
		// business task does; fatal for this task only.
		d.finish(taskID, false, appErrors.NewTaskNotFound(taskID).Error())
		return nil
	}

	if !t.Active || t.Terminal() {
		log.Printf("Task %s already %s, nothing to do", t.ID, t.Status)
		return nil
	}

	// Ordering guard: an unsent earlier step means this one goes back in
	// the store to try again later.
	earlier, err := d.Tasks.HasEarlierActive(t.LeadID, t.Seq)
	if err != nil {
		return err
	}
	if earlier {
		log.Printf("Task %s (seq %d) waiting on an earlier step, postponing", t.ID, t.Seq)
		return d.Tasks.ReleaseToPending(t.ID, time.Now().Add(d.RequeueDelay))
	}

	claimed, err := d.Tasks.Claim(t.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another invocation holds or finished this task. No side effects.
		return nil
	}

	lead, err := d.Leads.GetByID(t.LeadID)
	if err != nil {
		d.fail(t, fmt.Sprintf("lead lookup: %v", err))
		return nil
	}

	content, err := d.resolveContent(ctx, t, lead)
	if err != nil {
		if _, ok := err.(*appErrors.ErrTaskAlreadyScheduled); ok {
			// Same text is already active for this lead; sending it again
			// would double-message. Retire this task quietly.
			if cErr := d.Tasks.CancelClaimed(t.ID, ReasonDuplicateText); cErr != nil {
				log.Println("⚠️ Failed to cancel duplicate task", t.ID, ":", cErr)
			}
			d.finish(t.ID, true, "skipped: duplicate content")
			return nil
		}
		d.fail(t, fmt.Sprintf("content: %v", err))
		return nil
	}

	to := lead.PhoneNumber
	if to == "" {
		// No resolved phone: deliver through the conversation thread,
		// keyed by the lead id.
		to = lead.ID
	}

	from := ""
	if d.Settings != nil {
		if settings, sErr := d.Settings.Get(t.BusinessID); sErr == nil {
			from = settings.SMSFrom
		}
	}

	providerID, err := d.Sender.Send(ctx, from, to, content)
	if err != nil {
		d.fail(t, err.Error())
		return nil
	}

	if err := d.Tasks.MarkSent(t.ID); err != nil {
		log.Println("⚠️ Failed to mark task sent", t.ID, ":", err)
	}
	result, _ := json.Marshal(map[string]string{"provider_message_id": providerID})
	d.finish(t.ID, true, string(result))
	log.Printf("✅ Task %s sent (seq %d, lead %s)", t.ID, t.Seq, t.LeadID)
	return nil
}

// resolveContent returns the task's final text, generating it on first
// dispatch. Generation failures fall back to the rendered template; the
// send itself is never blocked on the AI collaborator.
func (d *DispatchService) resolveContent(ctx context.Context, t *model.PendingTask, lead *model.Lead) (string, error) {
	if t.Content != "" {
		return t.Content, nil
	}

	content := RenderTemplate(t.TemplateBody, lead)
	if t.UseAI && d.Generator != nil {
		generated, err := d.Generator.Generate(ctx, t.TemplateBody, lead)
		if err != nil {
			log.Println("⚠️ AI generation failed for task", t.ID, ", using template:", err)
		} else {
			content = generated
		}
	}

	if err := d.Tasks.UpdateContent(t.ID, content); err != nil {
		return "", err
	}
	t.Content = content
	return content, nil
}

func (d *DispatchService) fail(t *model.PendingTask, message string) {
	log.Printf("⚠️ Task %s failed: %s", t.ID, message)
	if err := d.Tasks.MarkFailed(t.ID, message); err != nil {
		log.Println("⚠️ Failed to mark task failed", t.ID, ":", err)
	}
	d.finish(t.ID, false, message)
}

func (d *DispatchService) finish(taskID string, success bool, result string) {
	if err := d.Lifecycle.OnFinish(taskID, success, result); err != nil {
		log.Println("⚠️ Failed to record finish for task", taskID, ":", err)
	}
}
