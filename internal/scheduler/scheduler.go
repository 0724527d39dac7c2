// Package scheduler moves due pending tasks from the store onto the
// dispatch queue and keeps the task log in step via explicit lifecycle
// hooks. The store itself is the delayed queue: a task is "scheduled" the
// moment its row exists with a future send_at, and the poll loop here is
// what turns due rows into broker deliveries.
package scheduler

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/unclebandit/leadengage-backend/internal/model"
	"github.com/unclebandit/leadengage-backend/internal/queue"
	"github.com/unclebandit/leadengage-backend/internal/repository"
)

// TaskName is the task log name for auto-response sends.
const TaskName = "send_auto_response"

// Lifecycle is the explicit replacement for ambient scheduling signals:
// the dispatcher calls these at well-defined points, and every one of them
// is an idempotent upsert keyed by task id, so firing order does not matter.
type Lifecycle struct {
	Log repository.TaskLogRepositoryInterface
}

type taskArgs struct {
	LeadID   string         `json:"lead_id"`
	Seq      int            `json:"seq"`
	Scenario model.Scenario `json:"scenario"`
}

func (l *Lifecycle) OnSchedule(t *model.PendingTask) error {
	args, _ := json.Marshal(taskArgs{LeadID: t.LeadID, Seq: t.Seq, Scenario: t.Scenario})
	return l.Log.RecordScheduled(t.ID, TaskName, string(args), t.BusinessID, t.SendAt)
}

// Schedule records the task in the log. Scheduling the same task id twice is
// harmless: the log upsert converges and the store row is the single source
// of dispatch truth, so no second delivery can result.
func (l *Lifecycle) Schedule(t *model.PendingTask) error {
	return l.OnSchedule(t)
}

func (l *Lifecycle) OnStart(taskID string) error {
	return l.Log.RecordStarted(taskID)
}

func (l *Lifecycle) OnFinish(taskID string, success bool, result string) error {
	return l.Log.RecordFinished(taskID, success, result)
}

type Scheduler struct {
	Tasks repository.PendingTaskRepositoryInterface
	Queue queue.Queue
	Lifecycle

	PollInterval time.Duration
	BatchSize    int
}

func NewScheduler(tasks repository.PendingTaskRepositoryInterface, logRepo repository.TaskLogRepositoryInterface, q queue.Queue, pollInterval time.Duration, batchSize int) *Scheduler {
	return &Scheduler{
		Tasks:        tasks,
		Queue:        q,
		Lifecycle:    Lifecycle{Log: logRepo},
		PollInterval: pollInterval,
		BatchSize:    batchSize,
	}
}

// Run is the poll loop. Each tick claims a batch of due tasks (flipped to
// WAITING inside the claim transaction) and publishes their ids. A publish
// failure releases the task back to PENDING so the next tick retries it.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.PollInterval)
	defer ticker.Stop()

	log.Printf("Scheduler started, polling every %v, batch size %d", s.PollInterval, s.BatchSize)

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler shutting down...")
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	tasks, err := s.Tasks.DueForDispatch(ctx, s.BatchSize)
	if err != nil {
		log.Println("⚠️ Failed to fetch due tasks:", err)
		return
	}
	if len(tasks) == 0 {
		return
	}

	log.Printf("Dispatching %d due task(s)", len(tasks))

	for _, t := range tasks {
		if err := s.Queue.Publish(queue.TaskDispatchTopic, t.ID); err != nil {
			log.Println("⚠️ Failed to publish task", t.ID, ":", err)
			if relErr := s.Tasks.ReleaseToPending(t.ID, t.SendAt); relErr != nil {
				log.Println("⚠️ Failed to release task", t.ID, ":", relErr)
			}
			continue
		}
	}
}
