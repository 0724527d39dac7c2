package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/leadengage-backend/internal/errors"
	"github.com/unclebandit/leadengage-backend/internal/model"
)

// CancelFilter narrows CancelMatching to a subset of a lead's active tasks.
// Zero value matches every active task still in a cancellable status.
type CancelFilter struct {
	Scenario *model.Scenario // only tasks tagged with this scenario
	MaxSeq   *int            // only tasks with seq <= MaxSeq
}

type PendingTaskRepositoryInterface interface {
	Create(t *model.PendingTask) error
	GetByID(id string) (*model.PendingTask, error)
	ActiveByLead(leadID string) ([]*model.PendingTask, error)
	HasEarlierActive(leadID string, seq int) (bool, error)
	UpdateContent(id, content string) error
	Claim(id string) (bool, error)
	DueForDispatch(ctx context.Context, limit int) ([]*model.PendingTask, error)
	ReleaseToPending(id string, sendAt time.Time) error
	MarkSent(id string) error
	MarkFailed(id, lastError string) error
	CancelByID(id, reason string) error
	CancelClaimed(id, reason string) error
	CancelMatching(leadID, reason string, f CancelFilter) (int, error)
}

type PendingTaskRepository struct {
	DB *sql.DB
}

const taskColumns = `id, lead_id, business_id, seq, scenario, content, template_body, use_ai,
       status, active, cancel_reason, last_error, prev_task_id, send_at, created_at, sent_at`

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// Create inserts a new active task. A unique violation on (lead, seq) or
// (lead, content) means another delivery already scheduled it; callers get
// ErrTaskAlreadyScheduled and must treat it as success.
func (r *PendingTaskRepository) Create(t *model.PendingTask) error {
	t.CreatedAt = time.Now()
	if t.Status == "" {
		t.Status = model.TaskStatusPending
	}
	t.Active = true

	query := `
        INSERT INTO pending_tasks
        (id, lead_id, business_id, seq, scenario, content, template_body, use_ai,
         status, active, prev_task_id, send_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $11, $12)`
	_, err := r.DB.Exec(query,
		t.ID, t.LeadID, t.BusinessID, t.Seq, t.Scenario, t.Content, t.TemplateBody, t.UseAI,
		t.Status, t.PrevTaskID, t.SendAt, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.NewTaskAlreadyScheduled(t.LeadID, t.Seq)
		}
		return err
	}
	return nil
}

func scanTask(scan func(dest ...interface{}) error) (*model.PendingTask, error) {
	var t model.PendingTask
	err := scan(
		&t.ID, &t.LeadID, &t.BusinessID, &t.Seq, &t.Scenario, &t.Content, &t.TemplateBody, &t.UseAI,
		&t.Status, &t.Active, &t.CancelReason, &t.LastError, &t.PrevTaskID,
		&t.SendAt, &t.CreatedAt, &t.SentAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PendingTaskRepository) GetByID(id string) (*model.PendingTask, error) {
	query := `SELECT ` + taskColumns + ` FROM pending_tasks WHERE id=$1`
	t, err := scanTask(r.DB.QueryRow(query, id).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return t, nil
}

func (r *PendingTaskRepository) ActiveByLead(leadID string) ([]*model.PendingTask, error) {
	query := `SELECT ` + taskColumns + ` FROM pending_tasks WHERE lead_id=$1 AND active ORDER BY seq`
	rows, err := r.DB.Query(query, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*model.PendingTask{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// HasEarlierActive reports whether an active task with a lower sequence
// number still exists for the lead. Used as the chain guard before dispatch.
func (r *PendingTaskRepository) HasEarlierActive(leadID string, seq int) (bool, error) {
	var count int
	err := r.DB.QueryRow(`
        SELECT COUNT(*)
        FROM pending_tasks
        WHERE lead_id = $1 AND active AND seq < $2 AND status <> 'sending'`,
		leadID, seq).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateContent stores generated text. The (lead, content) partial unique
// index rejects a duplicate body among the lead's active tasks.
func (r *PendingTaskRepository) UpdateContent(id, content string) error {
	query := `UPDATE pending_tasks SET content=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, content, id)
	if err != nil && isUniqueViolation(err) {
		t, getErr := r.GetByID(id)
		if getErr == nil && t != nil {
			return appErrors.NewTaskAlreadyScheduled(t.LeadID, t.Seq)
		}
		return appErrors.NewTaskAlreadyScheduled("", 0)
	}
	return err
}

// Claim is the atomic compare-and-swap to SENDING. Exactly one concurrent
// caller gets true; the rest observe the transitioned row and must exit
// without side effects.
func (r *PendingTaskRepository) Claim(id string) (bool, error) {
	res, err := r.DB.Exec(`
        UPDATE pending_tasks
        SET status = 'sending'
        WHERE id = $1 AND active AND status IN ('pending', 'waiting')`,
		id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// DueForDispatch picks due pending tasks and flips them to WAITING inside a
// single transaction. FOR UPDATE SKIP LOCKED keeps concurrent pollers off
// each other's batches.
func (r *PendingTaskRepository) DueForDispatch(ctx context.Context, limit int) ([]*model.PendingTask, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
        SELECT `+taskColumns+`
        FROM pending_tasks
        WHERE active AND status = 'pending' AND send_at <= NOW()
        ORDER BY send_at
        LIMIT $1
        FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, err
	}

	tasks := []*model.PendingTask{}
	ids := []string{}
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			rows.Close()
			return nil, err
		}
		tasks = append(tasks, t)
		ids = append(ids, t.ID)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(tasks) == 0 {
		return tasks, tx.Commit()
	}

	_, err = tx.ExecContext(ctx, `
        UPDATE pending_tasks SET status = 'waiting' WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for _, t := range tasks {
		t.Status = model.TaskStatusWaiting
	}
	return tasks, nil
}

// ReleaseToPending puts an unsent task back in the store with a new send
// time (publish failure, or chain guard postponement). Terminal rows are
// untouched.
func (r *PendingTaskRepository) ReleaseToPending(id string, sendAt time.Time) error {
	query := `
        UPDATE pending_tasks
        SET status = 'pending', send_at = $1
        WHERE id = $2 AND active AND status IN ('waiting', 'sending')`
	_, err := r.DB.Exec(query, sendAt, id)
	return err
}

// MarkSent is idempotent: a second call on an already-terminal task matches
// no row and is a no-op.
func (r *PendingTaskRepository) MarkSent(id string) error {
	query := `
        UPDATE pending_tasks
        SET status = 'sent', active = FALSE, sent_at = NOW()
        WHERE id = $1 AND status NOT IN ('sent', 'failed', 'cancelled')`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *PendingTaskRepository) MarkFailed(id, lastError string) error {
	query := `
        UPDATE pending_tasks
        SET status = 'failed', active = FALSE, last_error = $1
        WHERE id = $2 AND status NOT IN ('sent', 'failed', 'cancelled')`
	_, err := r.DB.Exec(query, lastError, id)
	return err
}

// CancelByID cancels one unclaimed task. Claimed or terminal rows are left
// alone (cooperative cancellation).
func (r *PendingTaskRepository) CancelByID(id, reason string) error {
	query := `
        UPDATE pending_tasks
        SET status = 'cancelled', active = FALSE, cancel_reason = $1
        WHERE id = $2 AND active AND status IN ('pending', 'waiting')`
	_, err := r.DB.Exec(query, reason, id)
	return err
}

// CancelClaimed lets the claiming executor itself retire a task it decided
// not to send (for example duplicate generated content). Only the SENDING
// holder may do this.
func (r *PendingTaskRepository) CancelClaimed(id, reason string) error {
	query := `
        UPDATE pending_tasks
        SET status = 'cancelled', active = FALSE, cancel_reason = $1
        WHERE id = $2 AND status = 'sending'`
	_, err := r.DB.Exec(query, reason, id)
	return err
}

// CancelMatching cancels the lead's active unclaimed tasks matching the
// filter, recording the reason. Empty match set is a no-op. Tasks already
// claimed (SENDING) finish normally; cancellation is cooperative.
func (r *PendingTaskRepository) CancelMatching(leadID, reason string, f CancelFilter) (int, error) {
	query := `
        UPDATE pending_tasks
        SET status = 'cancelled', active = FALSE, cancel_reason = $1
        WHERE lead_id = $2 AND active AND status IN ('pending', 'waiting')`
	args := []interface{}{reason, leadID}
	argPos := 3

	if f.Scenario != nil {
		query += fmt.Sprintf(" AND scenario=$%d", argPos)
		args = append(args, *f.Scenario)
		argPos++
	}
	if f.MaxSeq != nil {
		query += fmt.Sprintf(" AND seq <= $%d", argPos)
		args = append(args, *f.MaxSeq)
	}

	res, err := r.DB.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ PendingTaskRepositoryInterface = (*PendingTaskRepository)(nil)
