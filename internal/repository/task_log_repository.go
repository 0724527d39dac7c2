package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/leadengage-backend/internal/model"
)

type TaskLogRepositoryInterface interface {
	RecordScheduled(taskID, name, args, businessID string, eta time.Time) error
	RecordStarted(taskID string) error
	RecordFinished(taskID string, success bool, result string) error
	GetByID(taskID string) (*model.TaskLogEntry, error)
	ListByBusiness(businessID string, maxAge time.Duration) ([]*model.TaskLogEntry, error)
	PurgeOlderThan(cutoff time.Time) (int, error)
}

// TaskLogRepository is the write-only-forward ledger. Every record method is
// an upsert keyed by task id so hooks may fire in any order: a started hook
// arriving before the scheduled hook creates the row and the later scheduled
// hook fills in the metadata without downgrading status.
type TaskLogRepository struct {
	DB *sql.DB
}

func (r *TaskLogRepository) RecordScheduled(taskID, name, args, businessID string, eta time.Time) error {
	query := `
        INSERT INTO task_log (task_id, name, args, business_id, status, eta, created_at)
        VALUES ($1, $2, $3, $4, 'scheduled', $5, NOW())
        ON CONFLICT (task_id) DO UPDATE
        SET name = EXCLUDED.name,
            args = EXCLUDED.args,
            business_id = EXCLUDED.business_id,
            eta = EXCLUDED.eta`
	_, err := r.DB.Exec(query, taskID, name, args, businessID, eta)
	return err
}

func (r *TaskLogRepository) RecordStarted(taskID string) error {
	query := `
        INSERT INTO task_log (task_id, status, started_at, created_at)
        VALUES ($1, 'started', NOW(), NOW())
        ON CONFLICT (task_id) DO UPDATE
        SET status = CASE WHEN task_log.status IN ('success', 'failure')
                          THEN task_log.status ELSE 'started' END,
            started_at = COALESCE(task_log.started_at, NOW())`
	_, err := r.DB.Exec(query, taskID)
	return err
}

func (r *TaskLogRepository) RecordFinished(taskID string, success bool, result string) error {
	status := model.LogStatusSuccess
	if !success {
		status = model.LogStatusFailure
	}
	query := `
        INSERT INTO task_log (task_id, status, result, finished_at, created_at)
        VALUES ($1, $2, $3, NOW(), NOW())
        ON CONFLICT (task_id) DO UPDATE
        SET status = EXCLUDED.status,
            result = EXCLUDED.result,
            finished_at = COALESCE(task_log.finished_at, NOW())`
	_, err := r.DB.Exec(query, taskID, status, result)
	return err
}

const logColumns = `task_id, name, args, business_id, status, result, eta, started_at, finished_at, created_at`

func scanLogEntry(scan func(dest ...interface{}) error) (*model.TaskLogEntry, error) {
	var e model.TaskLogEntry
	err := scan(
		&e.TaskID, &e.Name, &e.Args, &e.BusinessID, &e.Status, &e.Result,
		&e.ETA, &e.StartedAt, &e.FinishedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *TaskLogRepository) GetByID(taskID string) (*model.TaskLogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM task_log WHERE task_id=$1`
	e, err := scanLogEntry(r.DB.QueryRow(query, taskID).Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return e, nil
}

func (r *TaskLogRepository) ListByBusiness(businessID string, maxAge time.Duration) ([]*model.TaskLogEntry, error) {
	query := `SELECT ` + logColumns + ` FROM task_log WHERE business_id=$1`
	args := []interface{}{businessID}
	if maxAge > 0 {
		query += ` AND created_at >= $2`
		args = append(args, time.Now().Add(-maxAge))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []*model.TaskLogEntry{}
	for rows.Next() {
		e, err := scanLogEntry(rows.Scan)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// PurgeOlderThan deletes entries whose best timestamp (finished, else
// started, else eta) precedes the cutoff. Entries with no timestamps at all
// are still-pending work and are never purged: COALESCE over all NULLs
// yields NULL, which matches nothing.
func (r *TaskLogRepository) PurgeOlderThan(cutoff time.Time) (int, error) {
	res, err := r.DB.Exec(`
        DELETE FROM task_log
        WHERE COALESCE(finished_at, started_at, eta) < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ TaskLogRepositoryInterface = (*TaskLogRepository)(nil)
