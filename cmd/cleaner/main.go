// cmd/cleaner/main.go
//
// One-shot task log retention cleanup, intended for cron. Deletes ledger
// entries whose best timestamp is older than TASK_LOG_RETENTION_DAYS;
// entries with no timestamps are still-pending work and survive.
package main

import (
	"log"
	"time"

	"github.com/unclebandit/leadengage-backend/internal/config"
	"github.com/unclebandit/leadengage-backend/internal/db"
	"github.com/unclebandit/leadengage-backend/internal/repository"
)

func main() {
	cfg := config.Load()

	db.Init()

	logRepo := &repository.TaskLogRepository{DB: db.DB}
	cutoff := time.Now().AddDate(0, 0, -cfg.RetentionDays)

	n, err := logRepo.PurgeOlderThan(cutoff)
	if err != nil {
		log.Fatal("Retention cleanup failed:", err)
	}

	log.Printf("✅ Purged %d task log entries older than %s", n, cutoff.Format(time.RFC3339))
}
