// cmd/worker/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unclebandit/leadengage-backend/internal/config"
	"github.com/unclebandit/leadengage-backend/internal/db"
	"github.com/unclebandit/leadengage-backend/internal/queue"
	"github.com/unclebandit/leadengage-backend/internal/repository"
	"github.com/unclebandit/leadengage-backend/internal/scheduler"
	"github.com/unclebandit/leadengage-backend/internal/service"
	"github.com/unclebandit/leadengage-backend/internal/sms"
)

func main() {
	cfg := config.Load()

	db.Init()

	leadRepo := &repository.LeadRepository{DB: db.DB}
	taskRepo := &repository.PendingTaskRepository{DB: db.DB}
	logRepo := &repository.TaskLogRepository{DB: db.DB}
	settingsRepo := &repository.SettingsRepository{DB: db.DB}

	q, err := queue.NewAmqpQueue(cfg.AmqpURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ:", err)
	}
	defer q.Close()

	var sender sms.Sender
	if cfg.SMSAPIToken != "" {
		sender = sms.NewClient(cfg.SMSAPIURL, cfg.SMSAPIToken, cfg.SendMaxAttempts)
	} else {
		log.Println("⚠️ SMS_API_TOKEN not set, using mock sender")
		sender = sms.MockSender{}
	}

	var generator service.Generator
	if cfg.OpenAIKey != "" {
		generator = service.NewOpenAIGenerator(cfg.OpenAIKey, cfg.OpenAIModel)
	} else {
		log.Println("⚠️ OPENAI_API_KEY not set, AI generation disabled")
	}

	dispatch := &service.DispatchService{
		Tasks:        taskRepo,
		Leads:        leadRepo,
		Settings:     settingsRepo,
		Lifecycle:    scheduler.Lifecycle{Log: logRepo},
		Sender:       sender,
		Generator:    generator,
		RequeueDelay: cfg.RequeueDelay,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = q.Subscribe(queue.TaskDispatchTopic, func(taskID string) error {
		return dispatch.HandleTask(ctx, taskID)
	})
	if err != nil {
		log.Fatal("Failed to start dispatch consumer:", err)
	}

	sched := scheduler.NewScheduler(taskRepo, logRepo, q, cfg.PollInterval, cfg.DispatchBatch)

	log.Println("Worker running, waiting for due tasks...")
	sched.Run(ctx)
}
