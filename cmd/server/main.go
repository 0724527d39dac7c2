// cmd/server/main.go
package main

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/leadengage-backend/internal/config"
	"github.com/unclebandit/leadengage-backend/internal/controller"
	"github.com/unclebandit/leadengage-backend/internal/conversation"
	"github.com/unclebandit/leadengage-backend/internal/db"
	"github.com/unclebandit/leadengage-backend/internal/handler"
	"github.com/unclebandit/leadengage-backend/internal/repository"
	"github.com/unclebandit/leadengage-backend/internal/scheduler"
	"github.com/unclebandit/leadengage-backend/internal/service"
)

func main() {
	cfg := config.Load()

	db.Init()

	templates, err := config.LoadTemplates(cfg.TemplatesFile)
	if err != nil {
		log.Fatalf("failed to load templates from %s: %v", cfg.TemplatesFile, err)
	}
	go func() {
		if err := templates.Watch(); err != nil {
			log.Println("⚠️ Template watcher stopped:", err)
		}
	}()

	leadRepo := &repository.LeadRepository{DB: db.DB}
	taskRepo := &repository.PendingTaskRepository{DB: db.DB}
	logRepo := &repository.TaskLogRepository{DB: db.DB}
	settingsRepo := &repository.SettingsRepository{DB: db.DB}

	taskService := &service.TaskService{
		Tasks:     taskRepo,
		Settings:  settingsRepo,
		Templates: templates,
		Scheduler: &scheduler.Lifecycle{Log: logRepo},
	}

	ingestService := &service.IngestService{
		Leads:   leadRepo,
		TaskSvc: taskService,
		Events:  conversation.NewClient(cfg.ConversationAPIURL, cfg.ConversationAPIToken),
	}

	webhookController := &controller.WebhookController{
		Ingest: ingestService,
	}

	taskLogHandler := &handler.TaskLogHandler{
		Log: logRepo,
	}

	r := chi.NewRouter()

	r.Post("/webhooks/conversations", webhookController.HandleConversationWebhook)
	r.Get("/tasklog/{task_id}", taskLogHandler.GetEntryHandler)
	r.Get("/businesses/{id}/tasklog", taskLogHandler.ListByBusinessHandler)

	log.Println("🚀 Server running on :" + cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
