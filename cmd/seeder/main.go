// cmd/seeder/main.go
package main

import (
	"log"

	"github.com/unclebandit/leadengage-backend/internal/config"
	"github.com/unclebandit/leadengage-backend/internal/db"
	"github.com/unclebandit/leadengage-backend/internal/model"
	"github.com/unclebandit/leadengage-backend/internal/repository"
)

func main() {
	config.Load()

	db.Init()

	settingsRepo := &repository.SettingsRepository{DB: db.DB}

	seeds := []*model.AutoResponseSettings{
		{BusinessID: "biz-001", Enabled: true, UseAI: true, GreetingDelayMinutes: 5, HoursStart: 8, HoursEnd: 20, SMSFrom: "+15550001111"},
		{BusinessID: "biz-002", Enabled: true, UseAI: false, GreetingDelayMinutes: 15, HoursStart: 9, HoursEnd: 18, SMSFrom: "+15550002222"},
		{BusinessID: "biz-003", Enabled: false, UseAI: false, GreetingDelayMinutes: 5, HoursStart: 0, HoursEnd: 24, SMSFrom: "+15550003333"},
	}

	for _, s := range seeds {
		if err := settingsRepo.Upsert(s); err != nil {
			log.Fatalf("failed to seed settings for %s: %v", s.BusinessID, err)
		}
		log.Println("Seeded auto-response settings for", s.BusinessID)
	}

	log.Println("✅ Seeding complete")
}
