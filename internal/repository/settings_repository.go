package repository

import (
	"database/sql"

	appErrors "github.com/unclebandit/leadengage-backend/internal/errors"
	"github.com/unclebandit/leadengage-backend/internal/model"
)

type SettingsRepositoryInterface interface {
	Get(businessID string) (*model.AutoResponseSettings, error)
	Upsert(s *model.AutoResponseSettings) error
}

type SettingsRepository struct {
	DB *sql.DB
}

func (r *SettingsRepository) Get(businessID string) (*model.AutoResponseSettings, error) {
	query := `
        SELECT business_id, enabled, use_ai, greeting_delay_minutes, hours_start, hours_end, sms_from, updated_at
        FROM auto_response_settings WHERE business_id=$1`
	var s model.AutoResponseSettings
	err := r.DB.QueryRow(query, businessID).Scan(
		&s.BusinessID, &s.Enabled, &s.UseAI, &s.GreetingDelayMinutes,
		&s.HoursStart, &s.HoursEnd, &s.SMSFrom, &s.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewSettingsNotFound(businessID)
		}
		return nil, err
	}
	return &s, nil
}

func (r *SettingsRepository) Upsert(s *model.AutoResponseSettings) error {
	query := `
        INSERT INTO auto_response_settings
        (business_id, enabled, use_ai, greeting_delay_minutes, hours_start, hours_end, sms_from, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        ON CONFLICT (business_id) DO UPDATE
        SET enabled = EXCLUDED.enabled,
            use_ai = EXCLUDED.use_ai,
            greeting_delay_minutes = EXCLUDED.greeting_delay_minutes,
            hours_start = EXCLUDED.hours_start,
            hours_end = EXCLUDED.hours_end,
            sms_from = EXCLUDED.sms_from,
            updated_at = NOW()`
	_, err := r.DB.Exec(query,
		s.BusinessID, s.Enabled, s.UseAI, s.GreetingDelayMinutes,
		s.HoursStart, s.HoursEnd, s.SMSFrom,
	)
	return err
}

var _ SettingsRepositoryInterface = (*SettingsRepository)(nil)
