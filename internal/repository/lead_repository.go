package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/unclebandit/leadengage-backend/internal/errors"
	"github.com/unclebandit/leadengage-backend/internal/model"
)

type LeadRepositoryInterface interface {
	GetByID(id string) (*model.Lead, error)
	GetOrCreate(id, businessID string) (*model.Lead, bool, error)
	MergeFlags(id string, f FlagUpdate) (*model.Lead, error)
	UpdateState(id, state string) error
	AdvanceWatermark(id string, t time.Time) error
	UpdateCursor(id, cursor string) error
}

// FlagUpdate carries the signal bits observed in one event. Merging is
// monotonic: a false here never clears a flag already set on the lead.
type FlagUpdate struct {
	PhoneOptIn            bool
	PhoneInText           bool
	PhoneInDialog         bool
	PhoneInAdditionalInfo bool
	PhoneNumber           string
	Name                  string
}

type LeadRepository struct {
	DB *sql.DB
}

const leadColumns = `id, business_id, state, name, phone_number, phone_opt_in, phone_in_text,
       phone_in_dialog, phone_in_additional_info, processed_as_of, last_cursor, created_at, updated_at`

func scanLead(row *sql.Row) (*model.Lead, error) {
	var l model.Lead
	err := row.Scan(
		&l.ID, &l.BusinessID, &l.State, &l.Name, &l.PhoneNumber,
		&l.PhoneOptIn, &l.PhoneInText, &l.PhoneInDialog, &l.PhoneInAdditionalInfo,
		&l.ProcessedAsOf, &l.LastCursor, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LeadRepository) GetByID(id string) (*model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE id=$1`
	l, err := scanLead(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return l, nil
}

// GetOrCreate inserts the lead if it is unseen. The bool reports whether
// this call created it; under duplicate webhook deliveries exactly one
// caller observes true.
func (r *LeadRepository) GetOrCreate(id, businessID string) (*model.Lead, bool, error) {
	query := `
        INSERT INTO leads (id, business_id, state, created_at)
        VALUES ($1, $2, 'new', NOW())
        ON CONFLICT (id) DO NOTHING
        RETURNING ` + leadColumns
	l, err := scanLead(r.DB.QueryRow(query, id, businessID))
	if err == nil {
		return l, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	l, err = r.GetByID(id)
	if err != nil {
		return nil, false, err
	}
	return l, false, nil
}

// MergeFlags ORs the update into the stored flags and resolves the phone
// number if it was still empty. Single UPDATE, safe under concurrent
// deliveries.
func (r *LeadRepository) MergeFlags(id string, f FlagUpdate) (*model.Lead, error) {
	query := `
        UPDATE leads
        SET phone_opt_in             = phone_opt_in OR $2,
            phone_in_text            = phone_in_text OR $3,
            phone_in_dialog          = phone_in_dialog OR $4,
            phone_in_additional_info = phone_in_additional_info OR $5,
            phone_number             = CASE WHEN phone_number = '' THEN $6 ELSE phone_number END,
            name                     = CASE WHEN name = '' THEN $7 ELSE name END,
            updated_at               = NOW()
        WHERE id = $1
        RETURNING ` + leadColumns
	l, err := scanLead(r.DB.QueryRow(query, id,
		f.PhoneOptIn, f.PhoneInText, f.PhoneInDialog, f.PhoneInAdditionalInfo, f.PhoneNumber, f.Name))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewLeadNotFound(id)
		}
		return nil, err
	}
	return l, nil
}

func (r *LeadRepository) UpdateState(id, state string) error {
	query := `UPDATE leads SET state=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, state, id)
	return err
}

// AdvanceWatermark moves processed_as_of forward only; a stale timestamp
// never rewinds it.
func (r *LeadRepository) AdvanceWatermark(id string, t time.Time) error {
	query := `
        UPDATE leads
        SET processed_as_of = GREATEST(COALESCE(processed_as_of, 'epoch'::timestamptz), $1),
            updated_at = NOW()
        WHERE id = $2`
	_, err := r.DB.Exec(query, t, id)
	return err
}

func (r *LeadRepository) UpdateCursor(id, cursor string) error {
	query := `UPDATE leads SET last_cursor=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, cursor, id)
	return err
}

var _ LeadRepositoryInterface = (*LeadRepository)(nil)
