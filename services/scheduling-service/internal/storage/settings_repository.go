package storage

import (
	"context"
	"errors"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/db"
	"github.com/jackc/pgx/v5"
)

// ClinicSettings is the persisted source of the business-hours policy.
type ClinicSettings struct {
	ClinicID       string
	OpenHour       int
	CloseHour      int
	LunchEnabled   bool
	LunchStartHour int
	LunchEndHour   int
	SlotMinutes    int
	Timezone       string
	UpdatedAt      time.Time
}

type SettingsRepository struct {
	pool *db.Pool
}

func NewSettingsRepository(pool *db.Pool) *SettingsRepository {
	return &SettingsRepository{pool: pool}
}

func (r *SettingsRepository) Get(ctx context.Context, clinicID string) (ClinicSettings, bool, error) {
	var s ClinicSettings
	err := r.pool.QueryRow(ctx, `
		SELECT clinic_id, open_hour, close_hour, lunch_enabled, lunch_start_hour, lunch_end_hour,
			slot_minutes, timezone, updated_at
		FROM clinic_settings
		WHERE clinic_id = $1
	`, clinicID).Scan(
		&s.ClinicID,
		&s.OpenHour,
		&s.CloseHour,
		&s.LunchEnabled,
		&s.LunchStartHour,
		&s.LunchEndHour,
		&s.SlotMinutes,
		&s.Timezone,
		&s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ClinicSettings{}, false, nil
	}
	if err != nil {
		return ClinicSettings{}, false, err
	}
	return s, true, nil
}

func (r *SettingsRepository) Upsert(ctx context.Context, s ClinicSettings) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clinic_settings
			(clinic_id, open_hour, close_hour, lunch_enabled, lunch_start_hour, lunch_end_hour, slot_minutes, timezone, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (clinic_id) DO UPDATE SET
			open_hour = EXCLUDED.open_hour,
			close_hour = EXCLUDED.close_hour,
			lunch_enabled = EXCLUDED.lunch_enabled,
			lunch_start_hour = EXCLUDED.lunch_start_hour,
			lunch_end_hour = EXCLUDED.lunch_end_hour,
			slot_minutes = EXCLUDED.slot_minutes,
			timezone = EXCLUDED.timezone,
			updated_at = now()
	`, s.ClinicID, s.OpenHour, s.CloseHour, s.LunchEnabled, s.LunchStartHour, s.LunchEndHour, s.SlotMinutes, s.Timezone)
	return err
}
