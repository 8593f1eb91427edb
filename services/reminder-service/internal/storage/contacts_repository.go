package storage

import (
	"context"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/db"
	"github.com/jackc/pgx/v5"
)

// PatientContact is a local read model fed by patient events;
// booking payloads only carry patient ids.
type PatientContact struct {
	ClinicID  string
	PatientID string
	Name      string
	Email     string
	Phone     string
}

type ContactsRepository struct {
	pool *db.Pool
}

func NewContactsRepository(pool *db.Pool) *ContactsRepository {
	return &ContactsRepository{pool: pool}
}

func (r *ContactsRepository) Upsert(ctx context.Context, c PatientContact) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO patient_contacts (clinic_id, patient_id, name, email, phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (clinic_id, patient_id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    updated_at = now()
	`, c.ClinicID, c.PatientID, c.Name, c.Email, c.Phone)
	return err
}

func (r *ContactsRepository) Get(ctx context.Context, clinicID, patientID string) (PatientContact, bool, error) {
	var c PatientContact
	err := r.pool.QueryRow(ctx, `
		SELECT clinic_id, patient_id, COALESCE(name, ''), COALESCE(email, ''), COALESCE(phone, '')
		FROM patient_contacts
		WHERE clinic_id = $1 AND patient_id = $2
	`, clinicID, patientID).Scan(&c.ClinicID, &c.PatientID, &c.Name, &c.Email, &c.Phone)
	if err == pgx.ErrNoRows {
		return PatientContact{}, false, nil
	}
	if err != nil {
		return PatientContact{}, false, err
	}
	return c, true, nil
}
