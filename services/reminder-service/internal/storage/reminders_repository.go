package storage

import (
	"context"
	"encoding/json"

	"github.com/TOMBRITO1979/odowell.pro-sub001/libs/db"
)

type Reminder struct {
	AppointmentID string
	ClinicID      string
	PatientID     string
	Channel       string
	Recipient     string
	Payload       map[string]any
	Status        string
}

type RemindersRepository struct {
	pool *db.Pool
}

func NewRemindersRepository(pool *db.Pool) *RemindersRepository {
	return &RemindersRepository{pool: pool}
}

func (r *RemindersRepository) Insert(ctx context.Context, rem Reminder) error {
	payload, err := json.Marshal(rem.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO reminders (appointment_id, clinic_id, patient_id, channel, recipient, payload, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rem.AppointmentID, rem.ClinicID, rem.PatientID, rem.Channel, rem.Recipient, payload, rem.Status)
	return err
}
