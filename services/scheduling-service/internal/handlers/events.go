package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/model"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/outbox"
	"github.com/jackc/pgx/v5"
)

func (h *Handler) insertBookedEvent(ctx context.Context, tx pgx.Tx, appt *model.Appointment) error {
	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"clinic_id":      appt.ClinicID,
		"patient_id":     appt.PatientID,
		"dentist_id":     appt.DentistID,
		"procedure":      appt.Procedure,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
		"channel":        appt.Channel,
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   appt.ID,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	})
}

// insertStatusEvent emits a cancellation event for transitions into
// cancelled (consumed by the reminder pipeline) and a generic
// status-change event otherwise.
func (h *Handler) insertStatusEvent(ctx context.Context, tx pgx.Tx, before, after model.Appointment) error {
	if after.Status == string(lifecycle.StatusCancelled) {
		payload, err := json.Marshal(map[string]any{
			"appointment_id": after.ID,
			"clinic_id":      after.ClinicID,
			"patient_id":     after.PatientID,
			"dentist_id":     after.DentistID,
			"start_time":     after.StartTime.UTC().Format(time.RFC3339),
			"end_time":       after.EndTime.UTC().Format(time.RFC3339),
			"cancelled_at":   after.UpdatedAt.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return err
		}
		return h.outboxRepo.Insert(ctx, tx, outbox.Event{
			AggregateType: "appointment",
			AggregateID:   after.ID,
			EventType:     outbox.EventAppointmentCancelled,
			Payload:       payload,
		})
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": after.ID,
		"clinic_id":      after.ClinicID,
		"patient_id":     after.PatientID,
		"dentist_id":     after.DentistID,
		"old_status":     before.Status,
		"new_status":     after.Status,
		"changed_at":     after.UpdatedAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return h.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   after.ID,
		EventType:     outbox.EventAppointmentStatusChanged,
		Payload:       payload,
	})
}
