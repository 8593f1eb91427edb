package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/model"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
	"github.com/google/uuid"
)

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Slots serves the patient-portal availability view. Same engine as the
// staff calendar; only the rendering differs (clinic-local HH:mm).
func (h *Handler) Slots(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	dentistID := strings.TrimSpace(r.URL.Query().Get("dentist_id"))
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if dentistID == "" || date == "" {
		writeError(w, http.StatusBadRequest, "dentist_id and date are required")
		return
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	slots, err := h.engine.AvailableSlots(r.Context(), ident.ClinicID, dentistID, date)
	if err != nil {
		h.logger.Error("slot computation failed", "err", err, "dentist_id", dentistID, "date", date)
		writeError(w, http.StatusInternalServerError, "failed to compute availability")
		return
	}

	items := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		items = append(items, slotItem{
			StartTime: s.Start.Format("15:04"),
			EndTime:   s.End.Format("15:04"),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"available_slots": items})
}

type portalBookRequest struct {
	DentistID string `json:"dentist_id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Procedure string `json:"procedure"`
	Notes     string `json:"notes"`
}

// Book creates a portal appointment. The caller is the patient; at most
// one non-terminal appointment per patient is allowed, checked under a
// per-patient lock inside the same transaction as the insert.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req portalBookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.DentistID = strings.TrimSpace(req.DentistID)
	req.Procedure = strings.TrimSpace(req.Procedure)
	if req.DentistID == "" || req.Procedure == "" {
		writeError(w, http.StatusBadRequest, "dentist_id and procedure are required")
		return
	}
	if !model.ValidProcedure(req.Procedure) {
		writeError(w, http.StatusBadRequest, "unknown procedure "+req.Procedure)
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time")
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end_time")
		return
	}
	if !end.After(start) {
		writeError(w, http.StatusBadRequest, "end_time must be after start_time")
		return
	}

	appt := &model.Appointment{
		ID:        uuid.NewString(),
		ClinicID:  ident.ClinicID,
		PatientID: ident.Sub,
		DentistID: req.DentistID,
		Procedure: req.Procedure,
		StartTime: start,
		EndTime:   end,
		Status:    string(lifecycle.StatusScheduled),
		Notes:     strings.TrimSpace(req.Notes),
		Channel:   model.ChannelPortal,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := h.repo.LockPatient(ctx, tx, ident.ClinicID, ident.Sub); err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	pending, err := h.repo.CountActiveByPatient(ctx, tx, ident.ClinicID, ident.Sub)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to check pending appointments")
		return
	}
	if pending > 0 {
		writeError(w, http.StatusConflict, "patient already has a pending appointment")
		return
	}

	if err := h.repo.Create(ctx, tx, appt); err != nil {
		if storage.IsConflict(err) {
			writeError(w, http.StatusConflict, "time slot conflicts with an existing appointment")
			return
		}
		h.logger.Error("portal appointment insert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	if err := h.insertBookedEvent(ctx, tx, appt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
}

// PortalCancel lets a patient cancel their own appointment while it is
// still scheduled or confirmed.
func (h *Handler) PortalCancel(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	id := r.PathValue("id")

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, err := h.repo.GetForUpdate(ctx, tx, ident.ClinicID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	if appt.PatientID != ident.Sub {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	if err := lifecycle.Transition(lifecycle.Status(appt.Status), lifecycle.StatusCancelled); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "appointment can no longer be cancelled")
		return
	}

	updated, err := h.repo.UpdateStatus(ctx, tx, ident.ClinicID, id, string(lifecycle.StatusCancelled))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel appointment")
		return
	}

	if err := h.insertStatusEvent(ctx, tx, appt, updated); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to commit")
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(updated))
}
