package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/availability"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/lifecycle"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/model"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/outbox"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/policy"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
	"github.com/google/uuid"
)

type Handler struct {
	repo         *storage.AppointmentRepository
	settingsRepo *storage.SettingsRepository
	outboxRepo   *outbox.Repository
	engine       *availability.Engine
	policies     policy.Provider
	logger       *slog.Logger
}

func New(repo *storage.AppointmentRepository, settingsRepo *storage.SettingsRepository, outboxRepo *outbox.Repository, engine *availability.Engine, policies policy.Provider, logger *slog.Logger) *Handler {
	return &Handler{
		repo:         repo,
		settingsRepo: settingsRepo,
		outboxRepo:   outboxRepo,
		engine:       engine,
		policies:     policies,
		logger:       logger,
	}
}

type createAppointmentRequest struct {
	PatientID string `json:"patient_id"`
	DentistID string `json:"dentist_id"`
	Procedure string `json:"procedure"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Room      string `json:"room"`
	Notes     string `json:"notes"`
}

func (req *createAppointmentRequest) validate() (start, end time.Time, msg string) {
	req.PatientID = strings.TrimSpace(req.PatientID)
	req.DentistID = strings.TrimSpace(req.DentistID)
	req.Procedure = strings.TrimSpace(req.Procedure)

	if req.PatientID == "" || req.DentistID == "" || req.Procedure == "" {
		return start, end, "patient_id, dentist_id and procedure are required"
	}
	if !model.ValidProcedure(req.Procedure) {
		return start, end, "unknown procedure " + req.Procedure
	}
	var err error
	start, err = time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		return start, end, "invalid start_time"
	}
	end, err = time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		return start, end, "invalid end_time"
	}
	if !end.After(start) {
		return start, end, "end_time must be after start_time"
	}
	return start, end, ""
}

// Create handles staff-initiated booking. The portal flow lives in
// portal.go and additionally enforces the one-pending-appointment rule.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req createAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	start, end, msg := req.validate()
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	appt := &model.Appointment{
		ID:        uuid.NewString(),
		ClinicID:  ident.ClinicID,
		PatientID: req.PatientID,
		DentistID: req.DentistID,
		Procedure: req.Procedure,
		StartTime: start,
		EndTime:   end,
		Status:    string(lifecycle.StatusScheduled),
		Room:      strings.TrimSpace(req.Room),
		Notes:     strings.TrimSpace(req.Notes),
		Channel:   model.ChannelStaff,
	}

	ctx := r.Context()
	tx, err := h.repo.Begin(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	idempotencyKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if idempotencyKey != "" {
		rec, exists, err := h.repo.LockIdempotencyKey(ctx, tx, ident.ClinicID, idempotencyKey)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to lock idempotency key")
			return
		}
		if exists && rec.StatusCode > 0 && len(rec.ResponsePayload) > 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(rec.StatusCode)
			_, _ = w.Write(rec.ResponsePayload)
			return
		}
	}

	if err := h.repo.Create(ctx, tx, appt); err != nil {
		if storage.IsConflict(err) {
			writeError(w, http.StatusConflict, "time slot conflicts with an existing appointment")
			return
		}
		h.logger.Error("appointment insert failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	if err := h.insertBookedEvent(ctx, tx, appt); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to write outbox event")
		return
	}

	respBody, err := json.Marshal(toAppointmentResponse(*appt))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build response")
		return
	}
	if idempotencyKey != "" {
		if err := h.repo.FinalizeIdempotency(ctx, tx, ident.ClinicID, idempotencyKey, appt.ID, http.StatusCreated, respBody); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to finalize idempotency key")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to commit")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(respBody)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	id := r.PathValue("id")

	appt, err := h.repo.Get(r.Context(), ident.ClinicID, id)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	q := r.URL.Query()

	filter := storage.AppointmentFilter{
		DentistID: strings.TrimSpace(q.Get("dentist_id")),
		Procedure: strings.TrimSpace(q.Get("procedure")),
		Page:      1,
		PageSize:  20,
	}

	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		if _, ok := lifecycle.Parse(raw); !ok {
			writeError(w, http.StatusBadRequest, "unknown status "+raw)
			return
		}
		filter.Status = raw
	}
	if filter.Procedure != "" && !model.ValidProcedure(filter.Procedure) {
		writeError(w, http.StatusBadRequest, "unknown procedure "+filter.Procedure)
		return
	}

	pol, err := h.policies.ClinicPolicy(r.Context(), ident.ClinicID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load clinic policy")
		return
	}
	loc := pol.Location()

	if raw := strings.TrimSpace(q.Get("start_date")); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start_date")
			return
		}
		filter.StartDate = &day
	}
	if raw := strings.TrimSpace(q.Get("end_date")); raw != "" {
		day, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end_date")
			return
		}
		// end_date is inclusive.
		next := day.AddDate(0, 0, 1)
		filter.EndDate = &next
	}
	if raw := strings.TrimSpace(q.Get("page")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Page = n
		}
	}
	if raw := strings.TrimSpace(q.Get("page_size")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 100 {
			filter.PageSize = n
		}
	}

	appts, total, err := h.repo.List(r.Context(), ident.ClinicID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}

	items := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		items = append(items, toAppointmentResponse(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"appointments": items,
		"total":        total,
		"page":         filter.Page,
		"page_size":    filter.PageSize,
	})
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	id := r.PathValue("id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	target, ok := lifecycle.Parse(strings.TrimSpace(req.Status))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown status "+req.Status)
		return
	}

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

	if err := lifecycle.Transition(lifecycle.Status(appt.Status), target); err != nil {
		var ivt *lifecycle.InvalidTransitionError
		if errors.As(err, &ivt) {
			writeError(w, http.StatusUnprocessableEntity, ivt.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "transition check failed")
		return
	}

	updated, err := h.repo.UpdateStatus(ctx, tx, ident.ClinicID, id, string(target))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update status")
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

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())
	id := r.PathValue("id")

	deleted, err := h.repo.Delete(r.Context(), ident.ClinicID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete appointment")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
