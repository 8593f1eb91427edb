package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/policy"
	"github.com/TOMBRITO1979/odowell.pro-sub001/services/scheduling-service/internal/storage"
)

type settingsResponse struct {
	OpenHour       int    `json:"open_hour"`
	CloseHour      int    `json:"close_hour"`
	LunchEnabled   bool   `json:"lunch_enabled"`
	LunchStartHour int    `json:"lunch_start_hour,omitempty"`
	LunchEndHour   int    `json:"lunch_end_hour,omitempty"`
	SlotMinutes    int    `json:"slot_minutes"`
	Timezone       string `json:"timezone"`
}

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	s, ok, err := h.settingsRepo.Get(r.Context(), ident.ClinicID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	if !ok {
		def := policy.Default()
		writeJSON(w, http.StatusOK, settingsResponse{
			OpenHour:       def.OpenHour,
			CloseHour:      def.CloseHour,
			LunchEnabled:   def.Lunch != nil,
			LunchStartHour: def.Lunch.StartHour,
			LunchEndHour:   def.Lunch.EndHour,
			SlotMinutes:    def.SlotMinutes,
			Timezone:       def.Timezone,
		})
		return
	}
	writeJSON(w, http.StatusOK, settingsResponse{
		OpenHour:       s.OpenHour,
		CloseHour:      s.CloseHour,
		LunchEnabled:   s.LunchEnabled,
		LunchStartHour: s.LunchStartHour,
		LunchEndHour:   s.LunchEndHour,
		SlotMinutes:    s.SlotMinutes,
		Timezone:       s.Timezone,
	})
}

// UpdateSettings validates through the policy contract before persisting,
// so a malformed window can never reach the slot engine.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	ident := identityFromContext(r.Context())

	var req settingsResponse
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.Timezone = strings.TrimSpace(req.Timezone)
	if req.Timezone == "" {
		req.Timezone = policy.Default().Timezone
	}

	s := storage.ClinicSettings{
		ClinicID:       ident.ClinicID,
		OpenHour:       req.OpenHour,
		CloseHour:      req.CloseHour,
		LunchEnabled:   req.LunchEnabled,
		LunchStartHour: req.LunchStartHour,
		LunchEndHour:   req.LunchEndHour,
		SlotMinutes:    req.SlotMinutes,
		Timezone:       req.Timezone,
	}
	if err := policy.FromSettings(s).Validate(); err != nil {
		var ice *policy.InvalidConfigurationError
		if errors.As(err, &ice) {
			writeError(w, http.StatusBadRequest, ice.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid settings")
		return
	}

	if err := h.settingsRepo.Upsert(r.Context(), s); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
